package main

import "fmt"

// double and triple are the two possible targets of the function-pointer
// call in applyAndPrint, mirroring spec.md §8 scenario 5.
func double(x int) int { return x * 2 }
func triple(x int) int { return x * 3 }

func applyAndPrint(f func(int) int, x int) {
	y := f(x)        // @Kept(p)
	waste := x + 7   // @Removed(p)
	_ = waste
	fmt.Println(y)
}

func main() {
	applyAndPrint(double, 5)
	applyAndPrint(triple, 5)
}
