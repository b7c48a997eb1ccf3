package main

// factorial mirrors spec.md §8 scenario 4 (recursive call): the slicer
// must terminate over a self-recursive call graph and still keep the
// line the recursive result actually depends on.
func factorial(n int) int {
	if n <= 1 {
		return 1
	}
	waste := n + 999 // @Removed(p)
	_ = waste
	return n * factorial(n-1) // @Kept(p)
}

func main() {
	factorial(5)
}
