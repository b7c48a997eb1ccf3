package main

// compute mirrors spec.md §8 scenario 1 (straight-line): a criterion on
// the return value should keep the defs that feed it and drop the one
// that doesn't.
func compute(x int) int {
	y := x + 1 // @Kept(p)
	z := x * 2 // @Removed(p)
	w := y + 3 // @Kept(p)
	_ = z
	return w
}

func main() {
	compute(5)
}
