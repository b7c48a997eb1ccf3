package main

// deadBranch mirrors spec.md §8 scenario 2 (dead branch): the if-arm's
// only definition never reaches the return, so the whole arm should be
// swept away along with it.
func deadBranch(x int) int {
	result := x + 1 // @Kept(p)
	if x > 100 {
		unused := x * 99 // @Removed(p)
		_ = unused
	}
	return result
}

func main() {
	deadBranch(5)
}
