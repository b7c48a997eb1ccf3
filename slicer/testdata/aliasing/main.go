package main

// aliasing mirrors spec.md §8 scenario 3 (pointer aliasing): p may point
// at a or b depending on flag, so a store through p must be kept even
// though neither branch's address-of is itself a definition site.
func aliasing(flag bool) int {
	a := 1
	b := 2
	var p *int
	if flag {
		p = &a
	} else {
		p = &b
	}
	*p = 42 // @Kept(p)
	for i := 0; i < 1; i++ {
	}
	c := !flag // @Removed(p)
	_ = c
	return a + b
}

func main() {
	aliasing(true)
}
