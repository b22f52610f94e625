package expr

import (
	"fmt"
	"math/big"
	"slices"
)

// FindParity returns the sign of the permutation that takes a to b.
// b must be a rearrangement of a.
func FindParity[T comparable](a, b []T) int {
	if len(a) != len(b) {
		panic(fmt.Sprintf("%v %v", a, b))
	}
	perm := make([]int, len(b))
	for i, x := range b {
		perm[i] = slices.Index(a, x)
		if perm[i] < 0 {
			panic(fmt.Sprintf("%v not in %v", x, a))
		}
	}

	inversions := 0
	for i := range perm {
		for j := i + 1; j < len(perm); j++ {
			if perm[i] > perm[j] {
				inversions++
			}
		}
	}
	if inversions%2 == 1 {
		return -1
	}
	return 1
}

// Multinomial returns (k1+k2+...)! / (k1! k2! ...).
func Multinomial(ks ...int) *big.Int {
	m := big.NewInt(1)
	n := 0
	for _, k := range ks {
		n += k
		m.Mul(m, new(big.Int).Binomial(int64(n), int64(k)))
	}
	return m
}

func factorial(n int) *big.Int {
	return new(big.Int).MulRange(1, int64(n))
}
