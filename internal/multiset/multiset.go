// Package multiset enumerates arrangements of multisets of small integers.
package multiset

import (
	"iter"
	"slices"
)

// Permutations yields every distinct ordering of mask in lexicographic order.
// The yielded slice is reused between iterations.
func Permutations(mask []int) iter.Seq[[]int] {
	return func(yield func([]int) bool) {
		perm := slices.Clone(mask)
		slices.Sort(perm)
		for {
			if !yield(perm) {
				return
			}
			if !nextPermutation(perm) {
				return
			}
		}
	}
}

func nextPermutation(p []int) bool {
	i := len(p) - 2
	for i >= 0 && p[i] >= p[i+1] {
		i--
	}
	if i < 0 {
		return false
	}
	j := len(p) - 1
	for p[j] <= p[i] {
		j--
	}
	p[i], p[j] = p[j], p[i]
	slices.Reverse(p[i+1:])
	return true
}

// Combinations yields every distinct sorted sub-multiset of mask with k elements, in lexicographic order.
// The yielded slice is reused between iterations.
func Combinations(mask []int, k int) iter.Seq[[]int] {
	return func(yield func([]int) bool) {
		values, counts := histogram(mask)
		if k < 0 || k > len(mask) {
			return
		}

		comb := make([]int, 0, k)
		var rec func(v, left int) bool
		rec = func(v, left int) bool {
			if left == 0 {
				return yield(comb)
			}
			if v == len(values) {
				return true
			}
			n := min(counts[v], left)
			for c := n; c >= 0; c-- {
				for range c {
					comb = append(comb, values[v])
				}
				if !rec(v+1, left-c) {
					return false
				}
				comb = comb[:len(comb)-c]
			}
			return true
		}
		rec(0, k)
	}
}

// Complement returns the elements of mask left after removing sub, sorted ascending.
func Complement(mask, sub []int) []int {
	left := make(map[int]int)
	for _, x := range mask {
		left[x]++
	}
	for _, x := range sub {
		left[x]--
	}

	values, _ := histogram(mask)
	c := make([]int, 0, len(mask)-len(sub))
	for _, v := range values {
		for range max(left[v], 0) {
			c = append(c, v)
		}
	}
	return c
}

func histogram(mask []int) ([]int, []int) {
	sorted := slices.Clone(mask)
	slices.Sort(sorted)
	values := make([]int, 0)
	counts := make([]int, 0)
	for _, x := range sorted {
		if len(values) > 0 && values[len(values)-1] == x {
			counts[len(counts)-1]++
			continue
		}
		values = append(values, x)
		counts = append(counts, 1)
	}
	return values, counts
}
