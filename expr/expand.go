package expr

import (
	"math/big"
	"slices"

	"github.com/fumin/dice/internal/multiset"
)

// ExpandRow writes out the first antisymmetrizer of t as a signed sum over the distinct ways of
// distributing its symbols among its blocks.
func ExpandRow(t Tensor) []Tensor {
	if len(t.Antisymmetrizers) == 0 {
		return []Tensor{t}
	}
	asym, rest := t.Antisymmetrizers[0], t.Antisymmetrizers[1:]

	mask := make([]int, 0)
	ordered := make([]Symbol, 0)
	for i, block := range asym {
		for _, x := range block {
			mask = append(mask, i)
			ordered = append(ordered, x)
		}
	}

	expanded := make([]Tensor, 0)
	for perm := range multiset.Permutations(mask) {
		next := make([]int, len(asym))
		flip := make(map[Symbol]Symbol, len(perm))
		for k, block := range perm {
			flip[asym[block][next[block]]] = ordered[k]
			next[block]++
		}

		u := Tensor{
			Amplitudes:       make([]Amplitude, len(t.Amplitudes)),
			Weight:           new(big.Rat).Mul(t.Weight, big.NewRat(int64(FindParity(ordered, swapRow(ordered, flip))), 1)),
			External:         [2][]Symbol{slices.Clone(t.External[0]), slices.Clone(t.External[1])},
			Antisymmetrizers: slices.Clone(rest),
		}
		for i, a := range t.Amplitudes {
			u.Amplitudes[i] = a.swap(flip)
		}
		expanded = append(expanded, u)
	}
	return expanded
}

// ExpandAntisymmetrizers expands every antisymmetrizer of every tensor.
func ExpandAntisymmetrizers(ts []Tensor) []Tensor {
	queue := slices.Clone(ts)
	done := make([]Tensor, 0, len(ts))
	for len(queue) > 0 {
		t := queue[0]
		queue = queue[1:]
		for _, u := range ExpandRow(t) {
			if len(u.Antisymmetrizers) > 0 {
				queue = append(queue, u)
			} else {
				done = append(done, u)
			}
		}
	}
	return done
}
