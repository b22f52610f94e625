package expr

import (
	"math/big"
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/combin"
)

// SeekEquivalents merges tensors that are equal up to relabeling of indices, reordering of
// same-named amplitudes and, for amplitudes carrying their orbital space, swapping of rows.
// Merged weights are summed and tensors of zero weight are dropped.
// Each kept tensor is in the canonical form obtained by ordering its amplitudes by name.
func SeekEquivalents(ts []Tensor) ([]Tensor, error) {
	canon := make([]Tensor, 0, len(ts))
	for _, t := range ts {
		groups := nameGroups(t)
		flips := flipSubsets(t)

		lens := []int{len(flips)}
		perms := make([][][]int, len(groups))
		for i, g := range groups {
			perms[i] = combin.Permutations(len(g), len(g))
			lens = append(lens, len(perms[i]))
		}

		matched := false
		for _, choice := range combin.Cartesian(lens) {
			perm := make([]int, 0, len(t.Amplitudes))
			for i, g := range groups {
				for _, p := range perms[i][choice[i+1]] {
					perm = append(perm, g[p])
				}
			}
			u, err := PermuteCanonicalize(t, perm, flips[choice[0]])
			if err != nil {
				return nil, errors.Wrap(err, "")
			}

			j := slices.IndexFunc(canon, u.IsMultiple)
			if j < 0 {
				continue
			}
			canon[j].Weight = new(big.Rat).Add(canon[j].Weight, u.Weight)
			matched = true
			break
		}
		if matched {
			continue
		}

		byName := make([]int, 0, len(t.Amplitudes))
		for _, g := range groups {
			byName = append(byName, g...)
		}
		u, err := PermuteCanonicalize(t, byName, nil)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		canon = append(canon, u)
	}

	nonzero := make([]Tensor, 0, len(canon))
	for _, t := range canon {
		if t.Weight.Sign() != 0 {
			nonzero = append(nonzero, t)
		}
	}
	return nonzero, nil
}

// nameGroups returns the amplitude positions of t grouped by name, groups ordered by name.
func nameGroups(t Tensor) [][]int {
	byName := make(map[string][]int)
	for i, a := range t.Amplitudes {
		byName[a.Name] = append(byName[a.Name], i)
	}
	names := make([]string, 0, len(byName))
	for name := range byName {
		names = append(names, name)
	}
	slices.Sort(names)

	groups := make([][]int, len(names))
	for i, name := range names {
		groups[i] = byName[name]
	}
	return groups
}

// flipSubsets returns every subset of the amplitudes of t whose rows may be swapped, the empty set first.
func flipSubsets(t Tensor) [][]int {
	flippable := make([]int, 0)
	for i, a := range t.Amplitudes {
		if a.IncludeOrbSpace && countOccupied(a.Upper) == countOccupied(a.Lower) {
			flippable = append(flippable, i)
		}
	}

	subsets := [][]int{{}}
	for r := 1; r <= len(flippable); r++ {
		for _, c := range combin.Combinations(len(flippable), r) {
			s := make([]int, r)
			for k, idx := range c {
				s[k] = flippable[idx]
			}
			subsets = append(subsets, s)
		}
	}
	return subsets
}

func countOccupied(row []Symbol) int {
	n := 0
	for _, x := range row {
		if x.Occupied() {
			n++
		}
	}
	return n
}

// PermuteCanonicalize relabels the indices of t into a form shared by equivalent tensors, after
// moving amplitude perm[k] to position k and swapping the rows of the amplitudes in flip.
// flip holds positions before the permutation.
// Symbols are renamed in order of how many amplitudes hold them and where, symbols held by a single
// amplitude receiving upper case letters. Rows are then sorted, each sort contributing its sign.
func PermuteCanonicalize(t Tensor, perm, flip []int) (Tensor, error) {
	positions := make(map[Symbol][]int)
	order := make([]Symbol, 0)
	for future, current := range perm {
		a := t.Amplitudes[current]
		for _, x := range append(slices.Clone(a.Upper), a.Lower...) {
			if _, ok := positions[x]; !ok {
				order = append(order, x)
			}
			positions[x] = append(positions[x], future)
		}
	}
	slices.SortStableFunc(order, func(x, y Symbol) int {
		if c := len(positions[x]) - len(positions[y]); c != 0 {
			return c
		}
		return slices.Compare(positions[x], positions[y])
	})

	relabel := make(map[Symbol]Symbol, len(order))
	claimed := make(map[byte]bool, len(order))
	for _, x := range order {
		y, err := NewSymbol(claimed, x.Occupied(), len(positions[x]) == 1, x.Spin)
		if err != nil {
			return Tensor{}, errors.Wrap(err, "")
		}
		relabel[x] = y
		claimed[y.Letter] = true
	}

	flipped := Tensor{
		Amplitudes:       make([]Amplitude, len(t.Amplitudes)),
		Weight:           t.Weight,
		External:         t.External,
		Antisymmetrizers: t.Antisymmetrizers,
	}
	for i, a := range t.Amplitudes {
		if slices.Contains(flip, i) {
			a = a.Flip()
		}
		flipped.Amplitudes[i] = a
	}
	subbed := flipped.SwapSymbols(relabel)

	sign := 1
	amplitudes := make([]Amplitude, len(subbed.Amplitudes))
	for i, a := range subbed.Amplitudes {
		var s int
		amplitudes[i], s = a.sorted()
		sign *= s
	}
	for i, row := range subbed.External {
		sorted := sortedRow(row)
		sign *= FindParity(row, sorted)
		subbed.External[i] = sorted
	}

	permuted := make([]Amplitude, len(perm))
	for k, current := range perm {
		permuted[k] = amplitudes[current]
	}
	weight := new(big.Rat).Mul(subbed.Weight, big.NewRat(int64(sign), 1))
	return NewTensor(permuted, weight, subbed.External, subbed.Antisymmetrizers...)
}
