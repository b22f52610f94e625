package construct

import (
	"fmt"
	"slices"

	"gonum.org/v1/gonum/stat/combin"

	"github.com/fumin/dice/diagram"
)

// CumulantWeight returns the inclusion-exclusion factor of d over its cumulant subdiagrams.
//
// A cumulant subdiagram is a connected cluster of excitation (or of de-excitation) operators that
// are completely contracted away from operator 0, together with everything they contract with.
// The weight sums (-1)^|S| over the sets S of subdiagrams that are pairwise disjoint or nested,
// the empty set included.
func CumulantWeight(d diagram.Diagram) int {
	excitations, deexcitations := closedOperators(d)
	subs := cumulantSubdiagrams(excitations)
	for _, s := range cumulantSubdiagrams(deexcitations) {
		if !slices.ContainsFunc(subs, func(t []int) bool { return slices.Equal(s, t) }) {
			subs = append(subs, s)
		}
	}
	return alternatingCount(subs)
}

// closedOperator is an operator with no line on operator 0, and the operators it contracts with.
type closedOperator struct {
	index    int
	partners []int
}

func closedOperators(d diagram.Diagram) (excitations, deexcitations []closedOperator) {
	for i := 1; i < len(d.Operators); i++ {
		op := d.Operators[i]
		var partners []int
		closed := true
		for _, r := range []diagram.Row{op.Upper, op.Lower} {
			for l := range r {
				if l.Partner == 0 {
					closed = false
				}
				if l.Partner != diagram.Free && !slices.Contains(partners, l.Partner) {
					partners = append(partners, l.Partner)
				}
			}
		}
		if !closed {
			continue
		}
		slices.Sort(partners)
		if op.IsExcitation() {
			excitations = append(excitations, closedOperator{index: i, partners: partners})
		} else {
			deexcitations = append(deexcitations, closedOperator{index: i, partners: partners})
		}
	}
	return excitations, deexcitations
}

// cumulantSubdiagrams returns, for every subset of ops that connects up through shared partners,
// the sorted operator indices of the subset and its partners. Duplicates are dropped.
func cumulantSubdiagrams(ops []closedOperator) [][]int {
	seen := make(map[string]bool)
	var subs [][]int
	for k := 1; k <= len(ops); k++ {
		for _, choice := range combin.Combinations(len(ops), k) {
			sub, ok := grow(ops, choice)
			if !ok {
				continue
			}
			key := fmt.Sprint(sub)
			if seen[key] {
				continue
			}
			seen[key] = true
			subs = append(subs, sub)
		}
	}
	return subs
}

// grow starts from the first chosen operator and absorbs chosen operators that share a member with
// the subdiagram, until all are absorbed or none can be.
func grow(ops []closedOperator, choice []int) ([]int, bool) {
	root := ops[choice[0]]
	members := map[int]bool{root.index: true}
	for _, p := range root.partners {
		members[p] = true
	}
	pending := choice[1:]
	for len(pending) > 0 {
		var rest []int
		for _, c := range pending {
			if !slices.ContainsFunc(ops[c].partners, func(p int) bool { return members[p] }) {
				rest = append(rest, c)
				continue
			}
			members[ops[c].index] = true
			for _, p := range ops[c].partners {
				members[p] = true
			}
		}
		if len(rest) == len(pending) {
			return nil, false
		}
		pending = rest
	}

	sub := make([]int, 0, len(members))
	for m := range members {
		sub = append(sub, m)
	}
	slices.Sort(sub)
	return sub, true
}

// compatible reports whether two sorted index sets are disjoint or one contains the other.
func compatible(a, b []int) bool {
	shared := 0
	for _, x := range a {
		if _, ok := slices.BinarySearch(b, x); ok {
			shared++
		}
	}
	return shared == 0 || shared == len(a) || shared == len(b)
}

// alternatingCount sums (-1)^|S| over the pairwise compatible subsets S of subs.
// Supersets of an incompatible subset are never visited, as they are incompatible too.
func alternatingCount(subs [][]int) int {
	var count func(start, sign int, chosen []int) int
	count = func(start, sign int, chosen []int) int {
		total := sign
		for j := start; j < len(subs); j++ {
			if slices.ContainsFunc(chosen, func(c int) bool { return !compatible(subs[c], subs[j]) }) {
				continue
			}
			total += count(j+1, -sign, append(chosen, j))
		}
		return total
	}
	return count(0, 1, nil)
}
