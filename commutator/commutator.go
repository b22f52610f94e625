// Package commutator expands diagrams by one more nested commutator with cluster excitation and
// de-excitation operators, enumerating every way the new operator contracts with the existing ones.
package commutator

import (
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/combin"

	"github.com/fumin/dice/diagram"
)

// Simplifications restrict the diagrams generated by Expand.
type Simplifications struct {
	// FullyContractableOnly only appends the operator that closes all free lines of a diagram,
	// and only contracts rows completely.
	FullyContractableOnly bool
}

// Expand returns the diagrams of the commutators of ds with the excitation and de-excitation
// operators of the given ranks.
// Diagrams whose new operator ends up uncontracted do not contribute to a commutator and are dropped.
func Expand(ds []diagram.Diagram, ranks []int, simp Simplifications) ([]diagram.Diagram, error) {
	var added []diagram.Diagram
	if simp.FullyContractableOnly {
		added = FullyContractableAdd(ds, ranks)
	} else {
		added = BruteForceAdd(ds, ranks)
	}

	contracted, err := contractLast(added, simp)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	out := make([]diagram.Diagram, 0, len(contracted))
	for _, d := range contracted {
		if d.Operators[len(d.Operators)-1].Contracted() {
			out = append(out, d)
		}
	}
	return out, nil
}

// BruteForceAdd appends to each diagram every excitation operator of the given ranks, then every
// de-excitation operator.
func BruteForceAdd(ds []diagram.Diagram, ranks []int) []diagram.Diagram {
	ops := make([]diagram.Operator, 0, 2*len(ranks))
	for _, r := range ranks {
		ops = append(ops, diagram.Excitation(r))
	}
	for _, r := range ranks {
		ops = append(ops, diagram.Deexcitation(r))
	}

	out := make([]diagram.Diagram, 0, len(ds)*len(ops))
	for _, d := range ds {
		for _, op := range ops {
			out = append(out, appendOperator(d, op))
		}
	}
	return out
}

// FullyContractableAdd appends to each diagram the single operator that can contract all of its free
// lines. Diagrams whose free lines are not of particle-hole type, or whose excitation rank is not
// among ranks, are dropped.
func FullyContractableAdd(ds []diagram.Diagram, ranks []int) []diagram.Diagram {
	out := make([]diagram.Diagram, 0, len(ds))
	for _, d := range ds {
		rank, ok := d.ExcitationRank()
		if !ok || !slices.Contains(ranks, abs(rank)) {
			continue
		}
		switch {
		case rank > 0:
			out = append(out, appendOperator(d, diagram.Deexcitation(rank)))
		case rank < 0:
			out = append(out, appendOperator(d, diagram.Excitation(-rank)))
		}
	}
	return out
}

func appendOperator(d diagram.Diagram, op diagram.Operator) diagram.Diagram {
	ops := make([]diagram.Operator, 0, len(d.Operators)+1)
	for _, o := range d.Operators {
		ops = append(ops, o.Clone())
	}
	return diagram.New(append(ops, op.Clone())...)
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// contractLast contracts the last operator of each diagram with every earlier operator in turn,
// in all possible ways including not at all.
func contractLast(ds []diagram.Diagram, simp Simplifications) ([]diagram.Diagram, error) {
	if len(ds) == 0 {
		return ds, nil
	}
	partners := ds[0].Len() - 1
	for p := range partners {
		var next []diagram.Diagram
		for _, d := range ds {
			cs, err := PartnerContractions(d, p, simp)
			if err != nil {
				return nil, errors.Wrapf(err, "%d %s", p, d)
			}
			next = append(next, cs...)
		}
		ds = next
	}
	return ds, nil
}

// PartnerContractions returns every diagram obtained by contracting the last operator of d with
// operator p, including the diagram without any such contraction.
func PartnerContractions(d diagram.Diagram, p int, simp Simplifications) ([]diagram.Diagram, error) {
	last := len(d.Operators) - 1
	partner, end := d.Operators[p], d.Operators[last]

	// Creators of the partner meet annihilators of the new operator and vice versa.
	down, err := RowContractions(partner.Upper, end.Lower, p, last, simp)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	up, err := RowContractions(partner.Lower, end.Upper, p, last, simp)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}

	out := make([]diagram.Diagram, 0, len(down)*len(up))
	for _, c := range combin.Cartesian([]int{len(down), len(up)}) {
		c1, c2 := down[c[0]], up[c[1]]
		ops := make([]diagram.Operator, len(d.Operators))
		for i, op := range d.Operators {
			ops[i] = op.Clone()
		}
		ops[p] = diagram.Operator{Upper: c1.A, Lower: c2.A}
		ops[last] = diagram.Operator{Upper: c2.B, Lower: c1.B}
		out = append(out, diagram.New(ops...))
	}
	return out, nil
}

// Contraction is a pair of rows after some of their lines have been contracted with each other.
type Contraction struct {
	A, B diagram.Row
}

// RowContractions returns the results of contracting 0, 1, ... lines of row a of operator aIndex
// with row b of operator bIndex, in increasing number of contractions.
// The kind of line is the one that b still has free; b is expected to hold a single kind.
// With FullyContractableOnly only the maximal contraction is returned.
func RowContractions(a, b diagram.Row, aIndex, bIndex int, simp Simplifications) ([]Contraction, error) {
	occupied := b[diagram.Hole] > 0
	free := diagram.Line{Occupied: occupied, Partner: diagram.Free}
	most := min(a[free], b[free])
	least := 0
	if simp.FullyContractableOnly {
		least = most
	}

	cs := make([]Contraction, 0, most-least+1)
	for k := least; k <= most; k++ {
		newA, newB, err := diagram.ContractRows(a, b, occupied, k, aIndex, bIndex)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		cs = append(cs, Contraction{A: newA, B: newB})
	}
	return cs, nil
}
