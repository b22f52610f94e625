// Package construct turns fully labeled diagrams into weighted tensor expressions.
package construct

import (
	"fmt"
	"math/big"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/fumin/dice/diagram"
	"github.com/fumin/dice/expr"
)

// ErrWeightRule is returned for an unknown weight rule.
var ErrWeightRule = errors.New("unknown weight rule")

// WeightRule selects how the weight of a diagram is computed.
type WeightRule int

const (
	// Unitary weighs a diagram by its commutator prefactor.
	Unitary WeightRule = iota + 1
	// Variational weighs a diagram by its operator automorphisms instead.
	Variational
	// Cumulant is Variational with the cumulant subdiagram correction.
	Cumulant
)

func (r WeightRule) String() string {
	switch r {
	case Unitary:
		return "unitary"
	case Variational:
		return "variational"
	case Cumulant:
		return "cumulant"
	default:
		return fmt.Sprintf("WeightRule(%d)", int(r))
	}
}

func ParseWeightRule(s string) (WeightRule, error) {
	for _, r := range []WeightRule{Unitary, Variational, Cumulant} {
		if strings.EqualFold(s, r.String()) {
			return r, nil
		}
	}
	return 0, errors.Wrapf(ErrWeightRule, "%q", s)
}

// FromDiagram returns the tensor of a fully contracted diagram whose operator 0 carries the external indices.
func FromDiagram(d diagram.Diagram, rule WeightRule) (expr.Tensor, error) {
	lineAut := d.LineAutomorphisms()
	amps, err := MakeAmplitudes(d, map[int]bool{0: true})
	if err != nil {
		return expr.Tensor{}, errors.Wrap(err, "")
	}
	sign := Sign(amps)
	external, amps := Externals(amps)
	asymWeight, asyms := ReduceAntisym(amps, FullAntisym(external))

	for i, a := range amps {
		if len(a.Lower) > 0 && a.Lower[0].Occupied() {
			amps[i] = a.Flip()
		}
		amps[i].Name = fmt.Sprintf("t%d", amps[i].Rank())
	}

	num := new(big.Rat).SetInt(asymWeight)
	num.Mul(num, big.NewRat(int64(sign), 1))
	den := new(big.Rat).SetInt(lineAut)
	switch rule {
	case Unitary:
		num.Mul(num, d.Prefactor)
	case Variational, Cumulant:
		opAut, err := d.OperatorAutomorphisms()
		if err != nil {
			return expr.Tensor{}, errors.Wrap(err, "")
		}
		den.Mul(den, new(big.Rat).SetInt(opAut))
		if rule == Cumulant {
			num.Mul(num, big.NewRat(int64(CumulantWeight(d)), 1))
		}
	default:
		return expr.Tensor{}, errors.Wrapf(ErrWeightRule, "%d", int(rule))
	}

	t, err := expr.NewTensor(amps, num.Quo(num, den), external, asyms...)
	if err != nil {
		return expr.Tensor{}, errors.Wrap(err, "")
	}
	return t, nil
}

// MakeAmplitudes labels the lines of d and returns one amplitude per operator.
// Lines on or contracted with an operator in bare get external letters.
func MakeAmplitudes(d diagram.Diagram, bare map[int]bool) ([]expr.Amplitude, error) {
	rows := make([][2][]expr.Symbol, len(d.Operators))
	claimed := make(map[byte]bool)
	for i, op := range d.Operators {
		for r, row := range []diagram.Row{op.Upper, op.Lower} {
			for _, l := range row.Lines() {
				switch {
				case l.Partner == diagram.Free || l.Partner >= len(d.Operators):
					return nil, errors.Wrapf(diagram.ErrStructure, "operator %d line %s", i, l)
				case l.Partner < i:
					// Labeled from the partner's side.
					continue
				}
				external := bare[i] || bare[l.Partner]
				for range row[l] {
					s, err := expr.NewSymbol(claimed, l.Occupied, external, expr.None)
					if err != nil {
						return nil, errors.Wrap(err, "")
					}
					claimed[s.Letter] = true
					rows[i][r] = append(rows[i][r], s)
					rows[l.Partner][1-r] = append(rows[l.Partner][1-r], s)
				}
			}
		}
	}

	amps := make([]expr.Amplitude, len(rows))
	for i, r := range rows {
		for k := range r {
			slices.SortStableFunc(r[k], expr.Compare)
		}
		a, err := expr.NewAmplitude(r[0], r[1], "", false)
		if err != nil {
			return nil, errors.Wrapf(err, "operator %d", i)
		}
		amps[i] = a
	}
	return amps, nil
}

// Externals splits off the first amplitude, whose rows are the external indices.
func Externals(amps []expr.Amplitude) ([2][]expr.Symbol, []expr.Amplitude) {
	if len(amps) == 0 {
		return [2][]expr.Symbol{}, nil
	}
	return [2][]expr.Symbol{amps[0].Upper, amps[0].Lower}, amps[1:]
}

// AntisymGroup is a set of external indices of one kind that must be antisymmetrized.
// Row is the amplitude row in which the indices appear: 0 for upper, 1 for lower.
type AntisymGroup struct {
	Row     int
	Symbols []expr.Symbol
}

// FullAntisym returns the groups of at least two external occupied, or virtual, indices of each
// external row. Indices in the upper external row sit in lower amplitude rows and vice versa.
func FullAntisym(external [2][]expr.Symbol) []AntisymGroup {
	var groups []AntisymGroup
	for i, row := range external {
		for _, occupied := range []bool{true, false} {
			var syms []expr.Symbol
			for _, x := range row {
				if x.Occupied() == occupied && x.External() {
					syms = append(syms, x)
				}
			}
			if len(syms) > 1 {
				groups = append(groups, AntisymGroup{Row: 1 - i, Symbols: expr.NewBlock(syms...)})
			}
		}
	}
	return groups
}

// ReduceAntisym replaces antisymmetrization among indices of the same amplitude row, which are
// already antisymmetric, by the constant it contributes.
// It returns that constant and the antisymmetrizers that remain between different amplitudes.
func ReduceAntisym(amps []expr.Amplitude, groups []AntisymGroup) (*big.Int, []expr.Antisymmetrizer) {
	weight := big.NewInt(1)
	var asyms []expr.Antisymmetrizer
	for _, g := range groups {
		var blocks []expr.Block
		for _, a := range amps {
			row := a.Upper
			if g.Row == 1 {
				row = a.Lower
			}
			var found []expr.Symbol
			for _, x := range row {
				if slices.Contains(g.Symbols, x) {
					found = append(found, x)
				}
			}
			if len(found) == 0 {
				continue
			}
			weight.Mul(weight, new(big.Int).MulRange(1, int64(len(found))))
			blocks = append(blocks, expr.NewBlock(found...))
		}
		if len(blocks) > 1 {
			asyms = append(asyms, expr.NewAntisymmetrizer(blocks...))
		}
	}
	return weight, asyms
}
