package dice

import (
	"math/big"
	"slices"

	"github.com/pkg/errors"

	"github.com/fumin/dice/expr"
)

// PartialTrace traces t over one external index of the given occupancy in each row, once per spin case.
// The first matching index of each row is traced, each contributing the sign of moving it to the front.
// Spin cases without a matching index in both rows give nothing.
func PartialTrace(t expr.Tensor, occupied bool) ([]expr.Tensor, error) {
	if len(t.Antisymmetrizers) > 0 {
		return nil, errors.Wrapf(expr.ErrInvariant, "partial trace of unexpanded %s", t)
	}

	var out []expr.Tensor
	for _, s := range spinCases(t) {
		weight := new(big.Rat).Set(t.Weight)
		var traced []expr.Symbol
		var external [2][]expr.Symbol
		for r, row := range t.External {
			i := slices.IndexFunc(row, func(x expr.Symbol) bool { return x.Occupied() == occupied && x.Spin == s })
			if i < 0 {
				break
			}
			traced = append(traced, row[i])
			external[r] = slices.Delete(slices.Clone(row), i, i+1)
			if i%2 == 1 {
				weight.Neg(weight)
			}
		}
		if len(traced) != 2 {
			continue
		}

		flip := map[expr.Symbol]expr.Symbol{traced[1]: traced[0]}
		amps := slices.Clone(t.SwapSymbols(flip).Amplitudes)
		u, err := expr.NewTensor(amps, weight, external)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		out = append(out, u)
	}
	return out, nil
}

// ComputeD expands the antisymmetrizers of ts and partial traces every term.
func ComputeD(ts []expr.Tensor, occupied bool) ([]expr.Tensor, error) {
	var out []expr.Tensor
	for _, t := range expr.ExpandAntisymmetrizers(ts) {
		traced, err := PartialTrace(t, occupied)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		out = append(out, traced...)
	}
	return out, nil
}

// TraceBlock is a block of the partial trace of the two-body cumulant, and the central operators whose
// cumulants are traced over occupied and over virtual indices to produce it.
type TraceBlock struct {
	Name     string
	Occupied string
	Virtual  string
}

// TraceBlocks are the occupied-occupied, occupied-virtual and virtual-virtual blocks.
var TraceBlocks = []TraceBlock{
	{Name: "oo", Occupied: "oo oo", Virtual: "ov ov"},
	{Name: "ov", Occupied: "oo ov", Virtual: "ov vv"},
	{Name: "vv", Occupied: "ov ov", Virtual: "vv vv"},
}

// TraceKey identifies the partial trace terms of a block at a commutator depth.
type TraceKey struct {
	Block string
	Depth int
}

// Trace holds the partial trace terms of a block at a depth, and their residual terms.
type Trace struct {
	TraceKey
	Terms
}

// ErrNotComputed is returned when a term source refers to a central operator that has no results.
var ErrNotComputed = errors.New("central operator not computed")

// Batch holds the results of several central operators, keyed by the operator as written by
// diagram.Operator.String.
type Batch map[string]Results

func (b Batch) get(op string) (Results, error) {
	r, ok := b[op]
	if !ok {
		return Results{}, errors.Wrapf(ErrNotComputed, "%q", op)
	}
	return r, nil
}

// CumulantPartialTrace returns, for each trace block and each depth up to maxDepth, the partial trace of
// the two-body cumulant and its residual terms, which are contracted with the integral ft.
func CumulantPartialTrace(b Batch, maxDepth int) ([]Trace, error) {
	var out []Trace
	for _, block := range TraceBlocks {
		o, err := b.get(block.Occupied)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		v, err := b.get(block.Virtual)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		for depth := 1; depth <= maxDepth; depth++ {
			do, err := ComputeD(o.Cumulant(depth), true)
			if err != nil {
				return nil, errors.Wrapf(err, "%s depth %d", block.Name, depth)
			}
			dv, err := ComputeD(v.Cumulant(depth), false)
			if err != nil {
				return nil, errors.Wrapf(err, "%s depth %d", block.Name, depth)
			}
			d, err := expr.SeekEquivalents(slices.Concat(do, dv))
			if err != nil {
				return nil, errors.Wrap(err, "")
			}
			d = nonzero(d)
			residual, err := EnergyDerivative(d, "ft")
			if err != nil {
				return nil, errors.Wrapf(err, "%s depth %d", block.Name, depth)
			}
			out = append(out, Trace{TraceKey: TraceKey{Block: block.Name, Depth: depth}, Terms: Terms{RDM: d, Residual: residual}})
		}
	}
	return out, nil
}
