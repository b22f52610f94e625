package dice

import (
	"math/big"
	"slices"
	"strings"

	"github.com/pkg/errors"

	"github.com/fumin/dice/expr"
)

// EnergyDerivative contracts density matrix terms with the integral named symbol and differentiates
// the resulting energy with respect to every amplitude whose name starts with t.
func EnergyDerivative(ts []expr.Tensor, symbol string) ([]expr.Tensor, error) {
	contracted := make([]expr.Tensor, 0, len(ts))
	for _, t := range ts {
		c, err := FullContract(t, symbol)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		contracted = append(contracted, c)
	}
	differentiated, err := ProductRule(contracted, func(name string) bool { return strings.HasPrefix(name, "t") })
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	merged, err := expr.SeekEquivalents(differentiated)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return merged, nil
}

// FullContract contracts the external indices of t with a new amplitude named symbol, such as an
// integral, giving a scalar.
//
// The new amplitude is placed first. The weight gains the number of orderings that the external rows
// represent, and the antisymmetrizers become the constants they contribute, since they now act on
// indices contracted with an antisymmetric amplitude.
func FullContract(t expr.Tensor, symbol string) (expr.Tensor, error) {
	amp, err := expr.NewAmplitude(t.External[0], t.External[1], symbol, true)
	if err != nil {
		return expr.Tensor{}, errors.Wrap(err, "")
	}

	num, err := CentralWeight(t.External)
	if err != nil {
		return expr.Tensor{}, errors.Wrap(err, "")
	}
	for _, asym := range t.Antisymmetrizers {
		sizes := make([]int, len(asym))
		for i, b := range asym {
			sizes[i] = len(b)
		}
		num.Mul(num, expr.Multinomial(sizes...))
	}
	den := new(big.Int).MulRange(1, int64(amp.Rank()))
	den.Mul(den, den)

	weight := new(big.Rat).SetFrac(num, den)
	weight.Mul(weight, t.Weight)
	amps := append([]expr.Amplitude{amp}, t.Amplitudes...)
	u, err := expr.NewTensor(amps, weight, [2][]expr.Symbol{})
	if err != nil {
		return expr.Tensor{}, errors.Wrap(err, "")
	}
	return u, nil
}

// CentralWeight returns the number of density matrix elements represented by the block with the given
// external rows: the orderings of the occupied and virtual indices within each row, doubled when the
// hermitian adjoint block is distinct.
func CentralWeight(external [2][]expr.Symbol) (*big.Int, error) {
	top, err := expr.SpaceCount(external[0])
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	bottom, err := expr.SpaceCount(external[1])
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	w := new(big.Int).Mul(expr.Multinomial(top...), expr.Multinomial(bottom...))
	if !slices.Equal(top, bottom) {
		w.Mul(w, big.NewInt(2))
	}
	return w, nil
}

func spinCases(t expr.Tensor) []expr.Spin {
	if t.Spinorbital() {
		return []expr.Spin{expr.None}
	}
	return []expr.Spin{expr.Alpha, expr.Beta}
}

// ProductRule differentiates each scalar tensor with respect to each of its amplitudes whose name is
// differentiable. The removed amplitude's rows become the external rows.
//
// Indices of an external row that end up in the same amplitude are antisymmetric already and
// contribute the factorial of their number; indices spread over several amplitudes are antisymmetrized.
func ProductRule(ts []expr.Tensor, differentiable func(name string) bool) ([]expr.Tensor, error) {
	var out []expr.Tensor
	for _, t := range ts {
		if len(t.Antisymmetrizers) > 0 {
			return nil, errors.Wrapf(expr.ErrInvariant, "antisymmetrizers in %s", t)
		}
		for i, amp := range t.Amplitudes {
			if !differentiable(amp.Name) {
				continue
			}
			rest := slices.Delete(slices.Clone(t.Amplitudes), i, i+1)
			external := [2][]expr.Symbol{amp.Upper, amp.Lower}

			weight := new(big.Rat).Set(t.Weight)
			var asyms []expr.Antisymmetrizer
			for _, row := range external {
				for _, s := range spinCases(t) {
					var blocks []expr.Block
					for _, a := range rest {
						var found []expr.Symbol
						for _, x := range row {
							if x.Spin == s && (slices.Contains(a.Upper, x) || slices.Contains(a.Lower, x)) {
								found = append(found, x)
							}
						}
						if len(found) == 0 {
							continue
						}
						weight.Mul(weight, new(big.Rat).SetInt(new(big.Int).MulRange(1, int64(len(found)))))
						blocks = append(blocks, expr.NewBlock(found...))
					}
					if len(blocks) > 1 {
						asyms = append(asyms, expr.NewAntisymmetrizer(blocks...))
					}
				}
			}

			u, err := expr.NewTensor(rest, weight, external, asyms...)
			if err != nil {
				return nil, errors.Wrap(err, "")
			}
			out = append(out, u)
		}
	}
	return out, nil
}
