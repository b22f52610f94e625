// Package spin integrates spin-orbital tensor expressions into their spin blocks.
//
// Every external index is given a spin in all ways that conserve the number of alpha indices
// between the rows, up to hermitian conjugation. Antisymmetrizers are resolved into separate alpha
// and beta antisymmetrizers, and internal indices are summed over the spins that keep every
// amplitude S_z conserving.
package spin

import (
	"maps"
	"math/big"
	"slices"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat/combin"

	"github.com/fumin/dice/expr"
	"github.com/fumin/dice/internal/multiset"
)

// Count holds the numbers of occupied alpha, occupied beta, virtual alpha and virtual beta indices of a row.
type Count [4]int

// Assignment maps spin-orbital symbols to spins.
type Assignment map[expr.Symbol]expr.Spin

// Integrate returns the spin blocks of a spin-orbital tensor.
func Integrate(t expr.Tensor) ([]expr.Tensor, error) {
	var out []expr.Tensor
	for _, counts := range ExternalSpinCounts(t) {
		external := AssignExternalSpin(t, counts)
		expanded, err := AsymExpand(t, external)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		for _, u := range expanded {
			for _, spins := range AllowedSpins(u, external) {
				v, err := IntegrateCase(u, spins)
				if err != nil {
					return nil, errors.Wrap(err, "")
				}
				out = append(out, v)
			}
		}
	}
	return out, nil
}

// ExternalSpinCounts returns the spin counts of the upper and lower external rows with as many alpha
// indices in both rows. When the rows have the same occupied and virtual counts, only one of each pair
// of hermitian conjugate blocks is returned.
func ExternalSpinCounts(t expr.Tensor) [][2]Count {
	m, n := occupiedVirtual(t.External[0])
	o, p := occupiedVirtual(t.External[1])
	hermitian := m == o && n == p

	var counts [][2]Count
	for a := 0; a <= t.Rank(); a++ {
		for ma := max(0, a-n); ma <= min(m, a); ma++ {
			na := a - ma
			upper := Count{ma, m - ma, na, n - na}
			limit := a
			if hermitian {
				limit = ma
			}
			for oa := max(0, a-p); oa <= min(o, limit); oa++ {
				pa := a - oa
				counts = append(counts, [2]Count{upper, {oa, o - oa, pa, p - pa}})
			}
		}
	}
	return counts
}

func occupiedVirtual(row []expr.Symbol) (int, int) {
	o := 0
	for _, x := range row {
		if x.Occupied() {
			o++
		}
	}
	return o, len(row) - o
}

// AssignExternalSpin spins the external indices of t, row by row, in the order occupied alpha,
// occupied beta, virtual alpha, virtual beta.
func AssignExternalSpin(t expr.Tensor, counts [2]Count) Assignment {
	spins := []expr.Spin{expr.Alpha, expr.Beta, expr.Alpha, expr.Beta}
	a := make(Assignment)
	for r, row := range t.External {
		k := 0
		for i, c := range counts[r] {
			for range c {
				if k < len(row) {
					a[row[k]] = spins[i]
				}
				k++
			}
		}
	}
	return a
}

// RowExpansion is one way of distributing the alpha and beta indices of an antisymmetrizer over its blocks.
type RowExpansion struct {
	// Flip moves the indices into the blocks they are assigned.
	Flip map[expr.Symbol]expr.Symbol
	// Alpha and Beta are the remaining antisymmetrizers, nil when fewer than two blocks are left.
	Alpha, Beta expr.Antisymmetrizer
}

// ExpandRowSpin returns every way of placing the alpha and beta indices of asym into its blocks.
func ExpandRowSpin(asym expr.Antisymmetrizer, spins Assignment) ([]RowExpansion, error) {
	var mask []int
	var alpha, beta []expr.Symbol
	for i, b := range asym {
		for _, x := range b {
			mask = append(mask, i)
			switch spins[x] {
			case expr.Alpha:
				alpha = append(alpha, x)
			case expr.Beta:
				beta = append(beta, x)
			default:
				return nil, errors.Wrapf(expr.ErrInvariant, "%s has no spin in %s", x, asym)
			}
		}
	}

	var out []RowExpansion
	for alphaBlocks := range multiset.Combinations(mask, len(alpha)) {
		betaBlocks := multiset.Complement(mask, alphaBlocks)
		next := make([]int, len(asym))
		flip := make(map[expr.Symbol]expr.Symbol)
		place := func(blocks []int, syms []expr.Symbol, s expr.Spin) expr.Antisymmetrizer {
			spun := make([][]expr.Symbol, len(asym))
			for k, b := range blocks {
				flip[asym[b][next[b]]] = syms[k]
				next[b]++
				spun[b] = append(spun[b], expr.Symbol{Letter: syms[k].Letter, Spin: s})
			}
			return nonTrivial(spun)
		}
		e := RowExpansion{Flip: flip}
		e.Alpha = place(alphaBlocks, alpha, expr.Alpha)
		e.Beta = place(betaBlocks, beta, expr.Beta)
		out = append(out, e)
	}
	return out, nil
}

func nonTrivial(spun [][]expr.Symbol) expr.Antisymmetrizer {
	var blocks []expr.Block
	for _, s := range spun {
		if len(s) > 0 {
			blocks = append(blocks, expr.NewBlock(s...))
		}
	}
	asym := expr.NewAntisymmetrizer(blocks...)
	if len(asym) < 2 {
		return nil
	}
	return asym
}

// cartesian is combin.Cartesian with the empty product holding one empty choice.
func cartesian(lens []int) [][]int {
	if len(lens) == 0 {
		return [][]int{nil}
	}
	return combin.Cartesian(lens)
}

// AsymExpand resolves the antisymmetrizers of t under the spins of its external indices.
// One tensor is returned for each combination of row expansions.
func AsymExpand(t expr.Tensor, external Assignment) ([]expr.Tensor, error) {
	ordering := slices.Concat(t.External[0], t.External[1])
	for _, x := range ordering {
		if _, ok := external[x]; !ok {
			return nil, errors.Wrapf(expr.ErrInvariant, "%s has no spin", x)
		}
	}

	rows := make([][]RowExpansion, len(t.Antisymmetrizers))
	lens := make([]int, len(t.Antisymmetrizers))
	for i, asym := range t.Antisymmetrizers {
		es, err := ExpandRowSpin(asym, external)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		rows[i], lens[i] = es, len(es)
	}

	var out []expr.Tensor
	for _, choice := range cartesian(lens) {
		flip := make(map[expr.Symbol]expr.Symbol)
		var asyms []expr.Antisymmetrizer
		for i, c := range choice {
			e := rows[i][c]
			maps.Copy(flip, e.Flip)
			for _, a := range []expr.Antisymmetrizer{e.Alpha, e.Beta} {
				if a != nil {
					asyms = append(asyms, a)
				}
			}
		}

		swapped := t.SwapSymbols(flip)
		moved := swapped.External[0]
		moved = append(slices.Clone(moved), swapped.External[1]...)
		weight := new(big.Rat).Mul(t.Weight, big.NewRat(int64(expr.FindParity(ordering, moved)), 1))
		u, err := expr.NewTensor(swapped.Amplitudes, weight, t.External, asyms...)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		out = append(out, u)
	}
	return out, nil
}

// AllowedSpins extends external with every spin assignment of the internal indices of t under which
// each amplitude has as many alpha indices in its upper as in its lower row.
func AllowedSpins(t expr.Tensor, external Assignment) []Assignment {
	var internal []expr.Symbol
	for _, x := range t.ClaimedSymbols() {
		if !slices.Contains(t.External[0], x) && !slices.Contains(t.External[1], x) {
			internal = append(internal, x)
		}
	}
	lens := make([]int, len(internal))
	for i := range lens {
		lens[i] = 2
	}

	spins := []expr.Spin{expr.Alpha, expr.Beta}
	var out []Assignment
	for _, choice := range cartesian(lens) {
		a := maps.Clone(external)
		for i, c := range choice {
			a[internal[i]] = spins[c]
		}
		if conserving(t, a) {
			out = append(out, a)
		}
	}
	return out
}

func conserving(t expr.Tensor, a Assignment) bool {
	alphas := func(row []expr.Symbol) int {
		n := 0
		for _, x := range row {
			if a[x] == expr.Alpha {
				n++
			}
		}
		return n
	}
	for _, amp := range t.Amplitudes {
		if alphas(amp.Upper) != alphas(amp.Lower) {
			return false
		}
	}
	return true
}

// IntegrateCase spins every index of t, sorts all rows and applies the sign of the sorting.
func IntegrateCase(t expr.Tensor, spins Assignment) (expr.Tensor, error) {
	weight := new(big.Rat).Set(t.Weight)
	apply := func(row []expr.Symbol) ([]expr.Symbol, error) {
		spun := make([]expr.Symbol, len(row))
		for i, x := range row {
			s, ok := spins[x]
			if !ok {
				return nil, errors.Wrapf(expr.ErrInvariant, "%s has no spin", x)
			}
			spun[i] = expr.Symbol{Letter: x.Letter, Spin: s}
		}
		sorted := slices.Clone(spun)
		slices.SortStableFunc(sorted, expr.Compare)
		weight.Mul(weight, big.NewRat(int64(expr.FindParity(spun, sorted)), 1))
		return sorted, nil
	}

	var external [2][]expr.Symbol
	for i, row := range t.External {
		r, err := apply(row)
		if err != nil {
			return expr.Tensor{}, errors.Wrap(err, "")
		}
		external[i] = r
	}

	amps := make([]expr.Amplitude, len(t.Amplitudes))
	for i, amp := range t.Amplitudes {
		upper, err := apply(amp.Upper)
		if err != nil {
			return expr.Tensor{}, errors.Wrap(err, "")
		}
		lower, err := apply(amp.Lower)
		if err != nil {
			return expr.Tensor{}, errors.Wrap(err, "")
		}
		a, err := expr.NewAmplitude(upper, lower, amp.Name, amp.IncludeOrbSpace)
		if err != nil {
			return expr.Tensor{}, errors.Wrap(err, "")
		}
		amps[i] = a
	}

	u, err := expr.NewTensor(amps, weight, external, t.Antisymmetrizers...)
	if err != nil {
		return expr.Tensor{}, errors.Wrap(err, "")
	}
	return u, nil
}
