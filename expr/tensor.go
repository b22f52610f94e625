package expr

import (
	"fmt"
	"math/big"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// Block is a set of symbols, kept sorted.
type Block []Symbol

// NewBlock returns the block holding syms.
func NewBlock(syms ...Symbol) Block {
	b := slices.Clone(syms)
	slices.SortFunc(b, Compare)
	return slices.Compact(b)
}

func compareBlocks(a, b Block) int {
	return slices.CompareFunc(a, b, Compare)
}

// Antisymmetrizer is a set of blocks whose symbols are to be antisymmetrized against each other.
type Antisymmetrizer []Block

// NewAntisymmetrizer returns the antisymmetrizer holding blocks.
func NewAntisymmetrizer(blocks ...Block) Antisymmetrizer {
	a := make(Antisymmetrizer, 0, len(blocks))
	for _, b := range blocks {
		a = append(a, NewBlock(b...))
	}
	slices.SortFunc(a, compareBlocks)
	return slices.CompactFunc(a, func(x, y Block) bool { return compareBlocks(x, y) == 0 })
}

func compareAntisymmetrizers(a, b Antisymmetrizer) int {
	return slices.CompareFunc(a, b, compareBlocks)
}

func normalizeAntisymmetrizers(asyms []Antisymmetrizer) []Antisymmetrizer {
	s := make([]Antisymmetrizer, 0, len(asyms))
	for _, a := range asyms {
		s = append(s, NewAntisymmetrizer(a...))
	}
	slices.SortFunc(s, compareAntisymmetrizers)
	return slices.CompactFunc(s, func(x, y Antisymmetrizer) bool { return compareAntisymmetrizers(x, y) == 0 })
}

func (a Antisymmetrizer) swap(m map[Symbol]Symbol) Antisymmetrizer {
	blocks := make([]Block, len(a))
	for i, b := range a {
		blocks[i] = Block(swapRow(b, m))
	}
	return NewAntisymmetrizer(blocks...)
}

func (a Antisymmetrizer) String() string {
	blocks := make([]string, len(a))
	for i, b := range a {
		syms := make([]string, len(b))
		for j, x := range b {
			syms[j] = x.String()
		}
		blocks[i] = "{" + strings.Join(syms, ",") + "}"
	}
	return "A[" + strings.Join(blocks, "") + "]"
}

// Tensor is a weighted product of amplitudes with optional external indices and antisymmetrizers.
type Tensor struct {
	Amplitudes []Amplitude
	Weight     *big.Rat
	// External holds the upper and lower external rows. Both rows have the same length.
	External         [2][]Symbol
	Antisymmetrizers []Antisymmetrizer
}

// NewTensor validates that the amplitudes agree on spin-orbital versus spin-integrated indices,
// and that the external rows have the same length.
func NewTensor(amplitudes []Amplitude, weight *big.Rat, external [2][]Symbol, asyms ...Antisymmetrizer) (Tensor, error) {
	t := Tensor{
		Amplitudes:       slices.Clone(amplitudes),
		Weight:           new(big.Rat).Set(weight),
		External:         [2][]Symbol{slices.Clone(external[0]), slices.Clone(external[1])},
		Antisymmetrizers: normalizeAntisymmetrizers(asyms),
	}
	if len(t.External[0]) != len(t.External[1]) {
		return Tensor{}, errors.Wrapf(ErrInvariant, "external %v", t.External)
	}
	syms := make([]Symbol, 0)
	for _, a := range t.Amplitudes {
		syms = append(syms, a.Upper...)
		syms = append(syms, a.Lower...)
	}
	syms = append(syms, t.External[0]...)
	syms = append(syms, t.External[1]...)
	if _, err := spinorbital(syms); err != nil {
		return Tensor{}, errors.Wrapf(err, "%s", t)
	}
	return t, nil
}

// MustTensor is a panicking NewTensor whose external rows are spelled with letters claimed by amplitudes.
func MustTensor(amplitudes []Amplitude, weight *big.Rat, upper, lower string, asyms ...Antisymmetrizer) Tensor {
	external, err := Externals(amplitudes, upper, lower)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	t, err := NewTensor(amplitudes, weight, external, asyms...)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return t
}

// Externals resolves letters against the symbols of amplitudes, so that spins match.
func Externals(amplitudes []Amplitude, upper, lower string) ([2][]Symbol, error) {
	claimed := make(map[byte]Symbol)
	for _, a := range amplitudes {
		for _, x := range append(slices.Clone(a.Upper), a.Lower...) {
			claimed[x.Letter] = x
		}
	}
	var external [2][]Symbol
	for i, row := range []string{upper, lower} {
		external[i] = make([]Symbol, 0, len(row))
		for j := range len(row) {
			x, ok := claimed[row[j]]
			if !ok {
				return external, errors.Wrapf(ErrInvariant, "%c not in %v", row[j], amplitudes)
			}
			external[i] = append(external[i], x)
		}
	}
	return external, nil
}

// Rank is the number of external indices in a row.
func (t Tensor) Rank() int { return len(t.External[0]) }

// Spinorbital reports whether the tensor carries no spin labels.
func (t Tensor) Spinorbital() bool {
	for _, a := range t.Amplitudes {
		if len(a.Upper) > 0 {
			return a.Spinorbital()
		}
	}
	for _, row := range t.External {
		if len(row) > 0 {
			return row[0].Spin == None
		}
	}
	return true
}

// ClaimedSymbols returns the distinct symbols of the amplitudes, in order of first appearance.
func (t Tensor) ClaimedSymbols() []Symbol {
	seen := make(map[Symbol]bool)
	syms := make([]Symbol, 0)
	for _, a := range t.Amplitudes {
		for _, x := range append(slices.Clone(a.Upper), a.Lower...) {
			if seen[x] {
				continue
			}
			seen[x] = true
			syms = append(syms, x)
		}
	}
	return syms
}

// IsMultiple reports whether t and u differ at most in weight.
func (t Tensor) IsMultiple(u Tensor) bool {
	if !slices.EqualFunc(t.Amplitudes, u.Amplitudes, Amplitude.Equal) {
		return false
	}
	for i := range t.External {
		if !slices.Equal(t.External[i], u.External[i]) {
			return false
		}
	}
	return slices.EqualFunc(t.Antisymmetrizers, u.Antisymmetrizers, func(a, b Antisymmetrizer) bool {
		return compareAntisymmetrizers(a, b) == 0
	})
}

func (t Tensor) Equal(u Tensor) bool {
	return t.IsMultiple(u) && t.Weight.Cmp(u.Weight) == 0
}

// SpinSuffix returns "_" followed by the spins of the upper external row, or "" for spin-orbital tensors.
func (t Tensor) SpinSuffix() string {
	if t.Rank() == 0 || t.Spinorbital() {
		return ""
	}
	var b strings.Builder
	b.WriteString("_")
	for _, x := range t.External[0] {
		b.WriteString(x.Spin.String())
	}
	return b.String()
}

// SwapSymbols renames symbols throughout amplitudes, external rows and antisymmetrizers.
func (t Tensor) SwapSymbols(m map[Symbol]Symbol) Tensor {
	s := Tensor{Weight: new(big.Rat).Set(t.Weight)}
	s.Amplitudes = make([]Amplitude, len(t.Amplitudes))
	for i, a := range t.Amplitudes {
		s.Amplitudes[i] = a.swap(m)
	}
	s.External = [2][]Symbol{swapRow(t.External[0], m), swapRow(t.External[1], m)}
	s.Antisymmetrizers = make([]Antisymmetrizer, len(t.Antisymmetrizers))
	for i, a := range t.Antisymmetrizers {
		s.Antisymmetrizers[i] = a.swap(m)
	}
	s.Antisymmetrizers = normalizeAntisymmetrizers(s.Antisymmetrizers)
	return s
}

func (t Tensor) String() string {
	amps := make([]string, len(t.Amplitudes))
	for i, a := range t.Amplitudes {
		amps[i] = a.String()
	}
	s := fmt.Sprintf("%s %s", t.Weight.RatString(), strings.Join(amps, " "))
	if t.Rank() > 0 {
		s += fmt.Sprintf(" -> %s %s", letters(t.External[0]), letters(t.External[1]))
	}
	for _, a := range t.Antisymmetrizers {
		s += " " + a.String()
	}
	return s
}
