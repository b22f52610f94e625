package expr

import (
	"fmt"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// Amplitude is a named tensor with an upper and a lower row of indices.
type Amplitude struct {
	Upper []Symbol
	Lower []Symbol
	Name  string
	// IncludeOrbSpace appends the occupied/virtual pattern of the indices to the full name.
	IncludeOrbSpace bool
}

// NewAmplitude validates that both rows have the same rank and the same spin pattern.
func NewAmplitude(upper, lower []Symbol, name string, includeOrbSpace bool) (Amplitude, error) {
	a := Amplitude{Upper: slices.Clone(upper), Lower: slices.Clone(lower), Name: name, IncludeOrbSpace: includeOrbSpace}
	if len(a.Upper) != len(a.Lower) {
		return Amplitude{}, errors.Wrapf(ErrInvariant, "rank %d %d %s", len(a.Upper), len(a.Lower), a)
	}
	if _, err := spinorbital(append(slices.Clone(a.Upper), a.Lower...)); err != nil {
		return Amplitude{}, errors.Wrapf(err, "%s", a)
	}
	for i := range a.Upper {
		if a.Upper[i].Spin != a.Lower[i].Spin {
			return Amplitude{}, errors.Wrapf(ErrInvariant, "spin pattern %s", a)
		}
	}
	return a, nil
}

// Amp is a test and literal helper that spells an amplitude out of letters.
// spins applies to both rows, position by position.
func Amp(upper, lower, name, spins string) Amplitude {
	a, err := NewAmplitude(Syms(upper, spins), Syms(lower, spins), name, false)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return a
}

// OrbSpace returns a copy of a whose full name carries its orbital space.
func (a Amplitude) OrbSpace() Amplitude {
	a.IncludeOrbSpace = true
	return a
}

func spinorbital(syms []Symbol) (bool, error) {
	if len(syms) == 0 {
		return true, nil
	}
	none := 0
	for _, x := range syms {
		if x.Spin == None {
			none++
		}
	}
	switch none {
	case len(syms):
		return true, nil
	case 0:
		return false, nil
	default:
		return false, errors.Wrapf(ErrOrbitalMismatch, "%v", syms)
	}
}

func (a Amplitude) Rank() int { return len(a.Upper) }

// Spinorbital reports whether the amplitude carries no spin labels.
func (a Amplitude) Spinorbital() bool {
	so, _ := spinorbital(append(slices.Clone(a.Upper), a.Lower...))
	return so
}

// Equal compares rows and names.
func (a Amplitude) Equal(b Amplitude) bool {
	return a.Name == b.Name && slices.Equal(a.Upper, b.Upper) && slices.Equal(a.Lower, b.Lower)
}

func (a Amplitude) Flip() Amplitude {
	a.Upper, a.Lower = a.Lower, a.Upper
	return a
}

func (a Amplitude) swap(m map[Symbol]Symbol) Amplitude {
	a.Upper = swapRow(a.Upper, m)
	a.Lower = swapRow(a.Lower, m)
	return a
}

// sorted returns the amplitude with both rows sorted, and the sign of the reordering.
func (a Amplitude) sorted() (Amplitude, int) {
	upper, lower := sortedRow(a.Upper), sortedRow(a.Lower)
	sign := FindParity(a.Upper, upper) * FindParity(a.Lower, lower)
	a.Upper, a.Lower = upper, lower
	return a, sign
}

// SpaceSuffix returns "_" followed by o or v for each index, upper row first.
func (a Amplitude) SpaceSuffix() string {
	var b strings.Builder
	b.WriteString("_")
	for _, x := range append(slices.Clone(a.Upper), a.Lower...) {
		if x.Occupied() {
			b.WriteString("o")
		} else {
			b.WriteString("v")
		}
	}
	return b.String()
}

// SpinSuffix returns "_" followed by α or β for each upper index, or "" for spin-orbital amplitudes.
func (a Amplitude) SpinSuffix() string {
	if len(a.Upper) == 0 || a.Upper[0].Spin == None {
		return ""
	}
	var b strings.Builder
	b.WriteString("_")
	for _, x := range a.Upper {
		b.WriteString(x.Spin.String())
	}
	return b.String()
}

// FullName is the name under which the amplitude is stored, such as t2_oovv_αβ.
func (a Amplitude) FullName() string {
	name := a.Name
	if a.IncludeOrbSpace {
		name += a.SpaceSuffix()
	}
	return name + a.SpinSuffix()
}

// ReducedString returns the index letters of both rows, such as "ij ab".
func (a Amplitude) ReducedString() string {
	return letters(a.Upper) + " " + letters(a.Lower)
}

func (a Amplitude) String() string {
	var b strings.Builder
	b.WriteString(a.Name)
	b.WriteString("(")
	for _, x := range a.Upper {
		b.WriteString(x.String())
	}
	b.WriteString(";")
	for _, x := range a.Lower {
		b.WriteString(x.String())
	}
	b.WriteString(")")
	return b.String()
}
