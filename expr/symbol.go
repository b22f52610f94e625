// Package expr holds the tensor expressions produced from diagrams, and the rewrites that bring them
// into canonical form: antisymmetrizer expansion, relabeling and merging of equivalent terms.
package expr

import (
	"cmp"
	"slices"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrOrbitalMismatch is returned when spin-orbital and spin-integrated indices are mixed.
	ErrOrbitalMismatch = errors.New("mixed spin-orbital and spin-integrated indices")
	// ErrInvariant is returned when a tensor or amplitude violates a structural invariant.
	ErrInvariant = errors.New("invariant violated")
	// ErrLabelPool is returned when no index letter is left to label a line.
	ErrLabelPool = errors.New("index letters exhausted")
)

// Index letter pools. External indices use the upper case forms.
const (
	OccupiedLetters = "ijklmnpo"
	VirtualLetters  = "abcdefgv"
)

type Spin int8

const (
	None Spin = iota
	Alpha
	Beta
)

func (s Spin) String() string {
	switch s {
	case Alpha:
		return "α"
	case Beta:
		return "β"
	default:
		return ""
	}
}

// Symbol is an orbital index.
type Symbol struct {
	Letter byte
	Spin   Spin
}

func lower(c byte) byte {
	if 'A' <= c && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}

func upper(c byte) byte {
	if 'a' <= c && c <= 'z' {
		return c - ('a' - 'A')
	}
	return c
}

func (s Symbol) Occupied() bool { return strings.IndexByte(OccupiedLetters, lower(s.Letter)) >= 0 }
func (s Symbol) External() bool { return 'A' <= s.Letter && s.Letter <= 'Z' }

func (s Symbol) String() string { return string(s.Letter) + s.Spin.String() }

// Compare orders symbols by spin, then occupied before virtual, then external before internal, then letter.
func Compare(a, b Symbol) int {
	if c := cmp.Compare(a.Spin, b.Spin); c != 0 {
		return c
	}
	if a.Occupied() != b.Occupied() {
		if a.Occupied() {
			return -1
		}
		return 1
	}
	if a.External() != b.External() {
		if a.External() {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.Letter, b.Letter)
}

// Syms returns the symbols spelled by letters.
// spins is either empty, or holds one of 'a', 'b' per letter.
func Syms(letters, spins string) []Symbol {
	syms := make([]Symbol, len(letters))
	for i := range letters {
		syms[i] = Symbol{Letter: letters[i]}
		if spins != "" {
			syms[i].Spin = parseSpin(spins[i])
		}
	}
	return syms
}

func parseSpin(c byte) Spin {
	switch c {
	case 'a':
		return Alpha
	case 'b':
		return Beta
	default:
		return None
	}
}

// NewSymbol returns a symbol of the requested kind whose letter is not in claimed.
func NewSymbol(claimed map[byte]bool, occupied, external bool, spin Spin) (Symbol, error) {
	pool := VirtualLetters
	if occupied {
		pool = OccupiedLetters
	}
	for i := range len(pool) {
		c := pool[i]
		if external {
			c = upper(c)
		}
		if !claimed[c] {
			return Symbol{Letter: c, Spin: spin}, nil
		}
	}
	return Symbol{}, errors.Wrapf(ErrLabelPool, "occupied %t external %t claimed %d", occupied, external, len(claimed))
}

func sortedRow(row []Symbol) []Symbol {
	s := slices.Clone(row)
	slices.SortStableFunc(s, Compare)
	return s
}

func swapRow(row []Symbol, m map[Symbol]Symbol) []Symbol {
	s := make([]Symbol, len(row))
	for i, x := range row {
		if y, ok := m[x]; ok {
			x = y
		}
		s[i] = x
	}
	return s
}

func letters(row []Symbol) string {
	var b strings.Builder
	for _, x := range row {
		b.WriteByte(x.Letter)
	}
	return b.String()
}
