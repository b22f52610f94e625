// Package diagram models products of second-quantized operators whose lines are contracted
// against each other, the building blocks of many-body perturbation and cluster expansions.
package diagram

import (
	"cmp"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// ErrStructure is returned when operators or diagrams are malformed.
var ErrStructure = errors.New("malformed diagram")

// Free is the partner of an uncontracted line.
const Free = -1

// Line is one end of a line: an occupied (hole) or virtual (particle) index, together with the
// index of the operator it is contracted with.
type Line struct {
	Occupied bool
	Partner  int
}

var (
	Hole     = Line{Occupied: true, Partner: Free}
	Particle = Line{Occupied: false, Partner: Free}
)

func (l Line) String() string {
	s := "v"
	if l.Occupied {
		s = "o"
	}
	if l.Partner != Free {
		s += strconv.Itoa(l.Partner)
	}
	return s
}

func compareLines(a, b Line) int {
	if a.Occupied != b.Occupied {
		if a.Occupied {
			return -1
		}
		return 1
	}
	return cmp.Compare(a.Partner, b.Partner)
}

// Row is a multiset of lines.
type Row map[Line]int

// Lines returns the distinct lines of r in a fixed order.
func (r Row) Lines() []Line {
	return slices.SortedFunc(maps.Keys(r), compareLines)
}

func (r Row) Total() int {
	n := 0
	for _, c := range r {
		n += c
	}
	return n
}

func (r Row) Clone() Row { return maps.Clone(r) }

func (r Row) String() string {
	var b strings.Builder
	for _, l := range r.Lines() {
		for range r[l] {
			b.WriteString(l.String())
		}
	}
	return b.String()
}

// Operator is a normal-ordered product of creators (Upper) and annihilators (Lower).
type Operator struct {
	Upper Row
	Lower Row
}

// NewOperator checks that both rows hold the same number of lines.
func NewOperator(upper, lower Row) (Operator, error) {
	op := Operator{Upper: prune(upper), Lower: prune(lower)}
	if op.Upper.Total() != op.Lower.Total() {
		return Operator{}, errors.Wrapf(ErrStructure, "rank %s", op)
	}
	return op, nil
}

func prune(r Row) Row {
	p := make(Row, len(r))
	for l, c := range r {
		if c > 0 {
			p[l] = c
		}
	}
	return p
}

// ParseOperator reads an uncontracted operator written as its upper and lower rows, such as "oo vv".
func ParseOperator(s string) (Operator, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Operator{}, errors.Wrapf(ErrStructure, "%q", s)
	}
	rows := [2]Row{make(Row), make(Row)}
	for i, f := range fields {
		for _, c := range f {
			switch c {
			case 'o':
				rows[i][Hole]++
			case 'v':
				rows[i][Particle]++
			default:
				return Operator{}, errors.Wrapf(ErrStructure, "%q", s)
			}
		}
	}
	op, err := NewOperator(rows[0], rows[1])
	if err != nil {
		return Operator{}, errors.Wrapf(err, "%q", s)
	}
	return op, nil
}

// MustParseOperator is a panicking ParseOperator for literals.
func MustParseOperator(s string) Operator {
	op, err := ParseOperator(s)
	if err != nil {
		panic(fmt.Sprintf("%+v", err))
	}
	return op
}

// Excitation returns the operator that promotes rank holes to particles.
func Excitation(rank int) Operator {
	return Operator{Upper: Row{Particle: rank}, Lower: Row{Hole: rank}}
}

// Deexcitation returns the adjoint of Excitation.
func Deexcitation(rank int) Operator {
	return Operator{Upper: Row{Hole: rank}, Lower: Row{Particle: rank}}
}

func (op Operator) Rank() int { return op.Upper.Total() }

func (op Operator) SelfAdjoint() bool { return maps.Equal(op.Upper, op.Lower) }

func (op Operator) Equal(o Operator) bool {
	return maps.Equal(op.Upper, o.Upper) && maps.Equal(op.Lower, o.Lower)
}

// Contracted reports whether any line of op is contracted.
func (op Operator) Contracted() bool {
	for _, r := range []Row{op.Upper, op.Lower} {
		for l := range r {
			if l.Partner != Free {
				return true
			}
		}
	}
	return false
}

// IsExcitation reports whether op only creates particles and annihilates holes.
func (op Operator) IsExcitation() bool {
	for l := range op.Upper {
		if l.Occupied {
			return false
		}
	}
	for l := range op.Lower {
		if !l.Occupied {
			return false
		}
	}
	return true
}

// IsDeexcitation reports whether op only creates holes and annihilates particles.
func (op Operator) IsDeexcitation() bool {
	for l := range op.Upper {
		if !l.Occupied {
			return false
		}
	}
	for l := range op.Lower {
		if l.Occupied {
			return false
		}
	}
	return true
}

// Uncontracted returns the numbers of free upper holes, upper particles, lower holes and lower particles.
func (op Operator) Uncontracted() (int, int, int, int) {
	return op.Upper[Hole], op.Upper[Particle], op.Lower[Hole], op.Lower[Particle]
}

func (op Operator) Clone() Operator {
	return Operator{Upper: op.Upper.Clone(), Lower: op.Lower.Clone()}
}

func (op Operator) String() string {
	return op.Upper.String() + " " + op.Lower.String()
}

// ContractRows contracts k free lines of the given kind from a, the row of operator aIndex, with k
// free lines of the same kind from b, the row of operator bIndex.
// The contracted lines of a point to bIndex and those of b point to aIndex.
func ContractRows(a, b Row, occupied bool, k, aIndex, bIndex int) (Row, Row, error) {
	free := Line{Occupied: occupied, Partner: Free}
	if k < 0 || a[free] < k || b[free] < k {
		return nil, nil, errors.Wrapf(ErrStructure, "contract %d %v from %s and %s", k, free, a, b)
	}
	newA, newB := a.Clone(), b.Clone()
	if k == 0 {
		return newA, newB, nil
	}
	move(newA, free, Line{Occupied: occupied, Partner: bIndex}, k)
	move(newB, free, Line{Occupied: occupied, Partner: aIndex}, k)
	return newA, newB, nil
}

func move(r Row, from, to Line, k int) {
	r[from] -= k
	if r[from] == 0 {
		delete(r, from)
	}
	r[to] += k
}
