package diagram

import (
	"math/big"
	"strings"

	"github.com/pkg/errors"

	"github.com/fumin/dice/iso"
)

// Diagram is a product of operators, the first being the central operator whose expectation is sought.
type Diagram struct {
	Operators []Operator
	Prefactor *big.Rat
}

// New returns the diagram of ops with the prefactor 1/(n-1)! of an n-operator nested commutator.
func New(ops ...Operator) Diagram {
	return Diagram{
		Operators: ops,
		Prefactor: new(big.Rat).SetFrac(big.NewInt(1), factorial(len(ops)-1)),
	}
}

func factorial(n int) *big.Int {
	return new(big.Int).MulRange(1, int64(n))
}

func (d Diagram) Len() int { return len(d.Operators) }

// Equal compares operators position by position, ignoring prefactors.
func (d Diagram) Equal(o Diagram) bool {
	if len(d.Operators) != len(o.Operators) {
		return false
	}
	for i := range d.Operators {
		if !d.Operators[i].Equal(o.Operators[i]) {
			return false
		}
	}
	return true
}

func (d Diagram) String() string {
	ops := make([]string, len(d.Operators))
	for i, op := range d.Operators {
		ops[i] = op.String()
	}
	return d.Prefactor.RatString() + " * " + strings.Join(ops, " ")
}

// Rank returns the numbers of free upper holes, upper particles, lower holes and lower particles.
func (d Diagram) Rank() [4]int {
	var r [4]int
	for _, op := range d.Operators {
		uo, uv, lo, lv := op.Uncontracted()
		r[0] += uo
		r[1] += uv
		r[2] += lo
		r[3] += lv
	}
	return r
}

// PHSymmetricExternals reports whether the free lines are balanced between the rows.
func (d Diagram) PHSymmetricExternals() bool {
	r := d.Rank()
	return r[0] == r[2] && r[1] == r[3]
}

// ExcitationRank returns the excitation rank of the free lines, negative for de-excitations.
// ok is false when the free lines are not of particle-hole type.
func (d Diagram) ExcitationRank() (rank int, ok bool) {
	r := d.Rank()
	uo, uv, lo, lv := r[0], r[1], r[2], r[3]
	if uo == 0 && lv == 0 && uv == lo {
		return uv, true
	}
	if uv == 0 && lo == 0 && uo == lv {
		return -uo, true
	}
	return 0, false
}

// Graph returns the colored directed graph of d.
// The central operator has color 0, excitations 1 and de-excitations 2.
// Edges follow upper lines to their partners; a group of m > 1 lines to the same partner passes
// through an auxiliary vertex of color m+1.
func (d Diagram) Graph() (*iso.Graph, error) {
	g := iso.NewGraph()
	for i, op := range d.Operators {
		switch {
		case i == 0:
			g.AddColored(int64(i), 0)
		case op.IsExcitation():
			g.AddColored(int64(i), 1)
		case op.IsDeexcitation():
			g.AddColored(int64(i), 2)
		default:
			return nil, errors.Wrapf(ErrStructure, "operator %d %s is not of particle-hole type", i, op)
		}
	}

	aux := int64(len(d.Operators))
	for i, op := range d.Operators {
		for _, l := range op.Upper.Lines() {
			if l.Partner == Free || l.Partner == i || l.Partner >= len(d.Operators) {
				return nil, errors.Wrapf(ErrStructure, "operator %d line %s", i, l)
			}
			count := op.Upper[l]
			if count == 1 {
				g.Connect(int64(i), int64(l.Partner))
				continue
			}
			g.AddColored(aux, count+1)
			g.Connect(int64(i), aux)
			g.Connect(aux, int64(l.Partner))
			aux++
		}
	}
	return g, nil
}

// Equiv reports whether o is d with its operators reordered.
func (d Diagram) Equiv(o Diagram) (bool, error) {
	if len(d.Operators) != len(o.Operators) {
		return false, nil
	}
	gd, err := d.Graph()
	if err != nil {
		return false, errors.Wrap(err, "")
	}
	gOther, err := o.Graph()
	if err != nil {
		return false, errors.Wrap(err, "")
	}
	return iso.Isomorphic(gd, gOther), nil
}

// LineAutomorphisms returns the product of m! over groups of m equivalent lines.
// Each contracted group is counted at the lower of its two operators.
func (d Diagram) LineAutomorphisms() *big.Int {
	p := big.NewInt(1)
	for i, op := range d.Operators {
		for _, r := range []Row{op.Upper, op.Lower} {
			for l, c := range r {
				if l.Partner == Free || l.Partner > i {
					p.Mul(p, factorial(c))
				}
			}
		}
	}
	return p
}

// OperatorAutomorphisms returns the number of operator permutations that leave d unchanged.
func (d Diagram) OperatorAutomorphisms() (*big.Int, error) {
	g, err := d.Graph()
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return iso.Automorphisms(g), nil
}

// Combine merges isomorphic diagrams, adding prefactors into the first of each class.
func Combine(ds []Diagram) ([]Diagram, error) {
	unique := make([]Diagram, 0, len(ds))
	for _, d := range ds {
		merged := false
		for k := range unique {
			eq, err := unique[k].Equiv(d)
			if err != nil {
				return nil, errors.Wrap(err, "")
			}
			if eq {
				unique[k].Prefactor = new(big.Rat).Add(unique[k].Prefactor, d.Prefactor)
				merged = true
				break
			}
		}
		if !merged {
			d.Prefactor = new(big.Rat).Set(d.Prefactor)
			unique = append(unique, d)
		}
	}
	return unique, nil
}
