package dice

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"

	"github.com/fumin/dice/diagram"
	"github.com/fumin/dice/expr"
)

// Central operators of the one- and two-body density matrix blocks, as parsed by diagram.ParseOperator.
var (
	OneBody = []string{"o o", "o v", "v v"}
	TwoBody = []string{"oo vv", "oo oo", "ov ov", "oo ov", "ov vv", "vv vv"}
)

// A Source selects terms from a batch of results.
type Source func(Batch) ([]expr.Tensor, error)

// CumulantTerms selects the connected terms of op at depth.
func CumulantTerms(op string, depth int) Source {
	return func(b Batch) ([]expr.Tensor, error) {
		r, err := b.get(op)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		return r.Cumulant(depth), nil
	}
}

// RDMTerms selects the density matrix terms of op at depth in the given classes.
func RDMTerms(op string, depth int, classes ...diagram.Class) Source {
	return levelTerms(op, depth, classes, func(t Terms) []expr.Tensor { return t.RDM })
}

// ResidualTerms selects the residual terms of op at depth in the given classes.
func ResidualTerms(op string, depth int, classes ...diagram.Class) Source {
	return levelTerms(op, depth, classes, func(t Terms) []expr.Tensor { return t.Residual })
}

func levelTerms(op string, depth int, classes []diagram.Class, part func(Terms) []expr.Tensor) Source {
	return func(b Batch) ([]expr.Tensor, error) {
		r, err := b.get(op)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		var ts []expr.Tensor
		for _, c := range classes {
			ts = append(ts, part(r.Terms[Level{Depth: depth, Class: c}])...)
		}
		return ts, nil
	}
}

// Variant is a parameterized density matrix theory: the sources of its stationarity residual, its
// two-body cumulant, its one-particle density matrix and the products of lower order terms in its
// two-body density matrix.
type Variant struct {
	Name     string
	Residual []Source
	Cumulant []Source
	OPDM     []Source
	Product  []Source
}

// Extend returns the variant named name that has the sources of both v and extra.
func (v Variant) Extend(name string, extra Variant) Variant {
	return Variant{
		Name:     name,
		Residual: slices.Concat(v.Residual, extra.Residual),
		Cumulant: slices.Concat(v.Cumulant, extra.Cumulant),
		OPDM:     slices.Concat(v.OPDM, extra.OPDM),
		Product:  slices.Concat(v.Product, extra.Product),
	}
}

// Equations are the terms of a variant, merged per quantity.
type Equations struct {
	Residual []expr.Tensor
	Cumulant []expr.Tensor
	OPDM     []expr.Tensor
	Product  []expr.Tensor
}

// Collect evaluates the sources of v against b.
func (v Variant) Collect(b Batch) (Equations, error) {
	collect := func(sources []Source) ([]expr.Tensor, error) {
		var ts []expr.Tensor
		for _, s := range sources {
			terms, err := s(b)
			if err != nil {
				return nil, errors.Wrap(err, "")
			}
			ts = append(ts, terms...)
		}
		merged, err := expr.SeekEquivalents(ts)
		if err != nil {
			return nil, errors.Wrap(err, "")
		}
		return merged, nil
	}

	var eq Equations
	var err error
	if eq.Residual, err = collect(v.Residual); err != nil {
		return Equations{}, errors.Wrapf(err, "%s residual", v.Name)
	}
	if eq.Cumulant, err = collect(v.Cumulant); err != nil {
		return Equations{}, errors.Wrapf(err, "%s cumulant", v.Name)
	}
	if eq.OPDM, err = collect(v.OPDM); err != nil {
		return Equations{}, errors.Wrapf(err, "%s opdm", v.Name)
	}
	if eq.Product, err = collect(v.Product); err != nil {
		return Equations{}, errors.Wrapf(err, "%s product", v.Name)
	}
	return eq, nil
}

// Order returns the terms that a commutator at depth adds to a variant.
func Order(depth int) Variant {
	v := Variant{Name: fmt.Sprintf("order %d", depth)}
	for _, op := range TwoBody {
		v.Cumulant = append(v.Cumulant, CumulantTerms(op, depth))
		v.Product = append(v.Product, RDMTerms(op, depth, diagram.DisconnectedStrong, diagram.DisconnectedWeak))
		v.Residual = append(v.Residual, ResidualTerms(op, depth, diagram.Classes...))
	}
	for _, op := range OneBody {
		v.OPDM = append(v.OPDM, RDMTerms(op, depth, diagram.Classes...))
		v.Residual = append(v.Residual, ResidualTerms(op, depth, diagram.Classes...))
	}
	return v
}

// Taylor returns the variant truncated after depth nested commutators, named D2 for a single
// commutator, D3 for two and so on. Each is the previous one extended by Order(depth).
func Taylor(depth int) Variant {
	var v Variant
	for d := 1; d <= depth; d++ {
		v = v.Extend(fmt.Sprintf("D%d", d+1), Order(d))
	}
	return v
}
