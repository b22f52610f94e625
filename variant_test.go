package dice

import (
	"context"
	"math/big"
	"slices"
	"testing"

	"github.com/pkg/errors"

	"github.com/fumin/dice/diagram"
	"github.com/fumin/dice/expr"
)

func TestTarget(t *testing.T) {
	t.Parallel()
	doubles := expr.MustTensor(
		[]expr.Amplitude{expr.Amp("IJ", "ab", "t2", "ab"), expr.Amp("ab", "AB", "t2", "ab")},
		big.NewRat(1, 1), "IJ", "AB")
	single := expr.MustTensor([]expr.Amplitude{expr.Amp("I", "A", "t1", "")}, big.NewRat(1, 1), "A", "I")
	tests := []struct {
		target Target
		s      string
	}{
		{target: RDMTarget(doubles, diagram.ConnectedWeak, 2), s: "c_oovv_αβ"},
		{target: RDMTarget(doubles, diagram.DisconnectedStrong, 2), s: "rdm_oovv_αβ"},
		{target: RDMTarget(single, diagram.ConnectedStrong, 1), s: "rdm_ov"},
		{target: ResidualTarget(doubles), s: "r2_αβ"},
		{target: TraceTarget("oo", doubles), s: "d_oo_αβ"},
	}
	for _, test := range tests {
		t.Run(test.s, func(t *testing.T) {
			t.Parallel()
			if s := test.target.String(); s != test.s {
				t.Fatalf("%s, expected %s", s, test.s)
			}
		})
	}
}

func TestTaylor(t *testing.T) {
	t.Parallel()
	d2 := Taylor(1)
	d3 := Taylor(2)
	if d2.Name != "D2" || d3.Name != "D3" {
		t.Fatalf("%s %s", d2.Name, d3.Name)
	}
	if len(d3.Cumulant) != 2*len(TwoBody) || len(d3.OPDM) != 2*len(OneBody) {
		t.Fatalf("%d %d", len(d3.Cumulant), len(d3.OPDM))
	}
	if n := len(d3.Residual); n != 2*(len(OneBody)+len(TwoBody)) {
		t.Fatalf("%d", n)
	}

	// Extending does not alter the base variant.
	d2.Extend("D2+", Order(5))
	if len(d2.Cumulant) != len(TwoBody) {
		t.Fatalf("%d", len(d2.Cumulant))
	}
}

func TestVariantCollect(t *testing.T) {
	t.Parallel()
	op := diagram.MustParseOperator("o v")
	res, err := ComputeRDMParam(context.Background(), op, NewOptions().MaxDepth(1).Ranks(1))
	if err != nil {
		t.Fatalf("%+v", err)
	}
	b := Batch{op.String(): res}

	base := Variant{Name: "base", OPDM: []Source{RDMTerms("o v", 1, diagram.Classes...)}}
	v := base.Extend("singles", Variant{Residual: []Source{ResidualTerms("o v", 1, diagram.Classes...)}})
	eq, err := v.Collect(b)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	opdm := []expr.Tensor{expr.MustTensor([]expr.Amplitude{expr.Amp("I", "A", "t1", "")}, big.NewRat(1, 1), "I", "A")}
	if !slices.EqualFunc(eq.OPDM, opdm, expr.Tensor.Equal) {
		t.Fatalf("%v, expected %v", eq.OPDM, opdm)
	}
	residual := []expr.Tensor{expr.MustTensor([]expr.Amplitude{expr.Amp("I", "A", "f", "")}, big.NewRat(2, 1), "I", "A")}
	if !slices.EqualFunc(eq.Residual, residual, expr.Tensor.Equal) {
		t.Fatalf("%v, expected %v", eq.Residual, residual)
	}
	if len(eq.Cumulant) != 0 || len(eq.Product) != 0 {
		t.Fatalf("%v", eq)
	}

	if _, err := Taylor(1).Collect(b); !errors.Is(err, ErrNotComputed) {
		t.Fatalf("%+v", err)
	}
}
