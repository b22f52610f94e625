package dice

import (
	"fmt"
	"math/big"
	"slices"
	"testing"

	"github.com/pkg/errors"

	"github.com/fumin/dice/diagram"
	"github.com/fumin/dice/expr"
)

func TestPartialTrace(t *testing.T) {
	t.Parallel()
	tensor := func(w int64, upper, lower string, amps ...expr.Amplitude) expr.Tensor {
		return expr.MustTensor(amps, big.NewRat(w, 1), upper, lower)
	}
	tests := []struct {
		t        expr.Tensor
		occupied bool
		traced   []expr.Tensor
	}{
		{
			t:        tensor(1, "IJ", "KL", expr.Amp("IJ", "ab", "t2", ""), expr.Amp("KL", "ab", "t2", "")),
			occupied: true,
			traced:   []expr.Tensor{tensor(1, "J", "L", expr.Amp("IJ", "ab", "t2", ""), expr.Amp("IL", "ab", "t2", ""))},
		},
		{
			t:        tensor(1, "IJ", "KL", expr.Amp("IJ", "ab", "t2", "bb"), expr.Amp("KL", "ab", "t2", "bb")),
			occupied: true,
			traced:   []expr.Tensor{tensor(1, "J", "L", expr.Amp("IJ", "ab", "t2", "bb"), expr.Amp("IL", "ab", "t2", "bb"))},
		},
		{
			t:        tensor(1, "IJ", "KL", expr.Amp("IJ", "ab", "t2", "ab"), expr.Amp("KL", "ab", "t2", "ab")),
			occupied: true,
			traced: []expr.Tensor{
				tensor(1, "J", "L", expr.Amp("IJ", "ab", "t2", "ab"), expr.Amp("IL", "ab", "t2", "ab")),
				tensor(1, "I", "K", expr.Amp("IJ", "ab", "t2", "ab"), expr.Amp("KJ", "ab", "t2", "ab")),
			},
		},
		{
			// Tracing the second index of the upper row changes the sign.
			t:        tensor(1, "IA", "BJ", expr.Amp("IJ", "ab", "t2", ""), expr.Amp("ab", "AB", "t2", "")),
			occupied: false,
			traced:   []expr.Tensor{tensor(-1, "I", "J", expr.Amp("IJ", "ab", "t2", ""), expr.Amp("ab", "AA", "t2", ""))},
		},
		{
			t:        tensor(1, "IJ", "KL", expr.Amp("IJ", "ab", "t2", ""), expr.Amp("KL", "ab", "t2", "")),
			occupied: false,
		},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%v %t", test.t, test.occupied), func(t *testing.T) {
			t.Parallel()
			traced, err := PartialTrace(test.t, test.occupied)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if !slices.EqualFunc(traced, test.traced, expr.Tensor.Equal) {
				t.Fatalf("%v, expected %v", traced, test.traced)
			}
		})
	}
}

func TestPartialTraceAntisymmetrizer(t *testing.T) {
	t.Parallel()
	asym := expr.NewAntisymmetrizer(expr.NewBlock(expr.Syms("I", "")...), expr.NewBlock(expr.Syms("J", "")...))
	tensor := expr.MustTensor(
		[]expr.Amplitude{expr.Amp("i", "I", "f", ""), expr.Amp("Ji", "AB", "t2", "")},
		big.NewRat(2, 1), "IJ", "AB", asym)
	if _, err := PartialTrace(tensor, true); !errors.Is(err, expr.ErrInvariant) {
		t.Fatalf("%+v", err)
	}
}

func TestComputeD(t *testing.T) {
	t.Parallel()
	asym := expr.NewAntisymmetrizer(expr.NewBlock(expr.Syms("I", "")...), expr.NewBlock(expr.Syms("J", "")...))
	cumulant := expr.MustTensor(
		[]expr.Amplitude{expr.Amp("IJ", "ab", "t2", ""), expr.Amp("KL", "ab", "t2", "")},
		big.NewRat(1, 1), "IJ", "KL", asym)
	d, err := ComputeD([]expr.Tensor{cumulant}, true)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	expected := []expr.Tensor{
		expr.MustTensor([]expr.Amplitude{expr.Amp("IJ", "ab", "t2", ""), expr.Amp("IL", "ab", "t2", "")}, big.NewRat(1, 1), "J", "L"),
		expr.MustTensor([]expr.Amplitude{expr.Amp("JI", "ab", "t2", ""), expr.Amp("IL", "ab", "t2", "")}, big.NewRat(-1, 1), "J", "L"),
	}
	if !slices.EqualFunc(d, expected, expr.Tensor.Equal) {
		t.Fatalf("%v, expected %v", d, expected)
	}
}

func TestCumulantPartialTrace(t *testing.T) {
	t.Parallel()
	b := make(Batch)
	for _, op := range []string{"oo oo", "ov ov", "oo ov", "ov vv", "vv vv"} {
		b[op] = Results{Operator: diagram.MustParseOperator(op), Terms: make(map[Level]Terms)}
	}
	cumulant := expr.MustTensor(
		[]expr.Amplitude{expr.Amp("IJ", "ab", "t2", ""), expr.Amp("KL", "ab", "t2", "")},
		big.NewRat(1, 1), "IJ", "KL")
	level := Level{Depth: 1, Class: diagram.ConnectedStrong}
	b["oo oo"].Terms[level] = Terms{RDM: []expr.Tensor{cumulant}}

	traces, err := CumulantPartialTrace(b, 2)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	var keys []TraceKey
	for _, tr := range traces {
		keys = append(keys, tr.TraceKey)
	}
	expected := []TraceKey{{"oo", 1}, {"oo", 2}, {"ov", 1}, {"ov", 2}, {"vv", 1}, {"vv", 2}}
	if !slices.Equal(keys, expected) {
		t.Fatalf("%v, expected %v", keys, expected)
	}
	if len(traces[0].RDM) != 1 || len(traces[0].Residual) != 1 {
		t.Fatalf("%v", traces[0])
	}
	if s := TraceTarget(traces[0].Block, traces[0].RDM[0]).String(); s != "d_oo" {
		t.Fatalf("%s", s)
	}
	for _, tr := range traces[1:] {
		if len(tr.RDM) != 0 {
			t.Fatalf("%v", tr)
		}
	}

	delete(b, "vv vv")
	if _, err := CumulantPartialTrace(b, 1); !errors.Is(err, ErrNotComputed) {
		t.Fatalf("%+v", err)
	}
}
