package dice

import (
	"fmt"
	"math/big"
	"slices"
	"testing"

	"github.com/pkg/errors"

	"github.com/fumin/dice/expr"
)

func TestFullContract(t *testing.T) {
	t.Parallel()
	tests := []struct {
		spins  string
		weight *big.Rat
	}{
		{spins: "", weight: big.NewRat(1, 4)},
		{spins: "ab", weight: big.NewRat(1, 1)},
	}
	for _, test := range tests {
		t.Run(test.spins, func(t *testing.T) {
			t.Parallel()
			rdm := expr.MustTensor(
				[]expr.Amplitude{expr.Amp("IJ", "ab", "t2", test.spins), expr.Amp("ab", "KL", "t2", test.spins)},
				big.NewRat(1, 1), "IJ", "KL")
			energy, err := FullContract(rdm, "g")
			if err != nil {
				t.Fatalf("%+v", err)
			}
			expected := expr.MustTensor(
				[]expr.Amplitude{expr.Amp("IJ", "KL", "g", test.spins), expr.Amp("IJ", "ab", "t2", test.spins), expr.Amp("ab", "KL", "t2", test.spins)},
				test.weight, "", "")
			if !energy.Equal(expected) {
				t.Fatalf("%v, expected %v", energy, expected)
			}
			if name := energy.Amplitudes[0].FullName(); name[:6] != "g_oooo" {
				t.Fatalf("%s", name)
			}
		})
	}
}

func TestFullContractAntisymmetrizer(t *testing.T) {
	t.Parallel()
	asym := expr.NewAntisymmetrizer(expr.NewBlock(expr.Syms("I", "")...), expr.NewBlock(expr.Syms("J", "")...))
	rdm := expr.MustTensor(
		[]expr.Amplitude{expr.Amp("I", "a", "t1", ""), expr.Amp("J", "b", "t1", "")},
		big.NewRat(1, 1), "IJ", "ab", asym)
	energy, err := FullContract(rdm, "g")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	// 2 for the antisymmetrizer and 2 for the adjoint block, over (2!)^2.
	if energy.Weight.Cmp(big.NewRat(1, 1)) != 0 || len(energy.Antisymmetrizers) != 0 || energy.Rank() != 0 {
		t.Fatalf("%v", energy)
	}
}

func TestCentralWeight(t *testing.T) {
	t.Parallel()
	tests := []struct {
		upper, lower string
		spins        string
		weight       int64
	}{
		{upper: "IJ", lower: "KL", weight: 1},
		{upper: "IA", lower: "JB", weight: 4},
		{upper: "IJ", lower: "AB", weight: 2},
		{upper: "IJ", lower: "KL", spins: "abab", weight: 4},
		{upper: "IJ", lower: "KL", spins: "aaaa", weight: 1},
		{upper: "I", lower: "A", weight: 2},
		{upper: "", lower: "", weight: 1},
	}
	for _, test := range tests {
		t.Run(fmt.Sprintf("%s %s %s", test.upper, test.lower, test.spins), func(t *testing.T) {
			t.Parallel()
			var upperSpins, lowerSpins string
			if test.spins != "" {
				upperSpins, lowerSpins = test.spins[:len(test.upper)], test.spins[len(test.upper):]
			}
			external := [2][]expr.Symbol{expr.Syms(test.upper, upperSpins), expr.Syms(test.lower, lowerSpins)}
			w, err := CentralWeight(external)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if w.Int64() != test.weight {
				t.Fatalf("%v, expected %d", w, test.weight)
			}
		})
	}
}

func TestProductRule(t *testing.T) {
	t.Parallel()
	tests := []struct {
		spins  string
		weight int64
	}{
		{spins: "", weight: 4},
		{spins: "ab", weight: 1},
	}
	for _, test := range tests {
		t.Run(test.spins, func(t *testing.T) {
			t.Parallel()
			g := expr.Amp("IJ", "KL", "g", test.spins)
			t2IJ := expr.Amp("IJ", "ab", "t2", test.spins)
			t2KL := expr.Amp("KL", "ab", "t2", test.spins)
			energy := expr.MustTensor([]expr.Amplitude{g, t2IJ, t2KL}, big.NewRat(1, 1), "", "")

			results, err := ProductRule([]expr.Tensor{energy}, func(name string) bool { return name == "t2" })
			if err != nil {
				t.Fatalf("%+v", err)
			}
			expected := []expr.Tensor{
				expr.MustTensor([]expr.Amplitude{g, t2KL}, big.NewRat(test.weight, 1), "IJ", "ab"),
				expr.MustTensor([]expr.Amplitude{g, t2IJ}, big.NewRat(test.weight, 1), "KL", "ab"),
			}
			if !slices.EqualFunc(results, expected, expr.Tensor.Equal) {
				t.Fatalf("%v, expected %v", results, expected)
			}
		})
	}
}

func TestProductRuleAntisymmetrizes(t *testing.T) {
	t.Parallel()
	// The externals I and J of the removed amplitude sit in different amplitudes.
	energy := expr.MustTensor(
		[]expr.Amplitude{expr.Amp("IJ", "ab", "t2", ""), expr.Amp("I", "a", "f", ""), expr.Amp("J", "b", "f", "")},
		big.NewRat(1, 1), "", "")
	results, err := ProductRule([]expr.Tensor{energy}, func(name string) bool { return name == "t2" })
	if err != nil {
		t.Fatalf("%+v", err)
	}
	blocks := func(a, b string) expr.Antisymmetrizer {
		return expr.NewAntisymmetrizer(expr.NewBlock(expr.Syms(a, "")...), expr.NewBlock(expr.Syms(b, "")...))
	}
	expected := []expr.Tensor{
		expr.MustTensor(
			[]expr.Amplitude{expr.Amp("I", "a", "f", ""), expr.Amp("J", "b", "f", "")},
			big.NewRat(1, 1), "IJ", "ab", blocks("I", "J"), blocks("a", "b")),
	}
	if !slices.EqualFunc(results, expected, expr.Tensor.Equal) {
		t.Fatalf("%v, expected %v", results, expected)
	}

	if _, err := ProductRule(expected, func(string) bool { return true }); !errors.Is(err, expr.ErrInvariant) {
		t.Fatalf("%+v", err)
	}
}

func TestEnergyDerivative(t *testing.T) {
	t.Parallel()
	rdm := expr.MustTensor(
		[]expr.Amplitude{expr.Amp("IJ", "ab", "t2", ""), expr.Amp("KL", "ab", "t2", "")},
		big.NewRat(1, 1), "IJ", "KL")
	residual, err := EnergyDerivative([]expr.Tensor{rdm}, "g")
	if err != nil {
		t.Fatalf("%+v", err)
	}
	// Both amplitudes give the same residual once relabeled.
	if len(residual) != 1 {
		t.Fatalf("%v", residual)
	}
	if residual[0].Weight.Cmp(big.NewRat(2, 1)) != 0 {
		t.Fatalf("%v", residual[0])
	}
	if s := ResidualTarget(residual[0]).String(); s != "r2" {
		t.Fatalf("%s", s)
	}
}
