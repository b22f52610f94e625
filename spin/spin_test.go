package spin

import (
	"fmt"
	"maps"
	"math/big"
	"slices"
	"testing"

	"github.com/fumin/dice/expr"
)

func sym(letter byte, s expr.Spin) expr.Symbol { return expr.Symbol{Letter: letter, Spin: s} }

// exchange is the spin-orbital tensor t2(Ii;Ba) t2(Ji;Aa) with externals IA;JB.
func exchange() expr.Tensor {
	return expr.MustTensor(
		[]expr.Amplitude{expr.Amp("Ii", "Ba", "t2", ""), expr.Amp("Ji", "Aa", "t2", "")},
		big.NewRat(1, 1), "IA", "JB")
}

func TestExternalSpinCounts(t *testing.T) {
	t.Parallel()
	counts := ExternalSpinCounts(exchange())
	expected := [][2]Count{
		{{0, 1, 0, 1}, {0, 1, 0, 1}},
		{{0, 1, 1, 0}, {0, 1, 1, 0}},
		{{1, 0, 0, 1}, {0, 1, 1, 0}},
		{{1, 0, 0, 1}, {1, 0, 0, 1}},
		{{1, 0, 1, 0}, {1, 0, 1, 0}},
	}
	if !slices.Equal(counts, expected) {
		t.Fatalf("%v, expected %v", counts, expected)
	}
}

func TestAssignExternalSpin(t *testing.T) {
	t.Parallel()
	a := AssignExternalSpin(exchange(), [2]Count{{1, 0, 0, 1}, {0, 1, 1, 0}})
	expected := Assignment{
		sym('I', expr.None): expr.Alpha,
		sym('J', expr.None): expr.Beta,
		sym('A', expr.None): expr.Beta,
		sym('B', expr.None): expr.Alpha,
	}
	if !maps.Equal(a, expected) {
		t.Fatalf("%v, expected %v", a, expected)
	}
}

func TestAllowedSpins(t *testing.T) {
	t.Parallel()
	external := Assignment{
		sym('I', expr.None): expr.Alpha,
		sym('J', expr.None): expr.Beta,
		sym('A', expr.None): expr.Beta,
		sym('B', expr.None): expr.Alpha,
	}
	allowed := AllowedSpins(exchange(), external)
	if len(allowed) != 2 {
		t.Fatalf("%v", allowed)
	}
	for i, s := range []expr.Spin{expr.Alpha, expr.Beta} {
		expected := maps.Clone(external)
		expected[sym('i', expr.None)] = s
		expected[sym('a', expr.None)] = s
		if !maps.Equal(allowed[i], expected) {
			t.Fatalf("%v, expected %v", allowed[i], expected)
		}
	}
}

func TestIntegrateCase(t *testing.T) {
	t.Parallel()
	spins := Assignment{
		sym('I', expr.None): expr.Alpha,
		sym('J', expr.None): expr.Beta,
		sym('A', expr.None): expr.Beta,
		sym('B', expr.None): expr.Alpha,
		sym('i', expr.None): expr.Beta,
		sym('a', expr.None): expr.Beta,
	}
	u, err := IntegrateCase(exchange(), spins)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	expected := expr.MustTensor(
		[]expr.Amplitude{expr.Amp("Ii", "Ba", "t2", "ab"), expr.Amp("Ji", "Aa", "t2", "bb")},
		big.NewRat(-1, 1), "IA", "BJ")
	if !u.Equal(expected) {
		t.Fatalf("%v, expected %v", u, expected)
	}

	delete(spins, sym('a', expr.None))
	if _, err := IntegrateCase(exchange(), spins); err == nil {
		t.Fatalf("expected error")
	}
}

func sameTensors(t *testing.T, results, expected []expr.Tensor) {
	t.Helper()
	if len(results) != len(expected) {
		t.Fatalf("%d results %v, expected %d", len(results), results, len(expected))
	}
	for _, e := range expected {
		if !slices.ContainsFunc(results, e.Equal) {
			t.Fatalf("missing %v in %v", e, results)
		}
	}
	for _, r := range results {
		if !slices.ContainsFunc(expected, r.Equal) {
			t.Fatalf("unexpected %v", r)
		}
	}
}

func TestIntegrate(t *testing.T) {
	t.Parallel()
	results, err := Integrate(exchange())
	if err != nil {
		t.Fatalf("%+v", err)
	}
	tensor := func(w int64, upper, lower string, amps ...expr.Amplitude) expr.Tensor {
		return expr.MustTensor(amps, big.NewRat(w, 1), upper, lower)
	}
	expected := []expr.Tensor{
		tensor(1, "IA", "JB", expr.Amp("Ii", "Ba", "t2", "aa"), expr.Amp("Ji", "Aa", "t2", "aa")),
		tensor(-1, "IA", "BJ", expr.Amp("Ii", "Ba", "t2", "aa"), expr.Amp("iJ", "aA", "t2", "ab")),
		tensor(1, "AI", "BJ", expr.Amp("iI", "Ba", "t2", "ab"), expr.Amp("iJ", "Aa", "t2", "ab")),
		tensor(1, "IA", "JB", expr.Amp("Ii", "aB", "t2", "ab"), expr.Amp("Ji", "aA", "t2", "ab")),
		tensor(1, "IA", "JB", expr.Amp("Ii", "Ba", "t2", "ab"), expr.Amp("Ji", "Aa", "t2", "ab")),
		tensor(1, "IA", "JB", expr.Amp("iI", "aB", "t2", "ab"), expr.Amp("iJ", "aA", "t2", "ab")),
		tensor(-1, "IA", "BJ", expr.Amp("Ii", "Ba", "t2", "ab"), expr.Amp("Ji", "Aa", "t2", "bb")),
		tensor(1, "IA", "JB", expr.Amp("Ii", "Ba", "t2", "bb"), expr.Amp("Ji", "Aa", "t2", "bb")),
	}
	sameTensors(t, results, expected)
}

func TestIntegrateAntisymmetrizer(t *testing.T) {
	t.Parallel()
	asym := func(s string) expr.Antisymmetrizer {
		return expr.NewAntisymmetrizer(expr.NewBlock(expr.Syms("A", s)...), expr.NewBlock(expr.Syms("B", s)...))
	}
	input := expr.MustTensor(
		[]expr.Amplitude{expr.Amp("a", "A", "ft", ""), expr.Amp("IJ", "aB", "t2", "")},
		big.NewRat(1, 1), "IJ", "AB", asym(""))
	results, err := Integrate(input)
	if err != nil {
		t.Fatalf("%+v", err)
	}

	expected := []expr.Tensor{
		expr.MustTensor(
			[]expr.Amplitude{expr.Amp("a", "A", "ft", "a"), expr.Amp("IJ", "Ba", "t2", "aa")},
			big.NewRat(-1, 1), "IJ", "AB", asym("a")),
		expr.MustTensor(
			[]expr.Amplitude{expr.Amp("a", "A", "ft", "b"), expr.Amp("IJ", "Ba", "t2", "bb")},
			big.NewRat(-1, 1), "IJ", "AB", asym("b")),
		expr.MustTensor(
			[]expr.Amplitude{expr.Amp("a", "A", "ft", "a"), expr.Amp("IJ", "aB", "t2", "ab")},
			big.NewRat(1, 1), "IJ", "AB"),
		expr.MustTensor(
			[]expr.Amplitude{expr.Amp("a", "B", "ft", "b"), expr.Amp("IJ", "Aa", "t2", "ab")},
			big.NewRat(1, 1), "IJ", "AB"),
	}
	sameTensors(t, results, expected)
}

func TestExpandRowSpin(t *testing.T) {
	t.Parallel()
	asym := expr.NewAntisymmetrizer(expr.NewBlock(expr.Syms("I", "")...), expr.NewBlock(expr.Syms("JK", "")...))
	spins := Assignment{sym('I', expr.None): expr.Alpha, sym('J', expr.None): expr.Alpha, sym('K', expr.None): expr.Beta}
	es, err := ExpandRowSpin(asym, spins)
	if err != nil {
		t.Fatalf("%+v", err)
	}
	// Two alphas over blocks {I} and {J,K}: both in the pair, or one in each.
	if len(es) != 2 {
		t.Fatalf("%v", es)
	}
	for _, e := range es {
		if e.Beta != nil {
			t.Fatalf("single beta index kept an antisymmetrizer %v", e.Beta)
		}
	}
	if es[0].Alpha == nil || es[1].Alpha != nil {
		t.Fatalf("%v %v", es[0].Alpha, es[1].Alpha)
	}

	delete(spins, sym('K', expr.None))
	if _, err := ExpandRowSpin(asym, spins); err == nil {
		t.Fatalf("expected error")
	}
}

func ExampleIntegrate() {
	f := expr.MustTensor([]expr.Amplitude{expr.Amp("I", "A", "f", "")}, big.NewRat(1, 1), "I", "A")
	blocks, err := Integrate(f)
	if err != nil {
		panic(err)
	}
	for _, b := range blocks {
		fmt.Println(b.Amplitudes[0].FullName(), b.Weight.RatString())
	}
	// Output:
	// f_β 1
	// f_α 1
}
