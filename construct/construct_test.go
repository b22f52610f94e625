package construct

import (
	"math/big"
	"slices"
	"testing"

	"github.com/pkg/errors"

	"github.com/fumin/dice/diagram"
	"github.com/fumin/dice/expr"
)

func line(occupied bool, partner int) diagram.Line {
	return diagram.Line{Occupied: occupied, Partner: partner}
}

func cycle() diagram.Diagram {
	return diagram.New(
		diagram.Operator{Upper: diagram.Row{line(true, 1): 2}, Lower: diagram.Row{line(true, 2): 2}},
		diagram.Operator{Upper: diagram.Row{line(false, 2): 2}, Lower: diagram.Row{line(true, 0): 2}},
		diagram.Operator{Upper: diagram.Row{line(true, 0): 2}, Lower: diagram.Row{line(false, 1): 2}},
	)
}

func TestMakeAmplitudes(t *testing.T) {
	t.Parallel()
	amps, err := MakeAmplitudes(cycle(), map[int]bool{0: true})
	if err != nil {
		t.Fatalf("%+v", err)
	}
	expected := []expr.Amplitude{expr.Amp("IJ", "KL", "", ""), expr.Amp("ab", "IJ", "", ""), expr.Amp("KL", "ab", "", "")}
	if !slices.EqualFunc(amps, expected, expr.Amplitude.Equal) {
		t.Fatalf("%v, expected %v", amps, expected)
	}

	open := diagram.New(diagram.MustParseOperator("oo oo"))
	if _, err := MakeAmplitudes(open, map[int]bool{0: true}); !errors.Is(err, diagram.ErrStructure) {
		t.Fatalf("%+v", err)
	}
}

func TestFromDiagram(t *testing.T) {
	t.Parallel()
	d := cycle()
	// Account for the diagram with the two amplitudes in the other order.
	d.Prefactor = big.NewRat(1, 1)
	expected := expr.MustTensor(
		[]expr.Amplitude{expr.Amp("IJ", "ab", "t2", ""), expr.Amp("KL", "ab", "t2", "")},
		big.NewRat(1, 2), "IJ", "KL")
	for _, rule := range []WeightRule{Unitary, Variational, Cumulant} {
		t.Run(rule.String(), func(t *testing.T) {
			t.Parallel()
			tensor, err := FromDiagram(d, rule)
			if err != nil {
				t.Fatalf("%+v", err)
			}
			if !tensor.Equal(expected) {
				t.Fatalf("%v, expected %v", tensor, expected)
			}
		})
	}

	if _, err := FromDiagram(d, WeightRule(7)); !errors.Is(err, ErrWeightRule) {
		t.Fatalf("%+v", err)
	}
}

func TestParseWeightRule(t *testing.T) {
	t.Parallel()
	for _, rule := range []WeightRule{Unitary, Variational, Cumulant} {
		r, err := ParseWeightRule(rule.String())
		if err != nil {
			t.Fatalf("%+v", err)
		}
		if r != rule {
			t.Fatalf("%v, expected %v", r, rule)
		}
	}
	if _, err := ParseWeightRule("ucc"); !errors.Is(err, ErrWeightRule) {
		t.Fatalf("%+v", err)
	}
}

func TestExternals(t *testing.T) {
	t.Parallel()
	external, rest := Externals([]expr.Amplitude{expr.Amp("IJ", "AB", "", ""), expr.Amp("AB", "IJ", "", "")})
	if !slices.Equal(external[0], expr.Syms("IJ", "")) || !slices.Equal(external[1], expr.Syms("AB", "")) {
		t.Fatalf("%v", external)
	}
	if len(rest) != 1 {
		t.Fatalf("%v", rest)
	}

	groups := FullAntisym(external)
	expected := []AntisymGroup{
		{Row: 1, Symbols: expr.Syms("IJ", "")},
		{Row: 0, Symbols: expr.Syms("AB", "")},
	}
	if len(groups) != len(expected) {
		t.Fatalf("%v, expected %v", groups, expected)
	}
	for i, g := range groups {
		if g.Row != expected[i].Row || !slices.Equal(g.Symbols, expected[i].Symbols) {
			t.Fatalf("%v, expected %v", g, expected[i])
		}
	}
}

func TestReduceAntisym(t *testing.T) {
	t.Parallel()
	amps := []expr.Amplitude{expr.Amp("I", "a", "", ""), expr.Amp("J", "b", "", "")}
	groups := []AntisymGroup{{Row: 0, Symbols: expr.Syms("IJ", "")}}
	weight, asyms := ReduceAntisym(amps, groups)
	expected := expr.NewAntisymmetrizer(expr.NewBlock(expr.Syms("I", "")...), expr.NewBlock(expr.Syms("J", "")...))
	if weight.Int64() != 1 || len(asyms) != 1 || asyms[0].String() != expected.String() {
		t.Fatalf("%v %v, expected 1 %v", weight, asyms, expected)
	}

	amps = []expr.Amplitude{expr.Amp("ab", "IJ", "", ""), expr.Amp("KL", "ab", "", "")}
	groups = []AntisymGroup{{Row: 1, Symbols: expr.Syms("IJ", "")}, {Row: 0, Symbols: expr.Syms("KL", "")}}
	weight, asyms = ReduceAntisym(amps, groups)
	if weight.Int64() != 4 || len(asyms) != 0 {
		t.Fatalf("%v %v", weight, asyms)
	}
}

func TestSign(t *testing.T) {
	t.Parallel()
	tests := []struct {
		amps []expr.Amplitude
		sign int
	}{
		{
			amps: []expr.Amplitude{expr.Amp("IJ", "KL", "", ""), expr.Amp("ab", "IJ", "", ""), expr.Amp("KL", "ab", "", "")},
			sign: 1,
		},
		{
			// A closed loop through one hole line.
			amps: []expr.Amplitude{expr.Amp("i", "a", "", ""), expr.Amp("a", "i", "", "")},
			sign: 1,
		},
		{
			// A closed loop through one particle line.
			amps: []expr.Amplitude{expr.Amp("a", "b", "", ""), expr.Amp("b", "a", "", "")},
			sign: -1,
		},
		{
			// Open paths entering the externals in reverse order.
			amps: []expr.Amplitude{expr.Amp("JI", "AB", "", "")},
			sign: -1,
		},
	}
	for _, test := range tests {
		t.Run(test.amps[0].String(), func(t *testing.T) {
			t.Parallel()
			if s := Sign(test.amps); s != test.sign {
				t.Fatalf("%d, expected %d", s, test.sign)
			}
		})
	}
}

func TestCumulantWeight(t *testing.T) {
	t.Parallel()
	// Two single excitations that only contract with each other.
	pair := func(ex, de int) []diagram.Operator {
		return []diagram.Operator{
			{Upper: diagram.Row{line(false, de): 1}, Lower: diagram.Row{line(true, de): 1}},
			{Upper: diagram.Row{line(true, ex): 1}, Lower: diagram.Row{line(false, ex): 1}},
		}
	}
	isolated := diagram.New(append(cycle().Operators, pair(3, 4)...)...)

	tests := []struct {
		name   string
		d      diagram.Diagram
		weight int
	}{
		{name: "connected", d: cycle(), weight: 1},
		{name: "isolated", d: isolated, weight: 0},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			t.Parallel()
			if w := CumulantWeight(test.d); w != test.weight {
				t.Fatalf("%d, expected %d", w, test.weight)
			}
		})
	}
}

func TestAlternatingCount(t *testing.T) {
	t.Parallel()
	tests := []struct {
		subs  [][]int
		count int
	}{
		{subs: nil, count: 1},
		{subs: [][]int{{3, 4}}, count: 0},
		{subs: [][]int{{2, 3}, {3, 4}}, count: -1},
		{subs: [][]int{{2, 3}, {4, 5}}, count: 0},
		{subs: [][]int{{3, 4, 5}, {3, 4}, {3, 5}}, count: 0},
		{subs: [][]int{{1, 2}, {2, 3}, {3, 4}}, count: -1},
	}
	for _, test := range tests {
		if c := alternatingCount(test.subs); c != test.count {
			t.Fatalf("%v: %d, expected %d", test.subs, c, test.count)
		}
	}
}
