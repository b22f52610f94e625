package expr

import (
	"slices"
	"strings"

	"github.com/pkg/errors"
)

// SpaceCount counts occupied and virtual symbols.
// Spin-orbital symbols give (occupied, virtual), spin-integrated ones give
// (occupied α, occupied β, virtual α, virtual β).
func SpaceCount(syms []Symbol) ([]int, error) {
	so, err := spinorbital(syms)
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	if so && len(syms) > 0 {
		counts := make([]int, 2)
		for _, x := range syms {
			if x.Occupied() {
				counts[0]++
			} else {
				counts[1]++
			}
		}
		return counts, nil
	}

	counts := make([]int, 4)
	for _, x := range syms {
		i := 0
		if !x.Occupied() {
			i += 2
		}
		if x.Spin == Beta {
			i++
		}
		counts[i]++
	}
	return counts, nil
}

// FlipRows puts the row with more occupied symbols on top.
func FlipRows(rows [2][]Symbol) [2][]Symbol {
	if countOccupied(rows[1]) > countOccupied(rows[0]) {
		return [2][]Symbol{rows[1], rows[0]}
	}
	return rows
}

// SpaceString spells the orbital spaces of both rows, such as "oovv".
func SpaceString(rows [2][]Symbol) string {
	var b strings.Builder
	for _, x := range slices.Concat(rows[0], rows[1]) {
		if x.Occupied() {
			b.WriteString("o")
		} else {
			b.WriteString("v")
		}
	}
	return b.String()
}
