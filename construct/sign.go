package construct

import (
	"slices"

	"github.com/fumin/dice/expr"
)

func holeSign(x expr.Symbol) int {
	if x.Occupied() {
		return -1
	}
	return 1
}

// Sign returns the sign of the product of amplitudes from its hole lines and closed loops, and from
// the order in which the open paths leave and enter the externals.
//
// Paths are traced by pairing the i-th creator with the i-th annihilator across all amplitudes.
func Sign(amps []expr.Amplitude) int {
	var creators, annihilators []expr.Symbol
	for _, a := range amps {
		creators = append(creators, a.Upper...)
	}
	for _, a := range amps {
		annihilators = append(annihilators, a.Lower...)
	}

	pop := func(i int) (expr.Symbol, expr.Symbol) {
		c, a := creators[i], annihilators[i]
		creators = slices.Delete(creators, i, i+1)
		annihilators = slices.Delete(annihilators, i, i+1)
		return c, a
	}

	sign := 1
	var freeCreators, freeAnnihilators []expr.Symbol
	for len(creators) > 0 {
		c, a := pop(0)
		for {
			next := slices.Index(creators, a)
			if next < 0 {
				// Walk back from c to the other free end.
				for {
					prev := slices.Index(annihilators, c)
					if prev < 0 {
						freeCreators = append(freeCreators, c)
						freeAnnihilators = append(freeAnnihilators, a)
						break
					}
					sign *= holeSign(c)
					c, _ = pop(prev)
				}
				break
			}
			sign *= holeSign(a)
			_, a = pop(next)
			if c == a {
				sign *= -holeSign(a)
				break
			}
		}
	}

	return sign * sortedParity(freeCreators) * sortedParity(freeAnnihilators)
}

func sortedParity(syms []expr.Symbol) int {
	sorted := slices.Clone(syms)
	slices.SortStableFunc(sorted, expr.Compare)
	return expr.FindParity(syms, sorted)
}
