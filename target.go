package dice

import (
	"fmt"
	"strings"

	"github.com/fumin/dice/diagram"
	"github.com/fumin/dice/expr"
)

// Kind is the kind of quantity a term contributes to.
type Kind int

const (
	// KindCumulant is a connected two-body density matrix block.
	KindCumulant Kind = iota + 1
	// KindRDM is any other density matrix block.
	KindRDM
	// KindResidual is a stationarity residual.
	KindResidual
	// KindTrace is a partial trace of the two-body cumulant.
	KindTrace
)

func (k Kind) String() string {
	switch k {
	case KindCumulant:
		return "c"
	case KindRDM:
		return "rdm"
	case KindResidual:
		return "r"
	case KindTrace:
		return "d"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Target is the quantity a term is added into, such as c_oovv_αβ or r2_αα.
type Target struct {
	Kind Kind
	// Spaces spells the orbital spaces of the block, such as "oovv".
	Spaces string
	// Spins spells the spins of the upper row, empty for spin-orbital terms.
	Spins string
	Rank  int
}

func (t Target) String() string {
	var b strings.Builder
	b.WriteString(t.Kind.String())
	switch t.Kind {
	case KindResidual:
		fmt.Fprintf(&b, "%d", t.Rank)
	default:
		b.WriteString("_")
		b.WriteString(t.Spaces)
	}
	if t.Spins != "" {
		b.WriteString("_")
		b.WriteString(t.Spins)
	}
	return b.String()
}

func spins(t expr.Tensor) string {
	return strings.TrimPrefix(t.SpinSuffix(), "_")
}

// RDMTarget returns the density matrix block that t, generated from a central operator of the given
// rank in the given class, contributes to. Its external rows are written occupied row first.
func RDMTarget(t expr.Tensor, class diagram.Class, centralRank int) Target {
	kind := KindRDM
	if class.Connected() && centralRank == 2 {
		kind = KindCumulant
	}
	return Target{Kind: kind, Spaces: expr.SpaceString(expr.FlipRows(t.External)), Spins: spins(t), Rank: t.Rank()}
}

// ResidualTarget returns the residual that t contributes to.
func ResidualTarget(t expr.Tensor) Target {
	return Target{Kind: KindResidual, Spaces: expr.SpaceString(t.External), Spins: spins(t), Rank: t.Rank()}
}

// TraceTarget returns the partial trace block that t contributes to.
func TraceTarget(block string, t expr.Tensor) Target {
	return Target{Kind: KindTrace, Spaces: block, Spins: spins(t), Rank: t.Rank()}
}
