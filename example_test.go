package dice_test

import (
	"context"
	"fmt"
	"log"

	"github.com/fumin/dice"
	"github.com/fumin/dice/diagram"
)

func Example() {
	// The one-body block with an occupied creator and a virtual annihilator,
	// expanded to one commutator with single excitations.
	op := diagram.MustParseOperator("o v")
	opt := dice.NewOptions().MaxDepth(1).Ranks(1)
	res, err := dice.ComputeRDMParam(context.Background(), op, opt)
	if err != nil {
		log.Fatalf("%+v", err)
	}

	for _, l := range res.Levels {
		fmt.Println(l.Depth, l.Class)
		for _, t := range res.Terms[l].RDM {
			fmt.Println(dice.RDMTarget(t, l.Class, op.Rank()), t)
		}
		for _, t := range res.Terms[l].Residual {
			fmt.Println(dice.ResidualTarget(t), t)
		}
	}

	// Output:
	// 1 Connected (Strong)
	// rdm_ov 1 t1(I;A) -> I A
	// r1 2 f(I;A) -> I A
}
