// Package dice generates the tensor equations of parameterized reduced density matrix theories.
//
// A central second-quantized operator is commuted with cluster excitation and de-excitation operators
// up to a maximum depth. At each depth the fully closed diagrams give the terms of the parameterized
// density matrix block, and differentiating the energy built from them gives the stationarity
// residuals.
package dice

import (
	"context"
	"io"
	"runtime"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/fumin/dice/commutator"
	"github.com/fumin/dice/construct"
	"github.com/fumin/dice/diagram"
	"github.com/fumin/dice/expr"
	"github.com/fumin/dice/spin"
)

// Options are options for ComputeRDMParam.
type Options struct {
	maxDepth      int
	ranks         []int
	weightRule    construct.WeightRule
	spinIntegrate bool
	workers       int
	logger        *log.Logger
}

// NewOptions returns the default options: four nested commutators with doubles, unitary weights.
func NewOptions() Options {
	opt := Options{}
	opt.maxDepth = 4
	opt.ranks = []int{2}
	opt.weightRule = construct.Unitary
	opt.workers = runtime.NumCPU()
	opt.logger = log.New(io.Discard)
	return opt
}

// MaxDepth sets the number of nested commutators.
func (opt Options) MaxDepth(n int) Options {
	opt.maxDepth = n
	return opt
}

// Ranks sets the excitation ranks of the cluster operators.
func (opt Options) Ranks(ranks ...int) Options {
	opt.ranks = slices.Clone(ranks)
	return opt
}

// WeightRule sets how diagram weights are computed.
func (opt Options) WeightRule(r construct.WeightRule) Options {
	opt.weightRule = r
	return opt
}

// SpinIntegrate sets whether terms are spin integrated.
func (opt Options) SpinIntegrate(b bool) Options {
	opt.spinIntegrate = b
	return opt
}

// Workers sets the number of goroutines building tensors.
func (opt Options) Workers(n int) Options {
	opt.workers = max(1, n)
	return opt
}

func (opt Options) Logger(l *log.Logger) Options {
	opt.logger = l
	return opt
}

// Level identifies the terms of one connectivity class at one commutator depth.
type Level struct {
	Depth int
	Class diagram.Class
}

// Terms are the density matrix terms of a level and the residual terms from differentiating them.
type Terms struct {
	RDM      []expr.Tensor
	Residual []expr.Tensor
}

// Results are the terms generated from one central operator.
type Results struct {
	Operator diagram.Operator
	// Levels lists the levels with stationarity diagrams, by depth then class.
	Levels []Level
	Terms  map[Level]Terms
}

// Cumulant returns the connected density matrix terms at depth.
func (r Results) Cumulant(depth int) []expr.Tensor {
	var ts []expr.Tensor
	for _, c := range []diagram.Class{diagram.ConnectedStrong, diagram.ConnectedWeak} {
		ts = append(ts, r.Terms[Level{Depth: depth, Class: c}].RDM...)
	}
	return ts
}

// Residuals returns the residual terms of every level, in level order.
func (r Results) Residuals() []expr.Tensor {
	var ts []expr.Tensor
	for _, l := range r.Levels {
		ts = append(ts, r.Terms[l].Residual...)
	}
	return ts
}

// ComputeRDMParam expands op to the maximum depth and returns its density matrix parameterization and
// stationarity residuals.
//
// Diagrams of excitation rank zero are closed and contribute at their depth. Diagrams whose free lines
// are not of particle-hole type, or have a nonzero excitation rank, stay open for the next commutator.
// At the last depth only operators that close a diagram are added.
func ComputeRDMParam(ctx context.Context, op diagram.Operator, options ...Options) (Results, error) {
	opt := NewOptions()
	if len(options) > 0 {
		opt = options[0]
	}
	if opt.maxDepth < 1 || len(opt.ranks) == 0 {
		return Results{}, errors.Errorf("%#v", opt)
	}

	res := Results{Operator: op.Clone(), Terms: make(map[Level]Terms)}
	symbol := "f"
	if op.Rank() == 2 {
		symbol = "g"
	}

	starting := []diagram.Diagram{diagram.New(op.Clone())}
	for depth := 1; depth <= opt.maxDepth; depth++ {
		if err := ctx.Err(); err != nil {
			return Results{}, errors.Wrap(err, "")
		}

		simp := commutator.Simplifications{FullyContractableOnly: depth == opt.maxDepth}
		ds, err := commutator.Expand(starting, opt.ranks, simp)
		if err != nil {
			return Results{}, errors.Wrapf(err, "depth %d", depth)
		}

		var open []diagram.Diagram
		closed := make(map[diagram.Class][]diagram.Diagram)
		for _, d := range ds {
			rank, ok := d.ExcitationRank()
			if ok && rank == 0 {
				closed[d.Class()] = append(closed[d.Class()], d)
			} else {
				open = append(open, d)
			}
		}
		opt.logger.Info("expanded", "operator", op, "depth", depth, "diagrams", len(ds), "open", len(open))

		for _, class := range diagram.Classes {
			if len(closed[class]) == 0 {
				continue
			}
			unique, err := diagram.Combine(closed[class])
			if err != nil {
				return Results{}, errors.Wrap(err, "")
			}
			rdm, err := buildTensors(ctx, unique, opt)
			if err != nil {
				return Results{}, errors.Wrapf(err, "depth %d %s", depth, class)
			}
			residual, err := EnergyDerivative(rdm, symbol)
			if err != nil {
				return Results{}, errors.Wrapf(err, "depth %d %s", depth, class)
			}

			level := Level{Depth: depth, Class: class}
			res.Levels = append(res.Levels, level)
			res.Terms[level] = Terms{RDM: rdm, Residual: residual}
			opt.logger.Info("terms", "operator", op, "depth", depth, "class", class, "diagrams", len(unique), "rdm", len(rdm), "residual", len(residual))
		}

		starting = open
	}
	return res, nil
}

// buildTensors converts diagrams to tensors in parallel, keeping their order, and drops zero weights.
func buildTensors(ctx context.Context, ds []diagram.Diagram, opt Options) ([]expr.Tensor, error) {
	tensors := make([]expr.Tensor, len(ds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, opt.workers))
	for i, d := range ds {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t, err := construct.FromDiagram(d, opt.weightRule)
			if err != nil {
				return errors.Wrapf(err, "%s", d)
			}
			tensors[i] = t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	tensors = nonzero(tensors)
	if !opt.spinIntegrate {
		return tensors, nil
	}

	blocks := make([][]expr.Tensor, len(tensors))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(max(1, opt.workers))
	for i, t := range tensors {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := spin.Integrate(t)
			if err != nil {
				return errors.Wrapf(err, "%s", t)
			}
			blocks[i] = b
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, errors.Wrap(err, "")
	}
	integrated, err := expr.SeekEquivalents(slices.Concat(blocks...))
	if err != nil {
		return nil, errors.Wrap(err, "")
	}
	return integrated, nil
}

func nonzero(ts []expr.Tensor) []expr.Tensor {
	return slices.DeleteFunc(ts, func(t expr.Tensor) bool { return t.Weight.Sign() == 0 })
}
