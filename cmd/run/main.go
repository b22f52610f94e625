package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/fumin/dice"
	"github.com/fumin/dice/config"
	"github.com/fumin/dice/store"
)

type rootOptions struct {
	config string
	db     string
	debug  bool
}

func (opts *rootOptions) load() (config.Config, error) {
	c, err := config.Load(opts.config)
	if err != nil {
		return config.Config{}, errors.Wrap(err, "")
	}
	if opts.db != "" {
		c.Store = opts.db
	}
	return c, nil
}

func (opts *rootOptions) logger(w io.Writer) *log.Logger {
	level := log.InfoLevel
	if opts.debug {
		level = log.DebugLevel
	}
	return log.NewWithOptions(w, log.Options{ReportTimestamp: true, Level: level})
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "dice",
		Short:         "Generate stationarity equations of parameterized reduced density matrix methods",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.config, "config", "", "path to YAML config")
	cmd.PersistentFlags().StringVar(&opts.db, "db", "", "path to SQLite database, overrides the config")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "debug logging")

	cmd.AddCommand(newRunCommand(opts))
	cmd.AddCommand(newShowCommand(opts))
	cmd.AddCommand(newExportCommand(opts))
	return cmd
}

func newRunCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Expand the configured central operators and store the terms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.load()
			if err != nil {
				return errors.Wrap(err, "")
			}
			id, err := run(cmd.Context(), c, opts.logger(cmd.ErrOrStderr()))
			if err != nil {
				return errors.Wrap(err, "")
			}
			fmt.Fprintln(cmd.OutOrStdout(), id)
			return nil
		},
	}
}

// run computes every configured operator into a new run of the store, unless an equal configuration is already done.
func run(ctx context.Context, c config.Config, logger *log.Logger) (string, error) {
	s, err := store.Open(c.Store)
	if err != nil {
		return "", errors.Wrap(err, "")
	}
	defer s.Close()

	fingerprint := c.Fingerprint()
	if id, ok, err := s.Done(ctx, fingerprint); err != nil {
		return "", errors.Wrap(err, "")
	} else if ok {
		logger.Info("already done", "run", id)
		return id, nil
	}

	ops, err := c.ParseOperators()
	if err != nil {
		return "", errors.Wrap(err, "")
	}
	id, err := s.BeginRun(ctx, fingerprint)
	if err != nil {
		return "", errors.Wrap(err, "")
	}
	logger.Info("run", "id", id, "operators", len(ops))

	b := make(dice.Batch)
	for _, op := range ops {
		res, err := dice.ComputeRDMParam(ctx, op, c.Options(logger.With("op", op.String())))
		if err != nil {
			return "", errors.Wrap(err, op.String())
		}
		b[op.String()] = res
		if err := s.PutTerms(ctx, id, resultTerms(res)); err != nil {
			return "", errors.Wrap(err, op.String())
		}
	}

	traces, err := dice.CumulantPartialTrace(b, c.MaxDepth)
	switch {
	case errors.Is(err, dice.ErrNotComputed):
		logger.Info("skipping cumulant partial trace", "err", err)
	case err != nil:
		return "", errors.Wrap(err, "")
	default:
		if err := s.PutTerms(ctx, id, traceTerms(traces)); err != nil {
			return "", errors.Wrap(err, "")
		}
	}

	v := dice.Taylor(c.MaxDepth)
	eq, err := v.Collect(b)
	switch {
	case errors.Is(err, dice.ErrNotComputed):
		logger.Debug("skipping variant", "name", v.Name, "err", err)
	case err != nil:
		return "", errors.Wrap(err, "")
	default:
		logger.Info("variant", "name", v.Name, "residual", len(eq.Residual), "cumulant", len(eq.Cumulant), "opdm", len(eq.OPDM), "product", len(eq.Product))
	}

	if err := s.FinishRun(ctx, id); err != nil {
		return "", errors.Wrap(err, "")
	}
	return id, nil
}

func resultTerms(res dice.Results) []store.Term {
	source := res.Operator.String()
	terms := make([]store.Term, 0)
	for _, l := range res.Levels {
		ts := res.Terms[l]
		for _, t := range ts.RDM {
			target := dice.RDMTarget(t, l.Class, res.Operator.Rank())
			terms = append(terms, store.Term{Source: source, Depth: l.Depth, Class: l.Class.String(), Target: target.String(), Tensor: t})
		}
		for _, t := range ts.Residual {
			target := dice.ResidualTarget(t)
			terms = append(terms, store.Term{Source: source, Depth: l.Depth, Class: l.Class.String(), Residual: true, Target: target.String(), Tensor: t})
		}
	}
	return terms
}

func traceTerms(traces []dice.Trace) []store.Term {
	terms := make([]store.Term, 0)
	for _, tr := range traces {
		for _, t := range tr.RDM {
			target := dice.TraceTarget(tr.Block, t)
			terms = append(terms, store.Term{Source: tr.Block, Depth: tr.Depth, Target: target.String(), Tensor: t})
		}
		for _, t := range tr.Residual {
			target := dice.ResidualTarget(t)
			terms = append(terms, store.Term{Source: tr.Block, Depth: tr.Depth, Residual: true, Target: target.String(), Tensor: t})
		}
	}
	return terms
}

func newShowCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show [run]",
		Short: "List runs, or print the terms of a run",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.load()
			if err != nil {
				return errors.Wrap(err, "")
			}
			s, err := store.Open(c.Store)
			if err != nil {
				return errors.Wrap(err, "")
			}
			defer s.Close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			if len(args) == 0 {
				runs, err := s.Runs(cmd.Context())
				if err != nil {
					return errors.Wrap(err, "")
				}
				for _, r := range runs {
					fmt.Fprintf(w, "%s\t%s\t%t\n", r.ID, r.Created.Format("2006-01-02 15:04:05"), r.Done)
				}
				return errors.Wrap(w.Flush(), "")
			}

			terms, err := s.Terms(cmd.Context(), args[0])
			if err != nil {
				return errors.Wrap(err, "")
			}
			if len(terms) == 0 {
				return errors.Wrapf(store.ErrNoRun, "%s", args[0])
			}
			for _, t := range terms {
				r := store.Record(t)
				// Drop the residual flag, the target already tells.
				fmt.Fprintln(w, strings.Join(slices.Delete(r, 3, 4), "\t"))
			}
			return errors.Wrap(w.Flush(), "")
		},
	}
}

func newExportCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "export <run> <dir>",
		Short: "Write the terms of a run as CSV",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := opts.load()
			if err != nil {
				return errors.Wrap(err, "")
			}
			s, err := store.Open(c.Store)
			if err != nil {
				return errors.Wrap(err, "")
			}
			defer s.Close()

			if err := os.MkdirAll(args[1], os.ModePerm); err != nil {
				return errors.Wrap(err, "")
			}
			if err := s.WriteCSV(cmd.Context(), args[0], args[1]); err != nil {
				return errors.Wrap(err, "")
			}
			return nil
		},
	}
}

func main() {
	if err := mainWithErr(); err != nil {
		log.Fatalf("%+v", err)
	}
}

func mainWithErr() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		return errors.Wrap(err, "")
	}
	return nil
}
