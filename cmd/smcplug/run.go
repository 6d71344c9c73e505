// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package main

import (
	"context"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/smcverify/smcplug/internal/catalog"
	"github.com/smcverify/smcplug/internal/engine"
	"github.com/smcverify/smcplug/internal/loader"
	"github.com/smcverify/smcplug/internal/observability"
	"github.com/smcverify/smcplug/pkg/exchange"
)

// runConfig holds the flags of the run command.
type runConfig struct {
	dir        string
	trajectory string
	params     string
	seed       uint32
	inputs     []string
	output     string
	noCheck    bool
}

// runResult is the printed form of a run.
type runResult struct {
	Plugin  string         `json:"plugin" yaml:"plugin"`
	Initial exchange.Map   `json:"initial" yaml:"initial"`
	Outputs []exchange.Map `json:"outputs" yaml:"outputs"`
}

// NewRunCmd creates the run subcommand.
func NewRunCmd(a *app) *cobra.Command {
	rc := &runConfig{}

	cmd := &cobra.Command{
		Use:   "run <plugin>",
		Short: "Drive a plugin through a trajectory",
		Long: `Load a plugin, then seed, configure and reset it and feed it one input
per step, printing the outputs of every call.

Inputs come from a trajectory file (--trajectory) or from repeated --input
literals. --params and --seed override the trajectory, which overrides the
manifest defaults. When the trajectory lists expected outputs the run fails
on the first mismatch unless --no-check is given.`,
		Example: `  smcplug run int_accumulation_smc_plugin --input '{input_value: 1}' --input '{input_value: 2}'
  smcplug run int_accumulation_smc_plugin --trajectory run.yaml -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd, args[0], rc)
		},
	}

	cmd.Flags().StringVar(&rc.dir, "dir", "", "load the plugin artifact from this directory instead of the catalog")
	cmd.Flags().StringVarP(&rc.trajectory, "trajectory", "t", "", "trajectory file (YAML or JSON)")
	cmd.Flags().StringVar(&rc.params, "params", "", "configuration as an exchange literal")
	cmd.Flags().Uint32Var(&rc.seed, "seed", 0, "random seed passed to the plugin")
	cmd.Flags().StringArrayVarP(&rc.inputs, "input", "i", nil, "step input as an exchange literal (repeatable)")
	cmd.Flags().StringVarP(&rc.output, "output", "o", formatText, "output format (text, json or yaml)")
	cmd.Flags().BoolVar(&rc.noCheck, "no-check", false, "do not compare outputs with the trajectory expectations")

	return cmd
}

// buildTrajectory merges the trajectory file, the manifest defaults and the
// command-line overrides.
func buildTrajectory(cmd *cobra.Command, rc *runConfig, m *catalog.Manifest) (*engine.Trajectory, error) {
	tr := &engine.Trajectory{}
	if rc.trajectory != "" {
		var err error
		if tr, err = engine.LoadTrajectory(rc.trajectory); err != nil {
			return nil, err
		}
	}

	if m != nil {
		if tr.Parameters == nil {
			tr.Parameters = m.Parameters.Clone()
		}
		if tr.Seed == nil && m.Seed != nil {
			seed := *m.Seed
			tr.Seed = &seed
		}
	}

	if cmd.Flags().Changed("params") {
		p, err := exchange.ParseLiteral(rc.params)
		if err != nil {
			return nil, err
		}
		tr.Parameters = p
	}
	if cmd.Flags().Changed("seed") {
		seed := rc.seed
		tr.Seed = &seed
	}
	if len(rc.inputs) > 0 {
		tr.Inputs = make([]exchange.Map, 0, len(rc.inputs))
		for _, text := range rc.inputs {
			in, err := exchange.ParseLiteral(text)
			if err != nil {
				return nil, err
			}
			tr.Inputs = append(tr.Inputs, in)
		}
		tr.Expect = nil
	}
	if tr.Parameters == nil {
		tr.Parameters = exchange.New()
	}

	if err := tr.Validate(); err != nil {
		return nil, err
	}
	return tr, nil
}

func (a *app) run(cmd *cobra.Command, name string, rc *runConfig) error {
	if err := validateFormat(rc.output); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var ready atomic.Bool
	obs, err := a.startObservability(ready.Load)
	if err != nil {
		return err
	}
	if obs != nil {
		defer stopObservability(obs)
	}

	h, m, err := a.open(ctx, name, rc.dir)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := h.Close(); closeErr != nil {
			slog.Warn("failed to close plugin", "plugin", name, "error", closeErr)
		}
	}()

	tr, err := buildTrajectory(cmd, rc, m)
	if err != nil {
		return err
	}

	ready.Store(true)
	if obs != nil {
		obs.Metrics().ActiveRuns.Inc()
		defer obs.Metrics().ActiveRuns.Dec()
	}

	res, err := engine.NewRunner().Run(ctx, h, tr)
	if err != nil {
		return err
	}

	out := runResult{Plugin: res.Plugin, Initial: res.Initial, Outputs: res.Outputs}
	if err := encode(cmd.OutOrStdout(), rc.output, out, func(w io.Writer) error {
		printf(w, "reset: %s\n", res.Initial)
		for i, o := range res.Outputs {
			printf(w, "step %d: %s -> %s\n", i, tr.Inputs[i], o)
		}
		return nil
	}); err != nil {
		return err
	}

	if rc.noCheck {
		return nil
	}
	return engine.Check(tr, res)
}

// startObservability starts the metrics server when metrics-addr is set.
func (a *app) startObservability(ready observability.ReadinessChecker) (*observability.Server, error) {
	if a.cfg.MetricsAddr == "" {
		return nil, nil
	}

	collectors := append([]prometheus.Collector{}, loader.Collectors()...)
	collectors = append(collectors, engine.Collectors()...)
	srv := observability.NewServer(a.cfg.MetricsAddr, ready, collectors...)

	errCh, err := srv.Start()
	if err != nil {
		return nil, oops.Hint("failed to start observability server").Wrap(err)
	}
	go func() {
		for serveErr := range errCh {
			slog.Error("observability server failed", "error", serveErr)
		}
	}()
	return srv, nil
}

func stopObservability(srv *observability.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Stop(ctx); err != nil {
		slog.Warn("error stopping observability server", "error", err)
	}
}
