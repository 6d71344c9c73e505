// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

// Package engine drives plugin instances through trajectories the way a
// statistical model checking engine does: seed, configure, reset, then one
// NextStep per input.
package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/smcverify/smcplug/pkg/errutil"
	"github.com/smcverify/smcplug/pkg/exchange"
	"github.com/smcverify/smcplug/pkg/smcplugin"
)

var tracer = otel.Tracer("smcplug/engine")

// Result holds the outputs of a run: the map returned by Reset and one map
// per NextStep, in input order.
type Result struct {
	Plugin  string
	Initial exchange.Map
	Outputs []exchange.Map
}

// Runner executes trajectories. A Runner holds no per-run state; the
// contract passed to Run must not be used concurrently.
type Runner struct {
	logger *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the runner logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a Runner.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run feeds t through c. The instance must be Unconfigured: Run applies
// t.Seed (when set) and t.Parameters itself.
//
// The first failing call aborts the run. Its error keeps the plugin's code
// and carries the phase and, for NextStep, the zero-based step index.
// Nothing is retried.
func (r *Runner) Run(ctx context.Context, c smcplugin.Contract, t *Trajectory) (res *Result, err error) {
	name := c.Name()
	ctx, span := tracer.Start(ctx, "engine.run",
		trace.WithAttributes(
			attribute.String("plugin.name", name),
			attribute.Int("trajectory.inputs", len(t.Inputs)),
		))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		recordRun(name, err)
	}()

	errb := oops.In("engine").With("plugin", name)

	if t.Seed != nil {
		span.SetAttributes(attribute.Int64("trajectory.seed", int64(*t.Seed)))
		c.SetRandomSeed(*t.Seed)
		recordCall(name, PhaseSeed, nil)
	}

	err = c.LoadParameters(t.Parameters)
	recordCall(name, PhaseConfigure, err)
	if err != nil {
		return nil, r.fail(ctx, errb.With("phase", PhaseConfigure), err)
	}

	initial, err := c.Reset()
	recordCall(name, PhaseReset, err)
	if err != nil {
		return nil, r.fail(ctx, errb.With("phase", PhaseReset), err)
	}

	res = &Result{
		Plugin:  name,
		Initial: initial,
		Outputs: make([]exchange.Map, 0, len(t.Inputs)),
	}
	for i, in := range t.Inputs {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, errb.
				Code(CodeRunCancelled).
				With("phase", PhaseStep).
				With("step", i).
				Wrap(ctxErr)
		}

		start := time.Now()
		out, stepErr := c.NextStep(in)
		recordStep(name, time.Since(start), stepErr)
		if stepErr != nil {
			return nil, r.fail(ctx, errb.With("phase", PhaseStep).With("step", i), stepErr)
		}
		r.logger.DebugContext(ctx, "step completed",
			"plugin", name,
			"step", i,
			"input", in.String(),
			"output", out.String())
		res.Outputs = append(res.Outputs, out)
	}

	span.SetAttributes(attribute.Int("trajectory.steps", len(res.Outputs)))
	r.logger.InfoContext(ctx, "trajectory completed",
		"plugin", name,
		"steps", len(res.Outputs))
	return res, nil
}

func (r *Runner) fail(ctx context.Context, errb oops.OopsErrorBuilder, cause error) error {
	err := errb.Wrap(cause)
	r.logger.ErrorContext(ctx, "trajectory aborted", errutil.Attrs(err)...)
	return err
}

// Check compares res against t.Expect. A trajectory without expectations
// always passes. The first differing step is reported as OUTPUT_MISMATCH.
func Check(t *Trajectory, res *Result) error {
	if len(t.Expect) == 0 {
		return nil
	}
	if len(res.Outputs) != len(t.Expect) {
		return oops.In("engine").
			Code(CodeOutputMismatch).
			With("plugin", res.Plugin).
			Errorf("got %d outputs, expected %d", len(res.Outputs), len(t.Expect))
	}
	for i, want := range t.Expect {
		if got := res.Outputs[i]; !got.Equal(want) {
			return oops.In("engine").
				Code(CodeOutputMismatch).
				With("plugin", res.Plugin).
				With("step", i).
				With("want", want.String()).
				With("got", got.String()).
				Errorf("step %d: got %s, expected %s", i, got, want)
		}
	}
	return nil
}
