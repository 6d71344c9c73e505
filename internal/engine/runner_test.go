// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package engine_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/oops"

	"github.com/smcverify/smcplug/internal/engine"
	"github.com/smcverify/smcplug/pkg/exchange"
	"github.com/smcverify/smcplug/pkg/smcplugin"
	"github.com/smcverify/smcplug/plugins/accumulation"
)

func ints(key string, ns ...int64) []exchange.Map {
	out := make([]exchange.Map, len(ns))
	for i, n := range ns {
		out[i] = exchange.Map{key: exchange.Int(n)}
	}
	return out
}

// recorder wraps a contract and records the calls it receives.
type recorder struct {
	smcplugin.Contract
	calls []string
	seed  uint32
}

func (r *recorder) SetRandomSeed(seed uint32) {
	r.calls = append(r.calls, "seed")
	r.seed = seed
	r.Contract.SetRandomSeed(seed)
}

func (r *recorder) LoadParameters(cfg exchange.Map) error {
	r.calls = append(r.calls, "configure")
	return r.Contract.LoadParameters(cfg)
}

func (r *recorder) Reset() (exchange.Map, error) {
	r.calls = append(r.calls, "reset")
	return r.Contract.Reset()
}

func (r *recorder) NextStep(in exchange.Map) (exchange.Map, error) {
	r.calls = append(r.calls, "step")
	return r.Contract.NextStep(in)
}

func newAccumulator() smcplugin.Contract {
	return smcplugin.Register(accumulation.New)()
}

func codeOf(err error) any {
	o, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return o.Code()
}

func contextOf(err error) map[string]any {
	o, ok := oops.AsOops(err)
	if !ok {
		return nil
	}
	return o.Context()
}

var _ = Describe("Runner", func() {
	var (
		ctx    context.Context
		runner *engine.Runner
	)

	BeforeEach(func() {
		ctx = context.Background()
		runner = engine.NewRunner()
	})

	Describe("Run", func() {
		It("produces the running sum for the accumulation scenario", func() {
			tr := &engine.Trajectory{
				Parameters: exchange.New(),
				Inputs:     ints(accumulation.InputKey, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, -10),
			}

			res, err := runner.Run(ctx, newAccumulator(), tr)
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Plugin).To(Equal(accumulation.Name))
			Expect(res.Initial).To(Equal(exchange.Map{accumulation.OutputKey: exchange.Int(0)}))
			Expect(res.Outputs).To(Equal(ints(accumulation.OutputKey, 0, 1, 3, 6, 10, 15, 21, 28, 36, 45, 35)))
		})

		It("calls seed, configure and reset before the steps", func() {
			seed := uint32(7)
			rec := &recorder{Contract: newAccumulator()}
			tr := &engine.Trajectory{Seed: &seed, Inputs: ints(accumulation.InputKey, 1, 2)}

			_, err := runner.Run(ctx, rec, tr)
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.calls).To(Equal([]string{"seed", "configure", "reset", "step", "step"}))
			Expect(rec.seed).To(Equal(uint32(7)))
		})

		It("does not seed when the trajectory has no seed", func() {
			rec := &recorder{Contract: newAccumulator()}

			_, err := runner.Run(ctx, rec, &engine.Trajectory{})
			Expect(err).NotTo(HaveOccurred())
			Expect(rec.calls).To(Equal([]string{"configure", "reset"}))
		})

		It("aborts on a configuration error and keeps its code", func() {
			rec := &recorder{Contract: newAccumulator()}
			tr := &engine.Trajectory{
				Parameters: exchange.Map{"gain": exchange.Int(2)},
				Inputs:     ints(accumulation.InputKey, 1),
			}

			res, err := runner.Run(ctx, rec, tr)
			Expect(res).To(BeNil())
			Expect(smcplugin.IsConfigurationError(err)).To(BeTrue(), "got %v", err)
			Expect(contextOf(err)).To(HaveKeyWithValue("phase", engine.PhaseConfigure))
			Expect(rec.calls).To(Equal([]string{"configure"}))
		})

		It("reports the failing step index", func() {
			rec := &recorder{Contract: newAccumulator()}
			inputs := ints(accumulation.InputKey, 1, 2)
			inputs = append(inputs, exchange.Map{accumulation.InputKey: exchange.Float(3)})
			inputs = append(inputs, ints(accumulation.InputKey, 4)...)

			_, err := runner.Run(ctx, rec, &engine.Trajectory{Inputs: inputs})
			Expect(smcplugin.IsStepFailure(err)).To(BeTrue(), "got %v", err)
			Expect(contextOf(err)).To(HaveKeyWithValue("step", 2))
			Expect(contextOf(err)).To(HaveKeyWithValue("phase", engine.PhaseStep))
			Expect(rec.calls).To(HaveLen(5), "no steps after the failure")
		})

		It("rejects an instance that is already configured", func() {
			c := newAccumulator()
			Expect(c.LoadParameters(exchange.New())).To(Succeed())

			_, err := runner.Run(ctx, c, &engine.Trajectory{})
			Expect(smcplugin.CodeOf(err)).To(Equal(smcplugin.CodeAlreadyConfigured))
		})

		It("stops between steps when the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()

			_, err := runner.Run(cctx, newAccumulator(), &engine.Trajectory{Inputs: ints(accumulation.InputKey, 1)})
			Expect(codeOf(err)).To(Equal(engine.CodeRunCancelled))
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})

		It("records step metrics", func() {
			steps := engine.CallsTotal.WithLabelValues(accumulation.Name, engine.PhaseStep, "success")
			runs := engine.RunsTotal.WithLabelValues(accumulation.Name, "success")
			beforeSteps, beforeRuns := testutil.ToFloat64(steps), testutil.ToFloat64(runs)

			_, err := runner.Run(ctx, newAccumulator(), &engine.Trajectory{Inputs: ints(accumulation.InputKey, 1, 2, 3)})
			Expect(err).NotTo(HaveOccurred())

			Expect(testutil.ToFloat64(steps) - beforeSteps).To(Equal(3.0))
			Expect(testutil.ToFloat64(runs) - beforeRuns).To(Equal(1.0))
		})
	})

	Describe("Check", func() {
		tr := &engine.Trajectory{
			Inputs: ints(accumulation.InputKey, 1, 2),
			Expect: ints(accumulation.OutputKey, 1, 3),
		}

		It("passes when outputs match", func() {
			res, err := runner.Run(ctx, newAccumulator(), tr)
			Expect(err).NotTo(HaveOccurred())
			Expect(engine.Check(tr, res)).To(Succeed())
		})

		It("reports the first differing step", func() {
			res := &engine.Result{Outputs: ints(accumulation.OutputKey, 1, 4)}
			err := engine.Check(tr, res)
			Expect(codeOf(err)).To(Equal(engine.CodeOutputMismatch))
			Expect(contextOf(err)).To(HaveKeyWithValue("step", 1))
		})

		It("passes without expectations", func() {
			Expect(engine.Check(&engine.Trajectory{}, &engine.Result{})).To(Succeed())
		})
	})
})
