// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package engine_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/smcverify/smcplug/internal/engine"
	"github.com/smcverify/smcplug/pkg/exchange"
)

var _ = Describe("Trajectory", func() {
	It("parses YAML", func() {
		tr, err := engine.ParseTrajectory([]byte(`
parameters:
  gain: 0.5
seed: 3
inputs:
  - {x: 1}
  - {x: 2.5, on: true}
expect:
  - {y: 1}
  - {y: 3}
`))
		Expect(err).NotTo(HaveOccurred())
		Expect(tr.Parameters).To(Equal(exchange.Map{"gain": exchange.Float(0.5)}))
		Expect(*tr.Seed).To(Equal(uint32(3)))
		Expect(tr.Inputs).To(HaveLen(2))
		Expect(tr.Inputs[1]).To(Equal(exchange.Map{"x": exchange.Float(2.5), "on": exchange.Bool(true)}))
		Expect(tr.Expect).To(HaveLen(2))
	})

	It("parses JSON", func() {
		tr, err := engine.ParseTrajectory([]byte(`{"inputs": [{"x": 1}, {"x": -2}]}`))
		Expect(err).NotTo(HaveOccurred())
		Expect(tr.Inputs).To(Equal([]exchange.Map{{"x": exchange.Int(1)}, {"x": exchange.Int(-2)}}))
		Expect(tr.Seed).To(BeNil())
	})

	DescribeTable("rejects invalid documents",
		func(doc string) {
			_, err := engine.ParseTrajectory([]byte(doc))
			Expect(codeOf(err)).To(Equal(engine.CodeInvalidTrajectory))
		},
		Entry("string input", "inputs:\n  - {x: fast}\n"),
		Entry("nested input", "inputs:\n  - {x: {y: 1}}\n"),
		Entry("inputs not a list", "inputs: 3\n"),
		Entry("expect length mismatch", "inputs:\n  - {x: 1}\nexpect:\n  - {y: 1}\n  - {y: 2}\n"),
	)

	It("treats an empty expect list as no expectations", func() {
		_, err := engine.ParseTrajectory([]byte("inputs:\n  - {x: 1}\nexpect: []\n"))
		Expect(err).NotTo(HaveOccurred())
	})

	It("loads from a file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "run.yaml")
		Expect(os.WriteFile(path, []byte("inputs:\n  - {x: 1}\n"), 0o600)).To(Succeed())

		tr, err := engine.LoadTrajectory(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(tr.Inputs).To(HaveLen(1))
	})

	It("reports a missing file", func() {
		_, err := engine.LoadTrajectory(filepath.Join(GinkgoT().TempDir(), "missing.yaml"))
		Expect(err).To(HaveOccurred())
	})
})
