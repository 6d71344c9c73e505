// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

// Package main packages the accumulation plugin as a loadable artifact.
//
// The same source builds both artifact kinds:
//
//	go build -buildmode=plugin -o libint_accumulation_smc_plugin.so ./plugins/int_accumulation_smc_plugin
//	go build -o int_accumulation_smc_plugin ./plugins/int_accumulation_smc_plugin
//
// The shared object exposes SMCPluginFactory to the in-process loader; the
// executable serves the same factory to the process loader.
package main

import (
	"github.com/smcverify/smcplug/pkg/smcplugin"
	"github.com/smcverify/smcplug/plugins/accumulation"
)

// SMCPluginFactory is the exported factory entry point.
var SMCPluginFactory = smcplugin.Register(accumulation.New)

func main() {
	smcplugin.Serve(SMCPluginFactory)
}
