// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package smcplugin

import (
	"log/slog"
	"net/rpc"
	"os"

	"github.com/hashicorp/go-hclog"
	hashiplug "github.com/hashicorp/go-plugin"
	"github.com/samber/oops"

	"github.com/smcverify/smcplug/pkg/exchange"
)

// Handshake is the go-plugin handshake for process plugins. Host and
// plugins must use identical values; there is no version negotiation.
var Handshake = hashiplug.HandshakeConfig{
	ProtocolVersion:  1,
	MagicCookieKey:   "SMC_PLUGIN",
	MagicCookieValue: "smc-plugin-v1",
}

// PluginKey is the name the contract is dispensed under.
const PluginKey = "smcplugin"

// PluginSet returns the go-plugin set serving factory. Each dispense
// creates one new instance.
func PluginSet(factory Factory) hashiplug.PluginSet {
	return hashiplug.PluginSet{
		PluginKey: &RPCPlugin{Factory: factory},
	}
}

// Serve runs the current process as a process plugin. It blocks until the
// host disconnects and should be called from main().
func Serve(factory Factory) {
	if factory == nil {
		panic("smcplugin: factory cannot be nil")
	}
	hashiplug.Serve(&hashiplug.ServeConfig{
		HandshakeConfig: Handshake,
		Plugins:         PluginSet(factory),
		Logger: hclog.New(&hclog.LoggerOptions{
			Name:       "smcplugin",
			Output:     os.Stderr,
			JSONFormat: true,
			Level:      hclog.Info,
		}),
	})
}

// RPCPlugin implements go-plugin's net/rpc Plugin interface.
type RPCPlugin struct {
	// Factory creates instances on the plugin side (unused by the host).
	Factory Factory
}

// Server creates one instance for a dispense (called by the plugin process).
func (p *RPCPlugin) Server(_ *hashiplug.MuxBroker) (interface{}, error) {
	if p.Factory == nil {
		return nil, oops.In("smcplugin").Errorf("plugin factory is nil")
	}
	impl := p.Factory()
	if impl == nil {
		return nil, oops.In("smcplugin").Errorf("plugin factory returned no instance")
	}
	return NewRPCServer(impl), nil
}

// Client returns the host-side Contract (called by the host process).
func (p *RPCPlugin) Client(_ *hashiplug.MuxBroker, c *rpc.Client) (interface{}, error) {
	return NewRPCClient(c), nil
}

// RPCServer exposes a Contract over net/rpc. Contract errors travel in the
// reply so that their codes survive the hop.
type RPCServer struct {
	impl Contract
}

// NewRPCServer wraps impl.
func NewRPCServer(impl Contract) *RPCServer {
	return &RPCServer{impl: impl}
}

// Name implements the Name call.
func (s *RPCServer) Name(_ interface{}, reply *string) error {
	*reply = s.impl.Name()
	return nil
}

// State implements the State call.
func (s *RPCServer) State(_ interface{}, reply *State) error {
	*reply = s.impl.State()
	return nil
}

// SetRandomSeed implements the SetRandomSeed call.
func (s *RPCServer) SetRandomSeed(seed uint32, ack *bool) error {
	s.impl.SetRandomSeed(seed)
	*ack = true
	return nil
}

// LoadParameters implements the LoadParameters call.
func (s *RPCServer) LoadParameters(config WireMap, reply *ConfigReply) error {
	cfg, err := FromWire(config)
	if err != nil {
		reply.Err = toWireError(failure(CodeConfiguration, s.impl.Name(), "load_parameters", err))
		return nil
	}
	reply.Err = toWireError(s.impl.LoadParameters(cfg))
	return nil
}

// Reset implements the Reset call.
func (s *RPCServer) Reset(_ interface{}, reply *StepReply) error {
	out, err := s.impl.Reset()
	reply.Outputs, reply.Err = ToWire(out), toWireError(err)
	return nil
}

// NextStep implements the NextStep call.
func (s *RPCServer) NextStep(input WireMap, reply *StepReply) error {
	in, err := FromWire(input)
	if err != nil {
		reply.Err = toWireError(failure(CodeStepFailure, s.impl.Name(), "next_step", err))
		return nil
	}
	out, err := s.impl.NextStep(in)
	reply.Outputs, reply.Err = ToWire(out), toWireError(err)
	return nil
}

// Compile-time interface check.
var _ Contract = (*RPCClient)(nil)

// RPCClient is the host-side Contract of a process plugin. Transport
// failures are reported as TRANSPORT_FAILURE.
type RPCClient struct {
	client *rpc.Client
	name   string
}

// NewRPCClient wraps an established net/rpc client.
func NewRPCClient(c *rpc.Client) *RPCClient {
	return &RPCClient{client: c}
}

// Name returns the remote plugin name. The first successful answer is cached.
func (c *RPCClient) Name() string {
	if c.name != "" {
		return c.name
	}
	var name string
	if err := c.client.Call("Plugin.Name", new(interface{}), &name); err != nil {
		slog.Warn("process plugin name lookup failed", "error", err)
		return ""
	}
	c.name = name
	return name
}

// State returns the remote lifecycle state. A transport failure reports
// Unconfigured.
func (c *RPCClient) State() State {
	var st State
	if err := c.client.Call("Plugin.State", new(interface{}), &st); err != nil {
		slog.Warn("process plugin state lookup failed", "plugin", c.name, "error", err)
		return Unconfigured
	}
	return st
}

// SetRandomSeed forwards the seed. Transport failures are logged.
func (c *RPCClient) SetRandomSeed(seed uint32) {
	if err := c.client.Call("Plugin.SetRandomSeed", seed, new(bool)); err != nil {
		slog.Warn("process plugin seed call failed", "plugin", c.Name(), "error", err)
	}
}

// LoadParameters forwards the configuration.
func (c *RPCClient) LoadParameters(config exchange.Map) error {
	var reply ConfigReply
	if err := c.client.Call("Plugin.LoadParameters", ToWire(config), &reply); err != nil {
		return c.transport("load_parameters", err)
	}
	return fromWireError(c.Name(), "load_parameters", reply.Err)
}

// Reset forwards a reset.
func (c *RPCClient) Reset() (exchange.Map, error) {
	var reply StepReply
	if err := c.client.Call("Plugin.Reset", new(interface{}), &reply); err != nil {
		return nil, c.transport("reset", err)
	}
	return c.outputs("reset", reply)
}

// NextStep forwards one step.
func (c *RPCClient) NextStep(input exchange.Map) (exchange.Map, error) {
	var reply StepReply
	if err := c.client.Call("Plugin.NextStep", ToWire(input), &reply); err != nil {
		return nil, c.transport("next_step", err)
	}
	return c.outputs("next_step", reply)
}

// Close closes the RPC connection. The plugin process is owned by the
// module and is not stopped here.
func (c *RPCClient) Close() error {
	if err := c.client.Close(); err != nil && err != rpc.ErrShutdown {
		return oops.In("smcplugin").Code(CodeTransportFailure).Wrap(err)
	}
	return nil
}

func (c *RPCClient) outputs(op string, reply StepReply) (exchange.Map, error) {
	if reply.Err != nil {
		return nil, fromWireError(c.Name(), op, reply.Err)
	}
	out, err := FromWire(reply.Outputs)
	if err != nil {
		return nil, failure(CodeStepFailure, c.Name(), op, err)
	}
	return out, nil
}

func (c *RPCClient) transport(op string, err error) error {
	return oops.In("smcplugin").
		Code(CodeTransportFailure).
		With("plugin", c.name).
		With("operation", op).
		Wrap(err)
}
