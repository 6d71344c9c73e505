// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

// Package process loads plugins that run as child processes, using
// HashiCorp's go-plugin over net/rpc.
//
// The module is the running child process. Every instance created from it
// is a separate dispense, so two instances never share state even though
// they share a process. Closing the module kills the child.
package process

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"time"

	"github.com/hashicorp/go-hclog"
	hashiplug "github.com/hashicorp/go-plugin"
	"github.com/samber/oops"

	"github.com/smcverify/smcplug/internal/loader"
	"github.com/smcverify/smcplug/pkg/smcplugin"
)

// BackendName identifies this backend in logs, metrics and manifests.
const BackendName = "process"

// DefaultStartTimeout bounds how long a child may take to complete the handshake.
const DefaultStartTimeout = 10 * time.Second

// Compile-time interface check.
var _ loader.Backend = (*Backend)(nil)

// PluginClient wraps the go-plugin client for testability.
type PluginClient interface {
	// Client starts the child if needed and returns its protocol client.
	Client() (hashiplug.ClientProtocol, error)
	// Kill terminates the plugin process.
	Kill()
}

// ClientFactory creates plugin clients.
type ClientFactory interface {
	// NewClient creates a client for the executable at execPath.
	NewClient(execPath string, startTimeout time.Duration) PluginClient
}

// DefaultClientFactory creates real go-plugin clients.
type DefaultClientFactory struct {
	Logger hclog.Logger
}

// NewClient creates a real go-plugin client speaking net/rpc.
func (f *DefaultClientFactory) NewClient(execPath string, startTimeout time.Duration) PluginClient {
	return hashiplug.NewClient(&hashiplug.ClientConfig{
		HandshakeConfig:  smcplugin.Handshake,
		Plugins:          smcplugin.PluginSet(nil),
		Cmd:              exec.Command(execPath), // #nosec G204 -- execPath is resolved inside the configured plugin directory
		AllowedProtocols: []hashiplug.Protocol{hashiplug.ProtocolNetRPC},
		StartTimeout:     startTimeout,
		Logger:           f.Logger,
	})
}

// Backend starts process plugins.
type Backend struct {
	clientFactory ClientFactory
	startTimeout  time.Duration
	goos          string
}

// Option configures a Backend.
type Option func(*Backend)

// WithClientFactory replaces the go-plugin client factory (for testing).
func WithClientFactory(f ClientFactory) Option {
	return func(b *Backend) {
		if f != nil {
			b.clientFactory = f
		}
	}
}

// WithStartTimeout sets the handshake timeout.
func WithStartTimeout(d time.Duration) Option {
	return func(b *Backend) {
		if d > 0 {
			b.startTimeout = d
		}
	}
}

// New creates a process backend. Plugin output is logged through an hclog
// logger writing to stderr.
func New(opts ...Option) *Backend {
	b := &Backend{
		clientFactory: &DefaultClientFactory{Logger: hclog.New(&hclog.LoggerOptions{
			Name:   "plugin",
			Output: os.Stderr,
			Level:  hclog.Warn,
		})},
		startTimeout: DefaultStartTimeout,
		goos:         runtime.GOOS,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Name returns BackendName.
func (b *Backend) Name() string { return BackendName }

// ArtifactName returns the executable name of plugin.
func (b *Backend) ArtifactName(name string) string {
	if b.goos == "windows" {
		return name + ".exe"
	}
	return name
}

// Open starts the plugin executable at path and completes the handshake.
// A deadline on ctx shortens the start timeout; cancelling ctx while the
// child starts kills it.
func (b *Backend) Open(ctx context.Context, path string) (loader.Module, error) {
	timeout := b.startTimeout
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout = until
		}
	}
	if timeout <= 0 {
		return nil, oops.In("process").With("path", path).Wrap(context.DeadlineExceeded)
	}

	client := b.clientFactory.NewClient(path, timeout)

	type result struct {
		protocol hashiplug.ClientProtocol
		err      error
	}
	done := make(chan result, 1)
	go func() {
		p, err := client.Client()
		done <- result{p, err}
	}()

	select {
	case <-ctx.Done():
		client.Kill()
		return nil, oops.In("process").With("path", path).Wrap(ctx.Err())
	case r := <-done:
		if r.err != nil {
			client.Kill()
			return nil, oops.In("process").
				With("path", path).
				Hint("the executable must call smcplugin.Serve").
				Wrap(r.err)
		}
		return &module{client: client, protocol: r.protocol, path: path}, nil
	}
}

type module struct {
	client   PluginClient
	protocol hashiplug.ClientProtocol
	path     string
}

// Lookup resolves the factory symbol to a constructor that dispenses one
// remote instance per call.
func (m *module) Lookup(symbol string) (any, error) {
	if symbol != smcplugin.FactorySymbol {
		return nil, oops.In("process").
			With("path", m.path).
			With("symbol", symbol).
			Errorf("process plugins export only %s", smcplugin.FactorySymbol)
	}
	return smcplugin.Constructor(m.dispense), nil
}

func (m *module) dispense() (smcplugin.Contract, error) {
	raw, err := m.protocol.Dispense(smcplugin.PluginKey)
	if err != nil {
		return nil, oops.In("process").With("path", m.path).Wrap(err)
	}
	c, ok := raw.(smcplugin.Contract)
	if !ok {
		return nil, oops.In("process").
			With("path", m.path).
			Errorf("dispensed %T does not implement smcplugin.Contract", raw)
	}
	return c, nil
}

// Close kills the child process.
func (m *module) Close() error {
	m.client.Kill()
	return nil
}
