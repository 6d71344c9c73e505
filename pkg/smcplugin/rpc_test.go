// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package smcplugin_test

import (
	"math"
	"net"
	"net/rpc"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/smcverify/smcplug/pkg/errutil"
	"github.com/smcverify/smcplug/pkg/exchange"
	"github.com/smcverify/smcplug/pkg/smcplugin"
)

// pipeClient serves impl on one end of an in-memory pipe and returns the
// host-side client for the other end.
func pipeClient(t *testing.T, impl smcplugin.Contract) *smcplugin.RPCClient {
	t.Helper()

	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("Plugin", smcplugin.NewRPCServer(impl)))

	serverConn, clientConn := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.ServeConn(serverConn)
	}()

	client := smcplugin.NewRPCClient(rpc.NewClient(clientConn))
	t.Cleanup(func() {
		assert.NoError(t, client.Close())
		<-done
	})
	return client
}

func TestRPC_LifecycleRoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t)

	impl := &mockImpl{}
	impl.On("ProcessInitParameters", mock.Anything).Return(nil)
	impl.On("ProcessReset").Return(exchange.Map{"v": exchange.Int(0)}, nil)
	impl.On("ProcessInput", exchange.Map{"x": exchange.Float(1.5), "on": exchange.Bool(true)}).
		Return(exchange.Map{"v": exchange.Float(1.5), "on": exchange.Bool(true)}, nil)

	t.Run("round trip", func(t *testing.T) {
		client := pipeClient(t, smcplugin.New(impl))

		assert.Equal(t, "mock_plugin", client.Name())
		assert.Equal(t, smcplugin.Unconfigured, client.State())

		_, err := client.Reset()
		errutil.AssertErrorCode(t, err, smcplugin.CodeLifecycleViolation)
		errutil.AssertErrorContext(t, err, "remote", true)

		require.NoError(t, client.LoadParameters(exchange.Map{"k": exchange.Int(3)}))
		assert.Equal(t, smcplugin.Configured, client.State())

		out, err := client.Reset()
		require.NoError(t, err)
		assert.Equal(t, exchange.Map{"v": exchange.Int(0)}, out)

		out, err = client.NextStep(exchange.Map{"x": exchange.Float(1.5), "on": exchange.Bool(true)})
		require.NoError(t, err)
		assert.Equal(t, exchange.Map{"v": exchange.Float(1.5), "on": exchange.Bool(true)}, out)

		err = client.LoadParameters(exchange.New())
		errutil.AssertErrorCode(t, err, smcplugin.CodeAlreadyConfigured)
	})
}

func TestRPC_SeedIsForwarded(t *testing.T) {
	defer goleak.VerifyNone(t)

	s := &seededImpl{}
	t.Run("seed", func(t *testing.T) {
		client := pipeClient(t, smcplugin.New(s))
		client.SetRandomSeed(42)
	})
	assert.Equal(t, uint32(42), s.seed)
}

func TestRPC_StepFailureKeepsCode(t *testing.T) {
	defer goleak.VerifyNone(t)

	impl := &mockImpl{}
	impl.On("ProcessInitParameters", mock.Anything).Return(nil)
	impl.On("ProcessInput", mock.Anything).Return(nil, nil)

	t.Run("nil outputs", func(t *testing.T) {
		client := pipeClient(t, smcplugin.New(impl))
		require.NoError(t, client.LoadParameters(exchange.New()))

		_, err := client.NextStep(exchange.Map{"x": exchange.Int(1)})
		assert.True(t, smcplugin.IsStepFailure(err), "got %v", err)
	})
}

func TestRPC_ClosedConnectionIsTransportFailure(t *testing.T) {
	defer goleak.VerifyNone(t)

	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("Plugin", smcplugin.NewRPCServer(smcplugin.New(&mockImpl{}))))
	serverConn, clientConn := net.Pipe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.ServeConn(serverConn)
	}()

	client := smcplugin.NewRPCClient(rpc.NewClient(clientConn))
	require.NoError(t, client.Close())
	<-done

	_, err := client.Reset()
	errutil.AssertErrorCode(t, err, smcplugin.CodeTransportFailure)

	// Closing twice is harmless.
	assert.NoError(t, client.Close())
}

func TestWire_RoundTrip(t *testing.T) {
	m := exchange.Map{
		"i":   exchange.Int(math.MinInt64),
		"f":   exchange.Float(-0.25),
		"b":   exchange.Bool(false),
		"inf": exchange.Float(math.Inf(1)),
	}
	back, err := smcplugin.FromWire(smcplugin.ToWire(m))
	require.NoError(t, err)
	assert.True(t, m.Equal(back))
}

func TestWire_UnknownKindRejected(t *testing.T) {
	_, err := smcplugin.FromWire(smcplugin.WireMap{"x": {Kind: exchange.KindInvalid}})
	errutil.AssertErrorCode(t, err, exchange.CodeInvalidValue)
	errutil.AssertErrorContext(t, err, "key", "x")
}
