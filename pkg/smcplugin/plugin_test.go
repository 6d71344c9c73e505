// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

package smcplugin_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/smcverify/smcplug/pkg/errutil"
	"github.com/smcverify/smcplug/pkg/exchange"
	"github.com/smcverify/smcplug/pkg/smcplugin"
)

// mockImpl is a testify mock of the implementation hooks.
type mockImpl struct {
	mock.Mock
}

func (m *mockImpl) Name() string { return "mock_plugin" }

func (m *mockImpl) ProcessInitParameters(config exchange.Map) error {
	return m.Called(config).Error(0)
}

func (m *mockImpl) ProcessReset() (exchange.Map, error) {
	args := m.Called()
	out, _ := args.Get(0).(exchange.Map)
	return out, args.Error(1)
}

func (m *mockImpl) ProcessInput(input exchange.Map) (exchange.Map, error) {
	args := m.Called(input)
	out, _ := args.Get(0).(exchange.Map)
	return out, args.Error(1)
}

// seededImpl records the seed it receives.
type seededImpl struct {
	mockImpl
	seed uint32
}

func (s *seededImpl) SetRandomSeed(seed uint32) { s.seed = seed }

func TestNew_NilImplementationPanics(t *testing.T) {
	assert.Panics(t, func() { smcplugin.New(nil) })
}

func TestPlugin_StartsUnconfigured(t *testing.T) {
	p := smcplugin.New(&mockImpl{})
	assert.Equal(t, smcplugin.Unconfigured, p.State())
	assert.Equal(t, "mock_plugin", p.Name())
}

func TestPlugin_ResetBeforeConfigurationFails(t *testing.T) {
	impl := &mockImpl{}
	p := smcplugin.New(impl)

	out, err := p.Reset()
	require.Error(t, err)
	assert.Nil(t, out)
	assert.True(t, smcplugin.IsLifecycleViolation(err))
	errutil.AssertErrorContext(t, err, "operation", "reset")
	assert.Equal(t, smcplugin.Unconfigured, p.State())
	impl.AssertNotCalled(t, "ProcessReset")
}

func TestPlugin_NextStepBeforeConfigurationFails(t *testing.T) {
	impl := &mockImpl{}
	p := smcplugin.New(impl)

	// Repeated calls fail the same way.
	for range 3 {
		out, err := p.NextStep(exchange.Map{"x": exchange.Int(1)})
		require.Error(t, err)
		assert.Nil(t, out)
		errutil.AssertErrorCode(t, err, smcplugin.CodeLifecycleViolation)
	}
	assert.Equal(t, smcplugin.Unconfigured, p.State())
	impl.AssertNotCalled(t, "ProcessInput", mock.Anything)
}

func TestPlugin_LoadParametersTransitions(t *testing.T) {
	impl := &mockImpl{}
	cfg := exchange.Map{"gain": exchange.Float(0.5)}
	impl.On("ProcessInitParameters", cfg).Return(nil).Once()

	p := smcplugin.New(impl)
	require.NoError(t, p.LoadParameters(cfg))
	assert.Equal(t, smcplugin.Configured, p.State())
	impl.AssertExpectations(t)
}

func TestPlugin_RejectedConfigurationStaysUnconfigured(t *testing.T) {
	impl := &mockImpl{}
	impl.On("ProcessInitParameters", mock.Anything).
		Return(oops.Code("BAD_GAIN").With("key", "gain").Errorf("gain out of range")).Once()

	p := smcplugin.New(impl)
	err := p.LoadParameters(exchange.Map{"gain": exchange.Float(7)})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, smcplugin.CodeConfiguration)
	errutil.AssertErrorContext(t, err, "cause_code", "BAD_GAIN")
	errutil.AssertErrorContext(t, err, "key", "gain")
	assert.Contains(t, err.Error(), "gain out of range")
	assert.Equal(t, smcplugin.Unconfigured, p.State())

	_, err = p.Reset()
	assert.True(t, smcplugin.IsLifecycleViolation(err))
}

func TestPlugin_InvalidConfigValueRejected(t *testing.T) {
	impl := &mockImpl{}
	p := smcplugin.New(impl)

	err := p.LoadParameters(exchange.Map{"broken": {}})
	assert.True(t, smcplugin.IsConfigurationError(err))
	impl.AssertNotCalled(t, "ProcessInitParameters", mock.Anything)
}

func TestPlugin_SecondLoadParametersRejected(t *testing.T) {
	impl := &mockImpl{}
	impl.On("ProcessInitParameters", mock.Anything).Return(nil).Once()

	p := smcplugin.New(impl)
	require.NoError(t, p.LoadParameters(exchange.New()))

	err := p.LoadParameters(exchange.Map{"x": exchange.Int(1)})
	errutil.AssertErrorCode(t, err, smcplugin.CodeAlreadyConfigured)
	assert.Equal(t, smcplugin.Configured, p.State())
	impl.AssertNumberOfCalls(t, "ProcessInitParameters", 1)
}

func TestPlugin_ResetIsIdempotent(t *testing.T) {
	impl := &mockImpl{}
	impl.On("ProcessInitParameters", mock.Anything).Return(nil)
	impl.On("ProcessReset").Return(exchange.Map{"v": exchange.Int(0)}, nil)

	p := smcplugin.New(impl)
	require.NoError(t, p.LoadParameters(exchange.New()))

	first, err := p.Reset()
	require.NoError(t, err)
	second, err := p.Reset()
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
}

func TestPlugin_OutputsAreCopies(t *testing.T) {
	shared := exchange.Map{"v": exchange.Int(1)}
	impl := &mockImpl{}
	impl.On("ProcessInitParameters", mock.Anything).Return(nil)
	impl.On("ProcessReset").Return(shared, nil)

	p := smcplugin.New(impl)
	require.NoError(t, p.LoadParameters(exchange.New()))
	out, err := p.Reset()
	require.NoError(t, err)

	out["v"] = exchange.Int(99)
	assert.Equal(t, exchange.Int(1), shared["v"])
}

func TestPlugin_InputIsCopied(t *testing.T) {
	impl := &mockImpl{}
	impl.On("ProcessInitParameters", mock.Anything).Return(nil)
	impl.On("ProcessInput", mock.Anything).
		Run(func(args mock.Arguments) {
			in := args.Get(0).(exchange.Map)
			in["mutated"] = exchange.Bool(true)
		}).
		Return(exchange.Map{"ok": exchange.Bool(true)}, nil)

	p := smcplugin.New(impl)
	require.NoError(t, p.LoadParameters(exchange.New()))

	input := exchange.Map{"x": exchange.Int(1)}
	_, err := p.NextStep(input)
	require.NoError(t, err)
	assert.False(t, input.Has("mutated"))
}

func TestPlugin_StepFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*mockImpl)
	}{
		{
			name: "hook error",
			setup: func(m *mockImpl) {
				m.On("ProcessInput", mock.Anything).Return(nil, errors.New("bad input"))
			},
		},
		{
			name: "nil outputs without error",
			setup: func(m *mockImpl) {
				m.On("ProcessInput", mock.Anything).Return(nil, nil)
			},
		},
		{
			name: "invalid output value",
			setup: func(m *mockImpl) {
				m.On("ProcessInput", mock.Anything).Return(exchange.Map{"v": {}}, nil)
			},
		},
		{
			name: "hook panics",
			setup: func(m *mockImpl) {
				m.On("ProcessInput", mock.Anything).Run(func(mock.Arguments) { panic("boom") })
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			impl := &mockImpl{}
			impl.On("ProcessInitParameters", mock.Anything).Return(nil)
			tt.setup(impl)

			p := smcplugin.New(impl)
			require.NoError(t, p.LoadParameters(exchange.New()))

			out, err := p.NextStep(exchange.Map{"x": exchange.Int(1)})
			require.Error(t, err)
			assert.Nil(t, out)
			assert.True(t, smcplugin.IsStepFailure(err), "got %v", err)
			errutil.AssertErrorContext(t, err, "operation", "next_step")
		})
	}
}

func TestPlugin_ConfigurationPanicIsConfigurationError(t *testing.T) {
	impl := &mockImpl{}
	impl.On("ProcessInitParameters", mock.Anything).Run(func(mock.Arguments) { panic(errors.New("kaboom")) })

	p := smcplugin.New(impl)
	err := p.LoadParameters(exchange.New())
	assert.True(t, smcplugin.IsConfigurationError(err))
	assert.Contains(t, err.Error(), "kaboom")
	assert.Equal(t, smcplugin.Unconfigured, p.State())
}

func TestPlugin_SetRandomSeed(t *testing.T) {
	s := &seededImpl{}
	p := smcplugin.New(s)
	p.SetRandomSeed(1234)
	assert.Equal(t, uint32(1234), s.seed)

	// Implementations without randomness ignore the seed.
	assert.NotPanics(t, func() { smcplugin.New(&mockImpl{}).SetRandomSeed(1) })
}

func TestRegister_CreatesIndependentInstances(t *testing.T) {
	factory := smcplugin.Register(func() *mockImpl {
		m := &mockImpl{}
		m.On("ProcessInitParameters", mock.Anything).Return(nil)
		return m
	})

	a, b := factory(), factory()
	require.NoError(t, a.LoadParameters(exchange.New()))
	assert.Equal(t, smcplugin.Configured, a.State())
	assert.Equal(t, smcplugin.Unconfigured, b.State())
}

func TestCodeOf(t *testing.T) {
	assert.Empty(t, smcplugin.CodeOf(nil))
	assert.Empty(t, smcplugin.CodeOf(errors.New("plain")))
	assert.Equal(t, "X", smcplugin.CodeOf(oops.Code("X").Errorf("coded")))
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "unconfigured", smcplugin.Unconfigured.String())
	assert.Equal(t, "configured", smcplugin.Configured.String())
	assert.Equal(t, "unknown", smcplugin.State(9).String())
}

// closingImpl records Close calls.
type closingImpl struct {
	mockImpl
	closed int
}

func (c *closingImpl) Close() error {
	c.closed++
	return nil
}

func TestPlugin_CloseForwardsToImplementation(t *testing.T) {
	impl := &closingImpl{}
	require.NoError(t, smcplugin.New(impl).Close())
	assert.Equal(t, 1, impl.closed)

	assert.NoError(t, smcplugin.New(&mockImpl{}).Close())
}
