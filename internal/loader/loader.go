// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 smcplug Contributors

// Package loader locates plugin artifacts, resolves their exported factory
// and hands back an owned plugin instance.
//
// A plugin named N in directory D lives at D/<artifact name of N>, where the
// artifact name is chosen by the Backend (lib<N>.so for shared objects).
// The artifact exports smcplugin.FactorySymbol; Load invokes it exactly
// once and wraps the instance and its module in a Handle.
package loader

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/smcverify/smcplug/pkg/errutil"
	"github.com/smcverify/smcplug/pkg/smcplugin"
)

// Loader loads plugins through one Backend. It keeps no state between
// calls and may be used from several goroutines.
type Loader struct {
	backend Backend
	logger  *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger used for load outcomes. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a loader for backend. Panics if backend is nil.
func New(backend Backend, opts ...Option) *Loader {
	if backend == nil {
		panic("loader: backend cannot be nil")
	}
	l := &Loader{backend: backend, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Backend returns the backend this loader opens artifacts with.
func (l *Loader) Backend() Backend { return l.backend }

// ArtifactPath returns where Load looks for the plugin name in directory.
func (l *Loader) ArtifactPath(directory, name string) string {
	return filepath.Join(directory, l.backend.ArtifactName(name))
}

// Load loads the plugin name from directory.
//
// When no artifact exists for name, Load returns (nil, nil): a missing
// plugin is an expected result, not an error. Every other failure is an
// error coded INVALID_NAME, OPEN_FAILURE, SYMBOL_RESOLUTION_FAILURE or
// FACTORY_FAILURE, and leaves nothing open.
func (l *Loader) Load(ctx context.Context, directory, name string) (*Handle, error) {
	start := time.Now()
	h, err := l.load(ctx, directory, name)

	outcome := OutcomeLoaded
	switch {
	case err != nil:
		outcome = outcomeOf(err)
	case h == nil:
		outcome = OutcomeNotFound
	}
	recordLoad(l.backend.Name(), outcome, time.Since(start))

	switch outcome {
	case OutcomeLoaded:
		l.logger.Info("plugin loaded",
			"plugin", name,
			"handle", h.ID(),
			"backend", h.Backend(),
			"path", h.Path())
	case OutcomeNotFound:
		l.logger.Debug("plugin not found",
			"plugin", name,
			"path", l.ArtifactPath(directory, name))
	default:
		errutil.LogError(l.logger, "plugin load failed", err)
	}
	return h, err
}

func (l *Loader) load(ctx context.Context, directory, name string) (*Handle, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}

	path := l.ArtifactPath(directory, name)
	errb := oops.In("loader").
		With("plugin", name).
		With("backend", l.backend.Name()).
		With("path", path)

	info, err := os.Stat(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, nil
	case err != nil:
		return nil, errb.Code(CodeOpenFailure).Wrap(err)
	case info.IsDir():
		return nil, errb.Code(CodeOpenFailure).Errorf("plugin artifact is a directory")
	}

	if err := ctx.Err(); err != nil {
		return nil, errb.Code(CodeOpenFailure).Wrap(err)
	}

	module, err := l.backend.Open(ctx, path)
	if err != nil {
		return nil, classify(errb, CodeOpenFailure, err)
	}

	sym, err := module.Lookup(smcplugin.FactorySymbol)
	if err != nil {
		l.closeModule(module, name)
		return nil, classify(errb.With("symbol", smcplugin.FactorySymbol), CodeSymbolResolution, err)
	}

	ctor, err := resolveFactory(sym)
	if err != nil {
		l.closeModule(module, name)
		return nil, classify(errb, CodeSymbolResolution, err)
	}

	instance, err := construct(ctor)
	if err != nil {
		l.closeModule(module, name)
		return nil, classify(errb, CodeFactoryFailure, err)
	}

	if got := instance.Name(); got != name {
		l.logger.Warn("plugin name does not match artifact name",
			"plugin", name,
			"reported", got,
			"path", path)
	}

	return newHandle(name, path, l.backend.Name(), instance, module), nil
}

func (l *Loader) closeModule(module Module, name string) {
	if err := module.Close(); err != nil {
		l.logger.Warn("failed to close plugin module", "plugin", name, "error", err)
	}
}

// ValidateName rejects names that are empty or would escape the plugin
// directory.
func ValidateName(name string) error {
	switch {
	case name == "":
		return oops.In("loader").
			Code(CodeInvalidName).
			Errorf("plugin name is empty")
	case name == "." || name == "..",
		strings.ContainsAny(name, `/\`),
		strings.ContainsRune(name, os.PathSeparator),
		strings.ContainsRune(name, 0):
		return oops.In("loader").
			Code(CodeInvalidName).
			With("plugin", name).
			Hint("plugin names are plain file name stems").
			Errorf("invalid plugin name %q", name)
	}
	return nil
}
