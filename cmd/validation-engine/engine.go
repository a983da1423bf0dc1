// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pdiddy/validation-engine/internal/failure"
	"github.com/pdiddy/validation-engine/internal/gateway"
	"github.com/pdiddy/validation-engine/internal/mining"
	"github.com/pdiddy/validation-engine/internal/pipeline"
	"github.com/pdiddy/validation-engine/internal/session"
	"github.com/pdiddy/validation-engine/internal/trends"
	"github.com/pdiddy/validation-engine/pkg/types"
)

const currentFile = "current"

// engine bundles the controller, the session store and its manager for one
// command invocation.
type engine struct {
	cfg   types.EngineConfig
	store session.Store
	ctrl  *pipeline.Controller
	mgr   *session.Manager
}

// openEngine wires the adapters into a controller and opens the session
// store. Missing credentials leave the matching adapter unconfigured; the
// transitions that need it report the missing key when they run.
func openEngine(ctx context.Context, progress io.Writer) (*engine, error) {
	cfg := loadConfig(loadedSecrets)

	var gen pipeline.Generator
	backend, err := gateway.NewBackend(ctx, cfg.Generation, &http.Client{}, logger)
	switch {
	case err == nil:
		gen = gateway.New(backend, cfg.Generation.Timeout, logger)
	case failure.Is(err, failure.KindConfigMissing):
		logger.Debug("generation backend not configured", zap.Error(err))
	default:
		return nil, err
	}

	ctrl := pipeline.New(
		gen,
		trends.NewFetcher(cfg.Trends, logger),
		mining.NewClient(cfg.Search, logger),
		cfg.Pipeline,
		logger,
	)
	ctrl.SetProgress(progress)

	store, err := session.NewStore(ctx, cfg.Session)
	if err != nil {
		return nil, err
	}
	return &engine{
		cfg:   cfg,
		store: store,
		ctrl:  ctrl,
		mgr:   session.NewManager(store, ctrl, logger),
	}, nil
}

func (e *engine) Close() error {
	return e.store.Close()
}

// --- current session pointer ---

func currentPath(cfg types.EngineConfig) string {
	dir := cfg.Session.StateDir
	if dir == "" {
		dir = defaultStateDir
	}
	return filepath.Join(dir, currentFile)
}

func readCurrent(cfg types.EngineConfig) (string, error) {
	data, err := os.ReadFile(currentPath(cfg))
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading current session: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func writeCurrent(cfg types.EngineConfig, id string) error {
	path := currentPath(cfg)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	return os.WriteFile(path, []byte(id+"\n"), 0o644)
}

func clearCurrent(cfg types.EngineConfig) error {
	err := os.Remove(currentPath(cfg))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// resolveSession picks the session a command acts on: a positional argument,
// then --session, then the current pointer.
func resolveSession(cmd *cobra.Command, args []string, cfg types.EngineConfig) (string, error) {
	if len(args) > 0 && args[0] != "" {
		return args[0], nil
	}
	if id, _ := cmd.Flags().GetString("session"); id != "" {
		return id, nil
	}
	id, err := readCurrent(cfg)
	if err != nil {
		return "", err
	}
	if id == "" {
		return "", errors.New(`no current session: run "validation-engine session new" or pass --session`)
	}
	return id, nil
}
