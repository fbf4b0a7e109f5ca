// Package gridenv opens a grid session from the runtime settings. In http
// mode (and auto mode with an address) it dials the grid proxy; in mock mode
// it serves maps from process memory, optionally pre-seeded from a file.
package gridenv

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Ratio1/people_grid_go/internal/config"
	"github.com/Ratio1/people_grid_go/internal/devseed"
	"github.com/Ratio1/people_grid_go/pkg/grid"
	"github.com/Ratio1/people_grid_go/pkg/grid/mock"
)

// Connect resolves the runtime mode and returns the session together with
// the mode actually used ("http" or "mock").
func Connect(ctx context.Context, cfg config.Grid, logger *zap.Logger) (*grid.Session, string, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	address := strings.TrimSpace(cfg.Address)

	switch mode {
	case "", config.ModeAuto:
		if address != "" {
			return dial(ctx, address, cfg, logger)
		}
		return connectMock(ctx, cfg, logger)
	case config.ModeHTTP:
		if address == "" {
			return nil, "", fmt.Errorf("gridenv: http mode requires %s", config.EnvServerAddress)
		}
		return dial(ctx, address, cfg, logger)
	case config.ModeMock:
		return connectMock(ctx, cfg, logger)
	default:
		return nil, "", fmt.Errorf("gridenv: unsupported %s value %q", config.EnvRuntimeMode, cfg.Mode)
	}
}

func sessionOptions(cfg config.Grid, logger *zap.Logger) []grid.Option {
	return []grid.Option{
		grid.WithLogger(logger),
		grid.WithReadyTimeout(cfg.ReadyTimeout()),
	}
}

func dial(ctx context.Context, address string, cfg config.Grid, logger *zap.Logger) (*grid.Session, string, error) {
	logger.Info("connecting to grid", zap.String("address", address), zap.Duration("ready_timeout", cfg.ReadyTimeout()))
	session, err := grid.Dial(ctx, address, sessionOptions(cfg, logger)...)
	if err != nil {
		return nil, "", fmt.Errorf("gridenv: connect %s: %w", address, err)
	}
	return session, config.ModeHTTP, nil
}

func connectMock(ctx context.Context, cfg config.Grid, logger *zap.Logger) (*grid.Session, string, error) {
	backend := mock.New()
	if path := strings.TrimSpace(cfg.MockSeed); path != "" {
		entries, err := devseed.Load(path)
		if err != nil {
			return nil, "", fmt.Errorf("gridenv: load mock seed: %w", err)
		}
		if err := backend.Seed(entries); err != nil {
			return nil, "", fmt.Errorf("gridenv: apply mock seed: %w", err)
		}
		logger.Info("mock grid seeded", zap.String("path", path), zap.Int("entries", len(entries)))
	}
	session, err := grid.Connect(ctx, backend, sessionOptions(cfg, logger)...)
	if err != nil {
		return nil, "", fmt.Errorf("gridenv: connect mock: %w", err)
	}
	return session, config.ModeMock, nil
}
