package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	commands "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/Ratio1/people_grid_go/internal/config"
	"github.com/Ratio1/people_grid_go/internal/devseed"
	"github.com/Ratio1/people_grid_go/internal/logging"
	"github.com/Ratio1/people_grid_go/internal/sandbox"
	"github.com/Ratio1/people_grid_go/pkg/grid"
	"github.com/Ratio1/people_grid_go/pkg/grid/boltstore"
	"github.com/Ratio1/people_grid_go/pkg/grid/mock"
)

var (
	bold  = color.New(color.Bold).SprintFunc()
	green = color.New(color.FgGreen).SprintFunc()
	cyan  = color.New(color.FgCyan).SprintFunc()
)

func main() {
	cmd := &commands.Command{
		Name:  "grid-sandbox",
		Usage: "Local grid proxy for development and tests",
		Commands: []*commands.Command{
			{
				Name:  "serve",
				Usage: "Serve the grid proxy API",
				Flags: []commands.Flag{
					&commands.StringFlag{Name: "addr", Value: ":1408", Usage: "listen address"},
					&commands.StringFlag{Name: "seed", Usage: "JSON or YAML seed file"},
					&commands.StringFlag{Name: "data-dir", Usage: "persist maps with bbolt in this directory; in-memory when empty"},
					&commands.DurationFlag{Name: "latency", Usage: "artificial latency per request"},
					&commands.StringFlag{Name: "fail", Usage: "failure injection (rate=<float>,code=<httpStatus>)"},
					&commands.StringFlag{Name: "log-level", Value: "info", Usage: "zap log level"},
				},
				Action: serve,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

type seedableBackend interface {
	grid.Backend
	Seed([]devseed.Entry) error
}

func openBackend(dataDir string) (seedableBackend, error) {
	if dataDir == "" {
		return mock.New(), nil
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return boltstore.Open(filepath.Join(dataDir, "grid.db"))
}

func serve(ctx context.Context, cmd *commands.Command) error {
	logger, err := logging.New(cmd.String("log-level"), logging.FormatConsole)
	if err != nil {
		return err
	}
	defer logger.Sync()

	failCfg, err := sandbox.ParseFailConfig(cmd.String("fail"))
	if err != nil {
		return fmt.Errorf("parse fail flag: %w", err)
	}

	backend, err := openBackend(cmd.String("data-dir"))
	if err != nil {
		return err
	}
	defer backend.Close()

	if path := cmd.String("seed"); path != "" {
		entries, err := devseed.Load(path)
		if err != nil {
			return err
		}
		if err := backend.Seed(entries); err != nil {
			return fmt.Errorf("apply seed: %w", err)
		}
		logger.Info("seed applied", zap.String("path", path), zap.Int("entries", len(entries)))
	}

	addr := cmd.String("addr")
	server := &http.Server{
		Addr: addr,
		Handler: sandbox.New(backend, sandbox.Options{
			Latency: cmd.Duration("latency"),
			Fail:    failCfg,
			Logger:  logger,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	printExports(addr, backend)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func printExports(addr string, backend grid.Backend) {
	host := addr
	if strings.HasPrefix(host, ":") {
		host = "localhost" + host
	}
	fmt.Printf("%s listening on %s (%s)\n", bold("grid-sandbox"), green(addr), fmt.Sprint(backend))
	fmt.Println()
	fmt.Println(cyan(fmt.Sprintf("export %s=%s", config.EnvRuntimeMode, config.ModeHTTP)))
	fmt.Println(cyan(fmt.Sprintf("export %s=%s", config.EnvServerAddress, host)))
	fmt.Println()
}
