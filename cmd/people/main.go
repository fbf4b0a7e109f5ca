package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	versioncollector "github.com/prometheus/client_golang/prometheus/collectors/version"
	commands "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/Ratio1/people_grid_go/internal/config"
	"github.com/Ratio1/people_grid_go/internal/logging"
	"github.com/Ratio1/people_grid_go/internal/people"
	"github.com/Ratio1/people_grid_go/pkg/grid"
	"github.com/Ratio1/people_grid_go/pkg/gridenv"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cmd := &commands.Command{
		Name:  "people",
		Usage: "REST CRUD over the people grid map",
		Flags: []commands.Flag{
			&commands.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "optional YAML config file; environment variables take precedence",
			},
			&commands.StringFlag{
				Name:  "log-level",
				Usage: "overrides " + config.EnvLogLevel,
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

func run(ctx context.Context, cmd *commands.Command) error {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return err
	}
	if level := cmd.String("log-level"); level != "" {
		cfg.Log.Level = level
	}

	logger, err := logging.New(cfg.Log.Level, logging.Format(cfg.Log.Format))
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// the session must be up before the listener starts
	session, mode, err := gridenv.Connect(ctx, cfg.Grid, logger)
	if err != nil {
		logger.Error("grid unavailable", zap.Error(err))
		return err
	}
	defer session.Close()

	peopleMap, err := grid.GetMap[int, people.Person](session, people.MapName)
	if err != nil {
		return fmt.Errorf("open %s map: %w", people.MapName, err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		versioncollector.NewCollector("people"),
		people.NewGridCollector(session, logger),
	)

	server := &http.Server{
		Addr:              config.DefaultListenAddress,
		Handler:           people.NewServer(peopleMap, people.WithLogger(logger), people.WithRegistry(registry)),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()
	logger.Info("people service listening",
		zap.String("addr", server.Addr),
		zap.String("grid_mode", mode),
		zap.String("session", session.ID()))

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("graceful shutdown failed", zap.Error(err))
		return err
	}
	return nil
}
