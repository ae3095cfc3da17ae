// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/config"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/logger"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/server"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/storage"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/telemetry"
)

// shutdownTimeout bounds graceful shutdown of both listeners.
const shutdownTimeout = 10 * time.Second

type flags struct {
	configPath string
	addr       string
	dbPath     string
	failEvery  int
	failSet    bool
}

func main() {
	f, err := parseFlags(os.Args[1:])
	if errors.Is(err, errHelp) {
		printHelp()
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		printHelp()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, f); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var errHelp = errors.New("help requested")

func parseFlags(args []string) (flags, error) {
	var f flags
	for i := 0; i < len(args); i++ {
		arg := args[i]
		value := func() (string, error) {
			if i+1 >= len(args) {
				return "", fmt.Errorf("%s requires a value", arg)
			}
			i++
			return args[i], nil
		}

		var err error
		switch arg {
		case "--help", "-h":
			return f, errHelp
		case "--config", "-c":
			f.configPath, err = value()
		case "--addr":
			f.addr, err = value()
		case "--db":
			f.dbPath, err = value()
		case "--fail-every":
			var raw string
			if raw, err = value(); err == nil {
				f.failEvery, err = strconv.Atoi(raw)
				if err != nil || f.failEvery < 0 {
					err = fmt.Errorf("--fail-every must be a non-negative integer, got %q", raw)
				}
				f.failSet = true
			}
		default:
			err = fmt.Errorf("unknown argument %q", arg)
		}
		if err != nil {
			return f, err
		}
	}
	return f, nil
}

func loadConfig(f flags) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if f.configPath != "" {
		cfg, err = config.LoadFromPath(f.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if f.addr != "" {
		cfg.DevServer.Addr = f.addr
	}
	if f.dbPath != "" {
		cfg.DevServer.DBPath = f.dbPath
	}
	if f.failSet {
		cfg.DevServer.FailEvery = f.failEvery
	}
	if cfg.DevServer.DBPath == "" {
		cfg.DevServer.DBPath = config.DefaultDevServerDBPath()
	}
	return cfg, nil
}

func run(ctx context.Context, f flags) error {
	cfg, err := loadConfig(f)
	if err != nil {
		return err
	}
	log := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
		Output: os.Stderr,
	}).Component("devserver")

	if logger.ParseLevel(cfg.Logging.Level) != zerolog.DebugLevel {
		gin.SetMode(gin.ReleaseMode)
	}

	store, err := storage.Open(cfg.DevServer.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Seed(ctx, storage.DefaultItems()); err != nil {
		return fmt.Errorf("failed to seed items: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.NewServerMetrics(reg)

	srv := server.New(store, server.Options{
		TokenDelay: time.Duration(cfg.DevServer.TokenDelayMs) * time.Millisecond,
		FailEvery:  cfg.DevServer.FailEvery,
		Log:        log,
		Metrics:    metrics,
	})
	if err := srv.RefreshItemGauge(ctx); err != nil {
		log.Warn().Err(err).Msg("failed to count items")
	}

	servers := []*http.Server{{
		Addr:              cfg.DevServer.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		IdleTimeout:       120 * time.Second,
		// No WriteTimeout: answers are streamed.
	}}
	if cfg.DevServer.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
		servers = append(servers, &http.Server{
			Addr:              cfg.DevServer.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, hs := range servers {
		hs := hs
		g.Go(func() error {
			log.Info().Str("addr", hs.Addr).Msg("listening")
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("listen %s: %w", hs.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, hs := range servers {
			if err := hs.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	})

	log.Info().
		Str("db", cfg.DevServer.DBPath).
		Int("fail_every", cfg.DevServer.FailEvery).
		Msg("devserver started")
	return g.Wait()
}

func printHelp() {
	fmt.Print(`csf-devserver - local assessment service for csf-assist

Usage:
  csf-devserver [options]

Options:
  -c, --config PATH     Config file (default ~/.csf-assist/config.toml)
      --addr HOST:PORT  API listen address
      --db PATH         SQLite item database
      --fail-every N    Fail every Nth item mutation (0 disables)
  -h, --help            Show this help
`)
}
