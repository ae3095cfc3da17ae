// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/api"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/config"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/core"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/logger"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/prefs"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/telemetry"
)

// Env holds the collaborators every command shares.
type Env struct {
	Config   *config.Config
	Log      *logger.Logger
	Client   *api.Client
	Registry *prometheus.Registry
	Metrics  *telemetry.Metrics
	Prefs    prefs.Store

	closers []io.Closer
}

// Setup loads the configuration named by args (or the default location)
// and wires the shared collaborators. The caller must Close the result.
func Setup(args Args) (*Env, error) {
	var (
		cfg *config.Config
		err error
	)
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if args.Mode != "" {
		cfg.Assistant.DefaultMode = args.Mode
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid --mode: %w", err)
		}
	}
	if args.Verbose {
		cfg.Logging.Level = "debug"
	}

	env := &Env{Config: cfg}

	// Logs go to a file when configured; stderr would corrupt the TUI.
	var out io.Writer = os.Stderr
	if cfg.Logging.File != "" {
		f, err := os.OpenFile(cfg.Logging.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		env.closers = append(env.closers, f)
		out = f
	}
	env.Log = logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
		Output: out,
	})

	client, err := api.NewClient(cfg.API.BaseURL)
	if err != nil {
		env.Close()
		return nil, err
	}
	env.Client = client.
		WithTimeout(cfg.Timeout()).
		WithMaxRetries(cfg.API.MaxRetries).
		WithRateLimit(cfg.API.RequestsPerSec, cfg.API.Burst).
		WithLogger(env.Log)

	env.Registry = prometheus.NewRegistry()
	env.Metrics = telemetry.NewMetrics(env.Registry)

	path := cfg.Prefs.Path
	if path == "" {
		path = config.DefaultPrefsPath()
	}
	env.Prefs = prefs.NewFileStore(path)
	return env, nil
}

// Deps returns the core dependencies backed by this environment.
func (e *Env) Deps(kb core.KnowledgeBase) core.Deps {
	return core.Deps{
		Config:  e.Config,
		Chat:    e.Client,
		Items:   e.Client,
		KB:      kb,
		Prefs:   e.Prefs,
		Log:     e.Log,
		Metrics: e.Metrics,
	}
}

// UseLogger replaces the logger of the environment and its client.
func (e *Env) UseLogger(log *logger.Logger) {
	e.Log = log
	e.Client.WithLogger(log)
}

// LineMode lowers stderr logging to warnings unless a log file or debug
// level was asked for, so log lines do not interleave with answers.
func (e *Env) LineMode() {
	if e.Config.Logging.File == "" && logger.ParseLevel(e.Config.Logging.Level) != zerolog.DebugLevel {
		e.UseLogger(logger.New(logger.Config{Level: "warn", Pretty: true, Output: os.Stderr}))
	}
}

// Close releases files opened by Setup.
func (e *Env) Close() {
	for _, c := range e.closers {
		_ = c.Close()
	}
	e.closers = nil
}
