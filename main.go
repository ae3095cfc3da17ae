// csf-assist - the assessment assistant for the terminal.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/cli"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/config"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/core"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/logger"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/ui/panel"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse(os.Args[1:])

	// The chat loop handles Ctrl+C itself: it cancels the running answer.
	signals := []os.Signal{os.Interrupt, syscall.SIGTERM}
	if cmd == cli.CmdChat {
		signals = []os.Signal{syscall.SIGTERM}
	}
	ctx, stop := signal.NotifyContext(context.Background(), signals...)
	defer stop()

	var err error
	switch cmd {
	case cli.CmdTUI:
		err = runTUI(ctx, args)
	case cli.CmdAsk:
		err = cli.HandleAsk(ctx, args, os.Stdout)
	case cli.CmdChat:
		err = cli.HandleChat(ctx, args, os.Stdout)
	case cli.CmdItem:
		err = cli.HandleItem(ctx, args, os.Stdout)
	case cli.CmdConfig:
		err = cli.HandleConfig(args, os.Stdout)
	case cli.CmdVersion:
		cli.PrintVersion()
	case cli.CmdHelp:
		cli.PrintUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args.Name)
		cli.PrintUsage()
		os.Exit(2)
	}

	if err != nil {
		stop()
		if errors.Is(err, context.Canceled) {
			os.Exit(130)
		}
		if !errors.Is(err, cli.ErrAnswerFailed) && !errors.Is(err, cli.ErrNotSaved) {
			fmt.Fprintf(os.Stderr, "%s %v\n", cli.ErrorStyle.Render("Error:"), err)
		}
		if config.IsValidationError(err) {
			fmt.Fprintln(os.Stderr, cli.DimStyle.Render("Fix the file shown by `csf-assist config path`."))
		}
		os.Exit(1)
	}
}

// runTUI opens the full-screen panel.
func runTUI(ctx context.Context, args cli.Args) error {
	if !cli.IsTTY() || !cli.IsStdoutTTY() {
		return errors.New("the panel needs a terminal; use `csf-assist ask` or `csf-assist chat` instead")
	}

	env, err := cli.Setup(args)
	if err != nil {
		return err
	}
	defer env.Close()

	// Log lines on stderr would tear the alternate screen.
	if env.Config.Logging.File == "" {
		env.UseLogger(logger.Nop())
	}

	c := core.New(ctx, env.Deps(nil))
	p := panel.New(ctx, c, env.Client, panel.Options{Page: args.Page})

	program := tea.NewProgram(p, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("panel exited: %w", err)
	}
	return nil
}
