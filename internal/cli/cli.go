// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command is the CLI command to execute.
type Command int

const (
	CmdTUI Command = iota
	CmdAsk
	CmdChat
	CmdItem
	CmdConfig
	CmdVersion
	CmdHelp
	CmdUnknown
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath string
	Page       string
	Mode       string
	Verbose    bool
	JSON       bool

	// Command-specific
	Subcommand string
	Query      string
	ItemID     string
	Value      string

	// Name is the command word as typed, kept for error messages.
	Name string
}

const usageText = `csf-assist - assessment assistant for the terminal

Usage:
  csf-assist                          Open the assistant panel (default)
  csf-assist ask "question"           Ask one question and stream the answer
  csf-assist chat                     Line-mode conversation
  csf-assist item list                List assessment items
  csf-assist item get <id>            Show one item
  csf-assist item status <id> <status>
                                      Change an item status
  csf-assist item notes <id> <text>   Change item notes
  csf-assist config [show|path|init]  Configuration
  csf-assist version                  Version information

Global flags:
  --config <path>    Configuration file (TOML or JSON)
  --page <name>      Page context sent with questions
  --mode <mode>      quick or assisted
  --json             Machine-readable output where supported
  --verbose, -v      Debug logging

Statuses: compliant, partial, non_compliant, not_applicable
          (not_assessed when mutation.allow_not_assessed is set)

Version: %s
`

// PrintUsage prints the usage text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("csf-assist version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
}

// Parse turns argv (without the program name) into a command and its args.
func Parse(argv []string) (Command, Args) {
	p := NewArgParser(argv, "json", "verbose", "v", "help", "h", "version")
	args := Args{
		ConfigPath: p.Flag("config", "c"),
		Page:       p.Flag("page"),
		Mode:       p.Flag("mode", "m"),
		Verbose:    p.BoolFlag("verbose", "v"),
		JSON:       p.BoolFlag("json"),
	}
	if p.BoolFlag("help", "h") {
		return CmdHelp, args
	}
	if p.BoolFlag("version") {
		return CmdVersion, args
	}

	args.Name = strings.ToLower(p.Subcommand())
	switch args.Name {
	case "", "tui":
		return CmdTUI, args

	case "ask":
		args.Query = p.Rest(1)
		return CmdAsk, args

	case "chat":
		return CmdChat, args

	case "item", "items":
		args.Subcommand = strings.ToLower(p.Positional(1))
		args.ItemID = p.Positional(2)
		args.Value = p.Rest(3)
		return CmdItem, args

	case "config":
		args.Subcommand = strings.ToLower(p.Positional(1))
		if args.Subcommand == "" {
			args.Subcommand = "show"
		}
		return CmdConfig, args

	case "version":
		return CmdVersion, args

	case "help":
		return CmdHelp, args
	}
	return CmdUnknown, args
}
