// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/config"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/core"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
)

// =============================================================================
// LINE INPUT
// =============================================================================

// LineReader provides line editing and persistent input history.
type LineReader struct {
	line        *liner.State
	historyFile string
}

// NewLineReader opens the terminal for line editing and loads the history
// kept in the configuration directory.
func NewLineReader() *LineReader {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	r := &LineReader{line: line, historyFile: filepath.Join(dir, "chat_history")}
	if f, err := os.Open(r.historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return r
}

// ReadLine prompts for one line. Non-blank input is added to the history.
func (r *LineReader) ReadLine(prompt string) (string, error) {
	input, err := r.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		r.line.AppendHistory(input)
	}
	return input, nil
}

// Close saves the history with owner-only permissions and restores the
// terminal.
func (r *LineReader) Close() {
	if err := os.MkdirAll(filepath.Dir(r.historyFile), 0700); err == nil {
		if f, err := os.OpenFile(r.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600); err == nil {
			_, _ = r.line.WriteHistory(f)
			f.Close()
		}
	}
	r.line.Close()
}

// =============================================================================
// REPL
// =============================================================================

// chatSession is the state of the interactive loop.
type chatSession struct {
	rt      *core.Runtime
	watcher *Watcher
	mode    model.Mode
	out     io.Writer
}

// HandleChat runs the interactive assistant until /quit, Ctrl+C at the
// prompt or end of input.
func HandleChat(ctx context.Context, args Args, out io.Writer) error {
	env, err := Setup(args)
	if err != nil {
		return err
	}
	defer env.Close()
	env.LineMode()

	rt := core.NewRuntime(ctx, core.New(ctx, env.Deps(nil)))
	rt.Start()
	defer rt.Stop()

	s := &chatSession{rt: rt, watcher: NewWatcher(rt), out: out}
	if args.Page != "" {
		rt.Navigate(args.Page)
	}
	rt.OpenPanel()
	snap, err := rt.Snapshot()
	if err != nil {
		return err
	}
	s.mode = snap.Visible
	s.printWelcome(snap)

	input := NewLineReader()
	defer input.Close()

	for {
		line, err := input.ReadLine(PromptStyle.Render(fmt.Sprintf("%s> ", s.mode)))
		if err != nil {
			// Ctrl+C at the prompt, Ctrl+D or a closed terminal.
			fmt.Fprintln(out)
			return nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			cont, err := s.command(line)
			if err != nil {
				fmt.Fprintf(out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
			if !cont {
				return nil
			}
			continue
		}
		if strings.EqualFold(line, "exit") || strings.EqualFold(line, "quit") {
			return nil
		}
		if err := s.ask(ctx, line); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if !errors.Is(err, ErrAnswerFailed) && !errors.Is(err, context.Canceled) {
				fmt.Fprintf(out, "%s %v\n", ErrorStyle.Render("[Error]"), err)
			}
		}
	}
}

// ask streams one answer. Ctrl+C while it streams cancels the answer but
// keeps the session.
func (s *chatSession) ask(ctx context.Context, text string) error {
	askCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()
	_, err := s.watcher.Converse(askCtx, s.mode, text, s.out)
	if errors.Is(err, context.Canceled) && ctx.Err() == nil {
		fmt.Fprintln(s.out, DimStyle.Render("[cancelled]"))
	}
	return err
}

// command runs a slash command. It returns false when the loop should end.
func (s *chatSession) command(line string) (bool, error) {
	parts := strings.Fields(line)
	switch strings.ToLower(parts[0]) {
	case "/help", "/h", "/?", "/":
		printChatHelp(s.out)
	case "/quit", "/q", "/exit":
		return false, nil
	case "/quick":
		return true, s.switchMode(model.ModeQuick)
	case "/assisted", "/ai":
		return true, s.switchMode(model.ModeAssisted)
	case "/cancel":
		s.rt.CancelActiveStream()
	case "/page", "/p":
		if len(parts) < 2 {
			snap, err := s.rt.Snapshot()
			if err != nil {
				return true, err
			}
			fmt.Fprintf(s.out, "%s %s\n", RenderLabel("Page:"), ValueStyle.Render(pageName(snap.Page)))
			return true, nil
		}
		s.rt.Navigate(parts[1])
		s.rt.OpenPanel()
		snap, err := s.rt.Snapshot()
		if err != nil {
			return true, err
		}
		printMessages(s.out, snap.Conversation(s.mode).Messages)
	default:
		return true, fmt.Errorf("unknown command: %s (type /help for commands)", parts[0])
	}
	return true, nil
}

// switchMode shows mode and prints its greeting when one was just seeded.
func (s *chatSession) switchMode(mode model.Mode) error {
	before, err := s.rt.Snapshot()
	if err != nil {
		return err
	}
	seen := len(before.Conversation(mode).Messages)
	if err := s.rt.ShowMode(mode); err != nil {
		return err
	}
	s.mode = mode
	after, err := s.rt.Snapshot()
	if err != nil {
		return err
	}
	conv := after.Conversation(mode)
	if len(conv.Messages) > seen {
		printMessages(s.out, conv.Messages[seen:])
	}
	return nil
}

// =============================================================================
// OUTPUT
// =============================================================================

func (s *chatSession) printWelcome(snap core.Snapshot) {
	width := GetTerminalWidth()
	fmt.Fprintln(s.out, TitleStyle.Render("CSF Assistant"))
	fmt.Fprintf(s.out, "%s %s   %s %s\n",
		RenderLabel("Page:"), ValueStyle.Render(pageName(snap.Page)),
		RenderLabel("Mode:"), ValueStyle.Render(string(snap.Visible)))
	fmt.Fprintln(s.out, DimStyle.Render("Type /help for commands, /quit to exit."))
	fmt.Fprintln(s.out, RenderSeparator(width))
	printMessages(s.out, snap.Conversation(snap.Visible).Messages)
}

func printMessages(out io.Writer, msgs []model.Message) {
	width := GetTerminalWidth()
	for _, m := range msgs {
		prefix := PromptStyle.Render(m.Role.DisplayName() + ":")
		fmt.Fprintf(out, "%s %s\n", prefix, WrapText(m.Content, width-len(m.Role.DisplayName())-2))
		for _, a := range m.Actions {
			fmt.Fprintln(out, DimStyle.Render("  → "+a.Label))
		}
	}
}

func printChatHelp(out io.Writer) {
	cmds := []struct{ name, desc string }{
		{"/quick", "Switch to quick answers"},
		{"/assisted, /ai", "Switch to the streaming assistant"},
		{"/page <name>", "Change the page context"},
		{"/cancel", "Cancel the running answer"},
		{"/quit, /q", "Exit"},
	}
	for _, c := range cmds {
		fmt.Fprintf(out, "  %-18s %s\n", PromptStyle.Render(c.name), c.desc)
	}
}

func pageName(page string) string {
	if page == "" {
		return "(none)"
	}
	return page
}
