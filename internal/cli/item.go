// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/core"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/util"
)

// ErrNotSaved is returned when an item edit was rolled back.
var ErrNotSaved = errors.New("the change was not saved")

// HandleItem runs the item subcommands: list, get, status and notes.
func HandleItem(ctx context.Context, args Args, out io.Writer) error {
	env, err := Setup(args)
	if err != nil {
		return err
	}
	defer env.Close()
	env.LineMode()

	switch args.Subcommand {
	case "", "list", "ls":
		items, err := env.Client.ListItems(ctx)
		if err != nil {
			return err
		}
		if args.JSON {
			return writeJSON(out, items)
		}
		printItemTable(out, items)
		return nil

	case "get", "show":
		if args.ItemID == "" {
			return fmt.Errorf("usage: csf-assist item get <id>")
		}
		item, err := env.Client.GetItem(ctx, args.ItemID)
		if err != nil {
			return err
		}
		if args.JSON {
			return writeJSON(out, item)
		}
		printItem(out, *item)
		return nil

	case "status", "notes":
		if args.ItemID == "" {
			return fmt.Errorf("usage: csf-assist item %s <id> <value>", args.Subcommand)
		}
		item, err := env.Client.GetItem(ctx, args.ItemID)
		if err != nil {
			return err
		}

		rt := core.NewRuntime(ctx, core.New(ctx, env.Deps(nil)))
		rt.Start()
		defer rt.Stop()
		watcher := NewWatcher(rt)
		rt.LoadItems([]*model.AssessmentItem{item})

		if args.Subcommand == "status" {
			status, err := env.Config.Statuses().Parse(args.Value)
			if err != nil {
				return err
			}
			err = rt.SetItemStatus(item.ID, status)
			if err != nil {
				return err
			}
		} else if err := rt.SetItemNotes(item.ID, args.Value); err != nil {
			return err
		}

		snap, err := watcher.WaitSettled(ctx)
		if err != nil {
			return err
		}
		saved, _ := snap.Item(item.ID)
		if args.JSON {
			if err := writeJSON(out, saved); err != nil {
				return err
			}
		} else {
			printItem(out, saved)
		}
		for _, n := range snap.Notices {
			fmt.Fprintln(out, WarningStyle.Render(n.Text))
		}
		if len(snap.Notices) > 0 {
			return ErrNotSaved
		}
		return nil

	default:
		return fmt.Errorf("unknown item command: %s (list, get, status, notes)", args.Subcommand)
	}
}

// WaitSettled blocks until no item edit is pending or in flight.
func (w *Watcher) WaitSettled(ctx context.Context) (core.Snapshot, error) {
	for {
		snap, err := w.rt.Snapshot()
		if err != nil {
			return snap, err
		}
		if snap.Settled {
			return snap, nil
		}
		select {
		case <-w.changed:
		case <-ctx.Done():
			return snap, ctx.Err()
		case <-w.rt.Done():
			return snap, core.ErrStopped
		}
	}
}

// =============================================================================
// OUTPUT
// =============================================================================

func printItemTable(out io.Writer, items []*model.AssessmentItem) {
	if len(items) == 0 {
		fmt.Fprintln(out, DimStyle.Render("No assessment items."))
		return
	}
	idWidth := len("ID")
	for _, item := range items {
		idWidth = max(idWidth, len(item.ID))
	}
	fmt.Fprintf(out, "%s  %s  %s\n",
		LabelStyle.Render(util.PadRight("ID", idWidth)),
		LabelStyle.Render(util.PadRight("STATUS", 16)),
		LabelStyle.Render("NOTES"))
	for _, item := range items {
		// Pad before styling; escape codes have no width.
		status := util.PadRight(item.Status.DisplayName(), 16)
		fmt.Fprintf(out, "%s  %s  %s\n",
			util.PadRight(item.ID, idWidth),
			statusStyle(item.Status).Render(status),
			DimStyle.Render(util.Preview(item.Notes, 48)))
	}
}

func printItem(out io.Writer, item model.AssessmentItem) {
	fmt.Fprintf(out, "%s %s\n", RenderLabel("Item:"), ValueStyle.Render(item.ID))
	fmt.Fprintf(out, "%s %s\n", RenderLabel("Status:"), RenderStatus(item.Status))
	if item.Notes != "" {
		fmt.Fprintf(out, "%s\n%s\n", RenderLabel("Notes:"), WrapText(item.Notes, GetTerminalWidth()))
	}
	if !item.UpdatedAt.IsZero() {
		fmt.Fprintf(out, "%s %s\n", RenderLabel("Updated:"), DimStyle.Render(item.UpdatedAt.Format("2006-01-02 15:04")))
	}
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
