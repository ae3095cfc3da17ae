// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/config"
)

// HandleConfig runs the config subcommands: show, path and init.
func HandleConfig(args Args, out io.Writer) error {
	path := args.ConfigPath
	if path == "" {
		p, err := config.ConfigPathTOML()
		if err != nil {
			return err
		}
		path = p
	}

	switch args.Subcommand {
	case "show":
		env, err := Setup(args)
		if err != nil {
			return err
		}
		defer env.Close()
		if args.JSON {
			return writeJSON(out, env.Config)
		}
		return toml.NewEncoder(out).Encode(env.Config)

	case "path":
		fmt.Fprintln(out, path)
		return nil

	case "init":
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file already exists: %s", path)
		}
		if err := config.SaveTOML(config.Default(), path); err != nil {
			return err
		}
		fmt.Fprintf(out, "%s %s\n", SuccessStyle.Render("Wrote"), path)
		return nil

	default:
		return fmt.Errorf("unknown config command: %s (show, path, init)", args.Subcommand)
	}
}
