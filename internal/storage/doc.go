// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage persists assessment items for the development server.
//
// Items live in a single SQLite database (pure Go driver, no cgo). The
// store is safe for concurrent use; SQLite serializes writers, so the
// connection pool is capped at one connection.
//
// # Usage
//
//	store, err := storage.Open(path)
//	if err != nil { ... }
//	defer store.Close()
//
//	_ = store.Seed(ctx, storage.DefaultItems())
//	state, err := store.Patch(ctx, "PR.AA-01", patch, time.Now())
package storage
