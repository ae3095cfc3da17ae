// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
)

// ErrNotFound is returned for an unknown item id.
var ErrNotFound = errors.New("item not found")

// =============================================================================
// STORE
// =============================================================================

// Store is a SQLite-backed item table.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path. The special path
// ":memory:" keeps everything in memory.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer at a time; an in-memory database also dies with its
	// last connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return err
	}
	_, err := s.db.Exec(InitMetadata)
	return err
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// =============================================================================
// QUERIES
// =============================================================================

// Seed inserts items that do not exist yet. Existing rows are untouched.
func (s *Store) Seed(ctx context.Context, items []model.AssessmentItem) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, item := range items {
		status := item.Status
		if status == "" {
			status = model.StatusNotAssessed
		}
		updated := item.UpdatedAt
		if updated.IsZero() {
			updated = time.Now()
		}
		_, err := tx.ExecContext(ctx, `
			INSERT OR IGNORE INTO items (id, status, notes, updated_at)
			VALUES (?, ?, ?, ?)
		`, item.ID, string(status), item.Notes, updated.UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to seed %s: %w", item.ID, err)
		}
	}
	return tx.Commit()
}

// List returns every item ordered by id.
func (s *Store) List(ctx context.Context) ([]*model.AssessmentItem, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, status, notes, updated_at FROM items ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	defer rows.Close()

	items := []*model.AssessmentItem{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// Get returns one item or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*model.AssessmentItem, error) {
	row := s.db.QueryRowContext(ctx, "SELECT id, status, notes, updated_at FROM items WHERE id = ?", id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return item, err
}

// Patch applies the fields present in patch and stamps the row with now.
// The resulting canonical state is returned.
func (s *Store) Patch(ctx context.Context, id string, patch model.ItemPatch, now time.Time) (model.ItemState, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.ItemState{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := scanItem(tx.QueryRowContext(ctx, "SELECT id, status, notes, updated_at FROM items WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.ItemState{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return model.ItemState{}, err
	}

	if patch.Status != nil {
		item.Status = *patch.Status
	}
	if patch.Notes != nil {
		item.Notes = *patch.Notes
	}
	item.UpdatedAt = time.UnixMilli(now.UnixMilli()).UTC()

	_, err = tx.ExecContext(ctx, "UPDATE items SET status = ?, notes = ?, updated_at = ? WHERE id = ?",
		string(item.Status), item.Notes, item.UpdatedAt.UnixMilli(), id)
	if err != nil {
		return model.ItemState{}, fmt.Errorf("failed to update %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return model.ItemState{}, fmt.Errorf("failed to commit: %w", err)
	}
	return model.ItemState{Status: item.Status, Notes: item.Notes, UpdatedAt: item.UpdatedAt}, nil
}

// Count returns the number of stored items.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM items").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (*model.AssessmentItem, error) {
	var (
		item    model.AssessmentItem
		status  string
		updated int64
	)
	if err := row.Scan(&item.ID, &status, &item.Notes, &updated); err != nil {
		return nil, err
	}
	item.Status = model.Status(status)
	item.UpdatedAt = time.UnixMilli(updated).UTC()
	return &item, nil
}

// =============================================================================
// SEED DATA
// =============================================================================

// DefaultItems returns a small slice of CSF 2.0 subcategories, one or two
// per function, in the not-assessed state.
func DefaultItems() []model.AssessmentItem {
	ids := []string{
		"GV.OC-01", "GV.RM-01",
		"ID.AM-01", "ID.RA-01",
		"PR.AA-01", "PR.DS-01",
		"DE.CM-01",
		"RS.MA-01",
		"RC.RP-01",
	}
	items := make([]model.AssessmentItem, len(ids))
	for i, id := range ids {
		items[i] = model.AssessmentItem{ID: id, Status: model.StatusNotAssessed}
	}
	return items
}
