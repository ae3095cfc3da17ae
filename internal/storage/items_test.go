// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mehmettunahanokumus/csf-compass-cloudflare-sub000/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "items.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestStore_SeedIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.Seed(ctx, DefaultItems()))
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultItems()), n)

	notes := "kept"
	_, err = store.Patch(ctx, "PR.AA-01", model.ItemPatch{Notes: &notes}, time.Now())
	require.NoError(t, err)

	require.NoError(t, store.Seed(ctx, DefaultItems()))
	item, err := store.Get(ctx, "PR.AA-01")
	require.NoError(t, err)
	assert.Equal(t, "kept", item.Notes)
}

func TestStore_ListOrdersByID(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.Seed(ctx, []model.AssessmentItem{{ID: "b"}, {ID: "a"}, {ID: "c"}}))

	items, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, "a", items[0].ID)
	assert.Equal(t, "c", items[2].ID)
	assert.Equal(t, model.StatusNotAssessed, items[0].Status)
}

func TestStore_PatchAppliesPresentFields(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	require.NoError(t, store.Seed(ctx, []model.AssessmentItem{{ID: "x", Notes: "before"}}))

	status := model.StatusPartial
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	state, err := store.Patch(ctx, "x", model.ItemPatch{Status: &status}, now)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPartial, state.Status)
	assert.Equal(t, "before", state.Notes)
	assert.True(t, state.UpdatedAt.Equal(now))

	item, err := store.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPartial, item.Status)
	assert.True(t, item.UpdatedAt.Equal(now))
}

func TestStore_UnknownItem(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, err := store.Get(ctx, "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	notes := "n"
	_, err = store.Patch(ctx, "missing", model.ItemPatch{Notes: &notes}, time.Now())
	assert.True(t, errors.Is(err, ErrNotFound))
}
