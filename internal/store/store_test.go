package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kcalhq/plansync/internal/types"
)

func testPlan(userID string) *types.Plan {
	return &types.Plan{
		ID:        "plan-1",
		UserID:    userID,
		StartDate: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		Status:    types.PlanActive,
		Targets: types.Targets{
			BMR:           1550,
			TDEE:          2100,
			CalorieTarget: 1850,
			ProteinTarget: 140,
			WaterTarget:   2625,
			WeeklyRate:    -0.5,
		},
		WhyItWorks: json.RawMessage(`{"summary":"deficit"}`),
	}
}

// Both backends must satisfy the same contract, so the suite runs twice.
func TestStoreContract(t *testing.T) {
	backends := []struct {
		name string
		open func(t *testing.T) Store
	}{
		{
			name: "file",
			open: func(t *testing.T) Store {
				s, err := NewFileStore(t.TempDir())
				require.NoError(t, err)
				return s
			},
		},
		{
			name: "sqlite",
			open: func(t *testing.T) Store {
				s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "plans.db"))
				require.NoError(t, err)
				return s
			},
		},
	}

	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("load missing returns ErrNotFound", func(t *testing.T) {
				s := backend.open(t)
				defer s.Close()
				_, err := s.Load(ctx, "nobody")
				assert.ErrorIs(t, err, ErrNotFound)
			})

			t.Run("save then load round-trips", func(t *testing.T) {
				s := backend.open(t)
				defer s.Close()

				captured := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
				rec := &Record{UserID: "user-7", Plan: testPlan("user-7"), CapturedAt: captured}
				require.NoError(t, s.Save(ctx, rec))

				got, err := s.Load(ctx, "user-7")
				require.NoError(t, err)
				assert.Equal(t, "user-7", got.UserID)
				assert.True(t, got.CapturedAt.Equal(captured))
				assert.Equal(t, rec.Plan.Targets, got.Plan.Targets)
				assert.JSONEq(t, string(rec.Plan.WhyItWorks), string(got.Plan.WhyItWorks))
			})

			t.Run("save overwrites previous snapshot", func(t *testing.T) {
				s := backend.open(t)
				defer s.Close()

				first := &Record{UserID: "u", Plan: testPlan("u"), CapturedAt: time.Now().UTC()}
				require.NoError(t, s.Save(ctx, first))

				updated := testPlan("u")
				updated.Targets.CalorieTarget = 2000
				require.NoError(t, s.Save(ctx, &Record{UserID: "u", Plan: updated, CapturedAt: time.Now().UTC()}))

				got, err := s.Load(ctx, "u")
				require.NoError(t, err)
				assert.Equal(t, 2000.0, got.Plan.Targets.CalorieTarget)
			})

			t.Run("delete removes the snapshot", func(t *testing.T) {
				s := backend.open(t)
				defer s.Close()

				require.NoError(t, s.Save(ctx, &Record{UserID: "u", Plan: testPlan("u"), CapturedAt: time.Now().UTC()}))
				require.NoError(t, s.Delete(ctx, "u"))
				_, err := s.Load(ctx, "u")
				assert.ErrorIs(t, err, ErrNotFound)

				// Deleting again is not an error.
				assert.NoError(t, s.Delete(ctx, "u"))
			})

			t.Run("invalid record refused", func(t *testing.T) {
				s := backend.open(t)
				defer s.Close()

				bad := testPlan("u")
				bad.Targets.BMR = 0
				err := s.Save(ctx, &Record{UserID: "u", Plan: bad, CapturedAt: time.Now().UTC()})
				assert.ErrorContains(t, err, "refusing to persist")
			})

			t.Run("invalidation mark round-trips", func(t *testing.T) {
				s := backend.open(t)
				defer s.Close()

				captured := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
				rec := &Record{UserID: "u", Plan: testPlan("u"), CapturedAt: captured}
				require.NoError(t, s.Save(ctx, rec))

				got, err := s.Load(ctx, "u")
				require.NoError(t, err)
				assert.False(t, got.Invalidated)

				got.Invalidated = true
				require.NoError(t, s.Save(ctx, got))

				again, err := s.Load(ctx, "u")
				require.NoError(t, err)
				assert.True(t, again.Invalidated)
				assert.True(t, again.CapturedAt.Equal(captured))
			})

			t.Run("records are per user", func(t *testing.T) {
				s := backend.open(t)
				defer s.Close()

				require.NoError(t, s.Save(ctx, &Record{UserID: "alice", Plan: testPlan("alice"), CapturedAt: time.Now().UTC()}))
				require.NoError(t, s.Save(ctx, &Record{UserID: "bob", Plan: testPlan("bob"), CapturedAt: time.Now().UTC()}))

				got, err := s.Load(ctx, "alice")
				require.NoError(t, err)
				assert.Equal(t, "alice", got.Plan.UserID)
			})
		})
	}
}

func TestFileStoreForwardCompat(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, &Record{UserID: "u", Plan: testPlan("u"), CapturedAt: time.Now().UTC()}))

	// Simulate a snapshot written by a newer build with extra fields.
	path := filepath.Join(dir, "u.json")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(raw, &m))
	m["fieldFromTheFuture"] = "ignored"
	raw, err = json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0644))

	got, err := s.Load(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 1850.0, got.Plan.Targets.CalorieTarget)
}

func TestFileStoreEscapesUserID(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	evil := "../escape"
	require.NoError(t, s.Save(ctx, &Record{UserID: evil, Plan: testPlan(evil), CapturedAt: time.Now().UTC()}))

	// The snapshot must land inside the store directory.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got, err := s.Load(ctx, evil)
	require.NoError(t, err)
	assert.Equal(t, evil, got.UserID)
}

func TestFileStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		require.NoError(t, s.Save(ctx, &Record{UserID: "u", Plan: testPlan("u"), CapturedAt: time.Now().UTC()}))
	}

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "u.json", entries[0].Name())
}

func TestFileStoreCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "u.json"), []byte("{not json"), 0644))
	_, err = s.Load(context.Background(), "u")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
