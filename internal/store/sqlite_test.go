package store

import (
	"context"
	"math/rand/v2"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoquip/internal/game"
)

func newTestStore(t *testing.T) Repository {
	t.Helper()
	repo, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return repo
}

func testSession(playerID, id string, now time.Time) *game.Session {
	rng := rand.New(rand.NewPCG(1, 1))
	return game.New(id, playerID, "The only way out is through.", "Robert Frost", 3, rng, now)
}

func TestPlayerRoundTrip(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	got, err := repo.GetPlayer(ctx, "anon_missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	p := &game.Player{PlayerID: "anon_1", Username: "anon-1", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.UpsertPlayer(ctx, p))

	got, err = repo.GetPlayer(ctx, "anon_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "anon-1", got.Username)
	assert.Equal(t, now.Unix(), got.CreatedAt.Unix())
}

func TestSessionRoundTrip(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	s := testSession("anon_1", "game-1", now)
	s.SelectLetter(s.Ciphertext[0], now)
	s.Guess('X', now) // most likely wrong; either way state must round-trip
	require.NoError(t, repo.SaveSession(ctx, s))

	got, err := repo.GetSession(ctx, "anon_1", "game-1")
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.Equal(t, s.Quote, got.Quote)
	assert.Equal(t, s.Author, got.Author)
	assert.Equal(t, s.Ciphertext, got.Ciphertext)
	assert.Equal(t, s.Correct, got.Correct)
	assert.Equal(t, s.Guessed, got.Guessed)
	assert.Equal(t, s.Incorrect, got.Incorrect)
	assert.Equal(t, s.Selected, got.Selected)
	assert.Equal(t, s.Mistakes, got.Mistakes)
	assert.Equal(t, s.Status, got.Status)
	assert.Equal(t, s.StartedAt.Unix(), got.StartedAt.Unix())
}

func TestSaveSessionUpserts(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	s := testSession("anon_1", "game-1", now)
	require.NoError(t, repo.SaveSession(ctx, s))

	s.Mistakes = 2
	require.NoError(t, repo.SaveSession(ctx, s))

	got, err := repo.GetSession(ctx, "anon_1", "game-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 2, got.Mistakes)
}

func TestGetDailySession(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	s := testSession("anon_1", "daily-20260823", now)
	s.IsDaily = true
	s.DayKey = "2026-08-23"
	require.NoError(t, repo.SaveSession(ctx, s))

	got, err := repo.GetDailySession(ctx, "anon_1", "2026-08-23")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "daily-20260823", got.ID)
	assert.True(t, got.IsDaily)

	missing, err := repo.GetDailySession(ctx, "anon_1", "2026-08-24")
	require.NoError(t, err)
	assert.Nil(t, missing)

	otherPlayer, err := repo.GetDailySession(ctx, "anon_2", "2026-08-23")
	require.NoError(t, err)
	assert.Nil(t, otherPlayer)
}

func TestDeleteSession(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	s := testSession("anon_1", "game-1", time.Now())
	require.NoError(t, repo.SaveSession(ctx, s))
	require.NoError(t, repo.DeleteSession(ctx, "anon_1", "game-1"))

	got, err := repo.GetSession(ctx, "anon_1", "game-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Deleting a missing session is not an error.
	assert.NoError(t, repo.DeleteSession(ctx, "anon_1", "game-1"))
}

func TestDailyRecordRoundTrip(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	got, err := repo.GetDailyRecord(ctx, "anon_1", "2026-08-23")
	require.NoError(t, err)
	assert.Nil(t, got)

	rec := &game.DailyRecord{
		PlayerID:       "anon_1",
		DayKey:         "2026-08-23",
		Score:          1200,
		Mistakes:       1,
		ElapsedSeconds: 95,
		Quote:          "HELLO WORLD",
		Author:         "Anon",
		CompletedAt:    now,
	}
	require.NoError(t, repo.SaveDailyRecord(ctx, rec))

	got, err = repo.GetDailyRecord(ctx, "anon_1", "2026-08-23")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 1200, got.Score)
	assert.Equal(t, 95, got.ElapsedSeconds)
	assert.Equal(t, now.Unix(), got.CompletedAt.Unix())
}

func TestMarkAbandonedLost(t *testing.T) {
	repo := newTestStore(t)
	ctx := context.Background()

	yesterday := time.Now().Add(-36 * time.Hour)
	cutoff := time.Now().Truncate(24 * time.Hour)

	stale := testSession("anon_1", "stale", yesterday)
	fresh := testSession("anon_1", "fresh", time.Now())
	staleDaily := testSession("anon_1", "daily-old", yesterday)
	staleDaily.IsDaily = true
	staleDaily.DayKey = "2026-08-21"
	staleWon := testSession("anon_1", "stale-won", yesterday)
	staleWon.Status = game.StatusWon

	for _, s := range []*game.Session{stale, fresh, staleDaily, staleWon} {
		require.NoError(t, repo.SaveSession(ctx, s))
	}

	n, err := repo.MarkAbandonedLost(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "only the stale non-daily in-progress session is swept")

	got, err := repo.GetSession(ctx, "anon_1", "stale")
	require.NoError(t, err)
	assert.Equal(t, game.StatusLost, got.Status)

	for _, id := range []string{"fresh", "daily-old"} {
		got, err := repo.GetSession(ctx, "anon_1", id)
		require.NoError(t, err)
		assert.Equal(t, game.StatusInProgress, got.Status, "session %s must not be swept", id)
	}
}
