// Package daily manages the one-puzzle-per-calendar-day lifecycle around the
// game engine: deterministic puzzle creation, resumption, completion records
// and cleanup of abandoned ad-hoc games.
package daily

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"cryptoquip/internal/game"
	"cryptoquip/internal/quotes"
	"cryptoquip/internal/store"
)

// Outcome describes what LoadToday found for the day.
type Outcome string

const (
	// OutcomeNew means a fresh session was created and persisted.
	OutcomeNew Outcome = "new"
	// OutcomeResumed means a live session from earlier today was restored.
	OutcomeResumed Outcome = "resumed"
	// OutcomeCompleted means today was already won; only the record remains.
	OutcomeCompleted Outcome = "completed"
)

// LoadResult is the product of LoadToday: a session for New/Resumed, a
// record for Completed.
type LoadResult struct {
	Outcome Outcome
	Session *game.Session
	Record  *game.DailyRecord
}

// QuoteSource supplies the designated quotation for a day key.
type QuoteSource interface {
	ForDay(dayKey string) (quotes.Quote, error)
}

// Lifecycle coordinates daily sessions for all players. The clock is read
// once per operation so a day boundary cannot split a single call.
type Lifecycle struct {
	repo        store.Repository
	src         QuoteSource
	maxMistakes int
	clock       func() time.Time
	notify      func(game.DailyRecord)
}

// NewLifecycle creates a lifecycle. clock may be nil for time.Now; notify,
// when non-nil, is invoked after a daily win is recorded.
func NewLifecycle(repo store.Repository, src QuoteSource, maxMistakes int, clock func() time.Time, notify func(game.DailyRecord)) *Lifecycle {
	if clock == nil {
		clock = time.Now
	}
	return &Lifecycle{
		repo:        repo,
		src:         src,
		maxMistakes: maxMistakes,
		clock:       clock,
		notify:      notify,
	}
}

// DayKey formats the calendar day identifying a daily puzzle.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// SessionID is the deterministic session ID for a day.
func SessionID(t time.Time) string {
	return "daily-" + t.Format("20060102")
}

// LoadToday returns today's puzzle for the player: the completion record if
// the day was already won, the live session if one exists, or a freshly
// created (and persisted) one otherwise.
func (l *Lifecycle) LoadToday(ctx context.Context, playerID string) (*LoadResult, error) {
	now := l.clock()
	key := DayKey(now)

	rec, err := l.repo.GetDailyRecord(ctx, playerID, key)
	if err != nil {
		return nil, fmt.Errorf("load daily record for %s: %w", key, err)
	}
	if rec != nil {
		return &LoadResult{Outcome: OutcomeCompleted, Record: rec}, nil
	}

	sess, err := l.repo.GetDailySession(ctx, playerID, key)
	if err != nil {
		return nil, fmt.Errorf("load daily session for %s: %w", key, err)
	}
	// Lost dailies without continuation mode are not resumed: the day is
	// retryable, and recreating from the day seed yields the same puzzle
	// with a clean slate.
	if sess != nil && (sess.Status == game.StatusInProgress || sess.Infinite) {
		return &LoadResult{Outcome: OutcomeResumed, Session: sess}, nil
	}

	q, err := l.src.ForDay(key)
	if err != nil {
		return nil, fmt.Errorf("no quote available for %s: %w", key, err)
	}

	seed := quotes.Seed(key)
	rng := rand.New(rand.NewPCG(seed, seed))
	fresh := game.New(SessionID(now), playerID, q.Text, q.Author, l.maxMistakes, rng, now)
	fresh.IsDaily = true
	fresh.DayKey = key

	if err := l.repo.SaveSession(ctx, fresh); err != nil {
		return nil, fmt.Errorf("persist new daily session: %w", err)
	}
	return &LoadResult{Outcome: OutcomeNew, Session: fresh}, nil
}

// OnSessionUpdated persists the session after a mutating operation. Winning
// a daily additionally freezes a completion record and notifies the host;
// losing one persists as-is so the player can retry or continue.
//
// The record is written at most once per player and day: once frozen it is
// never overwritten and the notification never re-fires, no matter how many
// further calls arrive for the won session.
func (l *Lifecycle) OnSessionUpdated(ctx context.Context, s *game.Session) error {
	if err := l.repo.SaveSession(ctx, s); err != nil {
		return fmt.Errorf("persist session snapshot: %w", err)
	}

	if s.IsDaily && s.Status == game.StatusWon {
		existing, err := l.repo.GetDailyRecord(ctx, s.PlayerID, s.DayKey)
		if err != nil {
			return fmt.Errorf("check daily record: %w", err)
		}
		if existing != nil {
			return nil
		}
		rec := game.RecordOf(s, l.clock())
		if err := l.repo.SaveDailyRecord(ctx, &rec); err != nil {
			return fmt.Errorf("persist daily record: %w", err)
		}
		if l.notify != nil {
			l.notify(rec)
		}
	}
	return nil
}

// CleanupAbandoned marks non-daily games still in progress but untouched
// since before today as lost. Run once per application start.
func (l *Lifecycle) CleanupAbandoned(ctx context.Context) (int64, error) {
	now := l.clock()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return l.repo.MarkAbandonedLost(ctx, startOfDay)
}
