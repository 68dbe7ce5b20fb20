// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"
	"time"

	"cryptoquip/internal/game"
)

// Repository defines the persistence gateway for players, puzzle sessions
// and daily records. Save failures are surfaced to the caller; the engine
// never retries them.
type Repository interface {
	// GetPlayer retrieves a player by ID. Returns (nil, nil) when absent.
	GetPlayer(ctx context.Context, playerID string) (*game.Player, error)

	// UpsertPlayer creates or updates a player record.
	UpsertPlayer(ctx context.Context, p *game.Player) error

	// GetSession retrieves a session by player and session ID.
	// Returns (nil, nil) when absent.
	GetSession(ctx context.Context, playerID, id string) (*game.Session, error)

	// GetDailySession retrieves the player's session for a day key.
	// Returns (nil, nil) when absent.
	GetDailySession(ctx context.Context, playerID, dayKey string) (*game.Session, error)

	// SaveSession creates or replaces a session snapshot.
	SaveSession(ctx context.Context, s *game.Session) error

	// DeleteSession removes a session.
	DeleteSession(ctx context.Context, playerID, id string) error

	// GetDailyRecord retrieves a completed daily record for a day key.
	// Returns (nil, nil) when absent.
	GetDailyRecord(ctx context.Context, playerID, dayKey string) (*game.DailyRecord, error)

	// SaveDailyRecord freezes a completed daily record.
	SaveDailyRecord(ctx context.Context, r *game.DailyRecord) error

	// MarkAbandonedLost marks non-daily in-progress sessions last touched
	// before the cutoff as lost, returning how many were swept.
	MarkAbandonedLost(ctx context.Context, before time.Time) (int64, error)

	// Ping verifies database connectivity.
	Ping(ctx context.Context) error

	// Close closes the database connection.
	Close() error
}
