package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"cryptoquip/internal/cipher"
	"cryptoquip/internal/game"
	"cryptoquip/internal/shared"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Repository using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed repository.
func NewSQLite(dbPath string) (Repository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS players (
		player_id TEXT PRIMARY KEY,
		username TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sessions (
		player_id TEXT NOT NULL,
		id TEXT NOT NULL,
		day_key TEXT,
		is_daily INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		infinite INTEGER NOT NULL DEFAULT 0,
		quote TEXT NOT NULL,
		author TEXT NOT NULL,
		ciphertext TEXT NOT NULL,
		correct_map TEXT NOT NULL,
		guessed_map TEXT NOT NULL,
		incorrect_json TEXT NOT NULL,
		selected TEXT,
		mistakes INTEGER NOT NULL,
		max_mistakes INTEGER NOT NULL,
		started_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		PRIMARY KEY (player_id, id)
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_daily ON sessions(player_id, day_key) WHERE day_key IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_sessions_sweep ON sessions(status, updated_at) WHERE is_daily = 0;

	CREATE TABLE IF NOT EXISTS daily_records (
		player_id TEXT NOT NULL,
		day_key TEXT NOT NULL,
		score INTEGER NOT NULL,
		mistakes INTEGER NOT NULL,
		elapsed_seconds INTEGER NOT NULL,
		quote TEXT NOT NULL,
		author TEXT NOT NULL,
		completed_at INTEGER NOT NULL,
		PRIMARY KEY (player_id, day_key)
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// GetPlayer retrieves a player by ID.
func (s *SQLiteStore) GetPlayer(ctx context.Context, playerID string) (*game.Player, error) {
	query := `SELECT player_id, username, created_at, updated_at FROM players WHERE player_id = ?`
	row := s.db.QueryRowContext(ctx, query, playerID)

	var p game.Player
	var createdAt, updatedAt int64
	err := row.Scan(&p.PlayerID, &p.Username, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan player row: %w", err)
	}

	p.CreatedAt = time.Unix(createdAt, 0)
	p.UpdatedAt = time.Unix(updatedAt, 0)
	return &p, nil
}

// UpsertPlayer creates or updates a player record.
func (s *SQLiteStore) UpsertPlayer(ctx context.Context, p *game.Player) error {
	query := `
	INSERT INTO players (player_id, username, created_at, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(player_id) DO UPDATE SET
		username = excluded.username,
		updated_at = excluded.updated_at`

	_, err := s.db.ExecContext(ctx, query,
		p.PlayerID, p.Username, p.CreatedAt.Unix(), p.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert player: %w", err)
	}
	return nil
}

const sessionColumns = `player_id, id, day_key, is_daily, status, infinite,
	quote, author, ciphertext, correct_map, guessed_map, incorrect_json,
	selected, mistakes, max_mistakes, started_at, updated_at`

// GetSession retrieves a session by player and session ID.
func (s *SQLiteStore) GetSession(ctx context.Context, playerID, id string) (*game.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE player_id = ? AND id = ?`
	return s.scanSession(s.db.QueryRowContext(ctx, query, playerID, id))
}

// GetDailySession retrieves the player's session for a day key.
func (s *SQLiteStore) GetDailySession(ctx context.Context, playerID, dayKey string) (*game.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE player_id = ? AND day_key = ?`
	return s.scanSession(s.db.QueryRowContext(ctx, query, playerID, dayKey))
}

func (s *SQLiteStore) scanSession(row *sql.Row) (*game.Session, error) {
	var sess game.Session
	var dayKey, selected sql.NullString
	var isDaily, infinite int
	var correctMap, guessedMap, incorrectJSON string
	var startedAt, updatedAt int64
	var status string

	err := row.Scan(
		&sess.PlayerID, &sess.ID, &dayKey, &isDaily, &status, &infinite,
		&sess.Quote, &sess.Author, &sess.Ciphertext,
		&correctMap, &guessedMap, &incorrectJSON,
		&selected, &sess.Mistakes, &sess.MaxMistakes,
		&startedAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	sess.DayKey = dayKey.String
	sess.IsDaily = isDaily != 0
	sess.Infinite = infinite != 0
	sess.Status = game.Status(status)
	sess.StartedAt = time.Unix(startedAt, 0)
	sess.UpdatedAt = time.Unix(updatedAt, 0)
	if selected.Valid && len(selected.String) == 1 {
		sess.Selected = selected.String[0]
	}

	if sess.Correct, err = cipher.ParseMapping(correctMap); err != nil {
		return nil, fmt.Errorf("restore answer key: %w", err)
	}
	if sess.Guessed, err = cipher.ParsePartial(guessedMap); err != nil {
		return nil, fmt.Errorf("restore guessed mapping: %w", err)
	}
	if err := json.Unmarshal([]byte(incorrectJSON), &sess.Incorrect); err != nil {
		return nil, fmt.Errorf("restore incorrect guesses: %w", err)
	}

	// Ciphertext and quote are stored independently; re-establish the
	// alignment invariant if the snapshot came back torn.
	if sess.EnsureAligned() {
		slog.Warn("repaired misaligned session snapshot",
			"player_id", sess.PlayerID,
			"session_id", sess.ID)
	}

	return &sess, nil
}

// SaveSession creates or replaces a session snapshot.
func (s *SQLiteStore) SaveSession(ctx context.Context, sess *game.Session) error {
	incorrectJSON, err := json.Marshal(sess.Incorrect)
	if err != nil {
		return fmt.Errorf("encode incorrect guesses: %w", err)
	}

	var dayKey interface{}
	if sess.DayKey != "" {
		dayKey = sess.DayKey
	}
	var selected interface{}
	if sess.Selected != 0 {
		selected = string(sess.Selected)
	}

	query := `
	INSERT INTO sessions (` + sessionColumns + `)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(player_id, id) DO UPDATE SET
		day_key = excluded.day_key,
		is_daily = excluded.is_daily,
		status = excluded.status,
		infinite = excluded.infinite,
		quote = excluded.quote,
		author = excluded.author,
		ciphertext = excluded.ciphertext,
		correct_map = excluded.correct_map,
		guessed_map = excluded.guessed_map,
		incorrect_json = excluded.incorrect_json,
		selected = excluded.selected,
		mistakes = excluded.mistakes,
		max_mistakes = excluded.max_mistakes,
		started_at = excluded.started_at,
		updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		sess.PlayerID, sess.ID, dayKey, boolToInt(sess.IsDaily), string(sess.Status), boolToInt(sess.Infinite),
		sess.Quote, sess.Author, sess.Ciphertext,
		sess.Correct.String(), sess.Guessed.String(), string(incorrectJSON),
		selected, sess.Mistakes, sess.MaxMistakes,
		sess.StartedAt.Unix(), sess.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}

// DeleteSession removes a session. Retries with exponential backoff on
// SQLITE_BUSY, which can occur while another write is in flight.
func (s *SQLiteStore) DeleteSession(ctx context.Context, playerID, id string) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE player_id = ? AND id = ?`, playerID, id)
		if err == nil {
			return nil
		}

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // exponential backoff: 100ms, 200ms, 400ms
			slog.Debug("session delete failed with SQLITE_BUSY, retrying",
				"player_id", playerID,
				"session_id", id,
				"attempt", i+1,
				"delay", delay)
			time.Sleep(delay)
			continue
		}

		return fmt.Errorf("delete session %s: %w", id, err)
	}

	return nil
}

// GetDailyRecord retrieves a completed daily record for a day key.
func (s *SQLiteStore) GetDailyRecord(ctx context.Context, playerID, dayKey string) (*game.DailyRecord, error) {
	query := `
		SELECT player_id, day_key, score, mistakes, elapsed_seconds, quote, author, completed_at
		FROM daily_records WHERE player_id = ? AND day_key = ?`
	row := s.db.QueryRowContext(ctx, query, playerID, dayKey)

	var r game.DailyRecord
	var completedAt int64
	err := row.Scan(
		&r.PlayerID, &r.DayKey, &r.Score, &r.Mistakes, &r.ElapsedSeconds,
		&r.Quote, &r.Author, &completedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan daily record row: %w", err)
	}

	r.CompletedAt = time.Unix(completedAt, 0)
	return &r, nil
}

// SaveDailyRecord freezes a completed daily record.
func (s *SQLiteStore) SaveDailyRecord(ctx context.Context, r *game.DailyRecord) error {
	query := `
	INSERT INTO daily_records (player_id, day_key, score, mistakes, elapsed_seconds, quote, author, completed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(player_id, day_key) DO UPDATE SET
		score = excluded.score,
		mistakes = excluded.mistakes,
		elapsed_seconds = excluded.elapsed_seconds,
		completed_at = excluded.completed_at`

	_, err := s.db.ExecContext(ctx, query,
		r.PlayerID, r.DayKey, r.Score, r.Mistakes, r.ElapsedSeconds,
		r.Quote, r.Author, r.CompletedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("save daily record: %w", err)
	}
	return nil
}

// MarkAbandonedLost marks non-daily in-progress sessions last touched before
// the cutoff as lost. Daily sessions are exempt; they are retired by the
// day-key mechanism instead.
func (s *SQLiteStore) MarkAbandonedLost(ctx context.Context, before time.Time) (int64, error) {
	query := `
		UPDATE sessions SET status = ?
		WHERE is_daily = 0 AND status = ? AND updated_at < ?`
	result, err := s.db.ExecContext(ctx, query,
		string(game.StatusLost), string(game.StatusInProgress), before.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("mark abandoned sessions lost: %w", err)
	}
	return result.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
