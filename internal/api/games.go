package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"cryptoquip/internal/cipher"
	"cryptoquip/internal/game"
	"cryptoquip/internal/identity"
)

// GameHandler handles puzzle game endpoints.
type GameHandler struct {
	*Handler

	// locks serializes operations per session: the engine requires at most
	// one in-flight operation per session at a time. Entries are removed
	// when the game is deleted.
	locks sync.Map
}

// NewGameHandler creates a new game handler.
func NewGameHandler(base *Handler) *GameHandler {
	return &GameHandler{Handler: base}
}

// RegisterRoutes registers game and daily-challenge routes.
func (h *GameHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/me", h.GetMe)
		r.Get("/daily", h.Daily)
		r.Post("/games", h.CreateGame)
		r.Route("/games/{gameID}", func(r chi.Router) {
			r.Get("/", h.GetGame)
			r.Delete("/", h.DeleteGame)
			r.Post("/select", h.SelectLetter)
			r.Post("/guess", h.Guess)
			r.Post("/hint", h.Hint)
			r.Post("/continue", h.Continue)
			r.Post("/reset", h.Reset)
		})
	})
}

// Snapshot is the state the presentation layer renders after each call.
type Snapshot struct {
	ID          string              `json:"id"`
	Ciphertext  string              `json:"ciphertext"`
	Display     string              `json:"display"`
	Guessed     map[string]string   `json:"guessed"`
	Incorrect   map[string][]string `json:"incorrect"`
	Selected    string              `json:"selected,omitempty"`
	Mistakes    int                 `json:"mistakes"`
	MaxMistakes int                 `json:"max_mistakes"`
	Status      string              `json:"status"`
	Infinite    bool                `json:"infinite"`
	Solved      bool                `json:"solved"`
	IsDaily     bool                `json:"is_daily"`
	DayKey      string              `json:"day_key,omitempty"`
	Author      string              `json:"author"`
	// Quote is revealed only once the session is terminal.
	Quote     string `json:"quote,omitempty"`
	Score     int    `json:"score"`
	StartedAt int64  `json:"started_at"`
	UpdatedAt int64  `json:"updated_at"`
}

func snapshotOf(s *game.Session) Snapshot {
	snap := Snapshot{
		ID:          s.ID,
		Ciphertext:  s.Ciphertext,
		Display:     s.Display(),
		Guessed:     map[string]string{},
		Incorrect:   map[string][]string{},
		Mistakes:    s.Mistakes,
		MaxMistakes: s.MaxMistakes,
		Status:      string(s.Status),
		Infinite:    s.Infinite,
		Solved:      s.Solved(),
		IsDaily:     s.IsDaily,
		DayKey:      s.DayKey,
		Author:      s.Author,
		Score:       s.Score(),
		StartedAt:   s.StartedAt.Unix(),
		UpdatedAt:   s.UpdatedAt.Unix(),
	}
	if s.Selected != 0 {
		snap.Selected = string(s.Selected)
	}
	if s.Status != game.StatusInProgress {
		snap.Quote = s.Quote
	}
	for c := byte('A'); c <= 'Z'; c++ {
		if p, ok := s.Guessed.Get(c); ok {
			snap.Guessed[string(c)] = string(p)
		}
		var rejected []string
		for p := byte('A'); p <= 'Z'; p++ {
			if s.Rejected(c, p) {
				rejected = append(rejected, string(p))
			}
		}
		if len(rejected) > 0 {
			snap.Incorrect[string(c)] = rejected
		}
	}
	return snap
}

// GetMe returns the current player's information.
func (h *GameHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())
	if playerID == "" {
		Error(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	player, err := h.repo.GetPlayer(r.Context(), playerID)
	if err != nil || player == nil {
		Error(w, http.StatusUnauthorized, "player not found")
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"player_id": player.PlayerID,
		"username":  player.Username,
	})
}

type createGameRequest struct {
	MaxMistakes int `json:"max_mistakes"`
}

// CreateGame starts a new ad-hoc game with a random quotation.
func (h *GameHandler) CreateGame(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())

	var req createGameRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // empty body means defaults
	}
	maxMistakes := req.MaxMistakes
	if maxMistakes <= 0 {
		maxMistakes = h.cfg.MaxMistakes
	}

	h.rngMu.Lock()
	q, err := h.quotes.Random(h.rng)
	h.rngMu.Unlock()
	if err != nil {
		slog.Error("Failed to pick quote for new game", "error", err, "player_id", playerID)
		Error(w, http.StatusInternalServerError, "no quote available")
		return
	}

	h.rngMu.Lock()
	s := game.New(uuid.NewString(), playerID, q.Text, q.Author, maxMistakes, h.rng, time.Now())
	h.rngMu.Unlock()

	if err := h.lifecycle.OnSessionUpdated(r.Context(), s); err != nil {
		slog.Error("Failed to persist new game", "error", err, "player_id", playerID)
		Error(w, http.StatusInternalServerError, "failed to save game")
		return
	}

	slog.Info("Game created", "player_id", playerID, "game_id", s.ID)
	JSON(w, http.StatusCreated, snapshotOf(s))
}

// GetGame returns the current state of a game.
func (h *GameHandler) GetGame(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())
	s, ok := h.loadGame(w, r, playerID)
	if !ok {
		return
	}
	JSON(w, http.StatusOK, snapshotOf(s))
}

// DeleteGame removes a game. It holds the session lock so a concurrent
// operation cannot re-save the row after the delete.
func (h *GameHandler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())
	gameID := chi.URLParam(r, "gameID")

	key := playerID + "/" + gameID
	mutex := h.lockFor(key)
	mutex.Lock()
	defer mutex.Unlock()

	if err := h.repo.DeleteSession(r.Context(), playerID, gameID); err != nil {
		slog.Error("Failed to delete game", "error", err, "player_id", playerID, "game_id", gameID)
		Error(w, http.StatusInternalServerError, "failed to delete game")
		return
	}
	h.locks.Delete(key)
	JSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type letterRequest struct {
	Letter string `json:"letter"`
}

func (req letterRequest) letter() (byte, bool) {
	if len(req.Letter) != 1 {
		return 0, false
	}
	c := cipher.Upper(req.Letter[0])
	return c, cipher.IsLetter(c)
}

// SelectLetter marks a cipher letter as awaiting a guess.
func (h *GameHandler) SelectLetter(w http.ResponseWriter, r *http.Request) {
	h.mutateWithLetter(w, r, func(s *game.Session, letter byte) {
		s.SelectLetter(letter, time.Now())
	})
}

// Guess proposes a plain letter for the selected cipher letter.
func (h *GameHandler) Guess(w http.ResponseWriter, r *http.Request) {
	h.mutateWithLetter(w, r, func(s *game.Session, letter byte) {
		s.Guess(letter, time.Now())
	})
}

// Hint reveals one unsolved letter at the cost of a mistake.
func (h *GameHandler) Hint(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(s *game.Session) {
		s.Hint(time.Now())
	})
}

// Continue enables continuation mode on a lost game.
func (h *GameHandler) Continue(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(s *game.Session) {
		s.EnableContinuation(time.Now())
	})
}

// Reset restores the fresh state for the same puzzle.
func (h *GameHandler) Reset(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(s *game.Session) {
		s.Reset(time.Now())
	})
}

func (h *GameHandler) mutateWithLetter(w http.ResponseWriter, r *http.Request, op func(*game.Session, byte)) {
	var req letterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, "invalid request body")
		return
	}
	letter, ok := req.letter()
	if !ok {
		Error(w, http.StatusBadRequest, "letter must be a single A-Z character")
		return
	}
	h.mutate(w, r, func(s *game.Session) { op(s, letter) })
}

// mutate runs one engine operation under the per-session lock, persists the
// snapshot and publishes it to websocket watchers.
func (h *GameHandler) mutate(w http.ResponseWriter, r *http.Request, op func(*game.Session)) {
	playerID := identity.PlayerIDFromContext(r.Context())
	gameID := chi.URLParam(r, "gameID")

	mutex := h.lockFor(playerID + "/" + gameID)
	mutex.Lock()
	defer mutex.Unlock()

	s, ok := h.loadGame(w, r, playerID)
	if !ok {
		return
	}

	op(s)

	if err := h.lifecycle.OnSessionUpdated(r.Context(), s); err != nil {
		slog.Error("Failed to persist game update", "error", err, "player_id", playerID, "game_id", gameID)
		Error(w, http.StatusInternalServerError, "failed to save game")
		return
	}

	snap := snapshotOf(s)
	h.publish(playerID, s.ID, snap)
	JSON(w, http.StatusOK, snap)
}

// Daily loads, resumes or reports today's challenge.
func (h *GameHandler) Daily(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())

	res, err := h.lifecycle.LoadToday(r.Context(), playerID)
	if err != nil {
		slog.Error("Failed to load daily challenge", "error", err, "player_id", playerID)
		Error(w, http.StatusInternalServerError, "daily challenge unavailable")
		return
	}

	out := map[string]interface{}{"outcome": string(res.Outcome)}
	if res.Session != nil {
		out["game"] = snapshotOf(res.Session)
	}
	if res.Record != nil {
		out["record"] = res.Record
	}
	JSON(w, http.StatusOK, out)
}

func (h *GameHandler) lockFor(key string) *sync.Mutex {
	lock, _ := h.locks.LoadOrStore(key, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (h *GameHandler) loadGame(w http.ResponseWriter, r *http.Request, playerID string) (*game.Session, bool) {
	gameID := chi.URLParam(r, "gameID")
	s, err := h.repo.GetSession(r.Context(), playerID, gameID)
	if err != nil {
		slog.Error("Failed to load game", "error", err, "player_id", playerID, "game_id", gameID)
		Error(w, http.StatusInternalServerError, "failed to load game")
		return nil, false
	}
	if s == nil {
		Error(w, http.StatusNotFound, "game not found")
		return nil, false
	}
	return s, true
}
