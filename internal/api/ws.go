package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"

	"cryptoquip/internal/identity"
)

// Hub fans session snapshots out to websocket watchers. Slow subscribers
// drop updates rather than block the game handlers; the next publish
// carries full state anyway.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[chan []byte]struct{}
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: map[string]map[chan []byte]struct{}{}}
}

// Subscribe registers a watcher for a game key.
func (h *Hub) Subscribe(key string) chan []byte {
	ch := make(chan []byte, 8)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[key] == nil {
		h.subs[key] = map[chan []byte]struct{}{}
	}
	h.subs[key][ch] = struct{}{}
	return ch
}

// Unsubscribe removes a watcher.
func (h *Hub) Unsubscribe(key string, ch chan []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.subs[key]; ok {
		delete(subs, ch)
		if len(subs) == 0 {
			delete(h.subs, key)
		}
	}
}

// Publish sends a payload to every watcher of the key without blocking.
func (h *Hub) Publish(key string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for ch := range h.subs[key] {
		select {
		case ch <- payload:
		default:
		}
	}
}

func (h *GameHandler) publish(playerID, gameID string, snap Snapshot) {
	if h.hub == nil {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		slog.Error("Failed to encode snapshot for watchers", "error", err, "game_id", gameID)
		return
	}
	h.hub.Publish(playerID+"/"+gameID, payload)
}

// Watch streams state snapshots for one game over a websocket. The client
// receives the current state on connect and a fresh snapshot after every
// mutating operation.
func (h *GameHandler) Watch(w http.ResponseWriter, r *http.Request) {
	playerID := identity.PlayerIDFromContext(r.Context())
	gameID := chi.URLParam(r, "gameID")

	if _, ok := h.loadGame(w, r, playerID); !ok {
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: h.cfg.IsDevelopment(),
	})
	if err != nil {
		slog.Warn("WebSocket accept failed", "error", err, "game_id", gameID)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	// The client only listens; CloseRead surfaces disconnects.
	ctx := conn.CloseRead(r.Context())

	// Subscribe before reading the initial state so a mutation landing in
	// between is queued on the channel rather than lost.
	key := playerID + "/" + gameID
	ch := h.hub.Subscribe(key)
	defer h.hub.Unsubscribe(key, ch)

	s, err := h.repo.GetSession(r.Context(), playerID, gameID)
	if err != nil || s == nil {
		slog.Warn("Game vanished before initial snapshot", "error", err, "game_id", gameID)
		return
	}
	initial, err := json.Marshal(snapshotOf(s))
	if err != nil {
		slog.Error("Failed to encode initial snapshot", "error", err, "game_id", gameID)
		return
	}
	if err := conn.Write(ctx, websocket.MessageText, initial); err != nil {
		return
	}

	slog.Debug("Watcher connected", "player_id", playerID, "game_id", gameID)

	for {
		select {
		case <-ctx.Done():
			return
		case payload := <-ch:
			if err := conn.Write(ctx, websocket.MessageText, payload); err != nil {
				if ctx.Err() == nil {
					slog.Debug("Watcher write failed", "error", err, "game_id", gameID)
				}
				return
			}
		}
	}
}
