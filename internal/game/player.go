package game

import "time"

// Player is an anonymous, cookie-identified player.
type Player struct {
	PlayerID  string    `json:"player_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
