package game

import "time"

// DailyRecord is the frozen, read-only summary of a won daily session,
// kept so the day can be shown as already completed.
type DailyRecord struct {
	PlayerID       string    `json:"player_id"`
	DayKey         string    `json:"day_key"`
	Score          int       `json:"score"`
	Mistakes       int       `json:"mistakes"`
	ElapsedSeconds int       `json:"elapsed_seconds"`
	Quote          string    `json:"quote"`
	Author         string    `json:"author"`
	CompletedAt    time.Time `json:"completed_at"`
}

// RecordOf freezes a daily record from a won session.
func RecordOf(s *Session, completedAt time.Time) DailyRecord {
	return DailyRecord{
		PlayerID:       s.PlayerID,
		DayKey:         s.DayKey,
		Score:          s.Score(),
		Mistakes:       s.Mistakes,
		ElapsedSeconds: int(s.Elapsed().Seconds()),
		Quote:          s.Quote,
		Author:         s.Author,
		CompletedAt:    completedAt,
	}
}
