package game

// Scoring: longer puzzles are worth more, every mistake and every couple of
// seconds on the clock take points away, floored at zero. Monotone
// non-increasing in both mistakes and elapsed time.
const (
	scoreBase           = 600
	scorePerLetter      = 40
	mistakePenalty      = 75
	secondsPerTimePoint = 2
)

// Score computes the session's score from mistakes, elapsed play time and
// puzzle length. Pure; safe to call in any state.
func (s *Session) Score() int {
	score := scoreBase + scorePerLetter*s.letterCount()
	score -= mistakePenalty * s.Mistakes
	score -= int(s.Elapsed().Seconds()) / secondsPerTimePoint
	if score < 0 {
		return 0
	}
	return score
}
