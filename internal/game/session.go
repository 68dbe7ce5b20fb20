// Package game implements the cryptogram puzzle state machine.
//
// A Session is not internally synchronized; the host must serialize all
// mutating calls on a single session (one in-flight operation at a time).
// Every operation is a defensive no-op when its preconditions do not hold —
// callers observe the outcome through the public fields after the call.
package game

import (
	"math/rand/v2"
	"strings"
	"time"

	"cryptoquip/internal/align"
	"cryptoquip/internal/cipher"
)

// Status is the lifecycle state of a session. Won and Lost are terminal;
// no operation transitions out of them.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusWon        Status = "won"
	StatusLost       Status = "lost"
)

// Session is one cryptogram puzzle in play.
type Session struct {
	ID       string
	PlayerID string

	// Quote is the normalized solution text; Ciphertext is its encrypted
	// counterpart, always alignment-invariant with Quote.
	Quote      string
	Author     string
	Ciphertext string

	// Correct is the cipher-to-plain answer key. Guessed holds only the
	// substitutions the player has confirmed; Incorrect holds, per cipher
	// letter, the set of plain letters already tried and rejected.
	Correct   cipher.Mapping
	Guessed   cipher.Partial
	Incorrect [cipher.AlphabetSize]uint32

	// Selected is the cipher letter awaiting a plain-letter guess, 0 = none.
	Selected byte

	Mistakes    int
	MaxMistakes int
	Status      Status

	// Infinite is continuation mode: an explicit post-loss escape that
	// permits further guesses with the mistake counter informational only.
	// It never clears the Lost status.
	Infinite bool

	IsDaily bool
	DayKey  string

	StartedAt time.Time
	UpdatedAt time.Time
}

// New creates a fresh in-progress session for the given quote, encrypting it
// with a substitution drawn from rng. Daily callers seed rng from the day
// key so the puzzle is a pure function of the date.
func New(id, playerID, quote, author string, maxMistakes int, rng *rand.Rand, now time.Time) *Session {
	quote = Normalize(quote)
	p2c, c2p := cipher.Generate(rng)
	pair := align.Process(quote, p2c.Of)

	return &Session{
		ID:          id,
		PlayerID:    playerID,
		Quote:       quote,
		Author:      author,
		Ciphertext:  pair.Derived,
		Correct:     c2p,
		MaxMistakes: maxMistakes,
		Status:      StatusInProgress,
		StartedAt:   now,
		UpdatedAt:   now,
	}
}

// Normalize uppercases ASCII letters and trims surrounding whitespace.
// Punctuation and internal spacing are preserved verbatim.
func Normalize(text string) string {
	out := []byte(strings.TrimSpace(text))
	for i, c := range out {
		out[i] = cipher.Upper(c)
	}
	return string(out)
}

// playable reports whether guess/select operations may mutate the session:
// in progress, or lost with continuation mode enabled.
func (s *Session) playable() bool {
	return s.Status == StatusInProgress || (s.Status == StatusLost && s.Infinite)
}

// SelectLetter marks a cipher letter as awaiting a guess. Letters absent
// from the ciphertext, or already solved, are ignored.
func (s *Session) SelectLetter(letter byte, now time.Time) {
	letter = cipher.Upper(letter)
	if !s.playable() || !cipher.IsLetter(letter) {
		return
	}
	if !strings.Contains(s.Ciphertext, string(letter)) || s.Guessed.Has(letter) {
		return
	}
	s.Selected = letter
	s.UpdatedAt = now
}

// Guess proposes a plain letter for the currently selected cipher letter.
// A correct guess resolves every occurrence at once and may win the game;
// an incorrect one is recorded, costs a mistake (repeats cost again), and
// may lose it. Requires a selection; no-op otherwise.
func (s *Session) Guess(plain byte, now time.Time) {
	plain = cipher.Upper(plain)
	if !s.playable() || s.Selected == 0 || !cipher.IsLetter(plain) {
		return
	}

	sel := s.Selected
	if s.Correct.Of(sel) == plain {
		s.Guessed.Set(sel, plain)
		s.Selected = 0
		if s.Status == StatusInProgress && s.Solved() {
			s.Status = StatusWon
		}
	} else {
		s.Incorrect[sel-'A'] |= 1 << (plain - 'A')
		s.Mistakes++
		if s.Status == StatusInProgress && s.Mistakes >= s.MaxMistakes {
			s.Status = StatusLost
			s.Selected = 0
		}
	}
	s.UpdatedAt = now
}

// Hint reveals the first unsolved cipher letter (by order of first
// appearance in the ciphertext) and charges one mistake — hints and wrong
// guesses draw from the same budget. A hint that completes the puzzle wins
// even when it also exhausts the budget; otherwise exhaustion loses.
func (s *Session) Hint(now time.Time) {
	if s.Status != StatusInProgress || s.Mistakes >= s.MaxMistakes {
		return
	}

	letter, ok := s.firstUnsolved()
	if !ok {
		return
	}

	s.Guessed.Set(letter, s.Correct.Of(letter))
	if s.Selected == letter {
		s.Selected = 0
	}
	s.Mistakes++

	switch {
	case s.Solved():
		s.Status = StatusWon
	case s.Mistakes >= s.MaxMistakes:
		s.Status = StatusLost
		s.Selected = 0
	}
	s.UpdatedAt = now
}

func (s *Session) firstUnsolved() (byte, bool) {
	for i := 0; i < len(s.Ciphertext); i++ {
		c := s.Ciphertext[i]
		if cipher.IsLetter(c) && !s.Guessed.Has(c) {
			return c, true
		}
	}
	return 0, false
}

// EnableContinuation opts a lost session into continuation mode. The Lost
// status is preserved so completion bookkeeping stays intact.
func (s *Session) EnableContinuation(now time.Time) {
	if s.Status != StatusLost || s.Infinite {
		return
	}
	s.Infinite = true
	s.UpdatedAt = now
}

// Reset restores the fresh state for the same puzzle: same cipher, all
// guesses, mistakes and selection cleared. The only operation that may
// decrease the mistake counter. A won session stays won; reset exists to
// retry a loss or restart mid-game, not to replay a finished puzzle.
func (s *Session) Reset(now time.Time) {
	if s.Status == StatusWon {
		return
	}
	s.Guessed = cipher.Partial{}
	s.Incorrect = [cipher.AlphabetSize]uint32{}
	s.Selected = 0
	s.Mistakes = 0
	s.Status = StatusInProgress
	s.Infinite = false
	s.StartedAt = now
	s.UpdatedAt = now
}

// Solved reports whether every cipher letter occurring in the puzzle has a
// confirmed substitution. Independent of win/loss status so a continuation-
// mode session can still report a full decode.
func (s *Session) Solved() bool {
	if s.letterCount() == 0 {
		return true
	}
	_, unsolved := s.firstUnsolved()
	return !unsolved
}

// Rejected reports whether plain was already tried and rejected for c.
func (s *Session) Rejected(c, plain byte) bool {
	c, plain = cipher.Upper(c), cipher.Upper(plain)
	if !cipher.IsLetter(c) || !cipher.IsLetter(plain) {
		return false
	}
	return s.Incorrect[c-'A']&(1<<(plain-'A')) != 0
}

// Display returns the player-visible decode progress: confirmed letters
// shown in plain, unresolved ones as underscores, non-letters verbatim.
func (s *Session) Display() string {
	pair := align.Process(s.Ciphertext, func(c byte) byte {
		if p, ok := s.Guessed.Get(c); ok {
			return p
		}
		return '_'
	})
	return pair.Derived
}

// EnsureAligned verifies the ciphertext/quote alignment invariant and
// repairs the ciphertext from the answer key when it does not hold.
// Returns true when a repair was performed.
func (s *Session) EnsureAligned() bool {
	if align.Verify(s.Ciphertext, s.Quote) {
		return false
	}
	pair := align.Recover(s.Quote, s.Correct.Inverse().Of)
	s.Ciphertext = pair.Derived
	return true
}

// Elapsed is the play time used for scoring.
func (s *Session) Elapsed() time.Duration {
	return s.UpdatedAt.Sub(s.StartedAt)
}

func (s *Session) letterCount() int {
	n := 0
	for i := 0; i < len(s.Quote); i++ {
		if cipher.IsLetter(s.Quote[i]) {
			n++
		}
	}
	return n
}
