// Package cipher generates and applies monoalphabetic substitution ciphers
// over the uppercase Latin alphabet.
package cipher

import (
	"fmt"
	"math/rand/v2"
)

// AlphabetSize is the number of letters in the puzzle alphabet.
const AlphabetSize = 26

// IsLetter reports whether c is an uppercase puzzle letter.
func IsLetter(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

// Upper maps ASCII lowercase letters to uppercase; other bytes pass through.
func Upper(c byte) byte {
	if c >= 'a' && c <= 'z' {
		return c - 'a' + 'A'
	}
	return c
}

// Mapping is a total substitution over the alphabet. Index letter-'A' holds
// the letter it substitutes to.
type Mapping [AlphabetSize]byte

// Identity returns the mapping that substitutes every letter with itself.
func Identity() Mapping {
	var m Mapping
	for i := range m {
		m[i] = 'A' + byte(i)
	}
	return m
}

// Of returns the substitution for c. Non-letters pass through unchanged.
func (m Mapping) Of(c byte) byte {
	if !IsLetter(c) {
		return c
	}
	return m[c-'A']
}

// Inverse returns the reverse mapping. Only meaningful when m is bijective.
func (m Mapping) Inverse() Mapping {
	var inv Mapping
	for i, c := range m {
		if IsLetter(c) {
			inv[c-'A'] = 'A' + byte(i)
		}
	}
	return inv
}

// Bijective reports whether every alphabet letter appears exactly once as a
// value of m.
func (m Mapping) Bijective() bool {
	var seen [AlphabetSize]bool
	for _, c := range m {
		if !IsLetter(c) || seen[c-'A'] {
			return false
		}
		seen[c-'A'] = true
	}
	return true
}

// String renders the mapping as 26 letters, A's substitution first.
func (m Mapping) String() string {
	return string(m[:])
}

// ParseMapping restores a mapping from its String form.
func ParseMapping(s string) (Mapping, error) {
	var m Mapping
	if len(s) != AlphabetSize {
		return m, fmt.Errorf("parse mapping: want %d letters, got %d", AlphabetSize, len(s))
	}
	copy(m[:], s)
	if !m.Bijective() {
		return m, fmt.Errorf("parse mapping: %q is not a bijection", s)
	}
	return m, nil
}

// Generate draws a uniformly random substitution with no fixed points and
// returns it as plain-to-cipher, together with its cipher-to-plain inverse.
// Cryptogram convention: a letter never encrypts to itself, a fixed point
// would hand the player a solved letter for free.
func Generate(rng *rand.Rand) (plainToCipher, cipherToPlain Mapping) {
	perm := Identity()
	for {
		rng.Shuffle(AlphabetSize, func(i, j int) {
			perm[i], perm[j] = perm[j], perm[i]
		})
		if !hasFixedPoint(perm) {
			break
		}
	}
	return perm, perm.Inverse()
}

func hasFixedPoint(m Mapping) bool {
	for i, c := range m {
		if c == 'A'+byte(i) {
			return true
		}
	}
	return false
}

// Encrypt substitutes every letter of text through plainToCipher, copying
// non-letters verbatim. Output length always equals input length.
func Encrypt(text string, plainToCipher Mapping) string {
	return substitute(text, plainToCipher)
}

// Decrypt substitutes every letter of text through cipherToPlain, copying
// non-letters verbatim. Decrypt(Encrypt(p, m), m.Inverse()) == p.
func Decrypt(text string, cipherToPlain Mapping) string {
	return substitute(text, cipherToPlain)
}

func substitute(text string, m Mapping) string {
	out := make([]byte, len(text))
	for i := 0; i < len(text); i++ {
		out[i] = m.Of(text[i])
	}
	return string(out)
}

// Partial is a partial substitution built up from confirmed guesses.
// A zero entry means the letter is unresolved.
type Partial [AlphabetSize]byte

// Get returns the substitution for c, if one has been recorded.
func (p Partial) Get(c byte) (byte, bool) {
	if !IsLetter(c) || p[c-'A'] == 0 {
		return 0, false
	}
	return p[c-'A'], true
}

// Has reports whether c has a recorded substitution.
func (p Partial) Has(c byte) bool {
	_, ok := p.Get(c)
	return ok
}

// Set records the substitution for c.
func (p *Partial) Set(c, to byte) {
	if IsLetter(c) && IsLetter(to) {
		p[c-'A'] = to
	}
}

// String renders the partial mapping as 26 characters with '.' for
// unresolved letters.
func (p Partial) String() string {
	out := make([]byte, AlphabetSize)
	for i, c := range p {
		if c == 0 {
			out[i] = '.'
		} else {
			out[i] = c
		}
	}
	return string(out)
}

// ParsePartial restores a partial mapping from its String form.
func ParsePartial(s string) (Partial, error) {
	var p Partial
	if len(s) != AlphabetSize {
		return p, fmt.Errorf("parse partial mapping: want %d characters, got %d", AlphabetSize, len(s))
	}
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '.':
		case IsLetter(s[i]):
			p[i] = s[i]
		default:
			return Partial{}, fmt.Errorf("parse partial mapping: invalid character %q", s[i])
		}
	}
	return p, nil
}
