// Package align maintains the positional correspondence between a derived
// (encrypted or display) string and the source text it was produced from.
//
// Derived and source strings are built independently in a few places; this
// package is the single seam that re-establishes the alignment invariant
// whenever text is regenerated. The policy is never to crash: if recovery
// fails, the pair degrades to an unencrypted display.
package align

import "cryptoquip/internal/cipher"

// Pair is an aligned (derived, source) string pair: equal length, with
// letters and non-letters in the same positions.
type Pair struct {
	Derived string
	Source  string
}

// Verify reports whether a and b satisfy the alignment invariant: equal
// length, and at every index either both characters are letters or both
// are non-letters.
func Verify(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		if cipher.IsLetter(a[i]) != cipher.IsLetter(b[i]) {
			return false
		}
	}
	return true
}

// Process derives the counterpart of source in lock-step: letters go through
// substitute, everything else is copied. The invariant holds by construction
// as long as substitute maps letters to letters.
func Process(source string, substitute func(byte) byte) Pair {
	out := make([]byte, len(source))
	for i := 0; i < len(source); i++ {
		if cipher.IsLetter(source[i]) {
			out[i] = substitute(source[i])
		} else {
			out[i] = source[i]
		}
	}
	return Pair{Derived: string(out), Source: source}
}

// Recover rebuilds an aligned pair after an invariant violation: strip all
// non-letters from source, re-derive the letter-only stream, then
// re-interleave the stripped characters at their original positions. If the
// result still fails Verify, the last resort is Pair{source, source} — an
// unencrypted but visible puzzle.
func Recover(source string, substitute func(byte) byte) Pair {
	letters := make([]byte, 0, len(source))
	for i := 0; i < len(source); i++ {
		if cipher.IsLetter(source[i]) {
			letters = append(letters, source[i])
		}
	}

	derived := make([]byte, 0, len(letters))
	for _, c := range letters {
		derived = append(derived, substitute(c))
	}

	out := make([]byte, len(source))
	next := 0
	for i := 0; i < len(source); i++ {
		if cipher.IsLetter(source[i]) {
			out[i] = derived[next]
			next++
		} else {
			out[i] = source[i]
		}
	}

	pair := Pair{Derived: string(out), Source: source}
	if !Verify(pair.Derived, pair.Source) {
		return Pair{Derived: source, Source: source}
	}
	return pair
}
