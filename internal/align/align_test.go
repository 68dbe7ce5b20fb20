package align

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cryptoquip/internal/cipher"
)

func TestVerify(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{"both empty", "", "", true},
		{"aligned letters", "XQZZM", "HELLO", true},
		{"aligned with punctuation", "XQZZM, TMNZK!", "HELLO, WORLD!", true},
		{"length mismatch", "ABC", "AB", false},
		{"letter vs punctuation", "AB C", "ABZC", false},
		{"punctuation only", "... ...", "!!! ???", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Verify(tt.a, tt.b))
		})
	}
}

func TestProcessHoldsInvariant(t *testing.T) {
	p2c, _ := cipher.Generate(rand.New(rand.NewPCG(1, 1)))
	sources := []string{
		"HELLO, WORLD!",
		"",
		"?!?!",
		"A B C",
	}
	for _, src := range sources {
		pair := Process(src, p2c.Of)
		assert.Equal(t, src, pair.Source)
		require.Len(t, pair.Derived, len(src))
		assert.True(t, Verify(pair.Derived, pair.Source), "invariant broken for %q", src)
	}
}

func TestRecoverMatchesProcess(t *testing.T) {
	p2c, _ := cipher.Generate(rand.New(rand.NewPCG(2, 2)))
	src := "WE, THE PEOPLE - ALL OF US!"
	assert.Equal(t, Process(src, p2c.Of), Recover(src, p2c.Of))
}

func TestRecoverFallsBackToUnencrypted(t *testing.T) {
	// A substitute that emits non-letters breaks the invariant even after
	// recovery; the pair must degrade to the plain source instead of failing.
	broken := func(byte) byte { return '#' }
	pair := Recover("HELLO WORLD", broken)
	assert.Equal(t, "HELLO WORLD", pair.Derived)
	assert.Equal(t, "HELLO WORLD", pair.Source)
	assert.True(t, Verify(pair.Derived, pair.Source))
}

func TestRecoverPunctuationOnly(t *testing.T) {
	pair := Recover("... !!!", func(c byte) byte { return c })
	assert.Equal(t, "... !!!", pair.Derived)
	assert.True(t, Verify(pair.Derived, pair.Source))
}
