package quotes

import (
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmbeddedCorpusLoads(t *testing.T) {
	src, err := Embedded()
	require.NoError(t, err)
	assert.Greater(t, src.Len(), 10)
}

func TestForDayDeterministic(t *testing.T) {
	src, err := Embedded()
	require.NoError(t, err)

	a, err := src.ForDay("2026-08-23")
	require.NoError(t, err)
	b, err := src.ForDay("2026-08-23")
	require.NoError(t, err)
	assert.Equal(t, a, b)

	// Text comes back normalized.
	for i := 0; i < len(a.Text); i++ {
		c := a.Text[i]
		assert.False(t, c >= 'a' && c <= 'z', "quote text not uppercased: %q", a.Text)
	}
}

func TestRandomPicksFromCorpus(t *testing.T) {
	src, err := Embedded()
	require.NoError(t, err)

	rng := rand.New(rand.NewPCG(1, 2))
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		q, err := src.Random(rng)
		require.NoError(t, err)
		seen[q.Text] = true
	}
	assert.Greater(t, len(seen), 1, "random pick should vary")
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "quotes.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"text":"so it goes.","author":"Kurt Vonnegut"}]`), 0o644))

	src, err := LoadFile(path)
	require.NoError(t, err)
	q, err := src.ForDay("2026-01-01")
	require.NoError(t, err)
	assert.Equal(t, "SO IT GOES.", q.Text)
	assert.Equal(t, "Kurt Vonnegut", q.Author)
}

func TestLoadFileErrors(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`[]`), 0o644))
	_, err = LoadFile(empty)
	assert.Error(t, err)

	blank := filepath.Join(t.TempDir(), "blank.json")
	require.NoError(t, os.WriteFile(blank, []byte(`[{"text":"   ","author":"x"}]`), 0o644))
	_, err = LoadFile(blank)
	assert.Error(t, err)
}

func TestSeedStable(t *testing.T) {
	assert.Equal(t, Seed("2026-08-23"), Seed("2026-08-23"))
	assert.NotEqual(t, Seed("2026-08-23"), Seed("2026-08-24"))
}
