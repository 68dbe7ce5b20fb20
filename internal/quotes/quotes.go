// Package quotes supplies the quotation corpus for puzzles: a deterministic
// per-day pick for daily challenges and a random pick for ad-hoc games.
package quotes

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"math/rand/v2"
	"os"

	"cryptoquip/internal/game"
)

//go:embed quotes.json
var embeddedCorpus []byte

// Quote is a single quotation with attribution.
type Quote struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

// Source is an immutable, loaded quote corpus.
type Source struct {
	quotes []Quote
}

// Embedded loads the corpus compiled into the binary.
func Embedded() (*Source, error) {
	return parse(embeddedCorpus)
}

// LoadFile loads a corpus from an external JSON file, overriding the
// embedded one.
func LoadFile(path string) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read quotes file: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Source, error) {
	var quotes []Quote
	if err := json.Unmarshal(data, &quotes); err != nil {
		return nil, fmt.Errorf("parse quotes: %w", err)
	}

	valid := make([]Quote, 0, len(quotes))
	for _, q := range quotes {
		q.Text = game.Normalize(q.Text)
		if q.Text == "" {
			continue
		}
		valid = append(valid, q)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("parse quotes: corpus contains no usable quotes")
	}
	return &Source{quotes: valid}, nil
}

// Len returns the number of quotes in the corpus.
func (s *Source) Len() int {
	return len(s.quotes)
}

// ForDay returns the quotation designated for a day key. The pick is a pure
// function of the key and the corpus, so every load of the same day agrees.
func (s *Source) ForDay(dayKey string) (Quote, error) {
	if len(s.quotes) == 0 {
		return Quote{}, fmt.Errorf("quote for day %s: corpus is empty", dayKey)
	}
	return s.quotes[Seed(dayKey)%uint64(len(s.quotes))], nil
}

// Random returns an arbitrary quotation for an ad-hoc game.
func (s *Source) Random(rng *rand.Rand) (Quote, error) {
	if len(s.quotes) == 0 {
		return Quote{}, fmt.Errorf("random quote: corpus is empty")
	}
	return s.quotes[rng.IntN(len(s.quotes))], nil
}

// Seed hashes a day key into the seed used for both the quote pick and the
// daily cipher permutation.
func Seed(dayKey string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(dayKey))
	return h.Sum64()
}
