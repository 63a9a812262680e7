package ragcache

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func queries(c *Cache) []string {
	var out []string
	for _, e := range c.Entries() {
		out = append(out, e.Query)
	}
	return out
}

func TestEvictsLowestFrequencyAtLimit(t *testing.T) {
	c := New(WithLimit(2))

	c.Add("what database should the service use", "postgres")
	c.Add("which license applies", "MIT")

	_, ok := c.Get("what database should the service use")
	require.True(t, ok)

	c.Add("how are errors logged", "slog")

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"what database should the service use", "how are errors logged"}, queries(c))
}

func TestEvictionTieBreaksOnInsertionOrder(t *testing.T) {
	c := New(WithLimit(2))
	c.Add("alpha question", "1")
	c.Add("bravo question", "2")
	c.Add("charlie question", "3")

	assert.Equal(t, []string{"bravo question", "charlie question"}, queries(c))
}

func TestEvictsTenPercent(t *testing.T) {
	c := New(WithLimit(20))
	for i := 0; i < 20; i++ {
		c.Add(fmt.Sprintf("entry number %03d", i), "x")
	}
	c.Add("one more thing", "y")

	// 20 entries at the limit: drop 2 then add 1
	assert.Equal(t, 19, c.Len())
}

func TestAddExistingBumpsFrequencyAndReplaces(t *testing.T) {
	c := New()
	c.Add("which port", "8080")
	c.Add("which port", "9090")

	entries := c.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "9090", entries[0].Response)
	assert.Equal(t, 2, entries[0].Frequency)
}

func TestLookupKinds(t *testing.T) {
	c := New()
	c.Add("Which database?", "postgres")
	c.Add("how are errors logged in the service", "slog with JSON")

	tests := []struct {
		name  string
		query string
		want  string
		kind  MatchKind
	}{
		{"exact", "Which database?", "postgres", MatchExact},
		{"substring after cleaning", "which database should we use", "postgres", MatchSubstring},
		{"fuzzy", "how are erors loged in service", "slog with JSON", MatchFuzzy},
		{"miss", "what is the deployment target", "", MatchNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, kind := c.Lookup(tt.query)
			assert.Equal(t, tt.kind, kind, kind.String())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPunctuationOnlyQueryDoesNotMatchEverything(t *testing.T) {
	c := New()
	c.Add("which database", "postgres")

	_, ok := c.Get("???")
	assert.False(t, ok)
}

func TestPunctuationOnlyEntryDoesNotMatchEverything(t *testing.T) {
	c := New()
	c.Add("???", "garbage")

	_, kind := c.Lookup("which database should the service use")
	assert.Equal(t, MatchNone, kind)

	resp, kind := c.Lookup("???")
	assert.Equal(t, MatchExact, kind)
	assert.Equal(t, "garbage", resp)
	assert.Equal(t, 2, c.Entries()[0].Frequency)
}

func TestHitsBumpFrequency(t *testing.T) {
	c := New()
	c.Add("which database", "postgres")
	c.Get("which database")
	c.Get("WHICH DATABASE!")

	assert.Equal(t, 3, c.Entries()[0].Frequency)
}

func TestRestore(t *testing.T) {
	c := New(WithLimit(2))
	c.Restore([]Entry{
		{Query: "a question", Response: "1", Frequency: 4},
		{Query: "b question", Response: "2", Frequency: 1},
		{Query: "c question", Response: "3", Frequency: 2},
	})

	assert.Equal(t, []string{"b question", "c question"}, queries(c))
	got, ok := c.Get("c question")
	require.True(t, ok)
	assert.Equal(t, "3", got)
}

func TestSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, Similarity("abc", "abc"), 1e-9)
	assert.InDelta(t, 0.0, Similarity("abc", "xyz"), 1e-9)
	// difflib: 2*M/T with M=3, T=8
	assert.InDelta(t, 0.75, Similarity("abcd", "bcde"), 1e-9)
}

func TestOptionsIgnoreInvalidValues(t *testing.T) {
	c := New(WithLimit(0), WithThreshold(1.5))
	assert.Equal(t, DefaultLimit, c.limit)
	assert.InDelta(t, DefaultThreshold, c.threshold, 1e-9)
}

// TestCache_NeverExceedsLimit adds arbitrary queries and checks the size bound.
func TestCache_NeverExceedsLimit(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		limit := rapid.IntRange(1, 15).Draw(t, "limit")
		c := New(WithLimit(limit))

		n := rapid.IntRange(0, 60).Draw(t, "n")
		for i := 0; i < n; i++ {
			q := rapid.StringMatching(`[a-z ]{1,12}`).Draw(t, fmt.Sprintf("q_%d", i))
			c.Add(q, "r")
			if c.Len() > limit {
				t.Fatalf("cache holds %d entries with limit %d", c.Len(), limit)
			}
		}
	})
}
