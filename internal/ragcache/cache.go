// Package ragcache holds answers from the retrieval agent keyed by question,
// with fuzzy lookup and least-frequently-used eviction.
package ragcache

import (
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/pmezard/go-difflib/difflib"
)

const (
	// DefaultLimit is the number of entries kept before eviction starts.
	DefaultLimit = 50
	// DefaultThreshold is the minimum similarity ratio for a fuzzy hit.
	DefaultThreshold = 0.8
)

var nonWord = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)

// Entry is one cached question and its answer.
type Entry struct {
	Query     string `json:"query"`
	Response  string `json:"response"`
	Frequency int    `json:"frequency"`
}

// MatchKind reports how a lookup was satisfied.
type MatchKind int

const (
	MatchNone MatchKind = iota
	MatchExact
	MatchSubstring
	MatchFuzzy
)

func (m MatchKind) String() string {
	switch m {
	case MatchExact:
		return "exact"
	case MatchSubstring:
		return "substring"
	case MatchFuzzy:
		return "fuzzy"
	default:
		return "miss"
	}
}

// Cache is a size-bounded question/answer store. Entries keep insertion order
// so that ties on frequency evict the oldest entry first.
type Cache struct {
	mu        sync.Mutex
	limit     int
	threshold float64
	entries   []*Entry
	index     map[string]*Entry
}

// Option configures a Cache.
type Option func(*Cache)

// WithLimit sets the entry limit. Values below 1 are ignored.
func WithLimit(limit int) Option {
	return func(c *Cache) {
		if limit > 0 {
			c.limit = limit
		}
	}
}

// WithThreshold sets the similarity ratio for fuzzy hits. Values outside (0, 1] are ignored.
func WithThreshold(threshold float64) Option {
	return func(c *Cache) {
		if threshold > 0 && threshold <= 1 {
			c.threshold = threshold
		}
	}
}

// New creates an empty cache.
func New(opts ...Option) *Cache {
	c := &Cache{
		limit:     DefaultLimit,
		threshold: DefaultThreshold,
		index:     make(map[string]*Entry),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Add stores response for query. An existing query has its response replaced
// and its frequency bumped. A new query evicts the least used entries first
// when the cache is full.
func (c *Cache) Add(query, response string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.index[query]; ok {
		e.Frequency++
		e.Response = response
		return
	}

	if len(c.entries) >= c.limit {
		c.evict()
	}

	e := &Entry{Query: query, Response: response, Frequency: 1}
	c.entries = append(c.entries, e)
	c.index[query] = e
}

// Get looks up query by exact match, then by substring match of the cleaned
// strings, then by similarity ratio. Any hit bumps the entry's frequency.
func (c *Cache) Get(query string) (string, bool) {
	resp, kind := c.Lookup(query)
	return resp, kind != MatchNone
}

// Lookup is Get that also reports how the match was found.
func (c *Cache) Lookup(query string) (string, MatchKind) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.index[query]; ok {
		e.Frequency++
		return e.Response, MatchExact
	}

	// A cached query with no words left after cleaning is only reachable
	// by exact match; as a substring it would match every lookup.
	cleaned := clean(query)
	if cleaned != "" {
		for _, e := range c.entries {
			cached := clean(e.Query)
			if cached == "" {
				continue
			}
			if strings.Contains(cached, cleaned) || strings.Contains(cleaned, cached) {
				e.Frequency++
				return e.Response, MatchSubstring
			}
		}
	}

	for _, e := range c.entries {
		cached := clean(e.Query)
		if cached == "" {
			continue
		}
		if Similarity(cleaned, cached) >= c.threshold {
			e.Frequency++
			return e.Response, MatchFuzzy
		}
	}

	return "", MatchNone
}

// evict removes max(1, len/10) entries with the lowest frequency.
func (c *Cache) evict() {
	n := len(c.entries) / 10
	if n < 1 {
		n = 1
	}

	order := make([]int, len(c.entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return c.entries[order[a]].Frequency < c.entries[order[b]].Frequency
	})

	drop := make(map[int]bool, n)
	for _, i := range order[:n] {
		drop[i] = true
		delete(c.index, c.entries[i].Query)
	}

	kept := c.entries[:0]
	for i, e := range c.entries {
		if !drop[i] {
			kept = append(kept, e)
		}
	}
	c.entries = kept
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Entries returns a copy of the cache contents in insertion order.
func (c *Cache) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Entry, len(c.entries))
	for i, e := range c.entries {
		out[i] = *e
	}
	return out
}

// Restore replaces the cache contents, e.g. after loading a checkpoint.
// Entries beyond the limit are dropped from the front.
func (c *Cache) Restore(entries []Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(entries) > c.limit {
		entries = entries[len(entries)-c.limit:]
	}
	c.entries = make([]*Entry, 0, len(entries))
	c.index = make(map[string]*Entry, len(entries))
	for _, e := range entries {
		if _, dup := c.index[e.Query]; dup {
			continue
		}
		entry := e
		c.entries = append(c.entries, &entry)
		c.index[entry.Query] = &entry
	}
}

// Similarity returns the difflib ratio between two strings compared rune by rune.
func Similarity(a, b string) float64 {
	return difflib.NewMatcher(runes(a), runes(b)).Ratio()
}

func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

func clean(s string) string {
	return nonWord.ReplaceAllString(strings.ToLower(s), "")
}
