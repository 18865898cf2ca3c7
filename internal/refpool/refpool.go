// Package refpool maintains the growing collection of (source,
// translation) pairs used as few-shot context for transform requests.
// A pool belongs to exactly one document run: it is seeded from the
// catalog before processing and grows as blocks complete, so later
// blocks see the style established by earlier ones.
package refpool

import (
	"sort"
	"sync"

	"github.com/opentranslate/mdtran/internal/catalog"
)

// DefaultLimit is the number of pairs returned by Query when the pool
// was built with a non-positive limit.
const DefaultLimit = 5

// Pair is one reference example.
type Pair struct {
	Source string
	Target string
}

// Pool is safe for concurrent use: Record is a serialized append and
// Query ranks against a consistent snapshot, so requests dispatched
// concurrently may miss each other's output but never observe a
// partially written pair.
type Pool struct {
	mu    sync.RWMutex
	pairs []Pair
	limit int
}

// New creates an empty pool returning at most limit pairs per query.
func New(limit int) *Pool {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Pool{limit: limit}
}

// Seed populates the pool from the catalog's committed translations.
// Fuzzy and obsolete entries are excluded: a stale pair would pull new
// translations toward outdated phrasing.
func (p *Pool) Seed(f *catalog.File) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range f.Entries() {
		if e.Status() != catalog.Translated {
			continue
		}
		p.pairs = append(p.pairs, Pair{Source: e.Source, Target: e.Target})
	}
}

// Record appends a completed translation, making it visible to
// subsequent queries within the same run.
func (p *Pool) Record(source, target string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pairs = append(p.pairs, Pair{Source: source, Target: target})
}

// Len returns the current pool size.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.pairs)
}

// Query returns up to the pool limit of pairs most similar to source,
// most similar first. Exact self-matches are excluded. Ranking is
// deterministic: rune-aware Levenshtein similarity, ties broken by
// insertion order.
func (p *Pool) Query(source string) []Pair {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.pairs) == 0 {
		return nil
	}

	type scored struct {
		pair  Pair
		score float64
	}
	candidates := make([]scored, 0, len(p.pairs))
	for _, pair := range p.pairs {
		if pair.Source == source {
			continue
		}
		candidates = append(candidates, scored{pair: pair, score: stringSimilarity(source, pair.Source)})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	n := p.limit
	if n > len(candidates) {
		n = len(candidates)
	}
	out := make([]Pair, n)
	for i := 0; i < n; i++ {
		out[i] = candidates[i].pair
	}
	return out
}

// levenshtein returns the edit distance between two strings (rune-aware).
// Uses a space-optimized two-row DP implementation.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	la, lb := len(ra), len(rb)
	if la == 0 {
		return lb
	}
	if lb == 0 {
		return la
	}

	prev := make([]int, lb+1)
	curr := make([]int, lb+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= la; i++ {
		curr[0] = i
		for j := 1; j <= lb; j++ {
			if ra[i-1] == rb[j-1] {
				curr[j] = prev[j-1]
			} else {
				min := prev[j]
				if prev[j-1] < min {
					min = prev[j-1]
				}
				if curr[j-1] < min {
					min = curr[j-1]
				}
				curr[j] = min + 1
			}
		}
		prev, curr = curr, prev
	}

	return prev[lb]
}

// stringSimilarity returns a similarity score in [0, 1] (1 = identical).
func stringSimilarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	la, lb := len([]rune(a)), len([]rune(b))
	maxLen := la
	if lb > maxLen {
		maxLen = lb
	}
	if maxLen == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein(a, b))/float64(maxLen)
}
