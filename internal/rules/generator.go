package rules

import (
	"github.com/bits-and-blooms/bloom/v3"

	"github.com/eshanized/ERPCT/pkg/debug"
)

// DedupMode selects how the generator suppresses repeated candidates.
type DedupMode int

const (
	// DedupNone yields every candidate, repeats included. Required when the
	// generator feeds a distributed stream, since index addressing must stay
	// stable.
	DedupNone DedupMode = iota
	// DedupExact keeps a seen-set of every distinct output. Exact, but
	// auxiliary memory grows with the number of distinct candidates.
	DedupExact
	// DedupBloom uses a bloom filter: bounded memory, with a small false
	// positive rate that can suppress a never-seen candidate.
	DedupBloom
)

const bloomFalsePositiveRate = 0.001

// Generator lazily produces mutated candidates: for each rule in order,
// for each base word in order, yield rule applied to word. The sequence is
// finite, restartable, and O(1) index-addressable via At.
type Generator struct {
	words     []string
	rules     []*Rule
	guardMode GuardMode

	dedup  DedupMode
	seen   map[string]struct{}
	filter *bloom.BloomFilter

	pos int64
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithDedup enables duplicate suppression for sequential iteration.
func WithDedup(mode DedupMode) GeneratorOption {
	return func(g *Generator) { g.dedup = mode }
}

// WithGuardMode sets the behavior for failing rule guards.
func WithGuardMode(mode GuardMode) GeneratorOption {
	return func(g *Generator) { g.guardMode = mode }
}

// NewGenerator creates a candidate generator over base words and parsed
// rules.
func NewGenerator(words []string, parsed []*Rule, opts ...GeneratorOption) *Generator {
	g := &Generator{words: words, rules: parsed}
	for _, opt := range opts {
		opt(g)
	}
	g.resetDedup()

	debug.Debug("Candidate generator created: %d words x %d rules = %d candidates",
		len(words), len(parsed), g.Len())
	return g
}

func (g *Generator) resetDedup() {
	switch g.dedup {
	case DedupExact:
		g.seen = make(map[string]struct{})
	case DedupBloom:
		n := uint(g.Len())
		if n == 0 {
			n = 1
		}
		g.filter = bloom.NewWithEstimates(n, bloomFalsePositiveRate)
	}
}

// Len returns the total number of candidate positions (before dedup).
func (g *Generator) Len() int64 {
	return int64(len(g.rules)) * int64(len(g.words))
}

// At returns the candidate at index i without touching iteration state or
// dedup tracking. Pure: repeated calls with the same index yield the same
// candidate. The second return is false past the end of the sequence or
// when the candidate is dropped by a failing guard in GuardModeDrop.
func (g *Generator) At(i int64) (string, bool) {
	if i < 0 || i >= g.Len() || len(g.words) == 0 {
		return "", false
	}
	rule := g.rules[i/int64(len(g.words))]
	word := g.words[i%int64(len(g.words))]
	return rule.ApplyMode(word, g.guardMode)
}

// Next yields the next candidate in sequence, suppressing repeats when
// dedup is enabled and skipping candidates dropped by guards. Returns
// false when the sequence is exhausted.
func (g *Generator) Next() (string, bool) {
	for g.pos < g.Len() {
		candidate, ok := g.At(g.pos)
		g.pos++
		if !ok {
			continue
		}
		if g.duplicate(candidate) {
			continue
		}
		return candidate, true
	}
	return "", false
}

func (g *Generator) duplicate(candidate string) bool {
	switch g.dedup {
	case DedupExact:
		if _, dup := g.seen[candidate]; dup {
			return true
		}
		g.seen[candidate] = struct{}{}
	case DedupBloom:
		return g.filter.TestAndAddString(candidate)
	}
	return false
}

// Seek positions sequential iteration at index i. Dedup state is not
// rewound; seeking is intended for resuming, where earlier output must not
// be reprocessed.
func (g *Generator) Seek(i int64) {
	if i < 0 {
		i = 0
	}
	g.pos = i
}

// Reset restarts sequential iteration from the beginning, clearing dedup
// state.
func (g *Generator) Reset() {
	g.pos = 0
	g.resetDedup()
}

// Collect materializes the remaining sequence. Intended for small rule and
// word sets; distributed attacks should iterate lazily instead.
func (g *Generator) Collect() []string {
	var out []string
	for {
		candidate, ok := g.Next()
		if !ok {
			return out
		}
		out = append(out, candidate)
	}
}
