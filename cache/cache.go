// Package cache implements the Instruction Cache: a bounded, fingerprinted
// store of previously built Programs, with smallest-last-used-counter
// eviction, grounded on cyw0ng95-sqlvibe's PlanCache and generalized from
// oldest-creation-time to smallest-use-counter eviction.
package cache

import (
	"sync"

	"github.com/mkot2/goof2/ir"
	"github.com/zeebo/xxh3"
)

// Fingerprint identifies a Cache Entry by (source, optimize, terminal).
type Fingerprint uint64

// Compute hashes source||optimize||terminal with xxh3, the glossary's
// "Fingerprint ... verified by source equality on hit."
func Compute(source string, optimize, terminal bool) Fingerprint {
	h := xxh3.New()
	h.WriteString(source)
	if optimize {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	if terminal {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	return Fingerprint(h.Sum64())
}

// Entry is the Cache Entry record of spec.md §3. Span is the Builder's
// static-walk result (ir.Span) for this Program, cached alongside it so a
// hit doesn't have to re-walk the source to feed the Memory-Model
// Selector.
type Entry struct {
	Source   string
	Program  ir.Program
	Span     int
	lastUsed uint64
}

// Cache is a bounded mapping from Fingerprint to *Entry, safe for
// concurrent use.
type Cache struct {
	mu      sync.RWMutex
	entries map[Fingerprint]*Entry
	max     int
	clock   uint64
}

// New creates a Cache holding at most max entries. max <= 0 means
// unbounded.
func New(max int) *Cache {
	return &Cache{entries: make(map[Fingerprint]*Entry), max: max}
}

// Get looks up fp, guarding against a hash collision by comparing source
// text; a hit bumps the entry's last-used counter.
func (c *Cache) Get(fp Fingerprint, source string) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[fp]
	if !ok || e.Source != source {
		return nil, false
	}
	c.clock++
	e.lastUsed = c.clock
	return e, true
}

// Put inserts or replaces the entry for fp, evicting the entry with the
// smallest last-used counter if the cache is at capacity.
func (c *Cache) Put(fp Fingerprint, source string, program ir.Program, span int) *Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[fp]; !exists && c.max > 0 && len(c.entries) >= c.max {
		c.evictLocked()
	}
	c.clock++
	e := &Entry{Source: source, Program: program, Span: span, lastUsed: c.clock}
	c.entries[fp] = e
	return e
}

func (c *Cache) evictLocked() {
	var victim Fingerprint
	var oldest uint64
	first := true
	for fp, e := range c.entries {
		if first || e.lastUsed < oldest {
			victim, oldest = fp, e.lastUsed
			first = false
		}
	}
	if !first {
		delete(c.entries, victim)
	}
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
