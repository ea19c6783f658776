package runtime

import (
	"sync"

	"github.com/segmentio/fasthash/fnv1a"

	"github.com/thomasrohde/brush/pkg/ast"
)

const defaultCacheSize = 32

type cacheEntry struct {
	source   string
	filename string
	program  *ast.Program
}

// parseCache keeps recently parsed programs keyed by an FNV-1a hash of
// filename and source. Entries are evicted oldest first.
type parseCache struct {
	mu      sync.Mutex
	size    int
	entries map[uint64]*cacheEntry
	order   []uint64
}

func newParseCache(size int) *parseCache {
	if size < 0 {
		size = 0
	}
	return &parseCache{size: size, entries: make(map[uint64]*cacheEntry, size)}
}

func cacheKey(source, filename string) uint64 {
	h := fnv1a.Init64
	h = fnv1a.AddString64(h, filename)
	h = fnv1a.AddString64(h, "\x00")
	return fnv1a.AddString64(h, source)
}

func (c *parseCache) get(source, filename string) (*ast.Program, bool) {
	if c.size == 0 {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[cacheKey(source, filename)]
	// A hash collision must not return another program.
	if !ok || e.source != source || e.filename != filename {
		return nil, false
	}
	return e.program, true
}

func (c *parseCache) put(source, filename string, program *ast.Program) {
	if c.size == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(source, filename)
	if _, ok := c.entries[key]; !ok {
		if len(c.order) >= c.size {
			delete(c.entries, c.order[0])
			c.order = c.order[1:]
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = &cacheEntry{source: source, filename: filename, program: program}
}

func (c *parseCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
