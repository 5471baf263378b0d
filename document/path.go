package document

import (
	"strings"
	"sync"
)

// Paths caches dot-path segment splits. Each engine instance owns one cache;
// there is no process-global state.
type Paths struct {
	mu   sync.RWMutex
	segs map[string][]string
}

// NewPaths creates an empty path-segment cache.
func NewPaths() *Paths {
	return &Paths{segs: make(map[string][]string)}
}

// Split returns the segments of a dot-path, caching the result.
func (p *Paths) Split(path string) []string {
	p.mu.RLock()
	segs, ok := p.segs[path]
	p.mu.RUnlock()
	if ok {
		return segs
	}

	segs = strings.Split(path, ".")

	p.mu.Lock()
	p.segs[path] = segs
	p.mu.Unlock()

	return segs
}

// Resolve walks a dot-path through nested maps. It stops, without error, at
// the first non-map intermediate and reports the field as absent.
func (p *Paths) Resolve(doc Document, path string) (any, bool) {
	segs := p.Split(path)

	var current any = doc
	for _, seg := range segs {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return current, true
}
