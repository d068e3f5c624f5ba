package places

import (
	"context"
	"strings"
	"sync"
)

// memRegistry is a minimal Registry for package tests.
type memRegistry struct {
	mu     sync.Mutex
	cache  map[string]*PlaceGroup
	added  []*PlaceGroup
	refs   map[string][]string
	getErr error
}

func newMemRegistry() *memRegistry {
	return &memRegistry{cache: map[string]*PlaceGroup{}, refs: map[string][]string{}}
}

func (r *memRegistry) GetCachedGroup(_ context.Context, id string) (*PlaceGroup, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.getErr != nil {
		return nil, false, r.getErr
	}
	g, ok := r.cache[id]
	return g, ok, nil
}

func (r *memRegistry) SetCachedGroup(_ context.Context, id string, g *PlaceGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[id] = g
	return nil
}

func (r *memRegistry) AddGroup(_ context.Context, g *PlaceGroup, refs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.added = append(r.added, g)
	r.refs[g.ID] = refs
	return nil
}

func (r *memRegistry) CollisionSafeID(d Descriptor) string {
	return "DB-" + strings.ToLower(d.Identifier)
}

func (r *memRegistry) PropertyMapping(baseURL string, d Descriptor) PropertyMapping {
	pm := d.PropertyMapping.Clone()
	for k, v := range pm {
		pm[k] = strings.ReplaceAll(v, "${base_url}", baseURL)
	}
	return pm
}

func (r *memRegistry) addedCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.added)
}
