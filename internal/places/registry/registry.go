// Package registry holds the served place group catalog and the cache of
// groups built by the update cycle.
package registry

import (
	"context"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/mohammed-shakir/geodb-places/internal/cache/keys"
	"github.com/mohammed-shakir/geodb-places/internal/places"
)

// BaseURLVar is replaced with the public server URL in property mappings.
const BaseURLVar = "${base_url}"

// Listener is told about every group added to the catalog.
type Listener interface {
	GroupAdded(ctx context.Context, g *places.PlaceGroup, datasetRefs []string) error
}

type ListenerFunc func(ctx context.Context, g *places.PlaceGroup, datasetRefs []string) error

func (f ListenerFunc) GroupAdded(ctx context.Context, g *places.PlaceGroup, refs []string) error {
	return f(ctx, g, refs)
}

type entry struct {
	group *places.PlaceGroup
	refs  []string
}

// Registry implements places.Registry over a GroupCache and an in-memory
// catalog. The catalog survives cache purges so groups stay served while a
// new cycle runs.
type Registry struct {
	cache     GroupCache
	logger    *slog.Logger
	listeners []Listener

	mu      sync.RWMutex
	catalog map[string]entry
	order   []string
	// descriptor fingerprint per id handed out in the current cycle
	owners map[string]uint64
}

func New(cache GroupCache, logger *slog.Logger, listeners ...Listener) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cache:     cache,
		logger:    logger,
		listeners: listeners,
		catalog:   map[string]entry{},
		owners:    map[string]uint64{},
	}
}

var _ places.Registry = (*Registry)(nil)

func (r *Registry) GetCachedGroup(ctx context.Context, id string) (*places.PlaceGroup, bool, error) {
	return r.cache.Get(ctx, id)
}

func (r *Registry) SetCachedGroup(ctx context.Context, id string, g *places.PlaceGroup) error {
	return r.cache.Set(ctx, id, g)
}

// AddGroup publishes g in the catalog, replacing an older version with the
// same id. Listener failures are logged and do not fail the registration.
func (r *Registry) AddGroup(ctx context.Context, g *places.PlaceGroup, datasetRefs []string) error {
	refs := slices.Clone(datasetRefs)
	r.mu.Lock()
	if _, ok := r.catalog[g.ID]; !ok {
		r.order = append(r.order, g.ID)
	}
	r.catalog[g.ID] = entry{group: g, refs: refs}
	r.mu.Unlock()

	for _, l := range r.listeners {
		if err := l.GroupAdded(ctx, g, refs); err != nil {
			r.logger.WarnContext(ctx, "place group listener failed", "group", g.ID, "err", err)
		}
	}
	return nil
}

// CollisionSafeID keeps the readable id for the first descriptor that asks
// for it in a cycle. A different descriptor sanitizing to the same id gets a
// fingerprint suffix; asking again with the same descriptor is stable.
func (r *Registry) CollisionSafeID(d places.Descriptor) string {
	base := keys.GroupID(d.Identifier)
	fp := keys.Fingerprint(strings.TrimSpace(d.Identifier), d.Query, d.PlaceGroupRef)

	r.mu.Lock()
	defer r.mu.Unlock()
	id, next := base, fp
	for {
		owner, taken := r.owners[id]
		if !taken || owner == fp {
			r.owners[id] = fp
			return id
		}
		next = keys.Fingerprint(id, strconv.FormatUint(next, 16))
		id = keys.Disambiguate(base, next)
	}
}

// PropertyMapping returns the descriptor mapping with BaseURLVar expanded.
func (r *Registry) PropertyMapping(baseURL string, d places.Descriptor) places.PropertyMapping {
	pm := d.PropertyMapping.Clone()
	base := strings.TrimRight(baseURL, "/")
	for k, v := range pm {
		pm[k] = strings.ReplaceAll(v, BaseURLVar, base)
	}
	return pm
}

// BeginCycle forgets the cycle's id assignments and purges the group cache.
func (r *Registry) BeginCycle(ctx context.Context) error {
	r.mu.Lock()
	r.owners = map[string]uint64{}
	r.mu.Unlock()
	return r.cache.Purge(ctx)
}

// Register adds an externally built group, as posted to the places API.
func (r *Registry) Register(ctx context.Context, g *places.PlaceGroup) error {
	return r.AddGroup(ctx, g, g.DatasetRefs)
}

// Group returns a served group by id.
func (r *Registry) Group(id string) (*places.PlaceGroup, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.catalog[id]
	return e.group, ok
}

// Groups returns the served groups in registration order, optionally limited
// to those referenced by dataset.
func (r *Registry) Groups(dataset string) []*places.PlaceGroup {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*places.PlaceGroup, 0, len(r.order))
	for _, id := range r.order {
		e := r.catalog[id]
		if dataset != "" && !slices.Contains(e.refs, dataset) {
			continue
		}
		out = append(out, e.group)
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.catalog)
}
