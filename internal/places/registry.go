package places

import "context"

// Registry is the places subsystem the update cycle writes into. The cached
// group store is separate from the set of registered, served groups.
type Registry interface {
	GetCachedGroup(ctx context.Context, id string) (*PlaceGroup, bool, error)
	SetCachedGroup(ctx context.Context, id string, g *PlaceGroup) error
	AddGroup(ctx context.Context, g *PlaceGroup, datasetRefs []string) error
	// CollisionSafeID returns a stable id for d that no other descriptor holds.
	CollisionSafeID(d Descriptor) string
	PropertyMapping(baseURL string, d Descriptor) PropertyMapping
}
