package registry

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/mohammed-shakir/geodb-places/internal/places"
)

func populated(id string) *places.PlaceGroup {
	fc := geojson.NewFeatureCollection()
	fc.Append(geojson.NewFeature(orb.Point{1, 2}))
	return &places.PlaceGroup{ID: id, Title: id, SourceEncoding: "utf-8", Features: fc}
}

func TestCollisionSafeID_StableAndDistinct(t *testing.T) {
	r := New(NewLRUCache(8, time.Minute), nil)
	a := places.Descriptor{Identifier: "Cities", Query: "db_a?select=x"}
	b := places.Descriptor{Identifier: "Cities", Query: "db_b?select=x"}

	idA := r.CollisionSafeID(a)
	if idA != "DB-Cities" {
		t.Fatalf("first id = %s", idA)
	}
	if again := r.CollisionSafeID(a); again != idA {
		t.Fatalf("same descriptor got %s then %s", idA, again)
	}
	idB := r.CollisionSafeID(b)
	if idB == idA || !strings.HasPrefix(idB, "DB-Cities-") {
		t.Fatalf("colliding descriptor got %s", idB)
	}
	if r.CollisionSafeID(b) != idB {
		t.Fatalf("disambiguated id not stable")
	}
}

func TestBeginCycle_ResetsIDsAndPurgesCache(t *testing.T) {
	ctx := context.Background()
	c := NewLRUCache(8, time.Minute)
	r := New(c, nil)
	_ = r.CollisionSafeID(places.Descriptor{Identifier: "x", Query: "db_a?select=x"})
	_ = r.SetCachedGroup(ctx, "DB-x", populated("DB-x"))
	_ = r.AddGroup(ctx, populated("DB-x"), nil)

	if err := r.BeginCycle(ctx); err != nil {
		t.Fatalf("BeginCycle: %v", err)
	}
	if c.Len() != 0 {
		t.Fatalf("cache not purged")
	}
	if id := r.CollisionSafeID(places.Descriptor{Identifier: "x", Query: "db_other?select=x"}); id != "DB-x" {
		t.Fatalf("ids should be reassigned per cycle, got %s", id)
	}
	if _, ok := r.Group("DB-x"); !ok {
		t.Fatalf("catalog must survive a new cycle")
	}
}

func TestPropertyMapping_SubstitutesBaseURL(t *testing.T) {
	r := New(NewLRUCache(1, 0), nil)
	d := places.Descriptor{PropertyMapping: places.PropertyMapping{
		"label": "name",
		"image": "${base_url}/images/${ID}.jpg",
	}}
	pm := r.PropertyMapping("http://localhost:8090/", d)
	if pm["image"] != "http://localhost:8090/images/${ID}.jpg" || pm["label"] != "name" {
		t.Fatalf("mapping = %v", pm)
	}
	if d.PropertyMapping["image"] != "${base_url}/images/${ID}.jpg" {
		t.Fatalf("descriptor mapping mutated")
	}
}

func TestAddGroup_CatalogOrderDatasetFilterListeners(t *testing.T) {
	ctx := context.Background()
	var seen []string
	r := New(NewLRUCache(8, 0), nil,
		ListenerFunc(func(_ context.Context, g *places.PlaceGroup, _ []string) error {
			seen = append(seen, g.ID)
			return nil
		}),
		ListenerFunc(func(context.Context, *places.PlaceGroup, []string) error {
			return errors.New("listener down")
		}),
	)

	if err := r.AddGroup(ctx, populated("b"), []string{"ds1"}); err != nil {
		t.Fatalf("AddGroup: %v", err)
	}
	_ = r.AddGroup(ctx, populated("a"), []string{"ds2"})
	_ = r.AddGroup(ctx, populated("b"), []string{"ds1", "ds2"})

	all := r.Groups("")
	if len(all) != 2 || all[0].ID != "b" || all[1].ID != "a" {
		t.Fatalf("catalog order wrong: %v", all)
	}
	if got := r.Groups("ds1"); len(got) != 1 || got[0].ID != "b" {
		t.Fatalf("dataset filter wrong: %v", got)
	}
	if len(seen) != 3 {
		t.Fatalf("listener calls = %d", len(seen))
	}
}

func TestLRUCache_Expires(t *testing.T) {
	c := NewLRUCache(4, 20*time.Millisecond)
	ctx := context.Background()
	_ = c.Set(ctx, "a", populated("a"))
	if _, ok, _ := c.Get(ctx, "a"); !ok {
		t.Fatalf("expected hit")
	}
	time.Sleep(60 * time.Millisecond)
	if _, ok, _ := c.Get(ctx, "a"); ok {
		t.Fatalf("expected entry to expire")
	}
}
