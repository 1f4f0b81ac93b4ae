// Package resolver maps dimension names appearing in source records to
// their dimension table ids, creating each missing dimension exactly once
// per run regardless of how many records reference it.
package resolver

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crm-etl/internal/model"
	"github.com/sells-group/crm-etl/internal/store"
)

// Resolver caches dimension ids by case-normalized name. It is safe for
// concurrent use; the mutex spans the check-then-insert so two records
// naming the same new dimension cannot both create it.
type Resolver struct {
	store store.Store
	log   *zap.Logger

	mu    sync.Mutex
	cache map[model.DimensionKind]map[string]model.Dimension
}

// New creates a Resolver backed by the given store.
func New(st store.Store) *Resolver {
	cache := make(map[model.DimensionKind]map[string]model.Dimension, len(model.DimensionKinds))
	for _, kind := range model.DimensionKinds {
		cache[kind] = make(map[string]model.Dimension)
	}
	return &Resolver{
		store: st,
		log:   zap.L().With(zap.String("component", "resolver")),
		cache: cache,
	}
}

// Key normalizes a dimension name for matching: surrounding whitespace
// stripped, then uppercased. "enterprise" and " Enterprise " resolve to the
// same dimension.
func Key(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// Prime loads every existing dimension into the cache so a run starts with
// the full set of known names and only genuinely new ones hit the store.
func (r *Resolver) Prime(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, kind := range model.DimensionKinds {
		dims, err := r.store.Dimensions(ctx, kind)
		if err != nil {
			return eris.Wrapf(err, "resolver: prime %s", kind)
		}
		for _, d := range dims {
			r.cache[kind][Key(d.Name)] = d
		}
		r.log.Debug("primed dimension cache",
			zap.String("kind", string(kind)),
			zap.Int("count", len(dims)))
	}
	return nil
}

// Resolve returns the id for the named dimension, inserting it first if no
// dimension with that name (case-insensitively) exists yet. The name must
// already be validated and canonically cased by the caller.
func (r *Resolver) Resolve(ctx context.Context, kind model.DimensionKind, name string) (int64, error) {
	key := Key(name)
	if key == "" {
		return 0, eris.Errorf("resolver: empty %s name", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byName, ok := r.cache[kind]
	if !ok {
		return 0, eris.Errorf("resolver: unknown dimension kind %q", kind)
	}
	if d, ok := byName[key]; ok {
		return d.ID, nil
	}

	id, err := r.store.InsertDimension(ctx, kind, name, "")
	if err != nil {
		return 0, eris.Wrapf(err, "resolver: insert %s %q", kind, name)
	}
	byName[key] = model.Dimension{ID: id, Name: name}
	r.log.Info("created dimension",
		zap.String("kind", string(kind)),
		zap.String("name", name),
		zap.Int64("id", id))
	return id, nil
}

// Seed upserts a dimension with a description, used by migrate --seed. A
// seed name matching an existing dimension case-insensitively updates that
// row's description rather than creating a second row, so the caller must
// Prime first. The cache is updated so a load in the same process sees the
// seeded row.
func (r *Resolver) Seed(ctx context.Context, kind model.DimensionKind, name, description string) (int64, error) {
	key := Key(name)
	if key == "" {
		return 0, eris.Errorf("resolver: empty %s name", kind)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	byName, ok := r.cache[kind]
	if !ok {
		return 0, eris.Errorf("resolver: unknown dimension kind %q", kind)
	}

	// Keep the stored spelling when the seed is a case variant of a known
	// name; the store upsert matches on the exact string.
	stored := name
	if existing, ok := byName[key]; ok {
		stored = existing.Name
	}

	id, err := r.store.InsertDimension(ctx, kind, stored, description)
	if err != nil {
		return 0, eris.Wrapf(err, "resolver: seed %s %q", kind, name)
	}
	byName[key] = model.Dimension{ID: id, Name: stored, Description: description}
	return id, nil
}
