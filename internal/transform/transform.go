// Package transform turns raw source records into validated entity rows.
// One transformer per entity applies every column's validator, resolves
// dimension names to ids, and checks entity foreign keys against the ids the
// loader already knows. All failures for a record are collected so its error
// report is complete; a record with any failure is rejected whole.
package transform

import (
	"context"
	"time"

	"github.com/sells-group/crm-etl/internal/model"
)

// KeyIndex reports whether an entity id is already known, either persisted
// or accepted earlier in the current run. The loader satisfies this.
type KeyIndex interface {
	Has(entity model.EntityType, id string) bool
}

// DimensionResolver maps a validated dimension name to its surrogate id,
// creating the dimension on first sight. Errors are store-level and abort
// the record's transform, not a validation failure.
type DimensionResolver interface {
	Resolve(ctx context.Context, kind model.DimensionKind, name string) (int64, error)
}

// Transformer validates raw records for every entity type. Safe for use
// from a single goroutine per run; cross-entity state lives in the KeyIndex
// and UniqueIndex it was built with.
type Transformer struct {
	dims   DimensionResolver
	keys   KeyIndex
	unique *UniqueIndex
	now    func() time.Time
}

// New creates a Transformer.
func New(dims DimensionResolver, keys KeyIndex, unique *UniqueIndex) *Transformer {
	return &Transformer{dims: dims, keys: keys, unique: unique, now: time.Now}
}

// collector gathers typed failures for one record in column order.
type collector struct {
	rec      model.RawRecord
	failures []model.Failure
}

func (c *collector) fail(field, format string, args ...any) {
	c.failures = append(c.failures, model.FieldFailure(field, format, args...))
}

func (c *collector) failRef(field, format string, args ...any) {
	c.failures = append(c.failures, model.ReferenceFailure(field, format, args...))
}

// required runs a string validator against a column that must be present.
func required[T any](c *collector, field string, fn func(string) (T, error)) (T, bool) {
	raw, ok := c.rec.Get(field)
	if !ok {
		var zero T
		c.fail(field, "missing column")
		return zero, false
	}
	v, err := fn(raw)
	if err != nil {
		var zero T
		c.fail(field, "%s", err.Error())
		return zero, false
	}
	return v, true
}

// optional runs a validator only when the column is present and non-blank.
// The second return is true when a validated value was produced.
func optional[T any](c *collector, field string, fn func(string) (T, error)) (T, bool) {
	var zero T
	raw, ok := c.rec.Get(field)
	if !ok || raw == "" {
		return zero, false
	}
	v, err := fn(raw)
	if err != nil {
		c.fail(field, "%s", err.Error())
		return zero, false
	}
	return v, true
}

var singular = map[model.EntityType]string{
	model.EntityCompanies:     "company",
	model.EntityContacts:      "contact",
	model.EntityOpportunities: "opportunity",
	model.EntityActivities:    "activity",
}

// reference validates an entity foreign-key column: the id must be
// non-blank and already known to the loader. Entity rows are never created
// on the fly.
func (t *Transformer) reference(c *collector, field string, entity model.EntityType, id string, ok bool) bool {
	if !ok {
		return false
	}
	if !t.keys.Has(entity, id) {
		c.failRef(field, "unknown %s %q", singular[entity], id)
		return false
	}
	return true
}

// resolve maps a validated dimension name to its id. Resolution is skipped
// when the name failed validation.
func (t *Transformer) resolve(ctx context.Context, kind model.DimensionKind, name string, ok bool) (int64, error) {
	if !ok {
		return 0, nil
	}
	return t.dims.Resolve(ctx, kind, name)
}
