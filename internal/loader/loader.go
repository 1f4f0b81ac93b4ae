// Package loader owns all entity writes: it decides insert-vs-skip per
// primary key, stages validated rows into per-entity buffers, and flushes
// them as bulk inserts. A failed flush demotes that batch to the error
// report; only connection-level failures abort the run.
package loader

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/crm-etl/internal/model"
	"github.com/sells-group/crm-etl/internal/report"
	"github.com/sells-group/crm-etl/internal/store"
)

// DefaultFlushSize bounds how many validated rows are staged per entity
// before a bulk insert.
const DefaultFlushSize = 500

// Loader tracks which ids already exist and batches the rest for insert.
// It is the only component that writes entity rows to the store.
type Loader struct {
	store     store.Store
	reporter  *report.Reporter
	flushSize int
	log       *zap.Logger

	// seen holds ids persisted before this run plus ids flushed during it.
	// staged holds ids currently buffered. Has consults both so a dependent
	// entity can reference a row accepted earlier in the same run.
	seen   map[model.EntityType]map[string]struct{}
	staged map[model.EntityType]map[string]struct{}

	loaded  map[model.EntityType]int
	skipped map[model.EntityType]int

	companies     []model.Company
	contacts      []model.Contact
	opportunities []model.Opportunity
	activities    []model.Activity
}

// New creates a Loader flushing batches of flushSize rows.
func New(st store.Store, rep *report.Reporter, flushSize int) *Loader {
	if flushSize <= 0 {
		flushSize = DefaultFlushSize
	}
	l := &Loader{
		store:     st,
		reporter:  rep,
		flushSize: flushSize,
		log:       zap.L().With(zap.String("component", "loader")),
		seen:      make(map[model.EntityType]map[string]struct{}, len(model.LoadOrder)),
		staged:    make(map[model.EntityType]map[string]struct{}, len(model.LoadOrder)),
		loaded:    make(map[model.EntityType]int),
		skipped:   make(map[model.EntityType]int),
	}
	for _, entity := range model.LoadOrder {
		l.seen[entity] = make(map[string]struct{})
		l.staged[entity] = make(map[string]struct{})
	}
	return l
}

// Prime loads the set of already-persisted ids for every entity so rerun
// records can be skipped without a per-record store round-trip.
func (l *Loader) Prime(ctx context.Context) error {
	for _, entity := range model.LoadOrder {
		ids, err := l.store.EntityIDs(ctx, entity)
		if err != nil {
			return eris.Wrapf(err, "loader: prime %s ids", entity)
		}
		l.seen[entity] = ids
		l.log.Debug("primed id set",
			zap.String("entity", string(entity)),
			zap.Int("count", len(ids)))
	}
	return nil
}

// Has reports whether an entity id is known: persisted before the run,
// flushed during it, or staged in the current buffer.
func (l *Loader) Has(entity model.EntityType, id string) bool {
	if _, ok := l.seen[entity][id]; ok {
		return true
	}
	_, ok := l.staged[entity][id]
	return ok
}

// SkipIfLoaded records a skip when the id is already known and reports
// whether it did. Called before transform so a rerun of a persisted record
// is a skip, not a re-validation that would trip the natural-key checks.
func (l *Loader) SkipIfLoaded(entity model.EntityType, id string) bool {
	if id == "" || !l.Has(entity, id) {
		return false
	}
	l.skipped[entity]++
	return true
}

// Loaded returns how many rows were inserted for an entity so far.
func (l *Loader) Loaded(entity model.EntityType) int { return l.loaded[entity] }

// Skipped returns how many rows were skipped as already persisted.
func (l *Loader) Skipped(entity model.EntityType) int { return l.skipped[entity] }

// admit decides insert-vs-skip for one id. It returns true when the row
// should be staged.
func (l *Loader) admit(entity model.EntityType, id string) bool {
	if l.Has(entity, id) {
		l.skipped[entity]++
		return false
	}
	l.staged[entity][id] = struct{}{}
	return true
}

// AddCompany stages one validated company, flushing when the buffer fills.
func (l *Loader) AddCompany(ctx context.Context, row model.Company) error {
	if !l.admit(model.EntityCompanies, row.ID) {
		return nil
	}
	l.companies = append(l.companies, row)
	if len(l.companies) >= l.flushSize {
		return l.Flush(ctx, model.EntityCompanies)
	}
	return nil
}

// AddContact stages one validated contact, flushing when the buffer fills.
func (l *Loader) AddContact(ctx context.Context, row model.Contact) error {
	if !l.admit(model.EntityContacts, row.ID) {
		return nil
	}
	l.contacts = append(l.contacts, row)
	if len(l.contacts) >= l.flushSize {
		return l.Flush(ctx, model.EntityContacts)
	}
	return nil
}

// AddOpportunity stages one validated opportunity, flushing when the buffer
// fills.
func (l *Loader) AddOpportunity(ctx context.Context, row model.Opportunity) error {
	if !l.admit(model.EntityOpportunities, row.ID) {
		return nil
	}
	l.opportunities = append(l.opportunities, row)
	if len(l.opportunities) >= l.flushSize {
		return l.Flush(ctx, model.EntityOpportunities)
	}
	return nil
}

// AddActivity stages one validated activity, flushing when the buffer fills.
func (l *Loader) AddActivity(ctx context.Context, row model.Activity) error {
	if !l.admit(model.EntityActivities, row.ID) {
		return nil
	}
	l.activities = append(l.activities, row)
	if len(l.activities) >= l.flushSize {
		return l.Flush(ctx, model.EntityActivities)
	}
	return nil
}

// Flush bulk-inserts the staged buffer for one entity. On a non-fatal store
// error every row in the batch is demoted to the error report and the run
// continues; a fatal error (connection loss, cancellation) is returned.
func (l *Loader) Flush(ctx context.Context, entity model.EntityType) error {
	var (
		ids []string
		err error
	)
	switch entity {
	case model.EntityCompanies:
		if len(l.companies) == 0 {
			return nil
		}
		err = l.store.InsertCompanies(ctx, l.companies)
		for _, row := range l.companies {
			ids = append(ids, row.ID)
		}
		l.companies = l.companies[:0]
	case model.EntityContacts:
		if len(l.contacts) == 0 {
			return nil
		}
		err = l.store.InsertContacts(ctx, l.contacts)
		for _, row := range l.contacts {
			ids = append(ids, row.ID)
		}
		l.contacts = l.contacts[:0]
	case model.EntityOpportunities:
		if len(l.opportunities) == 0 {
			return nil
		}
		err = l.store.InsertOpportunities(ctx, l.opportunities)
		for _, row := range l.opportunities {
			ids = append(ids, row.ID)
		}
		l.opportunities = l.opportunities[:0]
	case model.EntityActivities:
		if len(l.activities) == 0 {
			return nil
		}
		err = l.store.InsertActivities(ctx, l.activities)
		for _, row := range l.activities {
			ids = append(ids, row.ID)
		}
		l.activities = l.activities[:0]
	default:
		return eris.Errorf("loader: unknown entity %q", entity)
	}

	if err == nil {
		for _, id := range ids {
			delete(l.staged[entity], id)
			l.seen[entity][id] = struct{}{}
		}
		l.loaded[entity] += len(ids)
		l.log.Debug("flushed batch",
			zap.String("entity", string(entity)),
			zap.Int("rows", len(ids)))
		return nil
	}

	if store.IsFatal(err) {
		return eris.Wrapf(err, "loader: flush %s", entity)
	}

	reason := eris.ToString(err, false)
	for _, id := range ids {
		delete(l.staged[entity], id)
		l.reporter.Record(entity, id, []model.Failure{model.PersistFailure(reason)})
	}
	l.log.Warn("batch demoted to error report",
		zap.String("entity", string(entity)),
		zap.Int("rows", len(ids)),
		zap.Error(err))
	return nil
}

// Rejected returns the reporter's rejection count for an entity, batch
// demotions included.
func (l *Loader) Rejected(entity model.EntityType) int {
	return l.reporter.Count(entity)
}
