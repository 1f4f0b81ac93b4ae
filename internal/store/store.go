// Package store persists validated CRM rows, lookup dimensions, and run
// history behind a single interface with SQLite and Postgres backends.
package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-etl/internal/model"
)

// Store is the persistence contract the load pipeline writes through. All
// entity writes are append-only; previously loaded rows are never mutated.
type Store interface {
	// Dimensions
	Dimensions(ctx context.Context, kind model.DimensionKind) ([]model.Dimension, error)
	// InsertDimension upserts a dimension row by its case-normalized name
	// and returns its stable id. A non-empty description overwrites the
	// stored one; the empty string leaves it untouched.
	InsertDimension(ctx context.Context, kind model.DimensionKind, name, description string) (int64, error)

	// Existence pre-checks
	EntityIDs(ctx context.Context, entity model.EntityType) (map[string]struct{}, error)
	UniqueValues(ctx context.Context, entity model.EntityType, column string) (map[string]struct{}, error)

	// Bulk inserts, one flush each
	InsertCompanies(ctx context.Context, rows []model.Company) error
	InsertContacts(ctx context.Context, rows []model.Contact) error
	InsertOpportunities(ctx context.Context, rows []model.Opportunity) error
	InsertActivities(ctx context.Context, rows []model.Activity) error

	// Run history
	CreateRun(ctx context.Context, run *model.RunSummary) error
	CompleteRun(ctx context.Context, run *model.RunSummary) error
	ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// schemaVersion is the current relational schema version recorded in
// schema_migrations by Migrate.
const schemaVersion = 1

// IsFatal reports whether a store error means the database itself is gone
// (connection loss, cancellation). Fatal errors abort the run; anything else
// from a flush only demotes that batch.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, sql.ErrConnDone) || errors.Is(err, driver.ErrBadConn) {
		return true
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return true
	}
	if pgconn.Timeout(err) {
		return true
	}
	return false
}

// uniqueColumns whitelists the natural-key columns UniqueValues may read.
var uniqueColumns = map[model.EntityType]map[string]bool{
	model.EntityCompanies: {"domain": true},
	model.EntityContacts:  {"email": true},
}

func checkUniqueColumn(entity model.EntityType, column string) error {
	if !uniqueColumns[entity][column] {
		return eris.Errorf("store: no unique column %q on %s", column, entity)
	}
	return nil
}

func checkEntity(entity model.EntityType) error {
	switch entity {
	case model.EntityCompanies, model.EntityContacts, model.EntityOpportunities, model.EntityActivities:
		return nil
	default:
		return eris.Errorf("store: unknown entity %q", entity)
	}
}

func checkDimension(kind model.DimensionKind) error {
	switch kind {
	case model.DimIndustry, model.DimProduct, model.DimStage, model.DimContactStatus, model.DimForecastCategory:
		return nil
	default:
		return eris.Errorf("store: unknown dimension kind %q", kind)
	}
}
