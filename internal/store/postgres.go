package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-etl/internal/db"
	"github.com/sells-group/crm-etl/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS industries (
	id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT
);

CREATE TABLE IF NOT EXISTS products (
	id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT
);

CREATE TABLE IF NOT EXISTS stages (
	id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT
);

CREATE TABLE IF NOT EXISTS contact_statuses (
	id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT
);

CREATE TABLE IF NOT EXISTS forecast_categories (
	id          BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	name        TEXT NOT NULL UNIQUE,
	description TEXT
);

CREATE TABLE IF NOT EXISTS companies (
	id             TEXT PRIMARY KEY,
	industry_id    BIGINT NOT NULL REFERENCES industries(id),
	name           TEXT NOT NULL,
	domain         TEXT NOT NULL UNIQUE,
	size           TEXT NOT NULL,
	country        TEXT NOT NULL,
	created_date   TIMESTAMPTZ NOT NULL,
	is_customer    BOOLEAN NOT NULL,
	annual_revenue DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts (
	id            TEXT PRIMARY KEY,
	status_id     BIGINT NOT NULL REFERENCES contact_statuses(id),
	company_id    TEXT NOT NULL REFERENCES companies(id),
	email         TEXT NOT NULL UNIQUE,
	first_name    TEXT NOT NULL,
	last_name     TEXT NOT NULL,
	title         TEXT NOT NULL,
	phone         TEXT,
	created_date  TIMESTAMPTZ NOT NULL,
	last_modified TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS opportunities (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	contact_id           TEXT NOT NULL REFERENCES contacts(id),
	company_id           TEXT NOT NULL REFERENCES companies(id),
	stage_id             BIGINT NOT NULL REFERENCES stages(id),
	forecast_category_id BIGINT NOT NULL REFERENCES forecast_categories(id),
	product_id           BIGINT NOT NULL REFERENCES products(id),
	amount               DOUBLE PRECISION NOT NULL,
	probability          INTEGER NOT NULL,
	created_date         TIMESTAMPTZ NOT NULL,
	close_date           TIMESTAMPTZ NOT NULL,
	is_closed            BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS activities (
	id               TEXT PRIMARY KEY,
	contact_id       TEXT NOT NULL REFERENCES contacts(id),
	type             TEXT NOT NULL,
	subject          TEXT NOT NULL,
	timestamp        TIMESTAMPTZ NOT NULL,
	duration_minutes INTEGER NOT NULL,
	outcome          TEXT NOT NULL,
	opportunity_id   TEXT REFERENCES opportunities(id),
	notes            TEXT
);

CREATE TABLE IF NOT EXISTS load_runs (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ,
	summary      JSONB
);

CREATE INDEX IF NOT EXISTS idx_companies_domain ON companies(domain);
CREATE INDEX IF NOT EXISTS idx_companies_industry_id ON companies(industry_id);
CREATE INDEX IF NOT EXISTS idx_contacts_email ON contacts(email);
CREATE INDEX IF NOT EXISTS idx_contacts_company_id ON contacts(company_id);
CREATE INDEX IF NOT EXISTS idx_opportunities_company_id ON opportunities(company_id);
CREATE INDEX IF NOT EXISTS idx_opportunities_contact_id ON opportunities(contact_id);
CREATE INDEX IF NOT EXISTS idx_activities_contact_id ON activities(contact_id);
CREATE INDEX IF NOT EXISTS idx_activities_timestamp ON activities(timestamp);
CREATE INDEX IF NOT EXISTS idx_load_runs_started_at ON load_runs(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT (version) DO NOTHING`,
		schemaVersion)
	return eris.Wrap(err, "postgres: record schema version")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Dimensions(ctx context.Context, kind model.DimensionKind) ([]model.Dimension, error) {
	if err := checkDimension(kind); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx,
		fmt.Sprintf(`SELECT id, name, COALESCE(description, '') FROM %s ORDER BY id`, kind))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list %s", kind)
	}
	defer rows.Close()

	var dims []model.Dimension
	for rows.Next() {
		var d model.Dimension
		if err := rows.Scan(&d.ID, &d.Name, &d.Description); err != nil {
			return nil, eris.Wrapf(err, "postgres: scan %s", kind)
		}
		dims = append(dims, d)
	}
	return dims, eris.Wrapf(rows.Err(), "postgres: iterate %s", kind)
}

func (s *PostgresStore) InsertDimension(ctx context.Context, kind model.DimensionKind, name, description string) (int64, error) {
	if err := checkDimension(kind); err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (name, description) VALUES ($1, NULLIF($2, ''))
		ON CONFLICT (name) DO UPDATE SET
			description = COALESCE(NULLIF(EXCLUDED.description, ''), %s.description)
		RETURNING id`, kind, kind)

	var id int64
	if err := s.pool.QueryRow(ctx, query, name, description).Scan(&id); err != nil {
		return 0, eris.Wrapf(err, "postgres: insert %s %q", kind, name)
	}
	return id, nil
}

func (s *PostgresStore) EntityIDs(ctx context.Context, entity model.EntityType) (map[string]struct{}, error) {
	if err := checkEntity(entity); err != nil {
		return nil, err
	}
	return s.stringSet(ctx, fmt.Sprintf(`SELECT id FROM %s`, entity))
}

func (s *PostgresStore) UniqueValues(ctx context.Context, entity model.EntityType, column string) (map[string]struct{}, error) {
	if err := checkUniqueColumn(entity, column); err != nil {
		return nil, err
	}
	return s.stringSet(ctx, fmt.Sprintf(`SELECT %s FROM %s`, column, entity))
}

func (s *PostgresStore) stringSet(ctx context.Context, query string) (map[string]struct{}, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: query %s", query)
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrap(err, "postgres: scan value")
		}
		set[v] = struct{}{}
	}
	return set, eris.Wrap(rows.Err(), "postgres: iterate values")
}

var (
	companyColumns = []string{"id", "industry_id", "name", "domain", "size", "country", "created_date", "is_customer", "annual_revenue"}
	contactColumns = []string{"id", "status_id", "company_id", "email", "first_name", "last_name", "title", "phone", "created_date", "last_modified"}
	oppColumns     = []string{"id", "name", "contact_id", "company_id", "stage_id", "forecast_category_id", "product_id", "amount", "probability", "created_date", "close_date", "is_closed"}
	actColumns     = []string{"id", "contact_id", "type", "subject", "timestamp", "duration_minutes", "outcome", "opportunity_id", "notes"}
)

func (s *PostgresStore) InsertCompanies(ctx context.Context, rows []model.Company) error {
	copyRows := make([][]any, 0, len(rows))
	for _, c := range rows {
		copyRows = append(copyRows, []any{
			c.ID, c.IndustryID, c.Name, c.Domain, c.Size, c.Country,
			c.CreatedDate, c.IsCustomer, c.AnnualRevenue.InexactFloat64(),
		})
	}
	_, err := db.CopyInto(ctx, s.pool, "companies", companyColumns, copyRows)
	return err
}

func (s *PostgresStore) InsertContacts(ctx context.Context, rows []model.Contact) error {
	copyRows := make([][]any, 0, len(rows))
	for _, c := range rows {
		copyRows = append(copyRows, []any{
			c.ID, c.StatusID, c.CompanyID, c.Email, c.FirstName, c.LastName,
			c.Title, textOrNil(c.Phone), c.CreatedDate, c.LastModified,
		})
	}
	_, err := db.CopyInto(ctx, s.pool, "contacts", contactColumns, copyRows)
	return err
}

func (s *PostgresStore) InsertOpportunities(ctx context.Context, rows []model.Opportunity) error {
	copyRows := make([][]any, 0, len(rows))
	for _, o := range rows {
		copyRows = append(copyRows, []any{
			o.ID, o.Name, o.ContactID, o.CompanyID, o.StageID, o.ForecastCategoryID,
			o.ProductID, o.Amount.InexactFloat64(), o.Probability, o.CreatedDate,
			o.CloseDate, o.IsClosed,
		})
	}
	_, err := db.CopyInto(ctx, s.pool, "opportunities", oppColumns, copyRows)
	return err
}

func (s *PostgresStore) InsertActivities(ctx context.Context, rows []model.Activity) error {
	copyRows := make([][]any, 0, len(rows))
	for _, a := range rows {
		copyRows = append(copyRows, []any{
			a.ID, a.ContactID, a.Type, a.Subject, a.Timestamp,
			a.DurationMinutes, a.Outcome, a.OpportunityID, textOrNil(a.Notes),
		})
	}
	_, err := db.CopyInto(ctx, s.pool, "activities", actColumns, copyRows)
	return err
}

func (s *PostgresStore) CreateRun(ctx context.Context, run *model.RunSummary) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO load_runs (id, status, started_at) VALUES ($1, $2, $3)`,
		run.ID, string(run.Status), run.StartedAt)
	return eris.Wrapf(err, "postgres: create run %s", run.ID)
}

func (s *PostgresStore) CompleteRun(ctx context.Context, run *model.RunSummary) error {
	summaryJSON, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run summary")
	}

	completedAt := time.Now().UTC()
	if run.CompletedAt != nil {
		completedAt = *run.CompletedAt
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE load_runs SET status = $1, completed_at = $2, summary = $3 WHERE id = $4`,
		string(run.Status), completedAt, summaryJSON, run.ID)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", run.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: run not found: %s", run.ID)
	}
	return nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.pool.Query(ctx,
		`SELECT id, status, started_at, completed_at, summary FROM load_runs
		 ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.RunSummary
	for rows.Next() {
		var (
			r           model.RunSummary
			status      string
			completedAt *time.Time
			summaryJSON []byte
		)
		if err := rows.Scan(&r.ID, &status, &r.StartedAt, &completedAt, &summaryJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		if len(summaryJSON) > 0 {
			if err := json.Unmarshal(summaryJSON, &r); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal run summary")
			}
		}
		r.Status = model.RunStatus(status)
		r.CompletedAt = completedAt
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}

// textOrNil maps the empty string to NULL for optional text columns.
func textOrNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ensure both backends keep satisfying the interface
var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
)
