package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/crm-etl/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS schema_migrations (
	version    INTEGER PRIMARY KEY,
	applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS industries (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	description TEXT
);

CREATE TABLE IF NOT EXISTS products (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	description TEXT
);

CREATE TABLE IF NOT EXISTS stages (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	description TEXT
);

CREATE TABLE IF NOT EXISTS contact_statuses (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	description TEXT
);

CREATE TABLE IF NOT EXISTS forecast_categories (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	name        TEXT NOT NULL UNIQUE,
	description TEXT
);

CREATE TABLE IF NOT EXISTS companies (
	id             TEXT PRIMARY KEY,
	industry_id    INTEGER NOT NULL REFERENCES industries(id),
	name           TEXT NOT NULL,
	domain         TEXT NOT NULL UNIQUE,
	size           TEXT NOT NULL,
	country        TEXT NOT NULL,
	created_date   DATETIME NOT NULL,
	is_customer    BOOLEAN NOT NULL,
	annual_revenue REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts (
	id            TEXT PRIMARY KEY,
	status_id     INTEGER NOT NULL REFERENCES contact_statuses(id),
	company_id    TEXT NOT NULL REFERENCES companies(id),
	email         TEXT NOT NULL UNIQUE,
	first_name    TEXT NOT NULL,
	last_name     TEXT NOT NULL,
	title         TEXT NOT NULL,
	phone         TEXT,
	created_date  DATETIME NOT NULL,
	last_modified DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS opportunities (
	id                   TEXT PRIMARY KEY,
	name                 TEXT NOT NULL,
	contact_id           TEXT NOT NULL REFERENCES contacts(id),
	company_id           TEXT NOT NULL REFERENCES companies(id),
	stage_id             INTEGER NOT NULL REFERENCES stages(id),
	forecast_category_id INTEGER NOT NULL REFERENCES forecast_categories(id),
	product_id           INTEGER NOT NULL REFERENCES products(id),
	amount               REAL NOT NULL,
	probability          INTEGER NOT NULL,
	created_date         DATETIME NOT NULL,
	close_date           DATETIME NOT NULL,
	is_closed            BOOLEAN NOT NULL
);

CREATE TABLE IF NOT EXISTS activities (
	id               TEXT PRIMARY KEY,
	contact_id       TEXT NOT NULL REFERENCES contacts(id),
	type             TEXT NOT NULL,
	subject          TEXT NOT NULL,
	timestamp        DATETIME NOT NULL,
	duration_minutes INTEGER NOT NULL,
	outcome          TEXT NOT NULL,
	opportunity_id   TEXT REFERENCES opportunities(id),
	notes            TEXT
);

CREATE TABLE IF NOT EXISTS load_runs (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	summary      TEXT
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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteMigration); err != nil {
		return eris.Wrap(err, "sqlite: migrate")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_migrations (version) VALUES (?)`, schemaVersion)
	return eris.Wrap(err, "sqlite: record schema version")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Dimensions(ctx context.Context, kind model.DimensionKind) ([]model.Dimension, error) {
	if err := checkDimension(kind); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT id, name, COALESCE(description, '') FROM %s ORDER BY id`, kind))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list %s", kind)
	}
	defer rows.Close()

	var dims []model.Dimension
	for rows.Next() {
		var d model.Dimension
		if err := rows.Scan(&d.ID, &d.Name, &d.Description); err != nil {
			return nil, eris.Wrapf(err, "sqlite: scan %s", kind)
		}
		dims = append(dims, d)
	}
	return dims, eris.Wrapf(rows.Err(), "sqlite: iterate %s", kind)
}

func (s *SQLiteStore) InsertDimension(ctx context.Context, kind model.DimensionKind, name, description string) (int64, error) {
	if err := checkDimension(kind); err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (name, description) VALUES (?, NULLIF(?, ''))
		ON CONFLICT(name) DO UPDATE SET
			description = COALESCE(NULLIF(excluded.description, ''), %s.description)
		RETURNING id`, kind, kind)

	var id int64
	if err := s.db.QueryRowContext(ctx, query, name, description).Scan(&id); err != nil {
		return 0, eris.Wrapf(err, "sqlite: insert %s %q", kind, name)
	}
	return id, nil
}

func (s *SQLiteStore) EntityIDs(ctx context.Context, entity model.EntityType) (map[string]struct{}, error) {
	if err := checkEntity(entity); err != nil {
		return nil, err
	}
	return s.stringSet(ctx, fmt.Sprintf(`SELECT id FROM %s`, entity))
}

func (s *SQLiteStore) UniqueValues(ctx context.Context, entity model.EntityType, column string) (map[string]struct{}, error) {
	if err := checkUniqueColumn(entity, column); err != nil {
		return nil, err
	}
	return s.stringSet(ctx, fmt.Sprintf(`SELECT %s FROM %s`, column, entity))
}

func (s *SQLiteStore) stringSet(ctx context.Context, query string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: query %s", query)
	}
	defer rows.Close()

	set := make(map[string]struct{})
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan value")
		}
		set[v] = struct{}{}
	}
	return set, eris.Wrap(rows.Err(), "sqlite: iterate values")
}

// bulkInsert runs one prepared INSERT per row inside a single transaction,
// so a failing row rolls back the whole flush.
func (s *SQLiteStore) bulkInsert(ctx context.Context, query string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare insert")
	}
	defer stmt.Close() //nolint:errcheck

	for _, args := range rows {
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return eris.Wrap(err, "sqlite: insert row")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit")
}

func (s *SQLiteStore) InsertCompanies(ctx context.Context, rows []model.Company) error {
	args := make([][]any, 0, len(rows))
	for _, c := range rows {
		args = append(args, []any{
			c.ID, c.IndustryID, c.Name, c.Domain, c.Size, c.Country,
			c.CreatedDate, c.IsCustomer, c.AnnualRevenue.InexactFloat64(),
		})
	}
	return s.bulkInsert(ctx, `
		INSERT INTO companies (id, industry_id, name, domain, size, country, created_date, is_customer, annual_revenue)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, args)
}

func (s *SQLiteStore) InsertContacts(ctx context.Context, rows []model.Contact) error {
	args := make([][]any, 0, len(rows))
	for _, c := range rows {
		args = append(args, []any{
			c.ID, c.StatusID, c.CompanyID, c.Email, c.FirstName, c.LastName,
			c.Title, nullString(c.Phone), c.CreatedDate, c.LastModified,
		})
	}
	return s.bulkInsert(ctx, `
		INSERT INTO contacts (id, status_id, company_id, email, first_name, last_name, title, phone, created_date, last_modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args)
}

func (s *SQLiteStore) InsertOpportunities(ctx context.Context, rows []model.Opportunity) error {
	args := make([][]any, 0, len(rows))
	for _, o := range rows {
		args = append(args, []any{
			o.ID, o.Name, o.ContactID, o.CompanyID, o.StageID, o.ForecastCategoryID,
			o.ProductID, o.Amount.InexactFloat64(), o.Probability, o.CreatedDate,
			o.CloseDate, o.IsClosed,
		})
	}
	return s.bulkInsert(ctx, `
		INSERT INTO opportunities (id, name, contact_id, company_id, stage_id, forecast_category_id, product_id, amount, probability, created_date, close_date, is_closed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args)
}

func (s *SQLiteStore) InsertActivities(ctx context.Context, rows []model.Activity) error {
	args := make([][]any, 0, len(rows))
	for _, a := range rows {
		args = append(args, []any{
			a.ID, a.ContactID, a.Type, a.Subject, a.Timestamp,
			a.DurationMinutes, a.Outcome, nullStringPtr(a.OpportunityID), nullString(a.Notes),
		})
	}
	return s.bulkInsert(ctx, `
		INSERT INTO activities (id, contact_id, type, subject, timestamp, duration_minutes, outcome, opportunity_id, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, args)
}

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.RunSummary) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO load_runs (id, status, started_at) VALUES (?, ?, ?)`,
		run.ID, string(run.Status), run.StartedAt)
	return eris.Wrapf(err, "sqlite: create run %s", run.ID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, run *model.RunSummary) error {
	summaryJSON, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run summary")
	}

	completedAt := time.Now().UTC()
	if run.CompletedAt != nil {
		completedAt = *run.CompletedAt
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE load_runs SET status = ?, completed_at = ?, summary = ? WHERE id = ?`,
		string(run.Status), completedAt, string(summaryJSON), run.ID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", run.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: run not found: %s", run.ID)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, started_at, completed_at, summary FROM load_runs
		 ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.RunSummary
	for rows.Next() {
		var (
			r           model.RunSummary
			status      string
			completedAt sql.NullTime
			summaryJSON sql.NullString
		)
		if err := rows.Scan(&r.ID, &status, &r.StartedAt, &completedAt, &summaryJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		if summaryJSON.Valid {
			if err := json.Unmarshal([]byte(summaryJSON.String), &r); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal run summary")
			}
		}
		r.Status = model.RunStatus(status)
		if completedAt.Valid {
			t := completedAt.Time
			r.CompletedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
