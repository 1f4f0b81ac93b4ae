package store

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crm-etl/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgres_InsertDimension(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO industries \(name, description\)`).
		WithArgs("SOFTWARE", "").
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(7)))

	id, err := s.InsertDimension(context.Background(), model.DimIndustry, "SOFTWARE", "")
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertDimension_UnknownKind(t *testing.T) {
	s, _ := newMockPostgresStore(t)
	_, err := s.InsertDimension(context.Background(), model.DimensionKind("accounts"), "X", "")
	assert.Error(t, err)
}

func TestPostgres_Dimensions(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, name, COALESCE\(description, ''\) FROM stages`).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "description"}).
			AddRow(int64(1), "PROSPECTING", "").
			AddRow(int64(2), "CLOSED WON", "Deal signed"))

	dims, err := s.Dimensions(context.Background(), model.DimStage)
	require.NoError(t, err)
	require.Len(t, dims, 2)
	assert.Equal(t, "CLOSED WON", dims[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_EntityIDs(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id FROM companies`).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow("C1").AddRow("C2"))

	ids, err := s.EntityIDs(context.Background(), model.EntityCompanies)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "C1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertCompanies_Copy(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectCopyFrom([]string{"companies"}, companyColumns).WillReturnResult(1)

	err := s.InsertCompanies(context.Background(), []model.Company{testCompany("C1", "acme.com", 1)})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_InsertCompanies_Empty(t *testing.T) {
	s, _ := newMockPostgresStore(t)
	// No COPY expected for an empty flush.
	require.NoError(t, s.InsertCompanies(context.Background(), nil))
}

func TestPostgres_CreateAndCompleteRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	run := model.NewRunSummary("run-9", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))

	mock.ExpectExec(`INSERT INTO load_runs`).
		WithArgs("run-9", "running", run.StartedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, s.CreateRun(context.Background(), run))

	run.Status = model.RunStatusComplete
	completed := run.StartedAt.Add(time.Minute)
	run.CompletedAt = &completed
	mock.ExpectExec(`UPDATE load_runs SET status`).
		WithArgs("complete", completed, pgxmock.AnyArg(), "run-9").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	require.NoError(t, s.CompleteRun(context.Background(), run))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_CompleteRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	run := model.NewRunSummary("ghost", time.Now().UTC())
	run.Status = model.RunStatusFailed
	mock.ExpectExec(`UPDATE load_runs SET status`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.CompleteRun(context.Background(), run)
	assert.ErrorContains(t, err, "not found")
}

func TestIsFatal(t *testing.T) {
	assert.False(t, IsFatal(nil))
	assert.False(t, IsFatal(assert.AnError))
	assert.True(t, IsFatal(context.Canceled))
	assert.True(t, IsFatal(context.DeadlineExceeded))
}
