package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crm-etl/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testCompany(id, domain string, industryID int64) model.Company {
	return model.Company{
		ID:            id,
		IndustryID:    industryID,
		Name:          "ACME CORP",
		Domain:        domain,
		Size:          "1000-5000",
		Country:       "US",
		CreatedDate:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		IsCustomer:    true,
		AnnualRevenue: decimal.NewFromInt(500000),
	}
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	// Second migrate is a no-op, not an error.
	require.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_InsertDimension_StableID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	id1, err := st.InsertDimension(ctx, model.DimIndustry, "SOFTWARE", "")
	require.NoError(t, err)

	// Same name again yields the same id, no duplicate row.
	id2, err := st.InsertDimension(ctx, model.DimIndustry, "SOFTWARE", "")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	dims, err := st.Dimensions(ctx, model.DimIndustry)
	require.NoError(t, err)
	require.Len(t, dims, 1)
	assert.Equal(t, "SOFTWARE", dims[0].Name)
}

func TestSQLite_InsertDimension_DescriptionSeeding(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.InsertDimension(ctx, model.DimStage, "CLOSED WON", "")
	require.NoError(t, err)

	// Seeding with a description fills it in.
	_, err = st.InsertDimension(ctx, model.DimStage, "CLOSED WON", "Deal signed")
	require.NoError(t, err)

	// A later resolve without description must not clear it.
	_, err = st.InsertDimension(ctx, model.DimStage, "CLOSED WON", "")
	require.NoError(t, err)

	dims, err := st.Dimensions(ctx, model.DimStage)
	require.NoError(t, err)
	require.Len(t, dims, 1)
	assert.Equal(t, "Deal signed", dims[0].Description)
}

func TestSQLite_Dimensions_UnknownKind(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.Dimensions(context.Background(), model.DimensionKind("users"))
	assert.Error(t, err)
}

func TestSQLite_InsertCompanies_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	indID, err := st.InsertDimension(ctx, model.DimIndustry, "SOFTWARE", "")
	require.NoError(t, err)

	err = st.InsertCompanies(ctx, []model.Company{
		testCompany("C1", "acme.com", indID),
		testCompany("C2", "globex.com", indID),
	})
	require.NoError(t, err)

	ids, err := st.EntityIDs(ctx, model.EntityCompanies)
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.Contains(t, ids, "C1")
	assert.Contains(t, ids, "C2")

	domains, err := st.UniqueValues(ctx, model.EntityCompanies, "domain")
	require.NoError(t, err)
	assert.Contains(t, domains, "acme.com")
}

func TestSQLite_InsertCompanies_DuplicateIDRollsBackBatch(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	indID, err := st.InsertDimension(ctx, model.DimIndustry, "SOFTWARE", "")
	require.NoError(t, err)

	require.NoError(t, st.InsertCompanies(ctx, []model.Company{testCompany("C1", "acme.com", indID)}))

	// Batch with one conflicting row fails as a whole.
	err = st.InsertCompanies(ctx, []model.Company{
		testCompany("C2", "globex.com", indID),
		testCompany("C1", "initech.com", indID),
	})
	require.Error(t, err)

	ids, err := st.EntityIDs(ctx, model.EntityCompanies)
	require.NoError(t, err)
	assert.Len(t, ids, 1, "failed batch must not be partially applied")
}

func TestSQLite_InsertContacts_NullablePhone(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	indID, err := st.InsertDimension(ctx, model.DimIndustry, "SOFTWARE", "")
	require.NoError(t, err)
	statusID, err := st.InsertDimension(ctx, model.DimContactStatus, "ACTIVE", "")
	require.NoError(t, err)
	require.NoError(t, st.InsertCompanies(ctx, []model.Company{testCompany("C1", "acme.com", indID)}))

	created := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	err = st.InsertContacts(ctx, []model.Contact{{
		ID:           "CT1",
		StatusID:     statusID,
		CompanyID:    "C1",
		Email:        "jane.doe@acme.com",
		FirstName:    "Jane",
		LastName:     "Doe",
		Title:        "VP Engineering",
		Phone:        "", // optional
		CreatedDate:  created,
		LastModified: created,
	}})
	require.NoError(t, err)

	emails, err := st.UniqueValues(ctx, model.EntityContacts, "email")
	require.NoError(t, err)
	assert.Contains(t, emails, "jane.doe@acme.com")
}

func TestSQLite_UniqueValues_ColumnWhitelist(t *testing.T) {
	st := newTestSQLiteStore(t)
	_, err := st.UniqueValues(context.Background(), model.EntityCompanies, "name; DROP TABLE companies")
	assert.Error(t, err)
}

func TestSQLite_RunLog_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := model.NewRunSummary("run-1", time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
	require.NoError(t, st.CreateRun(ctx, run))

	run.Counts(model.EntityCompanies).Processed = 10
	run.Counts(model.EntityCompanies).Loaded = 8
	run.Counts(model.EntityCompanies).Rejected = 2
	run.Status = model.RunStatusComplete
	completed := run.StartedAt.Add(5 * time.Minute)
	run.CompletedAt = &completed
	require.NoError(t, st.CompleteRun(ctx, run))

	runs, err := st.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, model.RunStatusComplete, runs[0].Status)
	assert.Equal(t, 8, runs[0].Entities[model.EntityCompanies].Loaded)
	require.NotNil(t, runs[0].CompletedAt)
}

func TestSQLite_CompleteRun_Unknown(t *testing.T) {
	st := newTestSQLiteStore(t)
	run := model.NewRunSummary("ghost", time.Now().UTC())
	err := st.CompleteRun(context.Background(), run)
	assert.ErrorContains(t, err, "not found")
}
