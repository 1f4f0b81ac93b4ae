package transform

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/crm-etl/internal/model"
)

// fakeDims hands out sequential ids per normalized name, in memory.
type fakeDims struct {
	ids  map[string]int64
	next int64
}

func (f *fakeDims) Resolve(_ context.Context, kind model.DimensionKind, name string) (int64, error) {
	if f.ids == nil {
		f.ids = make(map[string]int64)
	}
	key := string(kind) + "/" + name
	if id, ok := f.ids[key]; ok {
		return id, nil
	}
	f.next++
	f.ids[key] = f.next
	return f.next, nil
}

// fakeKeys is a KeyIndex over a fixed set of entity ids.
type fakeKeys map[string]struct{}

func (f fakeKeys) Has(entity model.EntityType, id string) bool {
	_, ok := f[string(entity)+"/"+id]
	return ok
}

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestTransformer(keys fakeKeys) *Transformer {
	t := New(&fakeDims{}, keys, NewUniqueIndex())
	t.now = func() time.Time { return testNow }
	return t
}

func validCompanyRecord() model.RawRecord {
	return model.RawRecord{
		"id":             "C1",
		"name":           "Acme Corp",
		"industry":       "software",
		"domain":         "Acme.COM",
		"size":           "1000-5000",
		"country":        "United States",
		"created_date":   "2024-01-15",
		"is_customer":    "yes",
		"annual_revenue": "500000.50",
	}
}

func TestCompany_ValidRecordNormalizes(t *testing.T) {
	tr := newTestTransformer(nil)

	row, failures, err := tr.Company(context.Background(), validCompanyRecord())
	require.NoError(t, err)
	require.Empty(t, failures)
	require.NotNil(t, row)

	assert.Equal(t, "C1", row.ID)
	assert.Equal(t, "ACME CORP", row.Name)
	assert.Equal(t, "acme.com", row.Domain)
	assert.Equal(t, "US", row.Country)
	assert.Equal(t, "1000-5000", row.Size)
	assert.True(t, row.IsCustomer)
	assert.Equal(t, "500000.5", row.AnnualRevenue.String())
	assert.NotZero(t, row.IndustryID)
}

func TestCompany_CollectsAllFailures(t *testing.T) {
	tr := newTestTransformer(nil)
	rec := validCompanyRecord()
	rec["domain"] = "not a domain"
	rec["size"] = "5000-1000"
	rec["country"] = "Atlantis"

	row, failures, err := tr.Company(context.Background(), rec)
	require.NoError(t, err)
	assert.Nil(t, row)
	require.Len(t, failures, 3)

	// Failures arrive in column declaration order.
	assert.Equal(t, "domain", failures[0].Field)
	assert.Equal(t, "size", failures[1].Field)
	assert.Equal(t, "country", failures[2].Field)
	for _, f := range failures {
		assert.Equal(t, model.FailureFieldValidation, f.Kind)
	}
}

func TestCompany_MissingColumn(t *testing.T) {
	tr := newTestTransformer(nil)
	rec := validCompanyRecord()
	delete(rec, "annual_revenue")

	row, failures, err := tr.Company(context.Background(), rec)
	require.NoError(t, err)
	assert.Nil(t, row)
	require.Len(t, failures, 1)
	assert.Equal(t, "annual_revenue", failures[0].Field)
	assert.Contains(t, failures[0].Reason, "missing")
}

func TestCompany_DuplicateDomain(t *testing.T) {
	tr := newTestTransformer(nil)
	ctx := context.Background()

	_, failures, err := tr.Company(ctx, validCompanyRecord())
	require.NoError(t, err)
	require.Empty(t, failures)

	dup := validCompanyRecord()
	dup["id"] = "C2"
	dup["domain"] = "ACME.com" // case variant of a claimed domain
	row, failures, err := tr.Company(ctx, dup)
	require.NoError(t, err)
	assert.Nil(t, row)
	require.Len(t, failures, 1)
	assert.Equal(t, "domain", failures[0].Field)
	assert.Contains(t, failures[0].Reason, "duplicate")
}

func TestCompany_RejectedRecordDoesNotClaimDomain(t *testing.T) {
	tr := newTestTransformer(nil)
	ctx := context.Background()

	bad := validCompanyRecord()
	bad["size"] = "garbage"
	_, failures, err := tr.Company(ctx, bad)
	require.NoError(t, err)
	require.NotEmpty(t, failures)

	// Same domain on a valid record must now be accepted.
	good := validCompanyRecord()
	good["id"] = "C2"
	row, failures, err := tr.Company(ctx, good)
	require.NoError(t, err)
	assert.Empty(t, failures)
	assert.NotNil(t, row)
}

func TestCompany_FutureCreatedDate(t *testing.T) {
	tr := newTestTransformer(nil)
	rec := validCompanyRecord()
	rec["created_date"] = "2030-01-01"

	row, failures, err := tr.Company(context.Background(), rec)
	require.NoError(t, err)
	assert.Nil(t, row)
	require.Len(t, failures, 1)
	assert.Equal(t, "created_date", failures[0].Field)
}

func validContactRecord() model.RawRecord {
	return model.RawRecord{
		"id":            "CT1",
		"company_id":    "C1",
		"status":        "active",
		"email":         "Jane.Doe@Acme.com",
		"first_name":    "jane",
		"last_name":     "DOE",
		"title":         "  Chief Technology Officer ",
		"phone":         "+1 (415) 555-0100",
		"created_date":  "2024-02-01",
		"last_modified": "2024-03-01",
	}
}

func contactKeys() fakeKeys {
	return fakeKeys{"companies/C1": {}}
}

func TestContact_ValidRecordNormalizes(t *testing.T) {
	tr := newTestTransformer(contactKeys())

	row, failures, err := tr.Contact(context.Background(), validContactRecord())
	require.NoError(t, err)
	require.Empty(t, failures)
	require.NotNil(t, row)

	assert.Equal(t, "jane.doe@acme.com", row.Email)
	assert.Equal(t, "Jane", row.FirstName)
	assert.Equal(t, "Doe", row.LastName)
	assert.Equal(t, "Chief Technology Officer", row.Title, "title keeps its spelling, only stripped")
	assert.Equal(t, "+14155550100", row.Phone)
}

func TestContact_UnknownCompanyRejected(t *testing.T) {
	tr := newTestTransformer(fakeKeys{})

	row, failures, err := tr.Contact(context.Background(), validContactRecord())
	require.NoError(t, err)
	assert.Nil(t, row)
	require.Len(t, failures, 1)
	assert.Equal(t, model.FailureReference, failures[0].Kind)
	assert.Equal(t, "company_id", failures[0].Field)
	assert.Contains(t, failures[0].Reason, "C1")
}

func TestContact_PhoneOptional(t *testing.T) {
	tr := newTestTransformer(contactKeys())
	rec := validContactRecord()
	delete(rec, "phone")

	row, failures, err := tr.Contact(context.Background(), rec)
	require.NoError(t, err)
	require.Empty(t, failures)
	assert.Empty(t, row.Phone)

	tr = newTestTransformer(contactKeys())
	rec = validContactRecord()
	rec["phone"] = "call me maybe"
	row, failures, err = tr.Contact(context.Background(), rec)
	require.NoError(t, err)
	assert.Nil(t, row)
	require.Len(t, failures, 1)
	assert.Equal(t, "phone", failures[0].Field)
}

func TestContact_LastModifiedBeforeCreated(t *testing.T) {
	tr := newTestTransformer(contactKeys())
	rec := validContactRecord()
	rec["last_modified"] = "2024-01-01" // before created_date 2024-02-01

	row, failures, err := tr.Contact(context.Background(), rec)
	require.NoError(t, err)
	assert.Nil(t, row)
	require.Len(t, failures, 1)
	assert.Equal(t, "last_modified", failures[0].Field)
}

func TestContact_DuplicateEmail(t *testing.T) {
	tr := newTestTransformer(contactKeys())
	ctx := context.Background()

	_, failures, err := tr.Contact(ctx, validContactRecord())
	require.NoError(t, err)
	require.Empty(t, failures)

	dup := validContactRecord()
	dup["id"] = "CT2"
	row, failures, err := tr.Contact(ctx, dup)
	require.NoError(t, err)
	assert.Nil(t, row)
	require.Len(t, failures, 1)
	assert.Equal(t, "email", failures[0].Field)
}

func validOpportunityRecord() model.RawRecord {
	return model.RawRecord{
		"id":                "O1",
		"name":              "Acme Renewal",
		"contact_id":        "CT1",
		"company_id":        "C1",
		"stage":             "negotiation",
		"forecast_category": "commit",
		"product":           "platform",
		"amount":            "25000",
		"probability":       "75",
		"created_date":      "2024-04-01",
		"close_date":        "2026-01-31", // future close dates are fine
		"is_closed":         "false",
	}
}

func oppKeys() fakeKeys {
	return fakeKeys{"companies/C1": {}, "contacts/CT1": {}}
}

func TestOpportunity_ValidRecord(t *testing.T) {
	tr := newTestTransformer(oppKeys())

	row, failures, err := tr.Opportunity(context.Background(), validOpportunityRecord())
	require.NoError(t, err)
	require.Empty(t, failures)
	require.NotNil(t, row)

	assert.Equal(t, "ACME RENEWAL", row.Name)
	assert.Equal(t, 75, row.Probability)
	assert.False(t, row.IsClosed)
	assert.NotZero(t, row.StageID)
	assert.NotZero(t, row.ForecastCategoryID)
	assert.NotZero(t, row.ProductID)
}

func TestOpportunity_ProbabilityBounds(t *testing.T) {
	tr := newTestTransformer(oppKeys())
	for _, tc := range []struct {
		raw string
		ok  bool
	}{
		{"0", true},
		{"100", true},
		{"-1", false},
		{"101", false},
		{"42.5", false},
	} {
		t.Run(tc.raw, func(t *testing.T) {
			rec := validOpportunityRecord()
			rec["probability"] = tc.raw
			row, failures, err := tr.Opportunity(context.Background(), rec)
			require.NoError(t, err)
			if tc.ok {
				assert.Empty(t, failures)
				assert.NotNil(t, row)
			} else {
				require.Len(t, failures, 1)
				assert.Equal(t, "probability", failures[0].Field)
			}
		})
	}
}

func TestOpportunity_BothReferencesChecked(t *testing.T) {
	tr := newTestTransformer(fakeKeys{})

	_, failures, err := tr.Opportunity(context.Background(), validOpportunityRecord())
	require.NoError(t, err)
	require.Len(t, failures, 2)
	assert.Equal(t, "contact_id", failures[0].Field)
	assert.Equal(t, "company_id", failures[1].Field)
}

func validActivityRecord() model.RawRecord {
	return model.RawRecord{
		"id":               "A1",
		"contact_id":       "CT1",
		"opportunity_id":   "O1",
		"type":             "call",
		"subject":          "Renewal Check-In",
		"timestamp":        "2024-05-01T10:30:00Z",
		"duration_minutes": "45",
		"outcome":          "connected",
		"notes":            "left detailed voicemail",
	}
}

func activityKeys() fakeKeys {
	return fakeKeys{"contacts/CT1": {}, "opportunities/O1": {}}
}

func TestActivity_ValidRecordNormalizes(t *testing.T) {
	tr := newTestTransformer(activityKeys())

	row, failures, err := tr.Activity(context.Background(), validActivityRecord())
	require.NoError(t, err)
	require.Empty(t, failures)
	require.NotNil(t, row)

	assert.Equal(t, "CALL", row.Type)
	assert.Equal(t, "renewal check-in", row.Subject)
	assert.Equal(t, "CONNECTED", row.Outcome)
	assert.Equal(t, 45, row.DurationMinutes)
	require.NotNil(t, row.OpportunityID)
	assert.Equal(t, "O1", *row.OpportunityID)
}

func TestActivity_OptionalFieldsAbsent(t *testing.T) {
	tr := newTestTransformer(activityKeys())
	rec := validActivityRecord()
	delete(rec, "opportunity_id")
	delete(rec, "notes")

	row, failures, err := tr.Activity(context.Background(), rec)
	require.NoError(t, err)
	require.Empty(t, failures)
	assert.Nil(t, row.OpportunityID)
	assert.Empty(t, row.Notes)
}

func TestActivity_PresentOpportunityMustExist(t *testing.T) {
	tr := newTestTransformer(fakeKeys{"contacts/CT1": {}})

	row, failures, err := tr.Activity(context.Background(), validActivityRecord())
	require.NoError(t, err)
	assert.Nil(t, row)
	require.Len(t, failures, 1)
	assert.Equal(t, model.FailureReference, failures[0].Kind)
	assert.Equal(t, "opportunity_id", failures[0].Field)
}

func TestActivity_NegativeDuration(t *testing.T) {
	tr := newTestTransformer(activityKeys())
	rec := validActivityRecord()
	rec["duration_minutes"] = "-5"

	row, failures, err := tr.Activity(context.Background(), rec)
	require.NoError(t, err)
	assert.Nil(t, row)
	require.Len(t, failures, 1)
	assert.Equal(t, "duration_minutes", failures[0].Field)
}
