package transform

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/crm-etl/internal/model"
	"github.com/sells-group/crm-etl/internal/validate"
)

// Company validates one raw company record. It returns the validated row,
// or the full list of reasons the record was rejected. The error return is
// reserved for store failures during dimension resolution.
func (t *Transformer) Company(ctx context.Context, rec model.RawRecord) (*model.Company, []model.Failure, error) {
	c := &collector{rec: rec}
	now := t.now()

	id, _ := required(c, "id", validate.Text)
	name, _ := required(c, "name", validate.UpperText)
	industry, industryOK := required(c, "industry", validate.UpperText)

	domain, domainOK := required(c, "domain", validate.Domain)
	if domainOK && t.unique.Taken(model.EntityCompanies, "domain", domain) {
		c.fail("domain", "duplicate domain %q", domain)
	}

	size, _ := required(c, "size", validate.Size)
	country, _ := required(c, "country", validate.Country)
	created, _ := required(c, "created_date", func(raw string) (time.Time, error) {
		return validate.PastDate(raw, now)
	})
	isCustomer, _ := required(c, "is_customer", validate.Bool)
	revenue, _ := required(c, "annual_revenue", func(raw string) (decimal.Decimal, error) {
		return validate.Money(raw, true)
	})

	industryID, err := t.resolve(ctx, model.DimIndustry, industry, industryOK)
	if err != nil {
		return nil, nil, eris.Wrap(err, "transform: company industry")
	}

	if len(c.failures) > 0 {
		return nil, c.failures, nil
	}
	t.unique.Claim(model.EntityCompanies, "domain", domain)
	return &model.Company{
		ID:            id,
		IndustryID:    industryID,
		Name:          name,
		Domain:        domain,
		Size:          size,
		Country:       country,
		CreatedDate:   created,
		IsCustomer:    isCustomer,
		AnnualRevenue: revenue,
	}, nil, nil
}
