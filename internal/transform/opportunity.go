package transform

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/crm-etl/internal/model"
	"github.com/sells-group/crm-etl/internal/validate"
)

// Opportunity validates one raw opportunity record. Both contact_id and
// company_id must already be loaded. close_date may lie in the future;
// created_date may not.
func (t *Transformer) Opportunity(ctx context.Context, rec model.RawRecord) (*model.Opportunity, []model.Failure, error) {
	c := &collector{rec: rec}
	now := t.now()

	id, _ := required(c, "id", validate.Text)
	name, _ := required(c, "name", validate.UpperText)

	contactID, contactOK := required(c, "contact_id", validate.Text)
	t.reference(c, "contact_id", model.EntityContacts, contactID, contactOK)
	companyID, companyOK := required(c, "company_id", validate.Text)
	t.reference(c, "company_id", model.EntityCompanies, companyID, companyOK)

	stage, stageOK := required(c, "stage", validate.UpperText)
	forecast, forecastOK := required(c, "forecast_category", validate.UpperText)
	product, productOK := required(c, "product", validate.UpperText)

	amount, _ := required(c, "amount", func(raw string) (decimal.Decimal, error) {
		return validate.Money(raw, false)
	})
	probability, _ := required(c, "probability", validate.Probability)
	created, _ := required(c, "created_date", func(raw string) (time.Time, error) {
		return validate.PastDate(raw, now)
	})
	closeDate, _ := required(c, "close_date", validate.Date)
	isClosed, _ := required(c, "is_closed", validate.Bool)

	stageID, err := t.resolve(ctx, model.DimStage, stage, stageOK)
	if err != nil {
		return nil, nil, eris.Wrap(err, "transform: opportunity stage")
	}
	forecastID, err := t.resolve(ctx, model.DimForecastCategory, forecast, forecastOK)
	if err != nil {
		return nil, nil, eris.Wrap(err, "transform: opportunity forecast category")
	}
	productID, err := t.resolve(ctx, model.DimProduct, product, productOK)
	if err != nil {
		return nil, nil, eris.Wrap(err, "transform: opportunity product")
	}

	if len(c.failures) > 0 {
		return nil, c.failures, nil
	}
	return &model.Opportunity{
		ID:                 id,
		Name:               name,
		ContactID:          contactID,
		CompanyID:          companyID,
		StageID:            stageID,
		ForecastCategoryID: forecastID,
		ProductID:          productID,
		Amount:             amount,
		Probability:        probability,
		CreatedDate:        created,
		CloseDate:          closeDate,
		IsClosed:           isClosed,
	}, nil, nil
}
