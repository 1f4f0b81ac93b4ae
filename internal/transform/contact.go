package transform

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-etl/internal/model"
	"github.com/sells-group/crm-etl/internal/validate"
)

// Contact validates one raw contact record. company_id must reference a
// company already loaded; last_modified must fall between created_date and
// now when both dates parse.
func (t *Transformer) Contact(ctx context.Context, rec model.RawRecord) (*model.Contact, []model.Failure, error) {
	c := &collector{rec: rec}
	now := t.now()

	id, _ := required(c, "id", validate.Text)

	companyID, companyOK := required(c, "company_id", validate.Text)
	t.reference(c, "company_id", model.EntityCompanies, companyID, companyOK)

	status, statusOK := required(c, "status", validate.UpperText)

	email, emailOK := required(c, "email", validate.Email)
	if emailOK && t.unique.Taken(model.EntityContacts, "email", email) {
		c.fail("email", "duplicate email %q", email)
	}

	firstName, _ := required(c, "first_name", validate.TitleText)
	lastName, _ := required(c, "last_name", validate.TitleText)
	title, _ := required(c, "title", validate.Text)
	phone, _ := optional(c, "phone", validate.Phone)

	created, createdOK := required(c, "created_date", func(raw string) (time.Time, error) {
		return validate.PastDate(raw, now)
	})
	floor := time.Time{}
	if createdOK {
		floor = created
	}
	lastModified, _ := required(c, "last_modified", func(raw string) (time.Time, error) {
		return validate.DateNotBefore(raw, floor, now)
	})

	statusID, err := t.resolve(ctx, model.DimContactStatus, status, statusOK)
	if err != nil {
		return nil, nil, eris.Wrap(err, "transform: contact status")
	}

	if len(c.failures) > 0 {
		return nil, c.failures, nil
	}
	t.unique.Claim(model.EntityContacts, "email", email)
	return &model.Contact{
		ID:           id,
		StatusID:     statusID,
		CompanyID:    companyID,
		Email:        email,
		FirstName:    firstName,
		LastName:     lastName,
		Title:        title,
		Phone:        phone,
		CreatedDate:  created,
		LastModified: lastModified,
	}, nil, nil
}
