package transform

import (
	"context"
	"time"

	"github.com/sells-group/crm-etl/internal/model"
	"github.com/sells-group/crm-etl/internal/validate"
)

// Activity validates one raw activity record. contact_id is required;
// opportunity_id and notes are optional, but a present opportunity_id must
// reference a loaded opportunity.
func (t *Transformer) Activity(_ context.Context, rec model.RawRecord) (*model.Activity, []model.Failure, error) {
	c := &collector{rec: rec}
	now := t.now()

	id, _ := required(c, "id", validate.Text)

	contactID, contactOK := required(c, "contact_id", validate.Text)
	t.reference(c, "contact_id", model.EntityContacts, contactID, contactOK)

	var oppID *string
	if raw, ok := optional(c, "opportunity_id", validate.Text); ok {
		if t.reference(c, "opportunity_id", model.EntityOpportunities, raw, true) {
			oppID = &raw
		}
	}

	actType, _ := required(c, "type", validate.UpperText)
	subject, _ := required(c, "subject", validate.LowerText)
	timestamp, _ := required(c, "timestamp", func(raw string) (time.Time, error) {
		return validate.PastDate(raw, now)
	})
	duration, _ := required(c, "duration_minutes", validate.Duration)
	outcome, _ := required(c, "outcome", validate.UpperText)
	notes, _ := optional(c, "notes", validate.Text)

	if len(c.failures) > 0 {
		return nil, c.failures, nil
	}
	return &model.Activity{
		ID:              id,
		ContactID:       contactID,
		Type:            actType,
		Subject:         subject,
		Timestamp:       timestamp,
		DurationMinutes: duration,
		Outcome:         outcome,
		OpportunityID:   oppID,
		Notes:           notes,
	}, nil, nil
}
