package transform

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/crm-etl/internal/model"
	"github.com/sells-group/crm-etl/internal/store"
)

// UniqueIndex enforces natural-key uniqueness (company domain, contact
// email) across both persisted rows and rows accepted earlier in the run. A
// value is claimed only when its record is accepted, so a rejected record
// does not block a later valid one.
type UniqueIndex struct {
	values map[string]map[string]struct{}
}

// uniqueColumns names the natural-key columns the index tracks.
var uniqueColumns = map[model.EntityType]string{
	model.EntityCompanies: "domain",
	model.EntityContacts:  "email",
}

// NewUniqueIndex creates an empty index.
func NewUniqueIndex() *UniqueIndex {
	idx := &UniqueIndex{values: make(map[string]map[string]struct{}, len(uniqueColumns))}
	for entity, column := range uniqueColumns {
		idx.values[key(entity, column)] = make(map[string]struct{})
	}
	return idx
}

func key(entity model.EntityType, column string) string {
	return string(entity) + "." + column
}

// Prime loads every persisted natural-key value from the store.
func (u *UniqueIndex) Prime(ctx context.Context, st store.Store) error {
	for entity, column := range uniqueColumns {
		vals, err := st.UniqueValues(ctx, entity, column)
		if err != nil {
			return eris.Wrapf(err, "transform: prime %s.%s values", entity, column)
		}
		set := u.values[key(entity, column)]
		for v := range vals {
			set[strings.ToLower(v)] = struct{}{}
		}
	}
	return nil
}

// Taken reports whether a normalized value is already in use.
func (u *UniqueIndex) Taken(entity model.EntityType, column, value string) bool {
	set, ok := u.values[key(entity, column)]
	if !ok {
		return false
	}
	_, taken := set[strings.ToLower(value)]
	return taken
}

// Claim marks a value as used. Called only after its record is accepted.
func (u *UniqueIndex) Claim(entity model.EntityType, column, value string) {
	if set, ok := u.values[key(entity, column)]; ok {
		set[strings.ToLower(value)] = struct{}{}
	}
}
