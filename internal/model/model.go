// Package model defines the entities moved by the CRM load pipeline.
package model

// EntityType identifies one of the four loadable CRM entities. The values
// double as table names in the relational store.
type EntityType string

const (
	EntityCompanies     EntityType = "companies"
	EntityContacts      EntityType = "contacts"
	EntityOpportunities EntityType = "opportunities"
	EntityActivities    EntityType = "activities"
)

// LoadOrder is the referential order entities must be loaded in: an entity's
// foreign keys only ever point at entities earlier in the slice.
var LoadOrder = []EntityType{
	EntityCompanies,
	EntityContacts,
	EntityOpportunities,
	EntityActivities,
}

// DimensionKind identifies an enum-like lookup dimension. The values double
// as table names in the relational store.
type DimensionKind string

const (
	DimIndustry         DimensionKind = "industries"
	DimProduct          DimensionKind = "products"
	DimStage            DimensionKind = "stages"
	DimContactStatus    DimensionKind = "contact_statuses"
	DimForecastCategory DimensionKind = "forecast_categories"
)

// DimensionKinds lists every dimension table.
var DimensionKinds = []DimensionKind{
	DimIndustry,
	DimProduct,
	DimStage,
	DimContactStatus,
	DimForecastCategory,
}

// Dimension is a row in one of the lookup dimension tables. Name is unique
// under case-insensitive comparison; the pipeline stores it uppercased.
type Dimension struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// RawRecord is one source record as read from a flat file: a mapping from
// column name to the raw, unvalidated string value. Absent columns are
// simply missing keys.
type RawRecord map[string]string

// Get returns the raw value for a column and whether it was present.
func (r RawRecord) Get(column string) (string, bool) {
	v, ok := r[column]
	return v, ok
}
