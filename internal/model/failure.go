package model

import (
	"fmt"
	"time"
)

// FailureKind classifies why a record was rejected.
type FailureKind string

const (
	// FailureFieldValidation marks a single column whose raw value failed
	// its validation rule.
	FailureFieldValidation FailureKind = "field_validation"
	// FailureReference marks a required foreign key to an entity row that
	// does not exist in the store or earlier in this run.
	FailureReference FailureKind = "reference_resolution"
	// FailurePersist marks a row demoted because its batch flush was
	// rejected by the store.
	FailurePersist FailureKind = "persist"
)

// Failure is a single typed reason a record was rejected.
type Failure struct {
	Kind   FailureKind `json:"kind"`
	Field  string      `json:"field,omitempty"`
	Reason string      `json:"reason"`
}

func (f Failure) String() string {
	if f.Field != "" {
		return fmt.Sprintf("%s: %s", f.Field, f.Reason)
	}
	return f.Reason
}

// FieldFailure builds a field-validation failure for a column.
func FieldFailure(field, format string, args ...any) Failure {
	return Failure{
		Kind:   FailureFieldValidation,
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
	}
}

// ReferenceFailure builds a reference-resolution failure for a FK column.
func ReferenceFailure(field, format string, args ...any) Failure {
	return Failure{
		Kind:   FailureReference,
		Field:  field,
		Reason: fmt.Sprintf(format, args...),
	}
}

// PersistFailure builds a persist failure carrying the store's error text.
func PersistFailure(reason string) Failure {
	return Failure{Kind: FailurePersist, Reason: reason}
}

// Rejection is one rejected record with every reason it failed for.
type Rejection struct {
	Entity    EntityType `json:"entity"`
	RecordID  string     `json:"record_id"`
	Reasons   []Failure  `json:"reasons"`
	Timestamp time.Time  `json:"timestamp"`
}
