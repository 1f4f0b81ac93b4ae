package model

import "time"

// RunStatus is the lifecycle state of a load run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// EntityCounts tallies one entity's outcomes within a run.
type EntityCounts struct {
	Processed int `json:"processed"`
	Loaded    int `json:"loaded"`
	Skipped   int `json:"skipped"`
	Rejected  int `json:"rejected"`
}

// RunSummary is the per-run outcome recorded in the load_runs table and
// emitted at the end of every run.
type RunSummary struct {
	ID          string                       `json:"id"`
	Status      RunStatus                    `json:"status"`
	StartedAt   time.Time                    `json:"started_at"`
	CompletedAt *time.Time                   `json:"completed_at,omitempty"`
	Entities    map[EntityType]*EntityCounts `json:"entities"`
	Error       string                       `json:"error,omitempty"`
}

// NewRunSummary initializes a summary with zeroed counts for every entity.
func NewRunSummary(id string, startedAt time.Time) *RunSummary {
	s := &RunSummary{
		ID:        id,
		Status:    RunStatusRunning,
		StartedAt: startedAt,
		Entities:  make(map[EntityType]*EntityCounts, len(LoadOrder)),
	}
	for _, e := range LoadOrder {
		s.Entities[e] = &EntityCounts{}
	}
	return s
}

// Counts returns the tally for an entity, creating it if absent.
func (s *RunSummary) Counts(entity EntityType) *EntityCounts {
	c, ok := s.Entities[entity]
	if !ok {
		c = &EntityCounts{}
		s.Entities[entity] = c
	}
	return c
}
