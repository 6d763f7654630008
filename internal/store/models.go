package store

import (
	"encoding/json"
	"time"
)

// ScheduleRun is one row of schedule_runs
type ScheduleRun struct {
	RunID            string          `json:"run_id"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
	Fixtures         int             `json:"fixtures"`
	Enriched         int             `json:"enriched"`
	Reviewed         int             `json:"reviewed"`
	Summary          json.RawMessage `json:"summary"`
	Schedule         json.RawMessage `json:"schedule,omitempty"`
	EnrichedSchedule json.RawMessage `json:"enriched_schedule,omitempty"`
	Review           json.RawMessage `json:"review,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}
