package history

import (
	"time"
)

const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type Run struct {
	ID         string     `json:"id"`
	IndexName  string     `json:"index_name"`
	Status     string     `json:"status"`
	Total      int        `json:"total"`
	Uploaded   int        `json:"uploaded"`
	Duplicates int        `json:"duplicates"`
	Batches    int        `json:"batches"`
	Error      string     `json:"error"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// FailedBatch keeps the ids of a batch the store rejected so the run can
// be inspected or replayed later.
type FailedBatch struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	BatchIndex int       `json:"batch_index"`
	RecordIDs  []string  `json:"record_ids"`
	Error      string    `json:"error"`
	CreatedAt  time.Time `json:"created_at"`
}
