package entity

import (
	"time"

	"github.com/joseph-ayodele/paperless-ai-titles/constants"
)

// TitleRun is one processed job as recorded in the run ledger.
type TitleRun struct {
	ID         string            `json:"id"`
	JobID      string            `json:"job_id"`
	DocumentID string            `json:"document_id"`
	Source     string            `json:"source"`
	Outcome    constants.Outcome `json:"outcome"`
	OldTitle   string            `json:"old_title,omitempty"`
	NewTitle   string            `json:"new_title,omitempty"`
	Error      string            `json:"error,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
}

// Elapsed is the wall time the run took.
func (r TitleRun) Elapsed() time.Duration {
	if r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
