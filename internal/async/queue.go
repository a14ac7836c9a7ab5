package async

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/paperless-ai-titles/constants"
)

// Job is one request to title a document. It is consumed exactly once and
// never persisted.
type Job struct {
	DocumentID  string
	JobID       string
	SubmittedAt time.Time
	Source      string // constants.SourceWebhook or constants.SourceManual
}

func NewJob(documentID, source string) Job {
	return Job{
		DocumentID:  documentID,
		JobID:       uuid.New().String(),
		SubmittedAt: time.Now().UTC(),
		Source:      source,
	}
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// Processor runs one job to completion.
type Processor interface {
	Process(ctx context.Context, job Job) (constants.Outcome, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, job Job) (constants.Outcome, error)

func (f ProcessorFunc) Process(ctx context.Context, job Job) (constants.Outcome, error) {
	return f(ctx, job)
}
