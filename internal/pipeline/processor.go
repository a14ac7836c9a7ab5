// Package pipeline runs one document through fetch, title generation,
// title update and tagging.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/paperless-ai-titles/constants"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/async"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/entity"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/llm"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/paperless"
)

// DocumentService is the subset of the Paperless client the pipeline needs.
type DocumentService interface {
	GetDocument(ctx context.Context, id string) (*paperless.Document, error)
	SetTitle(ctx context.Context, id, title string) error
	AddProcessedTag(ctx context.Context, id, tagID string) error
}

// RunRecorder stores the outcome of each run.
type RunRecorder interface {
	Record(ctx context.Context, run *entity.TitleRun) error
}

type Config struct {
	ProcessedTagID string // empty disables tagging
}

var (
	ErrFetchFailed  = errors.New("fetch document failed")
	ErrNoTitle      = errors.New("model returned no usable title")
	ErrUpdateFailed = errors.New("title update failed")
	ErrTagFailed    = errors.New("add processed tag failed")
)

// recordTimeout bounds ledger writes, which run even when the job context has expired.
const recordTimeout = 5 * time.Second

// Processor coordinates the Paperless client and the title generator.
type Processor struct {
	Logger *slog.Logger
	Cfg    Config
	Docs   DocumentService
	Titles llm.TitleGenerator
	Runs   RunRecorder // optional
}

func NewProcessor(logger *slog.Logger, cfg Config, docs DocumentService, titles llm.TitleGenerator, runs RunRecorder) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{Logger: logger, Cfg: cfg, Docs: docs, Titles: titles, Runs: runs}
}

var _ async.Processor = (*Processor)(nil)

// Process runs FETCH -> REQUEST_TITLE -> SET_TITLE -> ADD_TAG for one job.
// A failing stage ends the run; nothing is rolled back. The returned error
// describes why the run stopped and is informational only.
func (p *Processor) Process(ctx context.Context, job async.Job) (constants.Outcome, error) {
	run := &entity.TitleRun{
		JobID:      job.JobID,
		DocumentID: job.DocumentID,
		Source:     job.Source,
		StartedAt:  time.Now().UTC(),
	}
	outcome, err := p.process(ctx, job.DocumentID, run)
	run.Outcome = outcome
	run.FinishedAt = time.Now().UTC()
	if err != nil {
		run.Error = err.Error()
	}
	p.record(ctx, run)
	return outcome, err
}

func (p *Processor) process(ctx context.Context, id string, run *entity.TitleRun) (constants.Outcome, error) {
	log := p.Logger.With("document_id", id, "job_id", run.JobID)

	// 1) FETCH
	doc, err := p.Docs.GetDocument(ctx, id)
	if err != nil {
		log.Warn("pipeline.fetch.failed", "error", err)
		return outcomeFor(ctx, constants.OutcomeFetchFailed), fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	run.OldTitle = doc.Title
	log.Info("pipeline.fetch.ok", "current_title", doc.Title, "content_len", len(doc.Content))

	// 2) REQUEST_TITLE
	newTitle, ok := p.Titles.RequestTitle(ctx, doc.Content, id)
	if !ok || strings.TrimSpace(newTitle) == "" {
		log.Warn("pipeline.title.none")
		return outcomeFor(ctx, constants.OutcomeNoTitle), ErrNoTitle
	}
	run.NewTitle = paperless.TruncateTitle(newTitle)
	log.Info("pipeline.title.generated", "title", run.NewTitle)

	// 3) SET_TITLE
	if err := p.Docs.SetTitle(ctx, id, newTitle); err != nil {
		log.Warn("pipeline.update.failed", "error", err)
		return outcomeFor(ctx, constants.OutcomeUpdateFailed), fmt.Errorf("%w: %v", ErrUpdateFailed, err)
	}

	// 4) ADD_TAG
	if p.Cfg.ProcessedTagID == "" {
		log.Info("pipeline.tag.skipped", "reason", "tag not configured")
		return constants.OutcomeTitled, nil
	}
	if err := p.Docs.AddProcessedTag(ctx, id, p.Cfg.ProcessedTagID); err != nil {
		// the new title stays in place
		log.Warn("pipeline.tag.failed", "tag_id", p.Cfg.ProcessedTagID, "error", err)
		return constants.OutcomePartial, fmt.Errorf("%w: %v", ErrTagFailed, err)
	}
	log.Info("pipeline.done", "tag_id", p.Cfg.ProcessedTagID)
	return constants.OutcomeTagged, nil
}

// RecordPanic stores a FAILED run for a job whose processing panicked.
func (p *Processor) RecordPanic(job async.Job, recovered any) {
	now := time.Now().UTC()
	p.record(context.Background(), &entity.TitleRun{
		JobID:      job.JobID,
		DocumentID: job.DocumentID,
		Source:     job.Source,
		Outcome:    constants.OutcomeFailed,
		Error:      fmt.Sprintf("panic: %v", recovered),
		StartedAt:  now,
		FinishedAt: now,
	})
}

func (p *Processor) record(ctx context.Context, run *entity.TitleRun) {
	if p.Runs == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()
	if err := p.Runs.Record(ctx, run); err != nil {
		p.Logger.Error("pipeline.record.failed", "document_id", run.DocumentID, "job_id", run.JobID, "error", err)
	}
}

// outcomeFor maps a stage failure to FAILED when the job ran out of time.
func outcomeFor(ctx context.Context, stage constants.Outcome) constants.Outcome {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return constants.OutcomeFailed
	}
	return stage
}
