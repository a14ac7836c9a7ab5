package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/paperless-ai-titles/constants"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/async"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/common"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/entity"
)

// JobQueue is the queue surface the HTTP layer uses.
type JobQueue interface {
	Enqueue(ctx context.Context, job async.Job) error
	Len() int
	Busy() bool
	Processed() uint64
}

// RunStore is the ledger surface the HTTP layer uses.
type RunStore interface {
	ListRecent(ctx context.Context, limit int) ([]entity.TitleRun, error)
	ListByDocument(ctx context.Context, documentID string, limit int) ([]entity.TitleRun, error)
}

// Exporter renders runs as an XLSX workbook.
type Exporter interface {
	ExportRunsXLSX(ctx context.Context, limit int) ([]byte, error)
}

const (
	statusStarted = "Processing started"
	statusMissing = "Missing document ID"
	statusInvalid = "Invalid request"
	statusFailed  = "Processing failed"

	defaultRunsLimit = 50
	maxRunsLimit     = 500
	xlsxContentType  = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var webhookSchema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"url": map[string]any{"type": []any{"string", "null"}},
	},
}

type API struct {
	queue   JobQueue
	runs    RunStore // nil when the ledger is disabled
	export  Exporter // nil when the ledger is disabled
	logger  *slog.Logger
	webhook *jsonschema.Schema
}

func NewAPI(queue JobQueue, runs RunStore, export Exporter, logger *slog.Logger) (*API, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := common.CompileSchema("webhook.json", webhookSchema)
	if err != nil {
		return nil, fmt.Errorf("compile webhook schema: %w", err)
	}
	return &API{queue: queue, runs: runs, export: export, logger: logger, webhook: schema}, nil
}

func registerRoutes(r *gin.Engine, api *API) {
	r.POST("/document/changed", api.handleDocumentChanged)
	r.GET("/health", api.handleHealth)

	r.POST("/documents/:id/title", api.handleEnqueueDocument)
	r.GET("/documents/:id/runs", api.handleDocumentRuns)
	r.GET("/runs", api.handleListRuns)
	r.GET("/runs/export", api.handleExportRuns)
	r.GET("/queue", api.handleQueue)
}

func (a *API) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": constants.ServiceName})
}

// handleDocumentChanged accepts Paperless "document changed" webhooks and
// enqueues the document. It never waits for processing.
func (a *API) handleDocumentChanged(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		a.invalid(c, err)
		return
	}
	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		a.invalid(c, err)
		return
	}
	if err := a.webhook.Validate(payload); err != nil {
		a.invalid(c, err)
		return
	}

	obj, _ := payload.(map[string]any)
	rawURL, _ := obj["url"].(string)
	id := DocumentIDFromURL(rawURL)
	if id == "" {
		a.logger.Warn("webhook.missing_document_id", "url", rawURL)
		c.JSON(http.StatusBadRequest, gin.H{"status": statusMissing})
		return
	}

	job := async.NewJob(id, constants.SourceWebhook)
	if err := a.queue.Enqueue(c.Request.Context(), job); err != nil {
		a.logger.Error("webhook.enqueue_failed", "document_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": statusFailed})
		return
	}
	a.logger.Info("webhook.accepted", "document_id", id, "job_id", job.JobID)
	c.JSON(http.StatusOK, gin.H{"status": statusStarted})
}

func (a *API) handleEnqueueDocument(c *gin.Context) {
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": statusMissing})
		return
	}
	job := async.NewJob(id, constants.SourceManual)
	if err := a.queue.Enqueue(c.Request.Context(), job); err != nil {
		a.logger.Error("manual.enqueue_failed", "document_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": statusFailed})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"status": statusStarted, "job_id": job.JobID, "document_id": id})
}

func (a *API) handleQueue(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"queued":    a.queue.Len(),
		"busy":      a.queue.Busy(),
		"processed": a.queue.Processed(),
	})
}

func (a *API) handleListRuns(c *gin.Context) {
	if a.runs == nil {
		ledgerDisabled(c)
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	runs, err := a.runs.ListRecent(c.Request.Context(), limit)
	if err != nil {
		a.logger.Error("runs.list.failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": nonNil(runs)})
}

func (a *API) handleDocumentRuns(c *gin.Context) {
	if a.runs == nil {
		ledgerDisabled(c)
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	id := c.Param("id")
	runs, err := a.runs.ListByDocument(c.Request.Context(), id, limit)
	if err != nil {
		a.logger.Error("runs.list.failed", "document_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list runs"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"document_id": id, "runs": nonNil(runs)})
}

func (a *API) handleExportRuns(c *gin.Context) {
	if a.export == nil {
		ledgerDisabled(c)
		return
	}
	limit, ok := parseLimit(c)
	if !ok {
		return
	}
	xlsx, err := a.export.ExportRunsXLSX(c.Request.Context(), limit)
	if err != nil {
		a.logger.Error("export.xlsx.failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to export runs"})
		return
	}
	name := fmt.Sprintf("title-runs-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", `attachment; filename="`+name+`"`)
	c.Data(http.StatusOK, xlsxContentType, xlsx)
}

func (a *API) invalid(c *gin.Context, err error) {
	a.logger.Warn("webhook.invalid_request", "error", err)
	c.JSON(http.StatusBadRequest, gin.H{"status": statusInvalid, "error": err.Error()})
}

func ledgerDisabled(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "run ledger is disabled"})
}

func parseLimit(c *gin.Context) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return defaultRunsLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
		return 0, false
	}
	if n > maxRunsLimit {
		n = maxRunsLimit
	}
	return n, true
}

func nonNil(runs []entity.TitleRun) []entity.TitleRun {
	if runs == nil {
		return []entity.TitleRun{}
	}
	return runs
}
