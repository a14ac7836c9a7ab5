package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/paperless-ai-titles/constants"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/async"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/common"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/entity"
)

type fakeQueue struct {
	mu   sync.Mutex
	jobs []async.Job
	err  error
}

func (q *fakeQueue) Enqueue(_ context.Context, job async.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}
func (q *fakeQueue) Len() int          { return len(q.jobs) }
func (q *fakeQueue) Busy() bool        { return false }
func (q *fakeQueue) Processed() uint64 { return 3 }

type fakeRuns struct {
	runs  []entity.TitleRun
	limit int
}

func (f *fakeRuns) ListRecent(_ context.Context, limit int) ([]entity.TitleRun, error) {
	f.limit = limit
	return f.runs, nil
}

func (f *fakeRuns) ListByDocument(_ context.Context, id string, limit int) ([]entity.TitleRun, error) {
	f.limit = limit
	var out []entity.TitleRun
	for _, r := range f.runs {
		if r.DocumentID == id {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeExport struct{}

func (fakeExport) ExportRunsXLSX(context.Context, int) ([]byte, error) { return []byte("PK"), nil }

func setupTestEngine(t *testing.T, q JobQueue, runs RunStore, exp Exporter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	api, err := NewAPI(q, runs, exp, nil)
	if err != nil {
		t.Fatalf("NewAPI: %v", err)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(MaxBodySize(1 << 10))
	registerRoutes(engine, api)
	return engine
}

func doRequest(engine *gin.Engine, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	var out map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &out)
	return w, out
}

func TestHealthHandler(t *testing.T) {
	engine := setupTestEngine(t, &fakeQueue{}, nil, nil)
	w, out := doRequest(engine, http.MethodGet, "/health", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(out) != 2 || out["status"] != "ok" || out["service"] != "Paperless Webhook Service" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestDocumentChanged(t *testing.T) {
	q := &fakeQueue{}
	engine := setupTestEngine(t, q, nil, nil)

	w, out := doRequest(engine, http.MethodPost, "/document/changed", `{"url":"https://host/api/documents/77/"}`)
	if w.Code != http.StatusOK || out["status"] != "Processing started" || len(out) != 1 {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
	if len(q.jobs) != 1 || q.jobs[0].DocumentID != "77" || q.jobs[0].Source != constants.SourceWebhook {
		t.Fatalf("unexpected jobs: %+v", q.jobs)
	}
}

func TestDocumentChangedBadRequests(t *testing.T) {
	cases := []struct {
		name   string
		body   string
		status string
	}{
		{"no url", `{}`, "Missing document ID"},
		{"null url", `{"url":null}`, "Missing document ID"},
		{"empty url", `{"url":""}`, "Missing document ID"},
		{"only slashes", `{"url":"///"}`, "Missing document ID"},
		{"malformed json", `{"url":`, "Invalid request"},
		{"not an object", `["https://host/api/documents/1/"]`, "Invalid request"},
		{"url not a string", `{"url":5}`, "Invalid request"},
		{"too large", `{"url":"` + strings.Repeat("a", 2<<10) + `"}`, "Invalid request"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			q := &fakeQueue{}
			engine := setupTestEngine(t, q, nil, nil)
			w, out := doRequest(engine, http.MethodPost, "/document/changed", tc.body)
			if w.Code != http.StatusBadRequest || out["status"] != tc.status {
				t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
			}
			if tc.status == "Invalid request" {
				if msg, _ := out["error"].(string); msg == "" {
					t.Fatalf("expected error message, got %s", w.Body.String())
				}
			}
			if len(q.jobs) != 0 {
				t.Fatalf("nothing should be enqueued, got %+v", q.jobs)
			}
		})
	}
}

func TestDocumentChangedEnqueueFailure(t *testing.T) {
	engine := setupTestEngine(t, &fakeQueue{err: common.ErrQueueClosed}, nil, nil)
	w, out := doRequest(engine, http.MethodPost, "/document/changed", `{"url":"https://host/api/documents/5/"}`)
	if w.Code != http.StatusInternalServerError || out["status"] != "Processing failed" {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
}

// The webhook answers before the worker finishes the document.
func TestDocumentChangedReturnsBeforeProcessing(t *testing.T) {
	release := make(chan struct{})
	seen := make(chan string, 1)
	proc := async.ProcessorFunc(func(ctx context.Context, job async.Job) (constants.Outcome, error) {
		seen <- job.DocumentID
		<-release
		return constants.OutcomeTitled, nil
	})
	q := async.NewProcessorQueue(proc, nil)
	defer func() {
		close(release)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		q.Shutdown(ctx)
	}()

	engine := setupTestEngine(t, q, nil, nil)
	w, out := doRequest(engine, http.MethodPost, "/document/changed", `{"url":"https://host/api/documents/77/"}`)
	if w.Code != http.StatusOK || out["status"] != "Processing started" {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
	select {
	case id := <-seen:
		if id != "77" {
			t.Fatalf("processed %q, want 77", id)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("job never reached the worker")
	}
	if q.Processed() != 0 {
		t.Fatal("job finished before release")
	}
}

func TestEnqueueDocument(t *testing.T) {
	q := &fakeQueue{}
	engine := setupTestEngine(t, q, nil, nil)
	w, out := doRequest(engine, http.MethodPost, "/documents/42/title", "")
	if w.Code != http.StatusAccepted || out["job_id"] == "" || out["document_id"] != "42" {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
	if len(q.jobs) != 1 || q.jobs[0].Source != constants.SourceManual || q.jobs[0].JobID != out["job_id"] {
		t.Fatalf("unexpected jobs: %+v", q.jobs)
	}
}

func TestQueueStats(t *testing.T) {
	engine := setupTestEngine(t, &fakeQueue{jobs: []async.Job{{DocumentID: "1"}}}, nil, nil)
	w, out := doRequest(engine, http.MethodGet, "/queue", "")
	if w.Code != http.StatusOK || out["queued"] != float64(1) || out["processed"] != float64(3) {
		t.Fatalf("unexpected response %d %s", w.Code, w.Body.String())
	}
}

func TestRunsEndpoints(t *testing.T) {
	runs := &fakeRuns{runs: []entity.TitleRun{
		{ID: "b", DocumentID: "2", Outcome: constants.OutcomeNoTitle},
		{ID: "a", DocumentID: "1", Outcome: constants.OutcomeTagged, NewTitle: "Invoice"},
	}}
	engine := setupTestEngine(t, &fakeQueue{}, runs, fakeExport{})

	w, out := doRequest(engine, http.MethodGet, "/runs", "")
	if w.Code != http.StatusOK || runs.limit != 50 {
		t.Fatalf("unexpected response %d (limit %d)", w.Code, runs.limit)
	}
	if list, _ := out["runs"].([]any); len(list) != 2 {
		t.Fatalf("unexpected runs: %s", w.Body.String())
	}

	doRequest(engine, http.MethodGet, "/runs?limit=9999", "")
	if runs.limit != 500 {
		t.Fatalf("limit not clamped: %d", runs.limit)
	}
	if w, _ := doRequest(engine, http.MethodGet, "/runs?limit=abc", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", w.Code)
	}

	w, out = doRequest(engine, http.MethodGet, "/documents/1/runs", "")
	if list, _ := out["runs"].([]any); w.Code != http.StatusOK || len(list) != 1 {
		t.Fatalf("unexpected document runs: %s", w.Body.String())
	}

	req := httptest.NewRequest(http.MethodGet, "/runs/export", nil)
	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK || !bytes.Equal(rec.Body.Bytes(), []byte("PK")) {
		t.Fatalf("unexpected export response %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != xlsxContentType {
		t.Fatalf("unexpected content type %q", ct)
	}
}

func TestRunsDisabled(t *testing.T) {
	engine := setupTestEngine(t, &fakeQueue{}, nil, nil)
	for _, path := range []string{"/runs", "/runs/export", "/documents/1/runs"} {
		if w, _ := doRequest(engine, http.MethodGet, path, ""); w.Code != http.StatusNotFound {
			t.Fatalf("%s: expected 404, got %d", path, w.Code)
		}
	}
}

func TestDocumentIDFromURL(t *testing.T) {
	cases := map[string]string{
		"https://host/api/documents/123/":  "123",
		"https://host/api/documents/123":   "123",
		"http://host:8000/documents/77//":  "77",
		"/api/documents/abc-9/":            "abc-9",
		"123":                              "123",
		"https://host/api/documents/1/?x=": "1",
		"":                                 "",
		"   ":                              "",
		"https://host/":                    "",
	}
	for in, want := range cases {
		if got := DocumentIDFromURL(in); got != want {
			t.Errorf("DocumentIDFromURL(%q) = %q, want %q", in, got, want)
		}
	}
}
