package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/joseph-ayodele/paperless-ai-titles/internal/settings"
)

func testSettings() *settings.Settings {
	return &settings.Settings{
		Model:    "gpt-test",
		WithDate: true,
		Prompt: &settings.Prompt{
			Main:       "Title this.",
			WithDate:   " Today: {current_date}.",
			PreContent: "\n",
		},
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc, s *settings.Settings) (*Client, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	c := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/", Timeout: 5 * time.Second}, settings.Static{S: s}, nil)
	c.now = func() time.Time { return time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC) }
	return c, &calls
}

func TestRequestTitle(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("unexpected auth header %q", got)
		}
		body, _ := io.ReadAll(r.Body)
		var req chatRequest
		if err := json.Unmarshal(body, &req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != "gpt-test" || len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("unexpected request body: %s", body)
		}
		if want := "Title this. Today: 2024-03-01.\nDOC TEXT"; req.Messages[0].Content != want {
			t.Errorf("prompt = %q, want %q", req.Messages[0].Content, want)
		}
		_, _ = io.WriteString(w, `{"choices":[{"message":{"role":"assistant","content":"<think>reasoning...</think>\n<title>Invoice March 2024</title>"}}]}`)
	}, testSettings())

	got, ok := c.RequestTitle(context.Background(), "DOC TEXT", "42")
	if !ok || got != "Invoice March 2024" {
		t.Fatalf("got (%q, %v)", got, ok)
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Fatalf("expected one request, got %d", *calls)
	}
}

func TestRequestTitleContentParts(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":[{"type":"text","text":"<title>Lease</title>"}]}}]}`)
	}, testSettings())

	got, ok := c.RequestTitle(context.Background(), "x", "1")
	if !ok || got != "Lease" {
		t.Fatalf("got (%q, %v)", got, ok)
	}
}

func TestRequestTitleNoWrapper(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[{"message":{"content":"Some preamble\nNo tags here"}}]}`)
	}, testSettings())

	if got, ok := c.RequestTitle(context.Background(), "x", "1"); ok {
		t.Fatalf("expected no title, got %q", got)
	}
}

func TestRequestTitleUpstreamError(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"rate limited"}}`, http.StatusTooManyRequests)
	}, testSettings())

	if _, ok := c.RequestTitle(context.Background(), "x", "1"); ok {
		t.Fatal("expected failure")
	}
	if atomic.LoadInt32(calls) != 1 {
		t.Fatalf("expected exactly one attempt, got %d", *calls)
	}
}

func TestRequestTitleWithoutPromptSkipsNetwork(t *testing.T) {
	c, calls := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	}, &settings.Settings{Model: "gpt-test"})

	if _, ok := c.RequestTitle(context.Background(), "x", "1"); ok {
		t.Fatal("expected failure")
	}
	if atomic.LoadInt32(calls) != 0 {
		t.Fatalf("expected no requests, got %d", *calls)
	}

	c.settings = settings.Static{}
	if _, ok := c.RequestTitle(context.Background(), "x", "1"); ok {
		t.Fatal("expected failure with nil settings")
	}
}

func TestCompleteMalformedResponse(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"choices":[]}`)
	}, testSettings())

	_, err := c.Complete(context.Background(), "", "prompt")
	if err == nil || !strings.Contains(err.Error(), "no text") {
		t.Fatalf("expected no text error, got %v", err)
	}
}

func TestTruncateKeepsRunes(t *testing.T) {
	in := strings.Repeat("é", 10)
	got := truncate(in, 4)
	if !utf8.ValidString(got) {
		t.Fatalf("invalid utf-8: %q", got)
	}
	if got != "éééé…" {
		t.Fatalf("got %q", got)
	}
	if truncate("short", 10) != "short" {
		t.Fatal("short input changed")
	}
}
