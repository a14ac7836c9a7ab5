package openai

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/paperless-ai-titles/constants"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/common"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/llm"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/title"
)

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

var _ llm.TitleGenerator = (*Client)(nil)

// RequestTitle implements llm.TitleGenerator. It sends exactly one completion
// request and feeds the answer through title.Extract. Every failure is logged
// and reported as found=false.
func (c *Client) RequestTitle(ctx context.Context, text, documentID string) (string, bool) {
	rid := uuid.New().String()
	ctx = common.WithRequestID(common.WithDocumentID(ctx, documentID), rid)
	start := time.Now()

	s := c.settings.Current()
	prompt, err := llm.BuildPrompt(text, s, s != nil && s.WithDate, c.now())
	if err != nil {
		c.log.Warn("llm.title.config_error",
			"req_id", rid, "document_id", documentID, "error", err)
		return "", false
	}

	c.log.Info("llm.title.start",
		"req_id", rid,
		"document_id", documentID,
		"model", s.Model,
		"with_date", s.WithDate,
		"text_len", len(text),
		"prompt_len", len(prompt),
	)

	raw, err := c.Complete(ctx, s.Model, prompt)
	if err != nil {
		c.log.Error("llm.title.request_error",
			"req_id", rid, "document_id", documentID, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", false
	}
	c.log.Debug("llm.title.raw", "req_id", rid, "document_id", documentID, "content", raw)

	t, ok := title.Extract(raw)
	if !ok {
		c.log.Warn("llm.title.not_found",
			"req_id", rid, "document_id", documentID, "content_len", len(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", false
	}

	c.log.Info("llm.title.ok",
		"req_id", rid,
		"document_id", documentID,
		"title", t,
		"model", s.Model,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return t, true
}

// Complete sends prompt as a single user message and returns the text of the first choice.
func (c *Client) Complete(ctx context.Context, model, prompt string) (string, error) {
	if model == "" {
		model = constants.DefaultModel
	}
	body := chatRequest{
		Model:    model,
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	raw, status, err := llm.SendJSON(ctx, c.http, c.cfg.BaseURL+"/chat/completions", body, headers, c.log)
	if err != nil {
		var se *llm.StatusError
		if errors.As(err, &se) {
			return "", fmt.Errorf("%w: openai status %d: %s", common.ErrUpstream, status, truncate(se.Body, 512))
		}
		return "", fmt.Errorf("openai http error: %w", err)
	}

	text, ok := llm.CompletionText(raw)
	if !ok {
		return "", fmt.Errorf("no text in openai response (%d bytes)", len(raw))
	}
	return text, nil
}

// truncate keeps at most n runes of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "…"
}
