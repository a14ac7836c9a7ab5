// Package paperless talks to the Paperless-ngx REST API.
package paperless

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/paperless-ai-titles/constants"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/common"
)

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 16 << 20

type Config struct {
	BaseURL string // e.g. http://paperless:8000/api
	APIKey  string
	Timeout time.Duration
}

// Document is the subset of a Paperless document the service uses.
type Document struct {
	ID               int    `json:"id"`
	Title            string `json:"title"`
	Content          string `json:"content"`
	Tags             []int  `json:"tags"`
	Created          string `json:"created"`
	OriginalFileName string `json:"original_file_name"`
}

// StatusError is returned when Paperless answers with anything but 200.
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("paperless %s %s: status %d", e.Method, e.Path, e.Status)
}

func (e *StatusError) Unwrap() error {
	if e.Status == http.StatusNotFound {
		return common.ErrNotFound
	}
	return common.ErrUpstream
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

// GetDocument fetches GET /documents/{id}/.
func (c *Client) GetDocument(ctx context.Context, id string) (*Document, error) {
	raw, err := c.do(ctx, http.MethodGet, documentPath(id), nil)
	if err != nil {
		return nil, err
	}
	var doc Document
	if err := json.Unmarshal(raw, &doc); err != nil {
		c.logger.Error("paperless.get.decode_error", "document_id", id, "error", err)
		return nil, fmt.Errorf("decode document %s: %w", id, err)
	}
	c.logger.Info("paperless.get.ok", "document_id", id, "title", doc.Title, "content_len", len(doc.Content))
	return &doc, nil
}

// SetTitle patches the document title after trimming and truncating it to
// constants.MaxTitleLength characters.
func (c *Client) SetTitle(ctx context.Context, id, title string) error {
	t := TruncateTitle(title)
	if t == "" {
		return fmt.Errorf("%w: empty title for document %s", common.ErrInvalidInput, id)
	}
	if _, err := c.do(ctx, http.MethodPatch, documentPath(id), map[string]any{"title": t}); err != nil {
		return err
	}
	c.logger.Info("paperless.patch.ok", "document_id", id, "title", t)
	return nil
}

// AddProcessedTag adds tagID to the document through the bulk edit endpoint.
func (c *Client) AddProcessedTag(ctx context.Context, id, tagID string) error {
	body := map[string]any{
		"documents":  []any{jsonID(id)},
		"method":     "add_tag",
		"parameters": map[string]any{"tag": jsonID(tagID)},
	}
	if _, err := c.do(ctx, http.MethodPost, "/documents/bulk_edit/", body); err != nil {
		return err
	}
	c.logger.Info("paperless.tag.ok", "document_id", id, "tag_id", tagID)
	return nil
}

// TruncateTitle trims outer whitespace and keeps at most
// constants.MaxTitleLength characters.
func TruncateTitle(title string) string {
	t := strings.TrimSpace(title)
	r := []rune(t)
	if len(r) > constants.MaxTitleLength {
		return string(r[:constants.MaxTitleLength])
	}
	return t
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	reqID := uuid.New().String()
	start := time.Now()
	op := strings.ToLower(method)

	var rdr io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		rdr = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Token "+c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("paperless."+op+".send_error",
			"req_id", reqID, "path", path, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, fmt.Errorf("%w: paperless %s %s: %v", common.ErrUpstream, method, path, err)
	}
	defer func(Body io.ReadCloser) {
		if err := Body.Close(); err != nil {
			c.logger.Warn("paperless.response_body_close_error", "req_id", reqID, "error", err)
		}
	}(resp.Body)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("paperless."+op+".error",
			"req_id", reqID,
			"path", path,
			"status", resp.StatusCode,
			"body", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return raw, &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: string(raw)}
	}

	c.logger.Debug("paperless."+op+".response",
		"req_id", reqID, "path", path, "status", resp.StatusCode, "bytes", len(raw),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return raw, nil
}

func documentPath(id string) string {
	return "/documents/" + url.PathEscape(id) + "/"
}

// jsonID sends numeric identifiers as JSON numbers and anything else as a string.
func jsonID(id string) any {
	if n, err := strconv.ParseInt(id, 10, 64); err == nil {
		return n
	}
	return id
}
