package openai

import (
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/paperless-ai-titles/internal/settings"
)

// Config for the OpenAI client.
type Config struct {
	APIKey  string        // if empty, falls back to env OPENAI_API_KEY
	BaseURL string        // default https://api.openai.com/v1
	Timeout time.Duration // http client timeout
}

// Client requests titles from an OpenAI-compatible chat/completions endpoint.
// The model and prompt come from the settings snapshot current at call time.
type Client struct {
	cfg      Config
	settings settings.Source
	http     *http.Client
	log      *slog.Logger
	now      func() time.Time
}

func NewClient(cfg Config, src settings.Source, logger *slog.Logger) *Client {
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	if src == nil {
		src = settings.Static{}
	}
	return &Client{
		cfg:      cfg,
		settings: src,
		http:     &http.Client{Timeout: cfg.Timeout},
		log:      logger,
		now:      time.Now,
	}
}
