// Command title-preview generates a title for one document without writing
// it back to Paperless.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/paperless-ai-titles/internal/common"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/llm/openai"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/paperless"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/settings"
)

func main() {
	var (
		docID        = flag.String("doc", "", "Paperless document ID to read content from")
		textFile     = flag.String("file", "", "Read document text from this file instead of Paperless")
		settingsPath = flag.String("settings", "", "Settings file (default $SETTINGS_FILE or settings.yaml)")
		times        = flag.Int("times", 1, "Number of completions to request")
	)
	flag.Parse()

	common.LoadDotEnv()
	cfg := common.LoadConfig()

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.SlogLevel()}))
	slog.SetDefault(logger)

	if *docID == "" && *textFile == "" {
		logger.Error("usage: title-preview -doc <id> | -file <path> [-settings settings.yaml] [-times n]")
		os.Exit(2)
	}
	if cfg.LLM.APIKey == "" {
		logger.Error("OPENAI_API_KEY env var is required")
		os.Exit(2)
	}
	if *settingsPath == "" {
		*settingsPath = cfg.Settings.Path
	}

	s, err := settings.Load(*settingsPath)
	if err != nil {
		logger.Error("load settings", "path", *settingsPath, "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	id, text, err := loadText(ctx, cfg, *docID, *textFile, logger)
	if err != nil {
		logger.Error("load document text", "error", err)
		os.Exit(1)
	}

	client := openai.NewClient(openai.Config{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Timeout: cfg.LLM.Timeout,
	}, settings.Static{S: s}, logger)

	failures := 0
	for i := 1; i <= *times; i++ {
		start := time.Now()
		t, ok := client.RequestTitle(ctx, text, id)
		if !ok {
			failures++
			logger.Warn("preview.no_title", "iter", i, "elapsed_ms", time.Since(start).Milliseconds())
			continue
		}
		fmt.Println(paperless.TruncateTitle(t))
	}
	if failures == *times {
		os.Exit(1)
	}
}

func loadText(ctx context.Context, cfg *common.Config, docID, textFile string, logger *slog.Logger) (string, string, error) {
	if textFile != "" {
		b, err := os.ReadFile(textFile)
		if err != nil {
			return "", "", err
		}
		return textFile, string(b), nil
	}
	if cfg.Paperless.BaseURL == "" || cfg.Paperless.APIKey == "" {
		return "", "", fmt.Errorf("PAPERLESS_NGX_URL and PAPERLESS_NGX_API_KEY are required with -doc")
	}
	docs := paperless.NewClient(paperless.Config{
		BaseURL: cfg.Paperless.BaseURL,
		APIKey:  cfg.Paperless.APIKey,
		Timeout: cfg.Paperless.Timeout,
	}, logger)
	doc, err := docs.GetDocument(ctx, docID)
	if err != nil {
		return "", "", err
	}
	logger.Info("preview.document", "document_id", docID, "current_title", doc.Title)
	return docID, doc.Content, nil
}
