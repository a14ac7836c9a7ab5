package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/paperless-ai-titles/internal/entity"
)

// RunLister is the ledger query the export needs.
type RunLister interface {
	ListRecent(ctx context.Context, limit int) ([]entity.TitleRun, error)
}

// Service produces XLSX bytes for run exports.
type Service struct {
	runs   RunLister
	logger *slog.Logger
}

func NewService(runs RunLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{runs: runs, logger: logger}
}

const sheet = "Runs"

var headers = []string{
	"Run ID",
	"Started",
	"Finished",
	"Duration (ms)",
	"Document ID",
	"Source",
	"Outcome",
	"Old Title",
	"New Title",
	"Error",
}

// ExportRunsXLSX returns a workbook with the latest runs, newest first.
func (s *Service) ExportRunsXLSX(ctx context.Context, limit int) ([]byte, error) {
	start := time.Now()

	runs, err := s.runs.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}

	f := excelize.NewFile()
	defer func() {
		if err := f.Close(); err != nil {
			s.logger.Warn("export.xlsx.close_error", "error", err)
		}
	}()
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, err
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		_ = f.SetRowStyle(sheet, 1, 1, style)
	}

	for i, r := range runs {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		write(1, r.ID)
		write(2, formatTime(r.StartedAt))
		write(3, formatTime(r.FinishedAt))
		write(4, r.Elapsed().Milliseconds())
		write(5, r.DocumentID)
		write(6, r.Source)
		write(7, string(r.Outcome))
		write(8, r.OldTitle)
		write(9, r.NewTitle)
		write(10, truncate(r.Error, 240))
	}

	_ = f.SetColWidth(sheet, "A", "A", 28) // id
	_ = f.SetColWidth(sheet, "B", "C", 22) // times
	_ = f.SetColWidth(sheet, "D", "F", 12)
	_ = f.SetColWidth(sheet, "G", "G", 16) // outcome
	_ = f.SetColWidth(sheet, "H", "I", 48) // titles
	_ = f.SetColWidth(sheet, "J", "J", 60) // error
	_ = f.SetPanes(sheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(runs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
