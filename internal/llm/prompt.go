package llm

import (
	"errors"
	"strings"
	"time"

	"github.com/joseph-ayodele/paperless-ai-titles/internal/settings"
)

// ErrNoPrompt signals that the settings carry no prompt section.
var ErrNoPrompt = errors.New("no prompt configured")

const currentDatePlaceholder = "{current_date}"

// BuildPrompt assembles the prompt in fixed order:
// main, with_date or without_date, pre_content, text, post_content.
func BuildPrompt(text string, s *settings.Settings, includeDate bool, now time.Time) (string, error) {
	if s == nil || s.Prompt == nil || s.Prompt.IsEmpty() {
		return "", ErrNoPrompt
	}
	p := s.Prompt

	var b strings.Builder
	b.Grow(len(p.Main) + len(p.WithDate) + len(p.PreContent) + len(text) + len(p.PostContent))
	b.WriteString(p.Main)
	if includeDate {
		b.WriteString(strings.ReplaceAll(p.WithDate, currentDatePlaceholder, now.Format("2006-01-02")))
	} else {
		b.WriteString(p.WithoutDate)
	}
	b.WriteString(p.PreContent)
	b.WriteString(text)
	b.WriteString(p.PostContent)
	return b.String(), nil
}
