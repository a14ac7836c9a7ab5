package llm

import (
	"encoding/json"
	"strings"
)

// completion covers the chat/completions response shapes seen in the wild:
// message.content as a string or as an array of parts, and the legacy
// completions "text" field.
type completion struct {
	Choices []struct {
		Message struct {
			Content json.RawMessage `json:"content"`
		} `json:"message"`
		Text string `json:"text"`
	} `json:"choices"`
}

type contentPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// CompletionText returns the text payload of the first choice in a raw
// chat/completions response. ok is false when no shape yields text.
func CompletionText(raw []byte) (string, bool) {
	var cc completion
	if err := json.Unmarshal(raw, &cc); err != nil || len(cc.Choices) == 0 {
		return "", false
	}
	choice := cc.Choices[0]

	if text, ok := contentText(choice.Message.Content); ok {
		return text, true
	}
	if strings.TrimSpace(choice.Text) != "" {
		return choice.Text, true
	}
	return "", false
}

func contentText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, strings.TrimSpace(s) != ""
	}

	var parts []contentPart
	if err := json.Unmarshal(raw, &parts); err != nil {
		return "", false
	}
	var b strings.Builder
	for _, p := range parts {
		if p.Type != "" && p.Type != "text" {
			continue
		}
		if b.Len() > 0 && p.Text != "" {
			b.WriteString("\n")
		}
		b.WriteString(p.Text)
	}
	out := b.String()
	return out, strings.TrimSpace(out) != ""
}
