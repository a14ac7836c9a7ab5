// Package settings loads the YAML settings file that supplies the model name
// and the prompt template fragments.
package settings

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/joseph-ayodele/paperless-ai-titles/constants"
	"github.com/joseph-ayodele/paperless-ai-titles/internal/common"
)

// Prompt holds the template fragments concatenated around the document text.
type Prompt struct {
	Main        string `yaml:"main" json:"main"`
	WithDate    string `yaml:"with_date" json:"with_date"`
	WithoutDate string `yaml:"without_date" json:"without_date"`
	PreContent  string `yaml:"pre_content" json:"pre_content"`
	PostContent string `yaml:"post_content" json:"post_content"`
}

// IsEmpty reports whether no prompt fragment is set.
func (p Prompt) IsEmpty() bool { return p == Prompt{} }

// Settings is one immutable snapshot of the settings file.
type Settings struct {
	Model    string  `yaml:"openai_model" json:"openai_model"`
	WithDate bool    `yaml:"with_date" json:"with_date"`
	Prompt   *Prompt `yaml:"prompt" json:"prompt,omitempty"`
}

// Source hands out the settings snapshot for one pipeline run.
type Source interface {
	Current() *Settings
}

// Static is a Source that never changes.
type Static struct{ S *Settings }

func (s Static) Current() *Settings { return s.S }

var ErrEmpty = errors.New("settings file is empty")

var fragment = map[string]any{"type": []any{"string", "null"}}

var schema = map[string]any{
	"type": "object",
	"properties": map[string]any{
		"openai_model": map[string]any{"type": []any{"string", "null"}},
		"with_date":    map[string]any{"type": []any{"boolean", "null"}},
		"prompt": map[string]any{
			"type": []any{"object", "null"},
			"properties": map[string]any{
				"main":         fragment,
				"with_date":    fragment,
				"without_date": fragment,
				"pre_content":  fragment,
				"post_content": fragment,
			},
		},
	},
}

// Load reads and parses the settings file at path.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings %s: %w", path, err)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse settings %s: %w", path, err)
	}
	return s, nil
}

// Parse decodes YAML settings, validates them against the settings schema and
// fills defaults.
func Parse(data []byte) (*Settings, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode yaml: %w", err)
	}
	if doc == nil {
		return nil, ErrEmpty
	}
	asJSON, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("settings are not plain data: %w", err)
	}
	if err := common.ValidateJSONAgainstSchema(schema, asJSON); err != nil {
		return nil, common.NewAppError("SETTINGS_INVALID", "settings do not match schema", err)
	}

	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode settings: %w", err)
	}
	if s.Model == "" {
		s.Model = constants.DefaultModel
	}
	if s.Prompt != nil && s.Prompt.IsEmpty() {
		s.Prompt = nil
	}
	return &s, nil
}
