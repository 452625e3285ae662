package ai

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/event-content-agent/internal/models"
)

// PromptOverrides replaces the built-in prompts when fields are set
type PromptOverrides struct {
	UserTemplate     string `yaml:"user_prompt_template" json:"user_prompt_template"`
	SystemPrompt     string `yaml:"system_prompt" json:"system_prompt"`
	SelectedTemplate string `yaml:"selected_template" json:"selected_template"`
	Platform         string `yaml:"platform" json:"platform"`
}

// IsZero reports whether no override is set
func (o *PromptOverrides) IsZero() bool {
	return o == nil || (o.UserTemplate == "" && o.SystemPrompt == "" && o.Platform == "")
}

// PlatformOr returns the override platform, or def when none is set
func (o *PromptOverrides) PlatformOr(def models.Platform) models.Platform {
	if o == nil || o.Platform == "" {
		return def
	}
	return models.ParsePlatform(o.Platform)
}

// Validate renders the user template against sample values to catch bad placeholders
func (o *PromptOverrides) Validate() error {
	if o == nil || o.UserTemplate == "" {
		return nil
	}
	sample := TemplateValues(&models.EnrichedEvent{
		EventName:    "Event",
		VenueCity:    "City",
		VenueCountry: "Country",
		Genre:        "Music",
		Rank:         1,
	}, o.PlatformOr(models.PlatformInstagram))
	if _, err := Render(o.UserTemplate, sample); err != nil {
		return err
	}
	return nil
}

// LoadOverrides reads prompt overrides from a YAML file
func LoadOverrides(path string) (*PromptOverrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt overrides: %w", err)
	}
	var o PromptOverrides
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("failed to parse prompt overrides: %w", err)
	}
	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("invalid prompt overrides: %w", err)
	}
	return &o, nil
}

// SaveOverrides writes prompt overrides as YAML
func SaveOverrides(path string, o *PromptOverrides) error {
	data, err := yaml.Marshal(o)
	if err != nil {
		return fmt.Errorf("failed to encode prompt overrides: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create prompts directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}
