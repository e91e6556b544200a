package modelform

import "strings"

// Model is one selectable model of a provider.
type Model struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Provider is an AI-model provider and its model list.
type Provider struct {
	ID                  string  `json:"id"`
	Name                string  `json:"name"`
	Models              []Model `json:"models"`
	SupportsCustomModel bool    `json:"supportsCustomModel,omitempty"`
}

// HasModel reports whether id is one of the provider's models.
func (p Provider) HasModel(id string) bool {
	for _, m := range p.Models {
		if m.ID == id {
			return true
		}
	}
	return false
}

// ModelConfig is the provider/model catalog served by the backend.
type ModelConfig struct {
	Providers       []Provider `json:"providers"`
	DefaultProvider string     `json:"defaultProvider"`
}

// Provider looks up a provider by id.
func (c *ModelConfig) Provider(id string) (Provider, bool) {
	if c == nil {
		return Provider{}, false
	}
	for _, p := range c.Providers {
		if p.ID == id {
			return p, true
		}
	}
	return Provider{}, false
}

// FilterMode selects whether path patterns exclude or include files.
type FilterMode string

const (
	FilterExclude FilterMode = "exclude"
	FilterInclude FilterMode = "include"
)

// Valid reports whether m is a known filter mode.
func (m FilterMode) Valid() bool {
	return m == FilterExclude || m == FilterInclude
}

// FilterConfig holds newline-delimited directory and file patterns.
type FilterConfig struct {
	Mode  FilterMode `json:"mode"`
	Dirs  string     `json:"dirs"`
	Files string     `json:"files"`
}

// DirPatterns returns the non-empty directory patterns.
func (f FilterConfig) DirPatterns() []string {
	return splitPatterns(f.Dirs)
}

// FilePatterns returns the non-empty file patterns.
func (f FilterConfig) FilePatterns() []string {
	return splitPatterns(f.Files)
}

// Empty reports whether no pattern was entered.
func (f FilterConfig) Empty() bool {
	return len(f.DirPatterns()) == 0 && len(f.FilePatterns()) == 0
}

func splitPatterns(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}

// ConnectionTestResult is the outcome of a LiteLLM connection test.
type ConnectionTestResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
