// Package litellm models the credentials used to reach a LiteLLM proxy.
package litellm

import (
	"os"
	"strings"
)

// Environment variables consulted by FromEnv.
const (
	EnvAPIKey  = "LITELLM_API_KEY"
	EnvBaseURL = "LITELLM_BASE_URL"
)

// Credentials are the optional LiteLLM settings sent to the backend when
// testing a connection.
type Credentials struct {
	APIKey  string `json:"api_key,omitempty"`
	BaseURL string `json:"base_url,omitempty"`
}

// FromEnv reads credentials from the environment. The base URL is normalized
// with NormalizeBaseURL.
func FromEnv() Credentials {
	creds := Credentials{APIKey: strings.TrimSpace(os.Getenv(EnvAPIKey))}
	if base := strings.TrimSpace(os.Getenv(EnvBaseURL)); base != "" {
		creds.BaseURL = NormalizeBaseURL(base)
	}
	return creds
}

// NormalizeBaseURL removes trailing slashes and ensures the OpenAI-compatible
// /v1 suffix is present.
func NormalizeBaseURL(base string) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return ""
	}
	if !strings.HasSuffix(base, "/v1") {
		base += "/v1"
	}
	return base
}

// Merge fills empty fields of c from fallback.
func (c Credentials) Merge(fallback Credentials) Credentials {
	if c.APIKey == "" {
		c.APIKey = fallback.APIKey
	}
	if c.BaseURL == "" {
		c.BaseURL = fallback.BaseURL
	}
	return c
}

// Equal reports whether both credentials carry the same values.
func (c Credentials) Equal(other Credentials) bool {
	return c.APIKey == other.APIKey && c.BaseURL == other.BaseURL
}

// Masked returns the API key reduced to its last four characters for display.
func (c Credentials) Masked() string {
	if c.APIKey == "" {
		return ""
	}
	if len(c.APIKey) <= 4 {
		return "****"
	}
	return "****" + c.APIKey[len(c.APIKey)-4:]
}
