package cli

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/oremus-labs/ol-repo-gateway/internal/litellm"
)

// ConfigEnv overrides the default config file location.
const ConfigEnv = "RGW_CONFIG"

// Config is the on-disk rgw configuration: named gateway contexts and the
// one used when --context is not given.
type Config struct {
	CurrentContext string             `yaml:"currentContext"`
	Contexts       map[string]Context `yaml:"contexts"`
}

// Context holds connection settings for one gateway plus the LiteLLM
// credentials used against it.
type Context struct {
	Name           string `yaml:"name"`
	Server         string `yaml:"server"`
	Token          string `yaml:"token,omitempty"`
	LiteLLMBaseURL string `yaml:"litellmBaseUrl,omitempty"`
	LiteLLMAPIKey  string `yaml:"litellmApiKey,omitempty"`
}

// Credentials returns the LiteLLM credentials saved with the context.
func (c Context) Credentials() litellm.Credentials {
	return litellm.Credentials{APIKey: c.LiteLLMAPIKey, BaseURL: c.LiteLLMBaseURL}
}

// Set adds or replaces a context. The first context saved becomes current.
func (c *Config) Set(ctx Context, makeCurrent bool) error {
	if strings.TrimSpace(ctx.Name) == "" {
		return errors.New("context name is required")
	}
	server, err := normalizeServer(ctx.Server)
	if err != nil {
		return err
	}
	ctx.Server = server
	if c.Contexts == nil {
		c.Contexts = map[string]Context{}
	}
	c.Contexts[ctx.Name] = ctx
	if c.CurrentContext == "" || makeCurrent {
		c.CurrentContext = ctx.Name
	}
	return nil
}

// Lookup returns the named context.
func (c *Config) Lookup(name string) (Context, error) {
	ctx, ok := c.Contexts[name]
	if !ok {
		return Context{}, fmt.Errorf("context %q not found", name)
	}
	return ctx, nil
}

// Delete removes a context, clearing the current context when it was the one
// removed.
func (c *Config) Delete(name string) error {
	if _, err := c.Lookup(name); err != nil {
		return err
	}
	delete(c.Contexts, name)
	if c.CurrentContext == name {
		c.CurrentContext = ""
	}
	return nil
}

// normalizeServer requires an absolute http(s) URL and drops trailing slashes.
func normalizeServer(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return "", fmt.Errorf("gateway URL %q must be an absolute http(s) URL", raw)
	}
	return strings.TrimRight(raw, "/"), nil
}

func LoadConfig(path string) (*Config, error) {
	cfg := &Config{Contexts: map[string]Context{}}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if cfg.Contexts == nil {
		cfg.Contexts = map[string]Context{}
	}
	return cfg, nil
}

// SaveConfig writes cfg with owner-only permissions; contexts carry tokens.
func SaveConfig(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func defaultConfigPath() string {
	if p := os.Getenv(ConfigEnv); p != "" {
		return p
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".rgw.yaml"
	}
	return filepath.Join(dir, "rgw", "config.yaml")
}
