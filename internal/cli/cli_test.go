package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oremus-labs/ol-repo-gateway/internal/gerrit"
	"github.com/oremus-labs/ol-repo-gateway/internal/litellm"
	"github.com/oremus-labs/ol-repo-gateway/internal/modelform"
)

const catalogJSON = `{
	"defaultProvider": "openai",
	"providers": [
		{"id": "openai", "name": "OpenAI", "supportsCustomModel": true,
		 "models": [{"id": "gpt-4o", "name": "GPT-4o"}, {"id": "gpt-4o-mini", "name": "GPT-4o mini"}]},
		{"id": "anthropic", "name": "Anthropic", "models": [{"id": "claude-sonnet", "name": "Sonnet"}]}
	]
}`

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.Contexts)

	require.NoError(t, cfg.Set(Context{Name: "dev", Server: "http://localhost:3000/"}, false))
	require.NoError(t, cfg.Set(Context{Name: "prod", Server: "https://gw.example.com", Token: "t", LiteLLMAPIKey: "sk-1234"}, false))
	require.NoError(t, SaveConfig(cfg, path))

	loaded, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "dev", loaded.CurrentContext)
	dev, err := loaded.Lookup("dev")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:3000", dev.Server)
	prod, err := loaded.Lookup("prod")
	require.NoError(t, err)
	assert.Equal(t, "t", prod.Token)
	assert.Equal(t, "sk-1234", prod.Credentials().APIKey)
	_, err = loaded.Lookup("staging")
	assert.Error(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestConfigSetRejectsBadServer(t *testing.T) {
	cfg := &Config{}
	assert.Error(t, cfg.Set(Context{Name: "x", Server: "gw.example.com"}, true))
	assert.Error(t, cfg.Set(Context{Name: "x", Server: "ftp://gw.example.com"}, true))
	assert.Error(t, cfg.Set(Context{Server: "https://gw.example.com"}, true))
	assert.Empty(t, cfg.CurrentContext)
}

func TestConfigDeleteClearsCurrent(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Set(Context{Name: "a", Server: "https://a.example.com"}, true))
	require.NoError(t, cfg.Set(Context{Name: "b", Server: "https://b.example.com"}, false))

	require.NoError(t, cfg.Delete("b"))
	assert.Equal(t, "a", cfg.CurrentContext)
	require.NoError(t, cfg.Delete("a"))
	assert.Empty(t, cfg.CurrentContext)
	assert.Error(t, cfg.Delete("a"))
}

func TestRedactConfig(t *testing.T) {
	cfg := &Config{}
	require.NoError(t, cfg.Set(Context{Name: "a", Server: "https://a.example.com", Token: "secret", LiteLLMAPIKey: "sk-abcdef"}, true))

	red := redactConfig(cfg)
	assert.Equal(t, "****", red.Contexts["a"].Token)
	assert.Equal(t, "****cdef", red.Contexts["a"].LiteLLMAPIKey)
	assert.Equal(t, "secret", cfg.Contexts["a"].Token)
}

func TestFlagCredentialsPrecedence(t *testing.T) {
	t.Setenv(litellm.EnvAPIKey, "env-key")
	t.Setenv(litellm.EnvBaseURL, "http://env.example.com")
	litellmAPIKey, litellmBaseURL = "", ""
	defer func() { litellmAPIKey, litellmBaseURL = "", "" }()

	ctx := &Context{LiteLLMAPIKey: "ctx-key"}
	creds := flagCredentials(ctx)
	assert.Equal(t, "ctx-key", creds.APIKey)
	assert.Equal(t, "http://env.example.com/v1", creds.BaseURL)

	assert.Equal(t, "env-key", flagCredentials(nil).APIKey)
	assert.Equal(t, "env-key", flagCredentials(&Context{}).APIKey)

	litellmAPIKey = "flag-key"
	assert.Equal(t, "flag-key", flagCredentials(ctx).APIKey)
	assert.Equal(t, "flag-key", flagCredentials(nil).APIKey)
}

func TestAPIErrorMessage(t *testing.T) {
	err := &APIError{Method: "POST", Path: "/x", Status: 503, Body: []byte(`{"error":"down"}`)}
	assert.Equal(t, "down", err.Message())
	assert.Contains(t, err.Error(), "503 down")

	plain := &APIError{Method: "GET", Path: "/y", Status: 502, Body: []byte("bad gateway\n")}
	assert.Equal(t, "bad gateway", plain.Message())

	empty := &APIError{Method: "GET", Path: "/z", Status: 500, Body: []byte(`{}`)}
	assert.Contains(t, empty.Error(), "Internal Server Error")
}

func TestClientModelConfigValidates(t *testing.T) {
	body := catalogJSON
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models/config", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(body))
	}))
	defer srv.Close()

	client := &Client{BaseURL: srv.URL + "/", Token: "tok", Timeout: 5 * time.Second}
	cfg, err := client.ModelConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.DefaultProvider)
	require.Len(t, cfg.Providers, 2)

	body = `{"providers":[{"models":[]}]}`
	_, err = client.ModelConfig(context.Background())
	assert.ErrorContains(t, err, "model config rejected")
}

func TestClientTestConnectionRelayedFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":"down"}`))
	}))
	defer srv.Close()

	client := &Client{BaseURL: srv.URL, Timeout: 5 * time.Second}
	res, err := client.TestConnection(context.Background(), litellm.Credentials{APIKey: "k"})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "down", res.Message)
}

func TestClientTestConnectionUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	client := &Client{BaseURL: addr, Timeout: time.Second}
	_, err := client.TestConnection(context.Background(), litellm.Credentials{})
	assert.Error(t, err)
}

type catalogFunc func(context.Context) (*modelform.ModelConfig, error)

func (f catalogFunc) ModelConfig(ctx context.Context) (*modelform.ModelConfig, error) {
	return f(ctx)
}

type testerFunc func(context.Context, litellm.Credentials) (modelform.ConnectionTestResult, error)

func (f testerFunc) TestConnection(ctx context.Context, creds litellm.Credentials) (modelform.ConnectionTestResult, error) {
	return f(ctx, creds)
}

func staticCatalog() modelform.CatalogSource {
	return catalogFunc(func(context.Context) (*modelform.ModelConfig, error) {
		return &modelform.ModelConfig{
			DefaultProvider: "openai",
			Providers: []modelform.Provider{
				{ID: "openai", SupportsCustomModel: true, Models: []modelform.Model{{ID: "gpt-4o"}, {ID: "gpt-4o-mini"}}},
				{ID: "anthropic", Models: []modelform.Model{{ID: "claude-sonnet"}}},
			},
		}, nil
	})
}

func TestRunWizardAppliesSelections(t *testing.T) {
	outputFormat = "table"
	var out bytes.Buffer
	form := modelform.New(modelform.Defaults{LiteLLM: litellm.Credentials{APIKey: "sk-abcdef"}})

	var tested litellm.Credentials
	tester := testerFunc(func(_ context.Context, c litellm.Credentials) (modelform.ConnectionTestResult, error) {
		tested = c
		return modelform.ConnectionTestResult{Success: true, Message: "Connected"}, nil
	})

	err := runWizard(context.Background(), &out, form, staticCatalog(), tester, wizardInput{
		Model:          "gpt-4o-mini",
		FilterMode:     "include",
		Dirs:           "src\ndocs",
		TestConnection: true,
	})
	require.NoError(t, err)

	assert.Equal(t, "sk-abcdef", tested.APIKey)
	text := out.String()
	assert.Contains(t, text, "gpt-4o-mini")
	assert.Contains(t, text, "include")
	assert.Contains(t, text, "Connection test:")
	assert.Contains(t, text, "Changes from defaults")
	assert.Contains(t, text, "****cdef")
}

func TestRunWizardCustomModelRejected(t *testing.T) {
	outputFormat = "table"
	var out bytes.Buffer
	form := modelform.New(modelform.Defaults{})

	err := runWizard(context.Background(), &out, form, staticCatalog(), nil, wizardInput{
		Provider:    "anthropic",
		CustomModel: "my-model",
	})
	assert.ErrorIs(t, err, modelform.ErrCustomModelUnsupported)
}

func TestRunWizardCatalogFailureKeepsDefaults(t *testing.T) {
	outputFormat = "json"
	defer func() { outputFormat = "table" }()

	var out bytes.Buffer
	form := modelform.New(modelform.Defaults{Provider: "openai", Model: "gpt-4o"})
	failing := catalogFunc(func(context.Context) (*modelform.ModelConfig, error) {
		return nil, errors.New("backend down")
	})

	require.NoError(t, runWizard(context.Background(), &out, form, failing, nil, wizardInput{}))
	assert.Contains(t, out.String(), "Catalog unavailable")
	assert.Contains(t, out.String(), `"status": "error"`)
	assert.Contains(t, out.String(), `"provider": "openai"`)
}

func TestLoadCatalogFileYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
defaultProvider: openai
providers:
  - id: openai
    name: OpenAI
    supportsCustomModel: true
    models:
      - id: gpt-4o
        name: GPT-4o
`), 0o644))

	catalog, err := loadCatalogFile(path)
	require.NoError(t, err)
	require.Len(t, catalog.Providers, 1)
	assert.True(t, catalog.Providers[0].SupportsCustomModel)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"providers":"none"}`), 0o644))
	_, err = loadCatalogFile(bad)
	assert.Error(t, err)
}

func TestHumanDuration(t *testing.T) {
	assert.Equal(t, "0s", humanDuration(0))
	assert.Equal(t, "1h 30m", humanDuration(90*time.Minute))
	assert.Equal(t, "2d 3h", humanDuration(51*time.Hour+10*time.Minute))

	now := time.Now()
	assert.Equal(t, "5m ago", relativeTime(now.Add(-5*time.Minute), now))
	assert.Equal(t, "1h from now", relativeTime(now.Add(time.Hour), now))
	assert.Equal(t, "-", relativeTime(time.Time{}, now))
}

func TestVerifyAllKeepsArgumentOrder(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if strings.Contains(body["url"], "slow") {
			time.Sleep(50 * time.Millisecond)
		}
		_ = json.NewEncoder(w).Encode(gerrit.Result{IsGerrit: strings.Contains(body["url"], "review"), BaseURL: body["url"]})
	}))
	defer srv.Close()

	client := &Client{BaseURL: srv.URL, Timeout: 5 * time.Second}
	urls := []string{"https://slow.review.example.com", "https://github.com", "https://review.example.org"}
	results, err := verifyAll(context.Background(), client, urls, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.EqualValues(t, 3, calls.Load())
	for i, u := range urls {
		assert.Equal(t, u, results[i].BaseURL)
	}
	assert.True(t, results[0].IsGerrit)
	assert.False(t, results[1].IsGerrit)
}

func TestVerifyAllReportsFailingURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"url is required and must be a string"}`))
	}))
	defer srv.Close()

	client := &Client{BaseURL: srv.URL, Timeout: 5 * time.Second}
	_, err := verifyAll(context.Background(), client, []string{"x"}, 0)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Contains(t, err.Error(), "verify x")
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestWatchCatalogFileRevalidates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.json")
	require.NoError(t, os.WriteFile(path, []byte(catalogJSON), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	out := &syncBuffer{}
	done := make(chan error, 1)
	go func() { done <- watchCatalogFile(ctx, out, path) }()

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "valid (2 providers)")
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.WriteFile(path, []byte(`{"providers":"none"}`), 0o644))
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "invalid")
	}, 3*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}
