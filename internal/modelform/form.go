// Package modelform holds the state of the model/filter configuration form:
// provider and model selection, custom models, path filters and the LiteLLM
// connection test.
package modelform

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/oremus-labs/ol-repo-gateway/internal/litellm"
)

// Status is the catalog load state of a form.
type Status string

const (
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusError   Status = "error"
)

var (
	ErrNotReady                = errors.New("model catalog not loaded")
	ErrUnknownProvider         = errors.New("unknown provider")
	ErrUnknownModel            = errors.New("model not offered by provider")
	ErrCustomModelUnsupported  = errors.New("provider does not support custom models")
	ErrCustomModelDisabled     = errors.New("custom model is not enabled")
	ErrInvalidFilterMode       = errors.New("filter mode must be exclude or include")
	errNoConnectionTesterBound = errors.New("no connection tester configured")
)

// CatalogSource fetches the provider/model catalog.
type CatalogSource interface {
	ModelConfig(ctx context.Context) (*ModelConfig, error)
}

// ConnectionTester checks LiteLLM credentials.
type ConnectionTester interface {
	TestConnection(ctx context.Context, creds litellm.Credentials) (ConnectionTestResult, error)
}

// Defaults are the values a caller already has before the catalog loads.
type Defaults struct {
	Provider      string
	Model         string
	IsCustomModel bool
	CustomModel   string
	Filter        FilterConfig
	LiteLLM       litellm.Credentials
}

// Snapshot is a read-only copy of the form state.
type Snapshot struct {
	Status         Status                `json:"status"`
	Error          string                `json:"error,omitempty"`
	Provider       string                `json:"provider"`
	Model          string                `json:"model"`
	IsCustomModel  bool                  `json:"isCustomModel"`
	CustomModel    string                `json:"customModel,omitempty"`
	Filter         FilterConfig          `json:"filter"`
	LiteLLMBaseURL string                `json:"litellmBaseUrl,omitempty"`
	LiteLLMAPIKey  string                `json:"litellmApiKey,omitempty"`
	Testing        bool                  `json:"testing,omitempty"`
	ConnectionTest *ConnectionTestResult `json:"connectionTestResult,omitempty"`
}

// Form is safe for concurrent use; TestConnection may run in its own goroutine
// while other actions update the state.
type Form struct {
	mu sync.Mutex

	status  Status
	loadErr error
	catalog *ModelConfig

	provider    string
	model       string
	isCustom    bool
	customModel string
	filter      FilterConfig

	creds    litellm.Credentials
	credsGen uint64
	inflight int
	result   *ConnectionTestResult
}

// New creates a form in the loading state seeded with defaults.
func New(defaults Defaults) *Form {
	filter := defaults.Filter
	if !filter.Mode.Valid() {
		filter.Mode = FilterExclude
	}
	return &Form{
		status:      StatusLoading,
		provider:    defaults.Provider,
		model:       defaults.Model,
		isCustom:    defaults.IsCustomModel,
		customModel: defaults.CustomModel,
		filter:      filter,
		creds:       defaults.LiteLLM,
	}
}

// Load fetches the catalog. On failure the form moves to the error state and
// keeps its current selections.
func (f *Form) Load(ctx context.Context, src CatalogSource) error {
	cfg, err := src.ModelConfig(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err != nil {
		f.status = StatusError
		f.loadErr = err
		return fmt.Errorf("load model config: %w", err)
	}
	if cfg == nil {
		cfg = &ModelConfig{}
	}
	f.catalog = cfg
	f.status = StatusReady
	f.loadErr = nil
	f.reconcileLocked()
	return nil
}

// reconcileLocked aligns provider and model with the loaded catalog.
func (f *Form) reconcileLocked() {
	provider, ok := f.catalog.Provider(f.provider)
	if !ok {
		provider, ok = f.catalog.Provider(f.catalog.DefaultProvider)
	}
	if !ok && len(f.catalog.Providers) > 0 {
		provider, ok = f.catalog.Providers[0], true
	}
	if !ok {
		return
	}
	f.provider = provider.ID
	if f.isCustom && !provider.SupportsCustomModel {
		f.isCustom = false
	}
	if !provider.HasModel(f.model) {
		f.model = firstModel(provider)
	}
}

func firstModel(p Provider) string {
	if len(p.Models) == 0 {
		return ""
	}
	return p.Models[0].ID
}

func (f *Form) currentProviderLocked() (Provider, error) {
	if f.status != StatusReady {
		return Provider{}, ErrNotReady
	}
	p, ok := f.catalog.Provider(f.provider)
	if !ok {
		return Provider{}, fmt.Errorf("%w: %s", ErrUnknownProvider, f.provider)
	}
	return p, nil
}

// SelectProvider switches provider and resets the model to its first entry.
func (f *Form) SelectProvider(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.status != StatusReady {
		return ErrNotReady
	}
	p, ok := f.catalog.Provider(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownProvider, id)
	}
	f.provider = p.ID
	f.model = firstModel(p)
	if !p.SupportsCustomModel {
		f.isCustom = false
	}
	return nil
}

// SelectModel selects a model from the current provider's list.
func (f *Form) SelectModel(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, err := f.currentProviderLocked()
	if err != nil {
		return err
	}
	if !p.HasModel(id) {
		return fmt.Errorf("%w: %s/%s", ErrUnknownModel, p.ID, id)
	}
	f.model = id
	return nil
}

// ToggleCustomModel enables or disables a free-text model name. Enabling it
// prefills the custom name with the selected model.
func (f *Form) ToggleCustomModel(enabled bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !enabled {
		f.isCustom = false
		return nil
	}
	p, err := f.currentProviderLocked()
	if err != nil {
		return err
	}
	if !p.SupportsCustomModel {
		return fmt.Errorf("%w: %s", ErrCustomModelUnsupported, p.ID)
	}
	f.isCustom = true
	if f.customModel == "" {
		f.customModel = f.model
	}
	return nil
}

// SetCustomModel sets the free-text model name.
func (f *Form) SetCustomModel(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.isCustom {
		return ErrCustomModelDisabled
	}
	f.customModel = name
	return nil
}

// EditFilter replaces the path filter. An empty mode keeps the current one.
func (f *Form) EditFilter(filter FilterConfig) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if filter.Mode == "" {
		filter.Mode = f.filter.Mode
	}
	if !filter.Mode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidFilterMode, filter.Mode)
	}
	f.filter = filter
	return nil
}

// SetLiteLLMCredentials updates the credentials. Any change clears the
// previous connection test result.
func (f *Form) SetLiteLLMCredentials(creds litellm.Credentials) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if creds.Equal(f.creds) {
		return
	}
	f.creds = creds
	f.credsGen++
	f.result = nil
}

// TestConnection checks the current credentials through tester and stores the
// result, unless the credentials changed while the test was running.
func (f *Form) TestConnection(ctx context.Context, tester ConnectionTester) ConnectionTestResult {
	f.mu.Lock()
	creds := f.creds
	gen := f.credsGen
	f.inflight++
	f.result = nil
	f.mu.Unlock()

	var res ConnectionTestResult
	if tester == nil {
		res = ConnectionTestResult{Message: errNoConnectionTesterBound.Error()}
	} else {
		var err error
		res, err = tester.TestConnection(ctx, creds)
		if err != nil {
			res = ConnectionTestResult{Success: false, Message: err.Error()}
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inflight--
	if gen == f.credsGen {
		stored := res
		f.result = &stored
	}
	return res
}

// EffectiveModel returns the model name that will be used.
func (f *Form) EffectiveModel() string {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.isCustom {
		return f.customModel
	}
	return f.model
}

// Validate checks that the selection is consistent with the catalog.
func (f *Form) Validate() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	p, err := f.currentProviderLocked()
	if err != nil {
		return err
	}
	if f.isCustom {
		if !p.SupportsCustomModel {
			return fmt.Errorf("%w: %s", ErrCustomModelUnsupported, p.ID)
		}
		if f.customModel == "" {
			return fmt.Errorf("%w: custom model name is empty", ErrUnknownModel)
		}
		return nil
	}
	if !p.HasModel(f.model) {
		return fmt.Errorf("%w: %s/%s", ErrUnknownModel, p.ID, f.model)
	}
	return nil
}

// Catalog returns the loaded catalog, or nil before a successful load.
func (f *Form) Catalog() *ModelConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.catalog
}

// Snapshot returns a copy of the current state with the API key masked.
func (f *Form) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	s := Snapshot{
		Status:         f.status,
		Provider:       f.provider,
		Model:          f.model,
		IsCustomModel:  f.isCustom,
		CustomModel:    f.customModel,
		Filter:         f.filter,
		LiteLLMBaseURL: f.creds.BaseURL,
		LiteLLMAPIKey:  f.creds.Masked(),
		Testing:        f.inflight > 0,
	}
	if f.loadErr != nil {
		s.Error = f.loadErr.Error()
	}
	if f.result != nil {
		res := *f.result
		s.ConnectionTest = &res
	}
	return s
}
