// Package handlers provides HTTP request handlers for the repo gateway API.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/oremus-labs/ol-repo-gateway/internal/events"
	"github.com/oremus-labs/ol-repo-gateway/internal/gerrit"
	"github.com/oremus-labs/ol-repo-gateway/internal/logutil"
	"github.com/oremus-labs/ol-repo-gateway/internal/metrics"
	"github.com/oremus-labs/ol-repo-gateway/internal/openapi"
	"github.com/oremus-labs/ol-repo-gateway/internal/proxy"
	"github.com/oremus-labs/ol-repo-gateway/internal/store"
)

// Backend paths the pass-through routes forward to.
const (
	backendTestConnectionPath  = "/litellm/test-connection"
	backendGerritStructurePath = "/api/gerrit/structure"
	backendModelConfigPath     = "/models/config"

	maxRequestBytes = 1 << 20
	maxHistoryLimit = 500
)

// Options configures handler runtime behavior.
type Options struct {
	HistoryLimit int
}

type backendClient interface {
	Forward(ctx context.Context, method, path string, body []byte) (*proxy.Response, error)
}

type gerritProber interface {
	Probe(ctx context.Context, rawURL string) gerrit.Result
}

type historyStore interface {
	RecordVerification(*store.Verification) error
	ListVerifications(limit int) ([]store.Verification, error)
}

type eventBus interface {
	Publish(ctx context.Context, evt events.Event) error
	Subscribe(ctx context.Context) (<-chan events.Event, func())
}

// Handler encapsulates dependencies for HTTP handlers.
type Handler struct {
	backend backendClient
	prober  gerritProber
	history historyStore
	events  eventBus
	opts    Options
}

// New creates a new Handler instance. history and bus may be nil.
func New(backend backendClient, prober gerritProber, history historyStore, bus eventBus, opts Options) *Handler {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 50
	}
	if history != nil && isNilInterface(history) {
		history = nil
	}
	if bus != nil && isNilInterface(bus) {
		bus = nil
	}
	return &Handler{
		backend: backend,
		prober:  prober,
		history: history,
		events:  bus,
		opts:    opts,
	}
}

// Health returns the health status of the service.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// OpenAPISpec serves the API description as JSON, or YAML with ?format=yaml.
func (h *Handler) OpenAPISpec(c *gin.Context) {
	if c.Query("format") == "yaml" {
		c.Data(http.StatusOK, "application/yaml", openapi.YAML())
		return
	}
	data, err := openapi.JSON()
	if err != nil {
		logutil.Error("openapi render failed", err, nil)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to render openapi document"})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

// TestLiteLLMConnection forwards the credentials body to the backend
// connection test and relays its answer.
func (h *Handler) TestLiteLLMConnection(c *gin.Context) {
	fail := func(message string) interface{} {
		return gin.H{"success": false, "message": message}
	}
	body, err := readBody(c)
	if err != nil {
		logutil.Error("read test-connection body failed", err, logutil.Fields{"request_id": requestID(c)})
		c.JSON(http.StatusInternalServerError, fail("Failed to read request body"))
		return
	}
	h.forward(c, "litellm_test_connection", http.MethodPost, backendTestConnectionPath, body, fail)
}

// LiteLLMPreflight answers CORS preflight requests for the connection test.
func (h *Handler) LiteLLMPreflight(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// GerritStructure validates repo_url and forwards the request to the backend
// structure endpoint.
func (h *Handler) GerritStructure(c *gin.Context) {
	body, err := readBody(c)
	if err != nil {
		logutil.Error("read structure body failed", err, logutil.Fields{"request_id": requestID(c)})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read request body"})
		return
	}

	var req map[string]interface{}
	if err := json.Unmarshal(body, &req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON object"})
		return
	}
	if repoURL, ok := req["repo_url"].(string); !ok || repoURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "repo_url is required"})
		return
	}

	h.forward(c, "gerrit_structure", http.MethodPost, backendGerritStructurePath, body, errorEnvelope)
}

// ModelsConfig relays the provider/model catalog from the backend.
func (h *Handler) ModelsConfig(c *gin.Context) {
	h.forward(c, "models_config", http.MethodGet, backendModelConfigPath, nil, errorEnvelope)
}

// GerritHistory lists recent verification records.
func (h *Handler) GerritHistory(c *gin.Context) {
	if h.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "verification history is disabled"})
		return
	}

	limit := h.opts.HistoryLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}

	records, err := h.history.ListVerifications(limit)
	if err != nil {
		logutil.Error("list verifications failed", err, logutil.Fields{"request_id": requestID(c)})
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load verification history"})
		return
	}
	if records == nil {
		records = []store.Verification{}
	}
	c.JSON(http.StatusOK, gin.H{"verifications": records})
}

func errorEnvelope(message string) interface{} {
	return gin.H{"error": message}
}

// forward performs the single backend call for a pass-through route. The
// backend status and JSON body are written unchanged; an unreachable backend
// or a non-JSON reply yields a 500 built by fail.
func (h *Handler) forward(c *gin.Context, route, method, path string, body []byte, fail func(string) interface{}) {
	fields := logutil.Fields{"route": route, "request_id": requestID(c)}

	resp, err := h.backend.Forward(c.Request.Context(), method, path, body)
	if err != nil {
		metrics.ObserveUpstream(route, 0)
		logutil.Error("backend request failed", err, fields)
		c.JSON(http.StatusInternalServerError, fail("Failed to reach backend service"))
		return
	}
	metrics.ObserveUpstream(route, resp.StatusCode)

	if len(bytes.TrimSpace(resp.Body)) == 0 {
		c.Status(resp.StatusCode)
		c.Writer.WriteHeaderNow()
		return
	}
	if !json.Valid(resp.Body) {
		fields["status"] = resp.StatusCode
		fields["content_type"] = resp.ContentType
		logutil.Warn("backend returned a non-JSON body", fields)
		c.JSON(http.StatusInternalServerError, fail("Invalid response from backend service"))
		return
	}

	c.Data(resp.StatusCode, "application/json", resp.Body)
}

func readBody(c *gin.Context) ([]byte, error) {
	if c.Request.Body == nil {
		return []byte{}, nil
	}
	return io.ReadAll(io.LimitReader(c.Request.Body, maxRequestBytes))
}

func requestID(c *gin.Context) string {
	if v, ok := c.Get("requestID"); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

func isNilInterface(value interface{}) bool {
	if value == nil {
		return true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}
