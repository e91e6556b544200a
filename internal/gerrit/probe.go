// Package gerrit detects Gerrit code-review servers through their REST API.
package gerrit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/oremus-labs/ol-repo-gateway/internal/repourl"
)

const (
	// DefaultTimeout bounds a whole probe, across every candidate endpoint.
	DefaultTimeout = 8 * time.Second

	unknownVersion = "unknown"
	maxBodyBytes   = 1 << 20
)

// Failure reasons reported in Result.Reason.
const (
	ReasonInvalidURL       = "Invalid URL"
	ReasonTimeout          = "Request timeout"
	ReasonNetwork          = "Network error"
	ReasonRequestFailed    = "Request failed"
	ReasonEmptyResponse    = "Empty response"
	ReasonInvalidJSON      = "Invalid JSON response"
	ReasonUnexpectedFormat = "Unexpected response format"
	ReasonNotGerrit        = "Not a Gerrit server"
)

// versionPaths are tried in order below the server base URL. The /a/ variant
// covers servers that only answer on the authenticated path prefix.
var versionPaths = []string{
	"/config/server/version",
	"/a/config/server/version",
}

var networkErrorMarkers = []string{
	"econnrefused",
	"enotfound",
	"etimedout",
	"econnreset",
	"connection refused",
	"connection reset",
	"no such host",
	"network is unreachable",
	"network error",
	"fetch failed",
}

// Result is the outcome of a probe. Failures are reported here, never as errors.
type Result struct {
	IsGerrit       bool     `json:"isGerrit"`
	Version        string   `json:"version,omitempty"`
	Reason         string   `json:"reason,omitempty"`
	Details        string   `json:"details,omitempty"`
	BaseURL        string   `json:"baseUrl,omitempty"`
	TriedEndpoints []string `json:"triedEndpoints,omitempty"`
}

// Prober checks whether a host runs Gerrit.
type Prober struct {
	client  *http.Client
	timeout time.Duration
}

// Option configures the prober.
type Option func(*Prober)

// WithHTTPClient overrides the HTTP client used for probe requests.
func WithHTTPClient(client *http.Client) Option {
	return func(p *Prober) {
		if client != nil {
			p.client = client
		}
	}
}

// WithTimeout sets the deadline shared by all candidate requests of one probe.
func WithTimeout(timeout time.Duration) Option {
	return func(p *Prober) {
		if timeout > 0 {
			p.timeout = timeout
		}
	}
}

// NewProber creates a prober.
func NewProber(opts ...Option) *Prober {
	p := &Prober{
		client:  &http.Client{},
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Candidates returns the version endpoints probed for the given base URL.
func Candidates(base string) []string {
	base = strings.TrimRight(base, "/")
	out := make([]string, 0, len(versionPaths))
	for _, p := range versionPaths {
		out = append(out, base+p)
	}
	return out
}

// Probe reports whether rawURL points at a Gerrit server. Candidate endpoints
// are tried sequentially; the first definitive answer wins.
func (p *Prober) Probe(ctx context.Context, rawURL string) Result {
	u, err := repourl.Normalize(rawURL)
	if err != nil {
		return Result{Reason: ReasonInvalidURL, Details: err.Error()}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Result{Reason: ReasonInvalidURL, Details: fmt.Sprintf("unsupported scheme %q", u.Scheme)}
	}

	base := repourl.BaseURL(u)
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	candidates := Candidates(base)
	result := Result{BaseURL: base, Reason: ReasonNotGerrit}

	for i, endpoint := range candidates {
		hasNext := i < len(candidates)-1
		result.TriedEndpoints = append(result.TriedEndpoints, endpoint)

		outcome := p.attempt(ctx, endpoint)
		switch {
		case outcome.found:
			result.IsGerrit = true
			result.Version = outcome.version
			result.Reason = ""
			result.Details = ""
			return result
		case outcome.stop:
			result.Reason = outcome.reason
			result.Details = outcome.details
			return result
		}

		result.Reason = outcome.reason
		result.Details = outcome.details
		if !hasNext || !outcome.retryable {
			return result
		}
	}
	return result
}

type attemptOutcome struct {
	found     bool
	version   string
	stop      bool
	retryable bool
	reason    string
	details   string
}

func (p *Prober) attempt(ctx context.Context, endpoint string) attemptOutcome {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return attemptOutcome{reason: ReasonRequestFailed, details: err.Error()}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return classifyTransportError(ctx, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return attemptOutcome{
			retryable: resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden,
			reason:    fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
			details:   endpoint,
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		if ctx.Err() != nil {
			return attemptOutcome{stop: true, reason: ReasonTimeout, details: endpoint}
		}
		return attemptOutcome{retryable: true, reason: ReasonRequestFailed, details: err.Error()}
	}

	value, err := Decode(string(body))
	if err != nil {
		var perr *ParseError
		if errors.As(err, &perr) && perr.Empty {
			return attemptOutcome{retryable: true, reason: ReasonEmptyResponse, details: endpoint}
		}
		return attemptOutcome{retryable: true, reason: ReasonInvalidJSON, details: err.Error()}
	}

	version, ok := versionFrom(value)
	if !ok {
		return attemptOutcome{retryable: true, reason: ReasonUnexpectedFormat, details: fmt.Sprintf("%s returned %T", endpoint, value)}
	}
	return attemptOutcome{found: true, version: version}
}

func classifyTransportError(ctx context.Context, endpoint string, err error) attemptOutcome {
	if ctx.Err() != nil {
		return attemptOutcome{stop: true, reason: ReasonTimeout, details: fmt.Sprintf("%s: %v", endpoint, ctx.Err())}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return attemptOutcome{stop: true, reason: ReasonTimeout, details: err.Error()}
	}
	if isNetworkError(err) {
		return attemptOutcome{retryable: true, reason: ReasonNetwork, details: err.Error()}
	}
	return attemptOutcome{reason: ReasonRequestFailed, details: err.Error()}
}

func isNetworkError(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range networkErrorMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
