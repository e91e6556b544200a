package gerrit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGerritServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestProbeBareVersion(t *testing.T) {
	srv := newGerritServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(")]}'\n\"2.7\""))
	})

	res := NewProber().Probe(context.Background(), srv.URL+"/some/project")
	assert.True(t, res.IsGerrit)
	assert.Equal(t, "2.7", res.Version)
	assert.Equal(t, srv.URL, res.BaseURL)
	assert.Equal(t, []string{srv.URL + "/config/server/version"}, res.TriedEndpoints)
}

func TestProbeFallsBackAfterNotFound(t *testing.T) {
	var hits int32
	srv := newGerritServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path == "/config/server/version" {
			http.NotFound(w, r)
			return
		}
		assert.Equal(t, "/a/config/server/version", r.URL.Path)
		_, _ = w.Write([]byte(")]}'\n{\"gerrit_version\":\"3.9.2\"}"))
	})

	res := NewProber().Probe(context.Background(), srv.URL)
	require.True(t, res.IsGerrit)
	assert.Equal(t, "3.9.2", res.Version)
	assert.Len(t, res.TriedEndpoints, 2)
	assert.EqualValues(t, 2, atomic.LoadInt32(&hits))
}

func TestProbeForbiddenIsTreatedLikeNotFound(t *testing.T) {
	srv := newGerritServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/config/server/version" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		_, _ = w.Write([]byte(")]}'\n{}"))
	})

	res := NewProber().Probe(context.Background(), srv.URL)
	assert.True(t, res.IsGerrit)
	assert.Equal(t, "unknown", res.Version)
}

func TestProbeServerErrorStopsImmediately(t *testing.T) {
	var hits int32
	srv := newGerritServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	res := NewProber().Probe(context.Background(), srv.URL)
	assert.False(t, res.IsGerrit)
	assert.Equal(t, "HTTP 500: Internal Server Error", res.Reason)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestProbeNotFoundOnEveryCandidate(t *testing.T) {
	srv := newGerritServer(t, http.NotFound)

	res := NewProber().Probe(context.Background(), srv.URL)
	assert.False(t, res.IsGerrit)
	assert.Equal(t, "HTTP 404: Not Found", res.Reason)
	assert.Len(t, res.TriedEndpoints, 2)
}

func TestProbeEmptyResponse(t *testing.T) {
	srv := newGerritServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(")]}'\n   \n"))
	})

	res := NewProber().Probe(context.Background(), srv.URL)
	assert.False(t, res.IsGerrit)
	assert.Equal(t, ReasonEmptyResponse, res.Reason)
	assert.Len(t, res.TriedEndpoints, 2)
}

func TestProbeInvalidJSON(t *testing.T) {
	srv := newGerritServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>hello</html>"))
	})

	res := NewProber().Probe(context.Background(), srv.URL)
	assert.False(t, res.IsGerrit)
	assert.Equal(t, ReasonInvalidJSON, res.Reason)
}

func TestProbeUnexpectedFormat(t *testing.T) {
	srv := newGerritServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("[1,2,3]"))
	})

	res := NewProber().Probe(context.Background(), srv.URL)
	assert.False(t, res.IsGerrit)
	assert.Equal(t, ReasonUnexpectedFormat, res.Reason)
}

func TestProbeTimeoutStopsCandidateLoop(t *testing.T) {
	var hits int32
	srv := newGerritServer(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	res := NewProber(WithTimeout(100*time.Millisecond)).Probe(context.Background(), srv.URL)
	assert.False(t, res.IsGerrit)
	assert.Contains(t, strings.ToLower(res.Reason), "timeout")
	assert.Len(t, res.TriedEndpoints, 1)
	assert.EqualValues(t, 1, atomic.LoadInt32(&hits))
}

func TestProbeCancelledContext(t *testing.T) {
	srv := newGerritServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`"3.0"`))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res := NewProber().Probe(ctx, srv.URL)
	assert.False(t, res.IsGerrit)
	assert.Equal(t, ReasonTimeout, res.Reason)
	assert.Len(t, res.TriedEndpoints, 1)
}

func TestProbeConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.URL
	srv.Close()

	res := NewProber().Probe(context.Background(), addr)
	assert.False(t, res.IsGerrit)
	assert.Equal(t, ReasonNetwork, res.Reason)
	assert.NotEmpty(t, res.Details)
	assert.Len(t, res.TriedEndpoints, 2)
}

func TestProbeInvalidURL(t *testing.T) {
	res := NewProber().Probe(context.Background(), "https://")
	assert.False(t, res.IsGerrit)
	assert.Equal(t, ReasonInvalidURL, res.Reason)
	assert.Empty(t, res.TriedEndpoints)

	res = NewProber().Probe(context.Background(), "ftp://gerrit.example.org")
	assert.Equal(t, ReasonInvalidURL, res.Reason)
}

func TestCandidatesUseAuthorityOnly(t *testing.T) {
	assert.Equal(t, []string{
		"https://review.example.org/config/server/version",
		"https://review.example.org/a/config/server/version",
	}, Candidates("https://review.example.org/"))
}

func TestIsNetworkErrorByMessage(t *testing.T) {
	assert.True(t, isNetworkError(errString("connect ECONNREFUSED 127.0.0.1:443")))
	assert.True(t, isNetworkError(errString("getaddrinfo ENOTFOUND gerrit.invalid")))
	assert.False(t, isNetworkError(errString("certificate signed by unknown authority")))
}

type errString string

func (e errString) Error() string { return string(e) }
