package graphqlapi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oremus-labs/ol-repo-gateway/internal/gerrit"
	"github.com/oremus-labs/ol-repo-gateway/internal/store"
)

type fakeHistory struct {
	records []store.Verification
	err     error
	limit   int
}

func (f *fakeHistory) ListVerifications(limit int) ([]store.Verification, error) {
	f.limit = limit
	return f.records, f.err
}

type fakeProber struct {
	result gerrit.Result
	urls   []string
}

func (f *fakeProber) Probe(_ context.Context, rawURL string) gerrit.Result {
	f.urls = append(f.urls, rawURL)
	return f.result
}

func run(t *testing.T, cfg Config, query string) *graphql.Result {
	t.Helper()
	schema, err := NewSchema(cfg)
	require.NoError(t, err)
	return graphql.Do(graphql.Params{
		Schema:        *schema,
		RequestString: query,
		Context:       context.Background(),
	})
}

func TestVerificationsQuery(t *testing.T) {
	created := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	history := &fakeHistory{records: []store.Verification{
		{ID: "1", URL: "https://review.example.com/p", IsGerrit: true, Version: "3.9.1", CreatedAt: created},
		{ID: "2", URL: "https://github.com/a/b", Reason: "not_gerrit", CreatedAt: created},
	}}

	res := run(t, Config{History: history}, `{ verifications(limit: 5) { id url isGerrit version createdAt } }`)
	require.Empty(t, res.Errors)
	assert.Equal(t, 5, history.limit)

	data := res.Data.(map[string]interface{})
	list := data["verifications"].([]interface{})
	require.Len(t, list, 2)
	first := list[0].(map[string]interface{})
	assert.Equal(t, "3.9.1", first["version"])
	assert.Equal(t, "2026-03-01T12:00:00Z", first["createdAt"])

	res = run(t, Config{History: history}, `{ verifications(gerritOnly: true) { id } }`)
	require.Empty(t, res.Errors)
	assert.Equal(t, defaultLimit, history.limit)
	list = res.Data.(map[string]interface{})["verifications"].([]interface{})
	assert.Len(t, list, 1)
}

func TestVerificationsQueryWithoutHistory(t *testing.T) {
	res := run(t, Config{}, `{ verifications { id } }`)
	require.Empty(t, res.Errors)
	list := res.Data.(map[string]interface{})["verifications"].([]interface{})
	assert.Empty(t, list)
}

func TestVerificationsQueryStoreError(t *testing.T) {
	res := run(t, Config{History: &fakeHistory{err: errors.New("db closed")}}, `{ verifications { id } }`)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0].Message, "db closed")
}

func TestRepositoryQuery(t *testing.T) {
	res := run(t, Config{}, `{ repository(url: "https://review.example.com/a/project") { domain path candidates } }`)
	require.Empty(t, res.Errors)
	repo := res.Data.(map[string]interface{})["repository"].(map[string]interface{})
	assert.Equal(t, "https://review.example.com", repo["domain"])
	assert.Equal(t, "a/project", repo["path"])
	assert.NotEmpty(t, repo["candidates"])
}

func TestVerifyGerritMutation(t *testing.T) {
	prober := &fakeProber{result: gerrit.Result{IsGerrit: true, Version: "3.10.0", BaseURL: "https://review.example.com"}}
	var recorded []string
	cfg := Config{
		Prober: prober,
		OnVerify: func(rawURL string, result gerrit.Result) {
			recorded = append(recorded, rawURL+"="+result.Version)
		},
	}

	res := run(t, cfg, `mutation { verifyGerrit(url: "https://review.example.com") { isGerrit version baseUrl } }`)
	require.Empty(t, res.Errors)
	out := res.Data.(map[string]interface{})["verifyGerrit"].(map[string]interface{})
	assert.Equal(t, true, out["isGerrit"])
	assert.Equal(t, "3.10.0", out["version"])
	assert.Equal(t, []string{"https://review.example.com"}, prober.urls)
	assert.Equal(t, []string{"https://review.example.com=3.10.0"}, recorded)
}

func TestNewHandler(t *testing.T) {
	h, err := NewHandler(Config{})
	require.NoError(t, err)
	assert.NotNil(t, h)
}
