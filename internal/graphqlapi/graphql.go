// Package graphqlapi serves a GraphQL view over Gerrit verifications.
package graphqlapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/graphql-go/graphql"
	"github.com/graphql-go/handler"

	"github.com/oremus-labs/ol-repo-gateway/internal/gerrit"
	"github.com/oremus-labs/ol-repo-gateway/internal/repourl"
	"github.com/oremus-labs/ol-repo-gateway/internal/store"
)

const defaultLimit = 25

// HistoryStore exposes read access to verification records.
type HistoryStore interface {
	ListVerifications(limit int) ([]store.Verification, error)
}

// Prober runs a Gerrit probe.
type Prober interface {
	Probe(ctx context.Context, rawURL string) gerrit.Result
}

// Config wires the GraphQL schema.
type Config struct {
	History HistoryStore
	Prober  Prober
	// OnVerify is called after every verifyGerrit mutation.
	OnVerify func(rawURL string, result gerrit.Result)
}

// NewHandler returns an http.Handler that serves /graphql requests.
func NewHandler(cfg Config) (http.Handler, error) {
	schema, err := NewSchema(cfg)
	if err != nil {
		return nil, err
	}

	return handler.New(&handler.Config{
		Schema:   schema,
		Pretty:   true,
		GraphiQL: true,
	}), nil
}

// NewSchema builds the schema without the HTTP layer.
func NewSchema(cfg Config) (*graphql.Schema, error) {
	builder := schemaBuilder{cfg: cfg}
	return builder.buildSchema()
}

type schemaBuilder struct {
	cfg Config
}

func (b schemaBuilder) buildSchema() (*graphql.Schema, error) {
	probeResultType := graphql.NewObject(graphql.ObjectConfig{
		Name: "ProbeResult",
		Fields: graphql.Fields{
			"isGerrit":       {Type: graphql.NewNonNull(graphql.Boolean)},
			"version":        {Type: graphql.String},
			"reason":         {Type: graphql.String},
			"details":        {Type: graphql.String},
			"baseUrl":        {Type: graphql.String},
			"triedEndpoints": {Type: graphql.NewList(graphql.String)},
		},
	})

	verificationType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Verification",
		Fields: graphql.Fields{
			"id":             {Type: graphql.NewNonNull(graphql.ID)},
			"url":            {Type: graphql.NewNonNull(graphql.String)},
			"baseUrl":        {Type: graphql.String},
			"isGerrit":       {Type: graphql.NewNonNull(graphql.Boolean)},
			"version":        {Type: graphql.String},
			"reason":         {Type: graphql.String},
			"details":        {Type: graphql.String},
			"triedEndpoints": {Type: graphql.NewList(graphql.String)},
			"requestId":      {Type: graphql.String},
			"createdAt":      {Type: graphql.String},
		},
	})

	repositoryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Repository",
		Fields: graphql.Fields{
			"domain":     {Type: graphql.String},
			"path":       {Type: graphql.String},
			"candidates": {Type: graphql.NewList(graphql.String)},
		},
	})

	queryFields := graphql.Fields{
		"verifications": {
			Type: graphql.NewList(verificationType),
			Args: graphql.FieldConfigArgument{
				"limit":      {Type: graphql.Int},
				"gerritOnly": {Type: graphql.Boolean},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				if b.cfg.History == nil {
					return []interface{}{}, nil
				}
				limit := defaultLimit
				if l, ok := p.Args["limit"].(int); ok && l > 0 {
					limit = l
				}
				gerritOnly, _ := p.Args["gerritOnly"].(bool)
				records, err := b.cfg.History.ListVerifications(limit)
				if err != nil {
					return nil, err
				}
				return mapVerifications(records, gerritOnly), nil
			},
		},
		"repository": {
			Type: repositoryType,
			Args: graphql.FieldConfigArgument{
				"url": {Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				raw, _ := p.Args["url"].(string)
				u, err := repourl.Normalize(raw)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{
					"domain":     repourl.ExtractDomain(raw),
					"path":       repourl.ExtractPath(raw),
					"candidates": gerrit.Candidates(repourl.BaseURL(u)),
				}, nil
			},
		},
	}

	mutationFields := graphql.Fields{
		"verifyGerrit": {
			Type: probeResultType,
			Args: graphql.FieldConfigArgument{
				"url": {Type: graphql.NewNonNull(graphql.String)},
			},
			Resolve: func(p graphql.ResolveParams) (interface{}, error) {
				if b.cfg.Prober == nil {
					return nil, nil
				}
				raw, _ := p.Args["url"].(string)
				result := b.cfg.Prober.Probe(p.Context, raw)
				if b.cfg.OnVerify != nil {
					b.cfg.OnVerify(raw, result)
				}
				return mapProbeResult(result), nil
			},
		},
	}

	schema, err := graphql.NewSchema(graphql.SchemaConfig{
		Query: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Query",
			Fields: queryFields,
		}),
		Mutation: graphql.NewObject(graphql.ObjectConfig{
			Name:   "Mutation",
			Fields: mutationFields,
		}),
	})
	if err != nil {
		return nil, err
	}
	return &schema, nil
}

func mapVerifications(records []store.Verification, gerritOnly bool) []interface{} {
	out := make([]interface{}, 0, len(records))
	for i := range records {
		if gerritOnly && !records[i].IsGerrit {
			continue
		}
		out = append(out, mapVerification(&records[i]))
	}
	return out
}

func mapVerification(v *store.Verification) map[string]interface{} {
	if v == nil {
		return nil
	}
	return map[string]interface{}{
		"id":             v.ID,
		"url":            v.URL,
		"baseUrl":        v.BaseURL,
		"isGerrit":       v.IsGerrit,
		"version":        v.Version,
		"reason":         v.Reason,
		"details":        v.Details,
		"triedEndpoints": v.TriedEndpoints,
		"requestId":      v.RequestID,
		"createdAt":      v.CreatedAt.Format(time.RFC3339),
	}
}

func mapProbeResult(r gerrit.Result) map[string]interface{} {
	return map[string]interface{}{
		"isGerrit":       r.IsGerrit,
		"version":        r.Version,
		"reason":         r.Reason,
		"details":        strings.TrimSpace(r.Details),
		"baseUrl":        r.BaseURL,
		"triedEndpoints": r.TriedEndpoints,
	}
}
