package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/oremus-labs/ol-repo-gateway/internal/handlers"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures the HTTP server wiring.
type Options struct {
	APIToken string
	// WriteTimeout bounds response writes. Zero leaves it unset, which the
	// SSE stream and slow backend relays rely on.
	WriteTimeout time.Duration
	// GraphQLHandler is mounted on /graphql behind the API token when set.
	GraphQLHandler http.Handler
}

// Server wraps the Gin engine and associated configuration.
type Server struct {
	engine *gin.Engine
	opts   Options
}

// NewServer constructs a Server with all HTTP routes configured.
func NewServer(handler *handlers.Handler, opts Options) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(requestIDMiddleware(), recoveryMiddleware(), metricsMiddleware(), requestLogger())

	// Health + meta
	engine.GET("/healthz", handler.Health)
	engine.GET("/openapi", handler.OpenAPISpec)
	engine.GET("/events", handler.StreamEvents)
	engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Gerrit
	engine.POST("/gerrit/verify", handler.VerifyGerrit)
	engine.POST("/gerrit/structure", handler.GerritStructure)

	// Model configuration
	engine.GET("/models/config", handler.ModelsConfig)
	litellm := engine.Group("/litellm", corsMiddleware())
	litellm.POST("/test-connection", handler.TestLiteLLMConnection)
	litellm.OPTIONS("/test-connection", handler.LiteLLMPreflight)

	protected := engine.Group("/")
	protected.Use(authMiddleware(opts.APIToken))

	protected.GET("/gerrit/history", handler.GerritHistory)
	if opts.GraphQLHandler != nil {
		protected.GET("/graphql", gin.WrapH(opts.GraphQLHandler))
		protected.POST("/graphql", gin.WrapH(opts.GraphQLHandler))
	}

	return &Server{engine: engine, opts: opts}
}

// Engine exposes the underlying Gin engine for advanced use (testing, etc.).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Start launches the HTTP server on the provided address.
func (s *Server) Start(addr string) *http.Server {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: s.opts.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			panic(err)
		}
	}()
	return srv
}
