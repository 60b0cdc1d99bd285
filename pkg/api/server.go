// Package api serves the status endpoints of a running pipeline: Prometheus
// metrics, a health check, counters and the stored diagnostic payloads.
//
// @title           Hermes Portal status API
// @version         1.0.0
// @description     Status, counters and diagnostic payloads of a running feed pipeline.
// @host            127.0.0.1:9310
// @BasePath        /api/v1
//
// @securityDefinitions.apikey ApiKeyAuth
// @in              header
// @name            X-API-Key
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/swaggo/swag"
)

const shutdownTimeout = 5 * time.Second

// Server is the HTTP status server.
type Server struct {
	config  ServerConfig
	status  StatusSource
	blobs   BlobSource // optional
	metrics *Metrics
	log     zerolog.Logger
}

// NewServer creates a server. blobs may be nil when diagnostics are off.
func NewServer(config ServerConfig, status StatusSource, blobs BlobSource, metrics *Metrics, logger *zerolog.Logger) *Server {
	s := &Server{
		config:  config,
		status:  status,
		blobs:   blobs,
		metrics: metrics,
		log:     zerolog.Nop(),
	}
	if logger != nil {
		s.log = logger.With().Str("component", "status").Logger()
	}
	return s
}

// Router builds the route tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Prometheus metrics endpoint (unprotected for scraping)
	r.Handle("/metrics", promhttp.HandlerFor(s.metrics.Registry(), promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		if s.config.APIKey != "" {
			r.Use(apiKeyMiddleware(s.config.APIKey))
		}
		r.Get("/health", s.metrics.InstrumentHandler("GET", "/api/v1/health", s.handleHealth))
		r.Get("/stats", s.metrics.InstrumentHandler("GET", "/api/v1/stats", s.handleStats))
		r.Get("/blobs", s.metrics.InstrumentHandler("GET", "/api/v1/blobs", s.handleListBlobs))
		r.Get("/blobs/{id}", s.metrics.InstrumentHandler("GET", "/api/v1/blobs/{id}", s.handleGetBlob))
	})

	// Swagger documentation (unprotected)
	r.Get("/swagger/*", s.handleSwagger)
	return r
}

const swaggerUI = `<!DOCTYPE html>
<html>
<head>
	<title>Hermes Portal status API</title>
	<link rel="stylesheet" type="text/css" href="https://unpkg.com/swagger-ui-dist@3.25.0/swagger-ui.css" />
</head>
<body>
	<div id="swagger-ui"></div>
	<script src="https://unpkg.com/swagger-ui-dist@3.25.0/swagger-ui-bundle.js"></script>
	<script>
	  window.onload = function() {
	    SwaggerUIBundle({
	      url: '/swagger/doc.json',
	      dom_id: '#swagger-ui',
	      presets: [SwaggerUIBundle.presets.apis, SwaggerUIBundle.presets.standalone]
	    });
	  };
	</script>
</body>
</html>`

func (s *Server) handleSwagger(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/swagger/", "/swagger/index.html":
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(swaggerUI))
	case "/swagger/doc.json", "/swagger/swagger.json":
		doc, err := swag.ReadDoc(SwaggerInfo.InstanceName())
		if err != nil {
			s.log.Error().Err(err).Msg("read swagger doc")
			http.Error(w, "Failed to generate Swagger documentation", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(doc))
	default:
		http.NotFound(w, r)
	}
}

// Serve answers requests on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("status server listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// ListenAndServe binds config.Addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		return err
	}
	SwaggerInfo.Host = ln.Addr().String()
	return s.Serve(ctx, ln)
}
