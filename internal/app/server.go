package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/niki-health/CarePilot/internal/api/handlers"
	appMiddleware "github.com/niki-health/CarePilot/internal/api/middlewares"
	"github.com/niki-health/CarePilot/internal/config"
	"github.com/niki-health/CarePilot/internal/core"
	ingestor "github.com/niki-health/CarePilot/internal/core/ingestion_engine"
	"github.com/niki-health/CarePilot/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
	log        *zap.Logger
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, ing *ingestor.LabIngestor, reports *services.ReportService, obj core.ObjectClient, log *zap.Logger) *Server {
	labHandler := handlers.NewLabHandler(ing, reports, obj, cfg, log)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	// Uploads run the full pipeline synchronously, so the request timeout
	// has to cover OCR plus two model calls.
	r.Use(chimiddleware.Timeout(5 * time.Minute))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8888"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(api chi.Router) {
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware)
			protected.Post("/labs/upload", labHandler.UploadLab)
			protected.Get("/labs", labHandler.GetLabs)
			protected.Get("/labs/search", labHandler.SearchLabs)
			protected.Get("/labs/timeseries", labHandler.GetTimeseries)
			protected.Get("/labs/{id}", labHandler.GetLab)
		})
	})

	httpSrv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	return &Server{httpServer: httpSrv, log: log}
}

// Start runs the HTTP server until it fails or is shut down.
func (s *Server) Start() error {
	s.log.Info("HTTP server listening", zap.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
