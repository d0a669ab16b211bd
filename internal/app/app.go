package app

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/niki-health/CarePilot/internal/config"
	"github.com/niki-health/CarePilot/internal/core"
	"github.com/niki-health/CarePilot/internal/core/agent"
	db "github.com/niki-health/CarePilot/internal/core/database"
	"github.com/niki-health/CarePilot/internal/core/ingestion_engine"
	"github.com/niki-health/CarePilot/internal/core/llm"
	objectclient "github.com/niki-health/CarePilot/internal/core/object-client"
	"github.com/niki-health/CarePilot/internal/core/ocr"
	"github.com/niki-health/CarePilot/internal/core/vector"
	"github.com/niki-health/CarePilot/internal/services"
)

// App owns every long-lived component and their shutdown order.
type App struct {
	DBClient  *db.DatabaseClient
	Objects   core.ObjectClient
	Embedder  *llm.GeminiEmbedder
	Extractor *llm.GeminiExtractor
	Ingestor  *ingestion_engine.LabIngestor
	Server    *Server

	log *zap.Logger
}

func NewApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbClient, err := db.NewDatabaseClient(appCtx, cfg)
	if err != nil {
		return nil, err
	}
	log.Info("database initialized and bootstrapped")

	vectors := vector.NewPgVectorStore(dbClient.Pool())

	objClient, err := objectclient.NewS3Client(appCtx, cfg, log)
	if err != nil {
		return nil, err
	}

	embedder, err := llm.NewGeminiEmbedder(appCtx, cfg.AIAPIKey, cfg.EmbedModel)
	if err != nil {
		return nil, err
	}

	extractor, err := llm.NewGeminiExtractor(appCtx, cfg.AIAPIKey, cfg.GenModel)
	if err != nil {
		return nil, err
	}

	// The subprocess agent is optional; without a configured script the
	// pipeline runs on the primary extraction path only.
	var labAgent core.LabAgent
	if a := agent.NewScriptAgent(cfg.AgentPython, cfg.AgentScript, log); a != nil {
		labAgent = a
		log.Info("lab agent configured", zap.String("script", cfg.AgentScript))
	}

	textExtractor := ocr.NewDocconvExtractor(false)
	rasterizer := ocr.NewPdftoppmRasterizer(cfg.PdftoppmPath)

	ingestor := ingestion_engine.NewLabIngestor(
		dbClient, vectors, embedder, extractor, labAgent, textExtractor, rasterizer,
		&ingestion_engine.IngestConfig{
			ChunkSize: cfg.ChunkSize,
			Overlap:   cfg.ChunkOverlap,
		},
		log,
	)

	reports := services.NewReportService(dbClient, vectors, embedder)

	server := NewServer(cfg, ingestor, reports, objClient, log)

	return &App{
		DBClient:  dbClient,
		Objects:   objClient,
		Embedder:  embedder,
		Extractor: extractor,
		Ingestor:  ingestor,
		Server:    server,
		log:       log,
	}, nil
}

func (a *App) Close() {
	if a.Extractor != nil {
		_ = a.Extractor.Close()
	}
	if a.Embedder != nil {
		_ = a.Embedder.Close()
	}
	if a.DBClient != nil {
		_ = a.DBClient.Close()
	}
}
