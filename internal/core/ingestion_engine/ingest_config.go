package ingestion_engine

import (
	"go.uber.org/zap"

	"github.com/niki-health/CarePilot/internal/core"
)

// Chunking defaults shared by the lab, claims and EOB call sites.
const (
	DefaultChunkSize = 1000
	DefaultOverlap   = 200
)

// DocTypeLabReport is the doc_type written for lab ingestions. Claims and
// EOB ingestions reuse the same pipeline with their own doc_type.
const DocTypeLabReport = "lab_report"

// IngestConfig tunes the pipeline.
//
// ChunkSize: maximum characters per chunk.
// Overlap:   characters shared between consecutive chunks so context
//            survives a chunk boundary.
// MinTextLen: minimum extracted-text length before the text extraction path
//            is trusted over the vision call.
type IngestConfig struct {
	ChunkSize  int
	Overlap    int
	MinTextLen int
}

// LabIngestor runs the ingestion pipeline for one uploaded document:
// OCR -> extract (agent first, vision fallback) -> normalize -> chunk ->
// embed -> vector upsert -> persist. All dependencies are explicit so the
// pipeline is testable with fakes; there is no shared mutable state between
// concurrent ingestions.
type LabIngestor struct {
	db        core.DbClient
	vectors   core.VectorStore
	embedder  core.EmbeddingProvider
	extractor core.LabExtractor
	agent     core.LabAgent
	ocr       core.TextExtractor
	raster    core.Rasterizer
	cfg       *IngestConfig
	log       *zap.Logger
}

// NewLabIngestor wires the pipeline. agent may be nil when no secondary
// extraction workflow is configured.
func NewLabIngestor(
	db core.DbClient,
	vectors core.VectorStore,
	emb core.EmbeddingProvider,
	extractor core.LabExtractor,
	agent core.LabAgent,
	ocr core.TextExtractor,
	raster core.Rasterizer,
	cfg *IngestConfig,
	log *zap.Logger,
) *LabIngestor {
	if cfg == nil {
		cfg = &IngestConfig{}
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.ChunkSize {
		cfg.Overlap = cfg.ChunkSize / 5
	}
	if cfg.MinTextLen <= 0 {
		cfg.MinTextLen = 120
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &LabIngestor{
		db: db, vectors: vectors, embedder: emb, extractor: extractor,
		agent: agent, ocr: ocr, raster: raster, cfg: cfg, log: log,
	}
}
