package ingestion_engine

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/niki-health/CarePilot/internal/core"
	"github.com/niki-health/CarePilot/internal/models"
)

// MaxUploadBytes caps accepted files at 10MB.
const MaxUploadBytes = 10 << 20

var allowedContentTypes = map[string]string{
	"application/pdf": "pdf",
	"image/png":       "png",
	"image/jpeg":      "jpg",
	"image/jpg":       "jpg",
}

// IngestRequest is one upload to run through the pipeline.
//
// FilePath is a local spool of Data, handed to the secondary agent (which
// works from the filesystem). FileType is the declared type: pdf|png|jpg.
type IngestRequest struct {
	UserID      string
	DocID       string
	DocType     string
	FileName    string
	ContentType string
	FileType    string
	FilePath    string
	Data        []byte
}

// sourceDoc is the readable form of the upload after the OCR stage.
type sourceDoc struct {
	data []byte
	mime string
	text string // text layer, empty when the document has none
}

// extractionOutcome tags which extraction path produced the result, instead
// of threading ad hoc booleans through the pipeline.
type extractionOutcome struct {
	agent *models.AgentResult   // set when the secondary agent completed
	raw   *models.RawExtraction // set when the primary path ran
}

// Ingest runs one document through the full pipeline and returns the
// outcome. Stages run strictly sequentially. Chunking, embedding and vector
// upsert failures degrade the result (VectorStoreSucceeded=false) but never
// fail the request; only validation, unreadable input, total extraction
// failure and relational persistence are fatal. Nothing is retried and
// nothing already written is rolled back.
func (i *LabIngestor) Ingest(ctx context.Context, req *IngestRequest) (*models.IngestionResult, error) {
	if err := validateRequest(req); err != nil {
		return nil, err
	}
	if req.DocType == "" {
		req.DocType = DocTypeLabReport
	}

	log := i.log.With(
		zap.String("user_id", req.UserID),
		zap.String("doc_id", req.DocID),
		zap.String("doc_type", req.DocType),
	)

	src, err := i.runOCR(ctx, req, log)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outcome, err := i.extract(ctx, req, src, log)
	if err != nil {
		return nil, err
	}

	var (
		report    *models.LabReport
		vectorIDs []string
		vectorOK  bool
	)
	switch {
	case outcome.agent != nil:
		// The agent already did its own chunking, embedding and storage.
		// Its self-reported flag is trusted as reported, in both directions.
		raw := &models.RawExtraction{
			RawMetadata: outcome.agent.LabMetadata,
			Parameters:  outcome.agent.Parameters,
		}
		report = Normalize(req.UserID, req.DocID, req.DocType, req.FileName, raw)
		vectorOK = outcome.agent.PineconeStored
		if outcome.agent.VectorID != "" {
			vectorIDs = []string{outcome.agent.VectorID}
		}
		log.Info("secondary extraction completed",
			zap.Int("parameters", len(report.Parameters)),
			zap.Bool("vector_stored", vectorOK))

	default:
		report = Normalize(req.UserID, req.DocID, req.DocType, req.FileName, outcome.raw)
		vectorIDs, vectorOK = i.storeVectors(ctx, report, log)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := i.db.SaveLabReport(ctx, report); err != nil {
		return nil, fmt.Errorf("save report %s: %v: %w", report.ID, err, core.ErrPersistence)
	}

	log.Info("report persisted",
		zap.Int("parameters", len(report.Parameters)),
		zap.Int("vectors", len(vectorIDs)),
		zap.Bool("vector_store_succeeded", vectorOK))

	return &models.IngestionResult{
		ReportID:             report.ID,
		VectorIDs:            vectorIDs,
		VectorStoreSucceeded: vectorOK,
	}, nil
}

func validateRequest(req *IngestRequest) error {
	if req.UserID == "" {
		return fmt.Errorf("missing user id: %w", core.ErrValidation)
	}
	if len(req.Data) > MaxUploadBytes {
		return fmt.Errorf("file exceeds 10MB limit: %w", core.ErrValidation)
	}
	if _, ok := allowedContentTypes[req.ContentType]; !ok {
		return fmt.Errorf("unsupported file type %q (allowed: PDF, PNG, JPG): %w",
			req.ContentType, core.ErrValidation)
	}
	if req.FileType == "" {
		req.FileType = allowedContentTypes[req.ContentType]
	}
	return nil
}

// runOCR turns the upload into readable input. For PDFs the text layer is
// pulled out when one exists; a missing or failed text layer is not fatal
// because the vision path can still read the page.
func (i *LabIngestor) runOCR(ctx context.Context, req *IngestRequest, log *zap.Logger) (*sourceDoc, error) {
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("empty upload: %w", core.ErrOCR)
	}

	src := &sourceDoc{data: req.Data, mime: req.ContentType}
	if req.FileType == "pdf" && i.ocr != nil {
		text, err := i.ocr.ExtractText(ctx, req.Data, req.ContentType)
		if err != nil {
			log.Debug("text extraction failed, relying on vision", zap.Error(err))
		} else {
			src.text = text
		}
	}
	return src, nil
}

// extract tries the secondary agent first and falls back to the primary
// path: text extraction when the document carried a usable text layer,
// otherwise a vision call over the rasterized first page (or the raw bytes
// when rasterization fails).
func (i *LabIngestor) extract(ctx context.Context, req *IngestRequest, src *sourceDoc, log *zap.Logger) (*extractionOutcome, error) {
	if i.agent != nil {
		res, err := i.agent.ProcessLab(ctx, req.UserID, req.FilePath, req.FileType, req.DocID)
		switch {
		case err == nil && res.WorkflowCompleted && len(res.Parameters) > 0:
			return &extractionOutcome{agent: res}, nil
		case errors.Is(err, core.ErrAgentUnavailable):
			log.Debug("no extraction agent configured")
		case err != nil:
			log.Warn("secondary extraction failed, falling back", zap.Error(err))
		default:
			log.Warn("secondary extraction incomplete, falling back",
				zap.Bool("workflow_completed", res.WorkflowCompleted),
				zap.Int("parameters", len(res.Parameters)))
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if len(src.text) >= i.cfg.MinTextLen {
		raw, err := i.extractor.ExtractFromText(ctx, src.text)
		if err == nil {
			return &extractionOutcome{raw: raw}, nil
		}
		log.Warn("text extraction path failed, trying vision", zap.Error(err))
	}

	img, mime := src.data, src.mime
	if req.FileType == "pdf" && i.raster != nil {
		if png, err := i.raster.FirstPagePNG(ctx, src.data); err == nil {
			img, mime = png, "image/png"
		} else {
			log.Warn("pdf rasterization failed, sending raw bytes to vision", zap.Error(err))
		}
	}

	raw, err := i.extractor.ExtractFromImage(ctx, img, mime)
	if err != nil {
		return nil, fmt.Errorf("vision extraction: %v: %w", err, core.ErrExtraction)
	}
	return &extractionOutcome{raw: raw}, nil
}

// storeVectors runs chunk -> embed -> upsert. Any failure here is swallowed
// into a degraded flag: search is best-effort relative to durable storage
// of the canonical report.
func (i *LabIngestor) storeVectors(ctx context.Context, report *models.LabReport, log *zap.Logger) ([]string, bool) {
	chunks := NewChunker(i.cfg.ChunkSize, i.cfg.Overlap).ChunkReport(report)

	texts := make([]string, len(chunks))
	for idx, ch := range chunks {
		texts[idx] = ch.Text
	}

	embeddings, err := i.embedder.EmbedTexts(ctx, texts)
	if err != nil {
		log.Warn("embedding failed, vector storage degraded", zap.Error(err))
		return nil, false
	}
	if len(embeddings) != len(texts) {
		log.Warn("embedding count mismatch, vector storage degraded",
			zap.Int("want", len(texts)), zap.Int("got", len(embeddings)))
		return nil, false
	}

	ids, err := NewVectorUpserter(i.vectors).UpsertChunks(ctx, report, chunks, embeddings)
	if err != nil {
		log.Warn("vector upsert failed, vector storage degraded", zap.Error(err))
		return nil, false
	}
	return ids, true
}
