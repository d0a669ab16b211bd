package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	middleware "github.com/niki-health/CarePilot/internal/api/middlewares"
	"github.com/niki-health/CarePilot/internal/config"
	"github.com/niki-health/CarePilot/internal/core"
	"github.com/niki-health/CarePilot/internal/core/ingestion_engine"
	"github.com/niki-health/CarePilot/internal/models"
	"github.com/niki-health/CarePilot/internal/services"
)

// LabHandler owns the lab endpoints: upload (the ingestion pipeline) and
// the read side (history, single report, search, time series).
type LabHandler struct {
	ingestor *ingestion_engine.LabIngestor
	reports  *services.ReportService
	objects  core.ObjectClient
	cfg      *config.Config
	log      *zap.Logger
}

func NewLabHandler(
	ing *ingestion_engine.LabIngestor,
	reports *services.ReportService,
	objects core.ObjectClient,
	cfg *config.Config,
	log *zap.Logger,
) *LabHandler {
	return &LabHandler{ingestor: ing, reports: reports, objects: objects, cfg: cfg, log: log}
}

type uploadResponse struct {
	ReportID             string                `json:"report_id"`
	Parameters           []models.LabParameter `json:"parameters"`
	VectorIDs            []string              `json:"vector_ids,omitempty"`
	VectorStoreSucceeded bool                  `json:"vector_store_succeeded"`
}

// UploadLab accepts a multipart lab report (PDF/PNG/JPG, max 10MB), runs
// the ingestion pipeline synchronously and returns the persisted report's
// id, its parameters, and whether vector storage succeeded. A false flag
// means searchable history is degraded, not that the upload failed.
func (h *LabHandler) UploadLab(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, ingestion_engine.MaxUploadBytes+(1<<20))
	if err := r.ParseMultipartForm(ingestion_engine.MaxUploadBytes); err != nil {
		http.Error(w, "invalid multipart body", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "invalid file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, ingestion_engine.MaxUploadBytes+1))
	if err != nil {
		http.Error(w, "read upload failed", http.StatusBadRequest)
		return
	}
	if len(data) > ingestion_engine.MaxUploadBytes {
		http.Error(w, "file size exceeds 10MB limit", http.StatusRequestEntityTooLarge)
		return
	}

	cleanName := filepath.Base(header.Filename)
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = contentTypeFromName(cleanName)
	}

	docID := uuid.NewString()
	ctx, cancel := timeoutCtx(r, 5*time.Minute)
	defer cancel()

	// The agent works from the filesystem, so the upload is spooled to a
	// temp file while the raw original is archived to object storage.
	var spoolPath string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := spoolUpload(docID, cleanName, data)
		if err != nil {
			return fmt.Errorf("spool upload: %w", err)
		}
		spoolPath = p
		return nil
	})
	g.Go(func() error {
		key := path.Join("users", userID, "labs", docID, cleanName)
		if _, err := h.objects.UploadFile(gctx, h.cfg.BucketName, key, data, contentType); err != nil {
			// Archival is best-effort; the pipeline works from memory.
			h.log.Warn("s3 archive failed", zap.String("doc_id", docID), zap.Error(err))
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		h.log.Error("upload staging failed", zap.Error(err))
		http.Error(w, "upload staging failed", http.StatusInternalServerError)
		return
	}
	defer os.Remove(spoolPath)

	result, err := h.ingestor.Ingest(ctx, &ingestion_engine.IngestRequest{
		UserID:      userID,
		DocID:       docID,
		DocType:     ingestion_engine.DocTypeLabReport,
		FileName:    cleanName,
		ContentType: contentType,
		FilePath:    spoolPath,
		Data:        data,
	})
	if err != nil {
		h.respondPipelineError(w, docID, err)
		return
	}

	report, err := h.reports.Get(ctx, userID, result.ReportID)
	if err != nil {
		h.log.Error("read back persisted report failed",
			zap.String("report_id", result.ReportID), zap.Error(err))
		http.Error(w, "report persisted but could not be read back", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, uploadResponse{
		ReportID:             result.ReportID,
		Parameters:           report.Parameters,
		VectorIDs:            result.VectorIDs,
		VectorStoreSucceeded: result.VectorStoreSucceeded,
	})
}

// GetLabs returns the user's report history, newest report date first.
func (h *LabHandler) GetLabs(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	reports, err := h.reports.List(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if reports == nil {
		reports = []models.LabReport{}
	}
	writeJSON(w, http.StatusOK, reports)
}

// GetLab returns one report with parameters. A report owned by another
// tenant is a 404, indistinguishable from a missing one.
func (h *LabHandler) GetLab(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	reportID := chi.URLParam(r, "id")

	report, err := h.reports.Get(r.Context(), userID, reportID)
	if errors.Is(err, core.ErrNotFound) {
		http.Error(w, "report not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// SearchLabs runs a semantic query over the user's private vectors.
// Query params: q (required), types (csv of doc types), top_k.
func (h *LabHandler) SearchLabs(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	query := r.URL.Query().Get("q")
	topK, _ := strconv.Atoi(r.URL.Query().Get("top_k"))

	var docTypes []string
	if raw := r.URL.Query().Get("types"); raw != "" {
		docTypes = strings.Split(raw, ",")
	} else {
		docTypes = []string{ingestion_engine.DocTypeLabReport}
	}

	matches, err := h.reports.Search(r.Context(), userID, query, docTypes, topK)
	if errors.Is(err, core.ErrValidation) {
		http.Error(w, "missing query parameter q", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.log.Error("search failed", zap.String("user_id", userID), zap.Error(err))
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}
	if matches == nil {
		matches = []models.VectorMatch{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}

// GetTimeseries returns numeric parameter series across the user's history.
func (h *LabHandler) GetTimeseries(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	series, err := h.reports.Timeseries(r.Context(), userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"series": series})
}

func (h *LabHandler) respondPipelineError(w http.ResponseWriter, docID string, err error) {
	h.log.Error("ingestion failed", zap.String("doc_id", docID), zap.Error(err))
	switch {
	case errors.Is(err, core.ErrValidation):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, core.ErrOCR), errors.Is(err, core.ErrExtraction):
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		http.Error(w, "ingestion failed", http.StatusInternalServerError)
	}
}

func spoolUpload(docID, name string, data []byte) (string, error) {
	dir := filepath.Join(os.TempDir(), "carepilot-uploads")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}
	p := filepath.Join(dir, docID+filepath.Ext(name))
	if err := os.WriteFile(p, data, 0o600); err != nil {
		return "", err
	}
	return p, nil
}

func contentTypeFromName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	default:
		return "application/octet-stream"
	}
}

func timeoutCtx(r *http.Request, d time.Duration) (ctx context.Context, cancel context.CancelFunc) {
	return context.WithTimeout(r.Context(), d)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
