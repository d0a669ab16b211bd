package services

import (
	"context"
	"fmt"

	"github.com/niki-health/CarePilot/internal/core"
	"github.com/niki-health/CarePilot/internal/models"
)

// ReportService serves reads over ingested reports: history, single report,
// semantic search and per-parameter time series. All reads are tenant-scoped.
type ReportService struct {
	db       core.DbClient
	vectors  core.VectorStore
	embedder core.EmbeddingProvider
}

func NewReportService(db core.DbClient, vectors core.VectorStore, emb core.EmbeddingProvider) *ReportService {
	return &ReportService{db: db, vectors: vectors, embedder: emb}
}

func (s *ReportService) Get(ctx context.Context, userID, reportID string) (*models.LabReport, error) {
	return s.db.GetLabReport(ctx, userID, reportID)
}

func (s *ReportService) List(ctx context.Context, userID string) ([]models.LabReport, error) {
	return s.db.ListLabReports(ctx, userID)
}

// Search embeds the query and runs a filtered nearest-neighbour lookup over
// the user's private vectors.
func (s *ReportService) Search(ctx context.Context, userID, query string, docTypes []string, topK int) ([]models.VectorMatch, error) {
	if query == "" {
		return nil, fmt.Errorf("empty query: %w", core.ErrValidation)
	}
	vecs, err := s.embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("query embedding returned %d vectors: %w", len(vecs), core.ErrEmbedding)
	}
	return s.vectors.QueryPrivate(ctx, userID, docTypes, vecs[0], topK)
}

// TimeseriesPoint is one dated numeric observation of a parameter.
type TimeseriesPoint struct {
	ReportID string  `json:"report_id"`
	Date     *string `json:"date"`
	Value    float64 `json:"value"`
	Unit     string  `json:"unit,omitempty"`
}

// Timeseries groups a user's numeric parameter values by parameter name,
// ordered by report date. Qualitative values ("Positive", "Trace") carry no
// plottable number and are skipped.
func (s *ReportService) Timeseries(ctx context.Context, userID string) (map[string][]TimeseriesPoint, error) {
	samples, err := s.db.ListParametersByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	series := make(map[string][]TimeseriesPoint)
	for _, sample := range samples {
		v, ok := sample.Value.Numeric()
		if !ok {
			continue
		}
		series[sample.Name] = append(series[sample.Name], TimeseriesPoint{
			ReportID: sample.ReportID,
			Date:     sample.Date,
			Value:    v,
			Unit:     sample.Unit,
		})
	}
	return series, nil
}
