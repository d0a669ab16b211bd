package core

import (
	"context"
	"io"

	"github.com/niki-health/CarePilot/internal/models"
)

// DbClient is the structured store of record for normalized reports.
// Every operation is tenant-scoped: a report that exists but belongs to a
// different user behaves exactly like a missing one.
type DbClient interface {
	SaveLabReport(ctx context.Context, report *models.LabReport) error
	GetLabReport(ctx context.Context, userID, reportID string) (*models.LabReport, error)
	ListLabReports(ctx context.Context, userID string) ([]models.LabReport, error)
	ListParametersByUser(ctx context.Context, userID string) ([]models.ParameterSample, error)

	Close() error
}

// VectorStore is the namespaced vector index. Writes go to the private
// namespace; reads must always carry the user_id filter.
type VectorStore interface {
	UpsertPrivate(ctx context.Context, records []models.VectorRecord) error
	QueryPrivate(ctx context.Context, userID string, docTypes []string, queryVec []float32, topK int) ([]models.VectorMatch, error)
}

// ObjectClient defines interactions with S3 or any object storage.
// It's abstract so AWS can be replaced with MinIO, GCP, etc. easily.
type ObjectClient interface {
	UploadFile(ctx context.Context, bucket, key string, data []byte, contentType string) (url string, err error)
	DeleteFile(ctx context.Context, bucket, key string) error
	GetFile(ctx context.Context, bucket, key string) ([]byte, error)

	GetObjectReader(ctx context.Context, bucket, key string) (io.ReadCloser, error)
}

// LabAgent is the secondary extraction path: an external workflow that can
// do OCR, extraction and vector storage in one call. Implementations report
// unavailability with ErrAgentUnavailable and failures with ErrExtraction.
type LabAgent interface {
	ProcessLab(ctx context.Context, userID, filePath, fileType, docID string) (*models.AgentResult, error)
}
