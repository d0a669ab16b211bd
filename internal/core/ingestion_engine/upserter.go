package ingestion_engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/niki-health/CarePilot/internal/core"
	"github.com/niki-health/CarePilot/internal/models"
)

// VectorID derives a deterministic id for one embedded chunk. Re-ingesting
// identical content for the same (user, docType, doc) yields the same id,
// so the upsert overwrites instead of duplicating.
func VectorID(userID, docType, docID, chunkText string) string {
	h := sha256.Sum256([]byte(userID + "|" + docType + "|" + docID + "|" + chunkText))
	return "chunk_" + hex.EncodeToString(h[:16])
}

// VectorUpserter builds vector records from a report's chunks and writes
// them to the private namespace of the vector index.
type VectorUpserter struct {
	store core.VectorStore
}

func NewVectorUpserter(store core.VectorStore) *VectorUpserter {
	return &VectorUpserter{store: store}
}

// UpsertChunks writes one record per (chunk, embedding) pair and returns the
// ids written. len(embeddings) must equal len(chunks); the metadata carried
// on each record is flat and always tagged with user_id and doc_type.
func (u *VectorUpserter) UpsertChunks(
	ctx context.Context,
	report *models.LabReport,
	chunks []models.Chunk,
	embeddings [][]float32,
) ([]string, error) {
	if len(chunks) != len(embeddings) {
		return nil, fmt.Errorf("chunk/embedding count mismatch: %d vs %d: %w",
			len(chunks), len(embeddings), core.ErrVectorStore)
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	records := make([]models.VectorRecord, len(chunks))
	ids := make([]string, len(chunks))
	for i, ch := range chunks {
		id := VectorID(report.UserID, report.DocType, report.ID, ch.Text)
		records[i] = models.VectorRecord{
			ID:        id,
			Embedding: embeddings[i],
			Metadata: models.VectorMetadata{
				UserID:     report.UserID,
				DocType:    report.DocType,
				DocID:      report.ID,
				ChunkIndex: ch.SequenceIndex,
				Text:       ch.Text,
				Title:      deref(report.Title),
				Date:       deref(report.Date),
				Hospital:   deref(report.Hospital),
				Doctor:     deref(report.Doctor),
				FileName:   report.FileName,
			},
		}
		ids[i] = id
	}

	if err := u.store.UpsertPrivate(ctx, records); err != nil {
		return nil, fmt.Errorf("upsert %d vectors: %v: %w", len(records), err, core.ErrVectorStore)
	}
	return ids, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
