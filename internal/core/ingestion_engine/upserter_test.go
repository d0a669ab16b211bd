package ingestion_engine

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/niki-health/CarePilot/internal/core"
	"github.com/niki-health/CarePilot/internal/models"
)

type fakeVectorStore struct {
	upserted  []models.VectorRecord
	upsertErr error
}

func (f *fakeVectorStore) UpsertPrivate(_ context.Context, records []models.VectorRecord) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserted = append(f.upserted, records...)
	return nil
}

func (f *fakeVectorStore) QueryPrivate(context.Context, string, []string, []float32, int) ([]models.VectorMatch, error) {
	return nil, nil
}

func TestVectorIDDeterministic(t *testing.T) {
	a := VectorID("u1", DocTypeLabReport, "d1", "Glucose: 98")
	b := VectorID("u1", DocTypeLabReport, "d1", "Glucose: 98")
	if a != b {
		t.Fatalf("same inputs produced different ids: %s vs %s", a, b)
	}
	if !strings.HasPrefix(a, "chunk_") {
		t.Fatalf("id missing chunk_ prefix: %s", a)
	}

	for name, other := range map[string]string{
		"different user": VectorID("u2", DocTypeLabReport, "d1", "Glucose: 98"),
		"different doc":  VectorID("u1", DocTypeLabReport, "d2", "Glucose: 98"),
		"different text": VectorID("u1", DocTypeLabReport, "d1", "Glucose: 99"),
		"different type": VectorID("u1", "claim", "d1", "Glucose: 98"),
	} {
		if other == a {
			t.Fatalf("%s collided with base id %s", name, a)
		}
	}
}

func TestUpsertChunksWritesFlatMetadata(t *testing.T) {
	store := &fakeVectorStore{}
	report := sampleReport(2)
	chunks := NewChunker(1000, 200).ChunkReport(report)
	embeddings := [][]float32{{0.1, 0.2, 0.3}}

	ids, err := NewVectorUpserter(store).UpsertChunks(context.Background(), report, chunks, embeddings)
	if err != nil {
		t.Fatalf("UpsertChunks: %v", err)
	}
	if len(ids) != 1 || len(store.upserted) != 1 {
		t.Fatalf("got %d ids, %d records", len(ids), len(store.upserted))
	}

	rec := store.upserted[0]
	if rec.ID != ids[0] {
		t.Fatalf("returned id %s != stored id %s", ids[0], rec.ID)
	}
	m := rec.Metadata
	if m.UserID != "u1" || m.DocType != DocTypeLabReport || m.DocID != "r1" {
		t.Fatalf("tenant metadata wrong: %+v", m)
	}
	if m.ChunkIndex != 0 || m.Text == "" {
		t.Fatalf("chunk metadata wrong: %+v", m)
	}
	if m.Title != "Comprehensive Metabolic Panel" || m.Date != "2024-03-15" {
		t.Fatalf("report metadata not flattened: %+v", m)
	}
}

func TestUpsertChunksIdempotentIDs(t *testing.T) {
	store := &fakeVectorStore{}
	report := sampleReport(2)
	chunks := NewChunker(1000, 200).ChunkReport(report)
	embeddings := [][]float32{{0.1}}

	first, err := NewVectorUpserter(store).UpsertChunks(context.Background(), report, chunks, embeddings)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	second, err := NewVectorUpserter(store).UpsertChunks(context.Background(), report, chunks, embeddings)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if first[0] != second[0] {
		t.Fatalf("re-ingesting identical content changed the id: %s vs %s", first[0], second[0])
	}
}

func TestUpsertChunksCountMismatch(t *testing.T) {
	store := &fakeVectorStore{}
	report := sampleReport(2)
	chunks := NewChunker(1000, 200).ChunkReport(report)

	_, err := NewVectorUpserter(store).UpsertChunks(context.Background(), report, chunks, nil)
	if !errors.Is(err, core.ErrVectorStore) {
		t.Fatalf("want ErrVectorStore, got %v", err)
	}
	if len(store.upserted) != 0 {
		t.Fatalf("mismatched batch must not reach the store")
	}
}

func TestUpsertChunksWrapsStoreFailure(t *testing.T) {
	store := &fakeVectorStore{upsertErr: errors.New("index unavailable")}
	report := sampleReport(1)
	chunks := NewChunker(1000, 200).ChunkReport(report)

	_, err := NewVectorUpserter(store).UpsertChunks(context.Background(), report, chunks, [][]float32{{0.1}})
	if !errors.Is(err, core.ErrVectorStore) {
		t.Fatalf("want ErrVectorStore, got %v", err)
	}
}
