package vector

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/niki-health/CarePilot/internal/core"
	"github.com/niki-health/CarePilot/internal/models"
)

// Namespaces partition the index by data class. Private holds per-user PHI;
// KB is reserved for shared knowledge-base content.
const (
	NamespacePrivate = "private"
	NamespaceKB      = "kb"
)

// PgVectorStore realizes the namespaced vector index on pgvector, sharing
// the relational pool. Upserts are idempotent on the deterministic record
// id; every private-namespace query carries the user_id filter — queries
// that omit it do not exist on this type, by construction.
type PgVectorStore struct {
	db *sql.DB
}

func NewPgVectorStore(conn *sql.DB) *PgVectorStore {
	return &PgVectorStore{db: conn}
}

// UpsertPrivate writes records to the private namespace in one transaction.
// An existing id is overwritten, so re-ingesting identical content replaces
// rather than duplicates.
func (s *PgVectorStore) UpsertPrivate(ctx context.Context, records []models.VectorRecord) error {
	if len(records) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const q = `
		INSERT INTO vector_records
			(id, namespace, user_id, doc_type, doc_id, chunk_index, text,
			 title, report_date, hospital, doctor, file_name, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			chunk_index = EXCLUDED.chunk_index,
			text        = EXCLUDED.text,
			title       = EXCLUDED.title,
			report_date = EXCLUDED.report_date,
			hospital    = EXCLUDED.hospital,
			doctor      = EXCLUDED.doctor,
			file_name   = EXCLUDED.file_name,
			embedding   = EXCLUDED.embedding
	`
	stmt, err := tx.PrepareContext(ctx, q)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range records {
		r := &records[i]
		m := &r.Metadata
		if _, err := stmt.ExecContext(ctx,
			r.ID, NamespacePrivate, m.UserID, m.DocType, m.DocID, m.ChunkIndex, m.Text,
			m.Title, m.Date, m.Hospital, m.Doctor, m.FileName,
			pgvector.NewVector(r.Embedding),
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// QueryPrivate returns the topK nearest records for one user, optionally
// restricted to given doc types. Score is cosine similarity.
func (s *PgVectorStore) QueryPrivate(ctx context.Context, userID string, docTypes []string, queryVec []float32, topK int) ([]models.VectorMatch, error) {
	if userID == "" {
		return nil, fmt.Errorf("vector query without user_id filter")
	}
	if topK <= 0 {
		topK = 5
	}

	q := `
		SELECT id, user_id, doc_type, doc_id, chunk_index, text,
		       title, report_date, hospital, doctor, file_name,
		       1 - (embedding <=> $3) AS score
		FROM vector_records
		WHERE namespace = $1 AND user_id = $2
	`
	args := []any{NamespacePrivate, userID, pgvector.NewVector(queryVec)}
	if len(docTypes) > 0 {
		q += ` AND doc_type = ANY($4)`
		args = append(args, docTypes)
	}
	q += fmt.Sprintf(` ORDER BY embedding <=> $3 LIMIT %d`, topK)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.VectorMatch
	for rows.Next() {
		var match models.VectorMatch
		m := &match.Metadata
		if err := rows.Scan(
			&match.ID, &m.UserID, &m.DocType, &m.DocID, &m.ChunkIndex, &m.Text,
			&m.Title, &m.Date, &m.Hospital, &m.Doctor, &m.FileName,
			&match.Score,
		); err != nil {
			return nil, err
		}
		out = append(out, match)
	}
	return out, rows.Err()
}

var _ core.VectorStore = (*PgVectorStore)(nil)
