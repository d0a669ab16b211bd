package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/niki-health/CarePilot/internal/config"
	"github.com/niki-health/CarePilot/internal/core"
	"github.com/niki-health/CarePilot/internal/models"
)

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(ctx context.Context, cfg *config.Config) (*DatabaseClient, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database client configuration is nil")
	}
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is empty")
	}

	conn, err := sql.Open("pgx", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	// Sensible pool settings for an API service; adjust as needed.
	conn.SetMaxOpenConns(20)
	conn.SetMaxIdleConns(10)
	conn.SetConnMaxLifetime(30 * time.Minute)
	conn.SetConnMaxIdleTime(10 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	if err := EnsureBootstrapped(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	return &DatabaseClient{db: conn}, nil
}

func (c *DatabaseClient) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Pool exposes the underlying pool so the vector store can share it.
func (c *DatabaseClient) Pool() *sql.DB {
	return c.db
}

// SaveLabReport inserts the report and its parameters in one transaction.
func (c *DatabaseClient) SaveLabReport(ctx context.Context, report *models.LabReport) error {
	if report == nil {
		return errors.New("nil report")
	}
	tx, err := c.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}

	const qReport = `
		INSERT INTO lab_reports
			(id, user_id, doc_type, title, report_date, hospital, doctor, file_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, now()))
	`
	if _, err := tx.ExecContext(ctx, qReport,
		report.ID, report.UserID, report.DocType,
		report.Title, report.Date, report.Hospital, report.Doctor,
		report.FileName, nullTime(report.CreatedAt),
	); err != nil {
		_ = tx.Rollback()
		return err
	}

	const qParam = `
		INSERT INTO lab_parameters (report_id, position, name, value, unit, reference_range)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	stmt, err := tx.PrepareContext(ctx, qParam)
	if err != nil {
		_ = tx.Rollback()
		return err
	}
	defer stmt.Close()

	for i := range report.Parameters {
		p := &report.Parameters[i]
		if _, err := stmt.ExecContext(ctx,
			report.ID, i, p.Name, string(p.Value), p.Unit, p.ReferenceRange,
		); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// GetLabReport loads one report with its parameters. The lookup is scoped
// by user_id, so a report owned by someone else is indistinguishable from a
// missing one.
func (c *DatabaseClient) GetLabReport(ctx context.Context, userID, reportID string) (*models.LabReport, error) {
	const q = `
		SELECT id, user_id, doc_type, title, report_date, hospital, doctor, file_name, created_at
		FROM lab_reports
		WHERE id = $1 AND user_id = $2
	`
	var r models.LabReport
	err := c.db.QueryRowContext(ctx, q, reportID, userID).Scan(
		&r.ID, &r.UserID, &r.DocType, &r.Title, &r.Date, &r.Hospital, &r.Doctor, &r.FileName, &r.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	const qp = `
		SELECT name, value, unit, reference_range
		FROM lab_parameters
		WHERE report_id = $1
		ORDER BY position ASC
	`
	rows, err := c.db.QueryContext(ctx, qp, reportID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			p     models.LabParameter
			value string
		)
		if err := rows.Scan(&p.Name, &value, &p.Unit, &p.ReferenceRange); err != nil {
			return nil, err
		}
		p.Value = models.ParamValue(value)
		r.Parameters = append(r.Parameters, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &r, nil
}

// ListLabReports returns report summaries (no parameters) for one user,
// newest report date first, ties broken by creation order.
func (c *DatabaseClient) ListLabReports(ctx context.Context, userID string) ([]models.LabReport, error) {
	const q = `
		SELECT id, user_id, doc_type, title, report_date, hospital, doctor, file_name, created_at
		FROM lab_reports
		WHERE user_id = $1
		ORDER BY report_date DESC NULLS LAST, created_at ASC
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LabReport
	for rows.Next() {
		var r models.LabReport
		if err := rows.Scan(
			&r.ID, &r.UserID, &r.DocType, &r.Title, &r.Date, &r.Hospital, &r.Doctor, &r.FileName, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ListParametersByUser returns every parameter observation for one user
// joined with its report date, oldest first, for time-series assembly.
func (c *DatabaseClient) ListParametersByUser(ctx context.Context, userID string) ([]models.ParameterSample, error) {
	const q = `
		SELECT p.report_id, r.report_date, p.name, p.value, p.unit
		FROM lab_parameters p
		JOIN lab_reports r ON r.id = p.report_id
		WHERE r.user_id = $1
		ORDER BY r.report_date ASC NULLS FIRST, r.created_at ASC, p.position ASC
	`
	rows, err := c.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ParameterSample
	for rows.Next() {
		var (
			s     models.ParameterSample
			value string
		)
		if err := rows.Scan(&s.ReportID, &s.Date, &s.Name, &value, &s.Unit); err != nil {
			return nil, err
		}
		s.Value = models.ParamValue(value)
		out = append(out, s)
	}
	return out, rows.Err()
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

var _ core.DbClient = (*DatabaseClient)(nil)
