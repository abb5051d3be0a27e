package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"time"

	domain "github.com/bryanwahyu/agroscan/internal/domain/audit"
)

// Schema creates the audit table.
const Schema = `
CREATE TABLE IF NOT EXISTS crop_analyses (
  id            TEXT        PRIMARY KEY,
  session_id    TEXT        NOT NULL,
  analyzer      TEXT        NOT NULL,
  file_name     TEXT        NOT NULL,
  status        TEXT        NOT NULL,
  primary_label TEXT        NOT NULL DEFAULT '',
  confidence    INTEGER     NOT NULL DEFAULT 0,
  severity      TEXT        NOT NULL DEFAULT '',
  result_json   JSONB       NOT NULL,
  error         TEXT,
  created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_crop_analyses_created ON crop_analyses (created_at DESC);`

type AuditRepository struct{ db *sql.DB }

func NewAuditRepository(db *sql.DB) *AuditRepository { return &AuditRepository{db: db} }

func (r *AuditRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

// Save inserts or updates an audit entry
func (r *AuditRepository) Save(ctx context.Context, e *domain.Entry) error {
	const q = `
INSERT INTO crop_analyses
  (id, session_id, analyzer, file_name, status, primary_label, confidence, severity, result_json, error, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
ON CONFLICT (id) DO UPDATE SET
  status = EXCLUDED.status,
  result_json = EXCLUDED.result_json,
  error = EXCLUDED.error;`

	result := e.ResultJSON
	if strings.TrimSpace(result) == "" {
		result = "[]"
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, q,
		e.ID, stringOrDash(e.SessionID), stringOrDash(e.Analyzer), stringOrDash(e.FileName),
		stringOrDash(string(e.Status)), e.PrimaryLabel, e.Confidence, e.Severity,
		result, sql.NullString{String: e.Error, Valid: e.Error != ""}, created,
	)
	return err
}

// Paginate returns a page of entries ordered by created_at desc
func (r *AuditRepository) Paginate(ctx context.Context, page, pageSize int) (domain.Page, error) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	const q = `
SELECT id, session_id, analyzer, file_name, status, primary_label, confidence, severity, result_json, error, created_at
FROM crop_analyses
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2;`
	rows, err := r.db.QueryContext(ctx, q, pageSize, offset)
	if err != nil {
		return domain.Page{}, fmt.Errorf("querying audit: %w", err)
	}
	defer rows.Close()

	out := []*domain.Entry{}
	for rows.Next() {
		var e domain.Entry
		var errText sql.NullString
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Analyzer, &e.FileName, &e.Status,
			&e.PrimaryLabel, &e.Confidence, &e.Severity, &e.ResultJSON, &errText, &e.CreatedAt); err != nil {
			return domain.Page{}, fmt.Errorf("scanning row: %w", err)
		}
		e.Error = errText.String
		out = append(out, &e)
	}
	if err := rows.Err(); err != nil {
		return domain.Page{}, fmt.Errorf("iterating rows: %w", err)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM crop_analyses`).Scan(&total); err != nil {
		return domain.Page{}, fmt.Errorf("getting total count: %w", err)
	}
	return domain.Page{
		Data:       out,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

func (r *AuditRepository) Check(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func stringOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
