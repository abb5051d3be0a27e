package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"math"

	domain "github.com/bryanwahyu/agroscan/internal/domain/audit"
)

// Schema creates the audit table.
const Schema = `
CREATE TABLE IF NOT EXISTS crop_analyses (
  id            VARCHAR(64)  NOT NULL PRIMARY KEY,
  session_id    VARCHAR(64)  NOT NULL,
  analyzer      VARCHAR(32)  NOT NULL,
  file_name     VARCHAR(255) NOT NULL,
  status        VARCHAR(16)  NOT NULL,
  primary_label VARCHAR(255) NOT NULL DEFAULT '',
  confidence    INT          NOT NULL DEFAULT 0,
  severity      VARCHAR(16)  NOT NULL DEFAULT '',
  result_json   JSON         NOT NULL,
  error         TEXT         NULL,
  created_at    DATETIME(3)  NOT NULL,
  KEY idx_crop_analyses_created (created_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;`

type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Migrate runs the schema.
func (r *AuditRepository) Migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, Schema)
	return err
}

// Save inserts an audit entry
func (r *AuditRepository) Save(ctx context.Context, e *domain.Entry) error {
	const q = `
INSERT INTO crop_analyses
  (id, session_id, analyzer, file_name, status, primary_label, confidence, severity, result_json, error, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  status=VALUES(status), result_json=VALUES(result_json), error=VALUES(error);
`
	_, err := r.db.ExecContext(ctx, q,
		e.ID, stringOrDash(e.SessionID), stringOrDash(e.Analyzer), stringOrDash(e.FileName),
		stringOrDash(string(e.Status)), e.PrimaryLabel, e.Confidence, e.Severity,
		jsonOrEmpty(e.ResultJSON), sql.NullString{String: e.Error, Valid: e.Error != ""},
		nowIfZero(e.CreatedAt),
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
LIMIT ? OFFSET ?;
`
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
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM crop_analyses").Scan(&total); err != nil {
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

// Check implements a health checker.
func (r *AuditRepository) Check(ctx context.Context) error {
	return r.db.PingContext(ctx)
}
