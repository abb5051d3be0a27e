package audit

import "time"

// EntryID identifier type
type EntryID string

// Status of an audited analysis
type Status string

const (
	StatusSuccess Status = "success"
	StatusFailed  Status = "failed"
)

// Entry is a durable trace of one analysis attempt. The session ledger itself
// stays in memory; this is an operator-side log only.
type Entry struct {
	ID           EntryID   `json:"id"`
	SessionID    string    `json:"session_id"`
	Analyzer     string    `json:"analyzer"`
	FileName     string    `json:"file_name"`
	Status       Status    `json:"status"`
	PrimaryLabel string    `json:"primary_label,omitempty"`
	Confidence   int       `json:"confidence"`
	Severity     string    `json:"severity,omitempty"`
	ResultJSON   string    `json:"result"` // diagnoses as JSON
	Error        string    `json:"error,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Page represents a paginated response with data and metadata
type Page struct {
	Data       []*Entry `json:"data"`
	Page       int      `json:"page"`
	PageSize   int      `json:"pageSize"`
	Total      int64    `json:"totalItems"`
	TotalPages int      `json:"totalPages"`
}
