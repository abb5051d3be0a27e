package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/bryanwahyu/agroscan/internal/domain/diagnosis"
)

// Stage of the upload → analyze → display pipeline
type Stage string

const (
	StageIdle       Stage = "idle"
	StageStaged     Stage = "staged"
	StageAnalyzing  Stage = "analyzing"
	StageDisplaying Stage = "displaying"
)

// View selector. Orthogonal to Stage.
type View string

const (
	ViewUpload  View = "upload"
	ViewResults View = "results"
	ViewHistory View = "history"
)

// ParseView validates a view name.
func ParseView(s string) (View, error) {
	switch v := View(strings.ToLower(strings.TrimSpace(s))); v {
	case ViewUpload, ViewResults, ViewHistory:
		return v, nil
	default:
		return "", fmt.Errorf("%w: %q (allowed: upload, results, history)", ErrInvalidView, s)
	}
}

// Variant of a notification
type Variant string

const (
	VariantDefault     Variant = "default"
	VariantDestructive Variant = "destructive"
)

// Notification is a transient user-facing message.
type Notification struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Variant     Variant   `json:"variant"`
	CreatedAt   time.Time `json:"created_at"`
}

// StagedImage is a file selected by the user but not yet submitted.
type StagedImage struct {
	Ref         diagnosis.ImageRef `json:"ref"`
	Name        string             `json:"name"`
	ContentType string             `json:"content_type"`
	Size        int64              `json:"size"`
	Width       int                `json:"width,omitempty"`
	Height      int                `json:"height,omitempty"`
}

// MIMEType implements the picker's content-type contract.
func (s StagedImage) MIMEType() string { return s.ContentType }

// Snapshot is a read-only copy of a session's state.
type Snapshot struct {
	ID             string             `json:"id"`
	Stage          Stage              `json:"stage"`
	View           View               `json:"view"`
	Analyzing      bool               `json:"analyzing"`
	Pending        []StagedImage      `json:"pending"`
	ActiveImageRef diagnosis.ImageRef `json:"active_image_ref,omitempty"`
	ActiveCount    int                `json:"active_diagnoses"`
	HistoryCount   int                `json:"history_count"`
	CreatedAt      time.Time          `json:"created_at"`
	LastActiveAt   time.Time          `json:"last_active_at"`
}

// Stats are the dashboard counters.
type Stats struct {
	TotalAnalyses     int `json:"total_analyses"`
	ImagesProcessed   int `json:"images_processed"`
	AverageConfidence int `json:"average_confidence"`
}
