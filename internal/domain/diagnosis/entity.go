package diagnosis

import (
	"errors"
	"strings"
	"time"
)

// ErrEmptyDiagnoses is returned when a record would be created without any diagnosis.
var ErrEmptyDiagnoses = errors.New("analysis record requires at least one diagnosis")

// Severity tier, drives visual emphasis only
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ParseSeverity normalises a severity label. Unknown labels fall back to low.
func ParseSeverity(s string) Severity {
	switch Severity(strings.ToLower(strings.TrimSpace(s))) {
	case SeverityHigh, "critical", "severe":
		return SeverityHigh
	case SeverityMedium, "moderate":
		return SeverityMedium
	default:
		return SeverityLow
	}
}

// Diagnosis is one candidate disease identification.
type Diagnosis struct {
	Label       string   `json:"label"`
	Confidence  int      `json:"confidence"` // 0..100
	Severity    Severity `json:"severity"`
	Description string   `json:"description"`
	Remediation []string `json:"remediation"`
}

// Clone returns a deep copy so callers cannot mutate shared remediation slices.
func (d Diagnosis) Clone() Diagnosis {
	d.Remediation = append([]string(nil), d.Remediation...)
	return d
}

// CloneAll deep copies a diagnosis list.
func CloneAll(in []Diagnosis) []Diagnosis {
	if in == nil {
		return nil
	}
	out := make([]Diagnosis, len(in))
	for i, d := range in {
		out[i] = d.Clone()
	}
	return out
}

// ImageRef is an opaque handle to displayable image bytes held by an ImageStore.
type ImageRef string

// RecordID identifier type
type RecordID string

// Record is the outcome of one completed analysis. It is never mutated after creation.
type Record struct {
	ID           RecordID    `json:"id"`
	ImageRef     ImageRef    `json:"image_ref"`
	ThumbnailRef ImageRef    `json:"thumbnail_ref,omitempty"`
	Diagnoses    []Diagnosis `json:"diagnoses"`
	CapturedAt   time.Time   `json:"captured_at"`
	FileName     string      `json:"file_name"`
}

// NewRecord validates and builds a record, copying the diagnosis list.
func NewRecord(id RecordID, image, thumb ImageRef, diagnoses []Diagnosis, capturedAt time.Time, fileName string) (*Record, error) {
	if len(diagnoses) == 0 {
		return nil, ErrEmptyDiagnoses
	}
	return &Record{
		ID:           id,
		ImageRef:     image,
		ThumbnailRef: thumb,
		Diagnoses:    CloneAll(diagnoses),
		CapturedAt:   capturedAt,
		FileName:     fileName,
	}, nil
}

// Primary returns the first (highest ranked) diagnosis.
func (r *Record) Primary() Diagnosis {
	return r.Diagnoses[0]
}

// Image is an uploaded file as handed to the picker and the analyzer.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

// MIMEType implements the picker's content-type contract.
func (i Image) MIMEType() string { return i.ContentType }

// Size in bytes
func (i Image) Size() int64 { return int64(len(i.Data)) }

// Blob is the payload behind an ImageRef.
type Blob struct {
	Data        []byte
	ContentType string
}
