package session

import (
	"time"

	"github.com/bryanwahyu/agroscan/internal/domain/diagnosis"
)

// LedgerActions builds the per-record callbacks exposed to a client.
type LedgerActions interface {
	ViewDetails(id diagnosis.RecordID) string
	Delete(id diagnosis.RecordID) string
	Thumbnail(ref diagnosis.ImageRef) string
}

// LedgerEntry is one row of the history list.
type LedgerEntry struct {
	ID           diagnosis.RecordID `json:"id"`
	FileName     string             `json:"file_name"`
	CapturedAt   time.Time          `json:"captured_at"`
	Thumbnail    string             `json:"thumbnail"`
	Label        string             `json:"label"`
	Confidence   int                `json:"confidence"`
	Severity     diagnosis.Severity `json:"severity"`
	Alternatives int                `json:"alternatives"`
	ViewAction   string             `json:"view_action"`
	DeleteAction string             `json:"delete_action"`
}

// HistoryView is what a history page renders.
type HistoryView struct {
	Empty   bool          `json:"empty"`
	Entries []LedgerEntry `json:"entries"`
}

// PresentHistory renders records in the order given (newest first).
func PresentHistory(records []*diagnosis.Record, actions LedgerActions) HistoryView {
	if len(records) == 0 {
		return HistoryView{Empty: true, Entries: []LedgerEntry{}}
	}
	view := HistoryView{Entries: make([]LedgerEntry, 0, len(records))}
	for _, r := range records {
		top := r.Primary()
		alt := 0
		if n := len(r.Diagnoses); n > 1 {
			alt = n - 1
		}
		thumb := r.ThumbnailRef
		if thumb == "" {
			thumb = r.ImageRef
		}
		view.Entries = append(view.Entries, LedgerEntry{
			ID:           r.ID,
			FileName:     r.FileName,
			CapturedAt:   r.CapturedAt,
			Thumbnail:    actions.Thumbnail(thumb),
			Label:        top.Label,
			Confidence:   top.Confidence,
			Severity:     top.Severity,
			Alternatives: alt,
			ViewAction:   actions.ViewDetails(r.ID),
			DeleteAction: actions.Delete(r.ID),
		})
	}
	return view
}
