package session

import "errors"

var (
	// ErrNoInputSelected is the only user-facing pipeline error: submit with nothing staged.
	ErrNoInputSelected = errors.New("no images selected")
	// ErrAnalysisInFlight guards against overlapping submissions.
	ErrAnalysisInFlight = errors.New("analysis already in progress")
	ErrSessionNotFound  = errors.New("session not found")
	ErrSessionClosed    = errors.New("session closed")
	ErrRecordNotFound   = errors.New("history record not found")
	ErrImageNotFound    = errors.New("image not found")
	ErrInvalidView      = errors.New("invalid view")
)
