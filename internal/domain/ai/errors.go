package ai

import "errors"

// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
var ErrQuotaExceeded = errors.New("ai quota exceeded")

// ErrEmptyResult is returned when a backend answers without any usable diagnosis.
var ErrEmptyResult = errors.New("ai returned no diagnoses")
