package ai

import (
	"context"

	"github.com/bryanwahyu/agroscan/internal/domain/diagnosis"
)

// Analyzer turns one leaf image into a ranked list of diagnoses, primary first.
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, img diagnosis.Image) ([]diagnosis.Diagnosis, error)
}
