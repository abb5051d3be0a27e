package mock

import (
	"context"
	"time"

	"github.com/bryanwahyu/agroscan/internal/domain/diagnosis"
)

// DefaultDelay is the simulated processing time.
const DefaultDelay = 3 * time.Second

// Analyzer returns a fixed diagnosis set after a fixed delay. It never fails
// on its own; only a cancelled context stops it early.
type Analyzer struct {
	Delay time.Duration
}

func New(delay time.Duration) *Analyzer {
	return &Analyzer{Delay: delay}
}

func (a *Analyzer) Name() string { return "mock" }

func (a *Analyzer) Analyze(ctx context.Context, _ diagnosis.Image) ([]diagnosis.Diagnosis, error) {
	if a.Delay > 0 {
		t := time.NewTimer(a.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return Fixed(), nil
}

// Fixed returns a fresh copy of the demo diagnosis set, primary first.
func Fixed() []diagnosis.Diagnosis {
	return []diagnosis.Diagnosis{
		{
			Label:       "Tomato Late Blight",
			Confidence:  94,
			Severity:    diagnosis.SeverityHigh,
			Description: "A serious fungal disease that can destroy entire crops rapidly in favorable conditions.",
			Remediation: []string{
				"Apply copper-based fungicide immediately",
				"Remove and destroy affected plant parts",
				"Improve air circulation around plants",
				"Avoid overhead watering",
			},
		},
		{
			Label:       "Tomato Early Blight",
			Confidence:  78,
			Severity:    diagnosis.SeverityMedium,
			Description: "Common fungal disease causing dark spots on leaves and stems.",
			Remediation: []string{
				"Apply preventive fungicide spray",
				"Ensure proper plant spacing",
				"Water at soil level to keep leaves dry",
			},
		},
		{
			Label:       "Healthy Plant",
			Confidence:  65,
			Severity:    diagnosis.SeverityLow,
			Description: "No significant disease detected. Plant appears healthy.",
			Remediation: []string{
				"Continue regular monitoring",
				"Maintain proper watering schedule",
				"Apply balanced fertilizer as needed",
			},
		},
	}
}
