package ai

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bryanwahyu/agroscan/internal/domain/ai"
	"github.com/bryanwahyu/agroscan/internal/domain/diagnosis"
)

// Observer receives analysis lifecycle events (metrics).
type Observer interface {
	AnalysisStarted()
	AnalysisFinished(err error)
}

type nopObserver struct{}

func (nopObserver) AnalysisStarted()       {}
func (nopObserver) AnalysisFinished(error) {}

// Service wraps a backend analyzer with a timeout, result normalisation,
// logging and metrics. It satisfies ai.Analyzer itself so the session
// controller never sees the raw backend.
type Service struct {
	analyzer ai.Analyzer
	timeout  time.Duration
	log      *zap.Logger
	observer Observer
}

func NewService(analyzer ai.Analyzer, timeout time.Duration, log *zap.Logger, observer Observer) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Service{analyzer: analyzer, timeout: timeout, log: log, observer: observer}
}

func (s *Service) Name() string { return s.analyzer.Name() }

// Analyze runs the backend once, without retry.
func (s *Service) Analyze(ctx context.Context, img diagnosis.Image) ([]diagnosis.Diagnosis, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	s.observer.AnalysisStarted()
	start := time.Now()
	out, err := s.analyzer.Analyze(ctx, img)
	if err == nil && len(out) == 0 {
		err = ai.ErrEmptyResult
	}
	s.observer.AnalysisFinished(err)

	fields := []zap.Field{
		zap.String("analyzer", s.analyzer.Name()),
		zap.String("file", img.Name),
		zap.Int64("bytes", img.Size()),
		zap.Duration("duration", time.Since(start)),
	}
	if err != nil {
		s.log.Warn("analysis failed", append(fields, zap.Error(err))...)
		return nil, fmt.Errorf("%s analyze: %w", s.analyzer.Name(), err)
	}
	s.log.Info("analysis finished", append(fields, zap.Int("diagnoses", len(out)))...)
	return Normalize(out), nil
}

// Normalize clamps confidences to 0..100 and maps severities onto the three tiers.
// Order is preserved; the first element stays primary.
func Normalize(in []diagnosis.Diagnosis) []diagnosis.Diagnosis {
	out := diagnosis.CloneAll(in)
	for i := range out {
		switch {
		case out[i].Confidence < 0:
			out[i].Confidence = 0
		case out[i].Confidence > 100:
			out[i].Confidence = 100
		}
		out[i].Severity = diagnosis.ParseSeverity(string(out[i].Severity))
	}
	return out
}
