package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domai "github.com/bryanwahyu/agroscan/internal/domain/ai"
	"github.com/bryanwahyu/agroscan/internal/domain/diagnosis"
)

type stubAnalyzer struct {
	out   []diagnosis.Diagnosis
	err   error
	delay time.Duration
}

func (s *stubAnalyzer) Name() string { return "stub" }

func (s *stubAnalyzer) Analyze(ctx context.Context, _ diagnosis.Image) ([]diagnosis.Diagnosis, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.out, s.err
}

type countingObserver struct {
	started, ok, failed int
}

func (c *countingObserver) AnalysisStarted() { c.started++ }
func (c *countingObserver) AnalysisFinished(err error) {
	if err != nil {
		c.failed++
		return
	}
	c.ok++
}

func TestServiceAnalyze(t *testing.T) {
	img := diagnosis.Image{Name: "leaf.png", ContentType: "image/png", Data: []byte{1, 2, 3}}

	t.Run("normalises result", func(t *testing.T) {
		obs := &countingObserver{}
		svc := NewService(&stubAnalyzer{out: []diagnosis.Diagnosis{
			{Label: "A", Confidence: 140, Severity: "HIGH"},
			{Label: "B", Confidence: -3, Severity: "weird"},
		}}, 0, nil, obs)

		out, err := svc.Analyze(context.Background(), img)
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, 100, out[0].Confidence)
		assert.Equal(t, diagnosis.SeverityHigh, out[0].Severity)
		assert.Equal(t, 0, out[1].Confidence)
		assert.Equal(t, diagnosis.SeverityLow, out[1].Severity)
		assert.Equal(t, 1, obs.started)
		assert.Equal(t, 1, obs.ok)
	})

	t.Run("empty result is an error", func(t *testing.T) {
		obs := &countingObserver{}
		svc := NewService(&stubAnalyzer{}, 0, nil, obs)
		_, err := svc.Analyze(context.Background(), img)
		assert.ErrorIs(t, err, domai.ErrEmptyResult)
		assert.Equal(t, 1, obs.failed)
	})

	t.Run("backend error is wrapped", func(t *testing.T) {
		svc := NewService(&stubAnalyzer{err: domai.ErrQuotaExceeded}, 0, nil, nil)
		_, err := svc.Analyze(context.Background(), img)
		assert.ErrorIs(t, err, domai.ErrQuotaExceeded)
		assert.Contains(t, err.Error(), "stub analyze")
	})

	t.Run("timeout applies", func(t *testing.T) {
		svc := NewService(&stubAnalyzer{delay: time.Second}, 10*time.Millisecond, nil, nil)
		_, err := svc.Analyze(context.Background(), img)
		assert.True(t, errors.Is(err, context.DeadlineExceeded))
	})
}
