package mock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/agroscan/internal/domain/diagnosis"
)

func TestAnalyzerReturnsFixedSet(t *testing.T) {
	a := New(5 * time.Millisecond)
	start := time.Now()
	out, err := a.Analyze(context.Background(), diagnosis.Image{Name: "leaf.jpg"})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 5*time.Millisecond)

	require.Len(t, out, 3)
	assert.Equal(t, "Tomato Late Blight", out[0].Label)
	assert.Equal(t, 94, out[0].Confidence)
	assert.Equal(t, diagnosis.SeverityHigh, out[0].Severity)
	assert.Len(t, out[0].Remediation, 4)
	assert.Equal(t, "mock", a.Name())
}

func TestFixedReturnsCopies(t *testing.T) {
	first := Fixed()
	first[0].Remediation[0] = "changed"
	assert.Equal(t, "Apply copper-based fungicide immediately", Fixed()[0].Remediation[0])
}

func TestAnalyzerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(time.Hour).Analyze(ctx, diagnosis.Image{})
	assert.ErrorIs(t, err, context.Canceled)
}
