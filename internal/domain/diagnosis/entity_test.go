package diagnosis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord(t *testing.T) {
	t.Run("rejects empty diagnosis list", func(t *testing.T) {
		rec, err := NewRecord("r1", "img", "", nil, time.Now(), "leaf.jpg")
		assert.Nil(t, rec)
		assert.ErrorIs(t, err, ErrEmptyDiagnoses)
	})

	t.Run("copies diagnoses", func(t *testing.T) {
		in := []Diagnosis{{Label: "Rust", Confidence: 80, Severity: SeverityMedium, Remediation: []string{"spray"}}}
		rec, err := NewRecord("r1", "img", "thumb", in, time.Unix(10, 0), "leaf.jpg")
		require.NoError(t, err)

		in[0].Label = "changed"
		in[0].Remediation[0] = "changed"

		assert.Equal(t, "Rust", rec.Primary().Label)
		assert.Equal(t, []string{"spray"}, rec.Primary().Remediation)
		assert.Equal(t, ImageRef("thumb"), rec.ThumbnailRef)
	})
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
	}{
		{"high", SeverityHigh},
		{" HIGH ", SeverityHigh},
		{"critical", SeverityHigh},
		{"medium", SeverityMedium},
		{"moderate", SeverityMedium},
		{"low", SeverityLow},
		{"", SeverityLow},
		{"unknown", SeverityLow},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSeverity(tt.in))
		})
	}
}
