package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/agroscan/internal/domain/diagnosis"
	"github.com/bryanwahyu/agroscan/internal/infra/ai/mock"
)

func TestPresentResults(t *testing.T) {
	diags := mock.Fixed()

	t.Run("analyzing ignores other inputs", func(t *testing.T) {
		v := PresentResults(diags, "img", true)
		assert.Equal(t, ResultView{State: ResultLoading}, v)
	})

	t.Run("no diagnoses is empty", func(t *testing.T) {
		v := PresentResults(nil, "img", false)
		assert.Equal(t, ResultEmpty, v.State)
		assert.Nil(t, v.Primary)
	})

	t.Run("primary and ranked alternatives", func(t *testing.T) {
		v := PresentResults(diags, "img", false)
		require.Equal(t, ResultReady, v.State)
		assert.Equal(t, diagnosis.ImageRef("img"), v.ImageRef)
		assert.Equal(t, "Tomato Late Blight", v.Primary.Label)
		assert.Equal(t, diagnosis.SeverityHigh, v.Primary.Severity)
		require.Len(t, v.Alternative, 2)
		assert.Equal(t, 2, v.Alternative[0].Rank)
		assert.Equal(t, "Tomato Early Blight", v.Alternative[0].Label)
		assert.Equal(t, 3, v.Alternative[1].Rank)
	})

	t.Run("single diagnosis has no alternatives", func(t *testing.T) {
		v := PresentResults(diags[:1], "img", false)
		assert.Empty(t, v.Alternative)
	})

	t.Run("view does not share remediation", func(t *testing.T) {
		v := PresentResults(diags, "img", false)
		v.Primary.Remediation[0] = "changed"
		assert.NotEqual(t, "changed", diags[0].Remediation[0])
	})
}

type pathActions struct{}

func (pathActions) ViewDetails(id diagnosis.RecordID) string { return "view:" + string(id) }
func (pathActions) Delete(id diagnosis.RecordID) string      { return "delete:" + string(id) }
func (pathActions) Thumbnail(ref diagnosis.ImageRef) string  { return "thumb:" + string(ref) }

func TestPresentHistory(t *testing.T) {
	empty := PresentHistory(nil, pathActions{})
	assert.True(t, empty.Empty)
	assert.NotNil(t, empty.Entries)

	at := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	r1, err := diagnosis.NewRecord("r1", "img1", "th1", mock.Fixed(), at, "leaf1.jpg")
	require.NoError(t, err)
	r0, err := diagnosis.NewRecord("r0", "img0", "", mock.Fixed()[2:], at.Add(-time.Hour), "leaf0.jpg")
	require.NoError(t, err)

	v := PresentHistory([]*diagnosis.Record{r1, r0}, pathActions{})
	require.False(t, v.Empty)
	require.Len(t, v.Entries, 2)

	first := v.Entries[0]
	assert.Equal(t, diagnosis.RecordID("r1"), first.ID)
	assert.Equal(t, "leaf1.jpg", first.FileName)
	assert.Equal(t, "thumb:th1", first.Thumbnail)
	assert.Equal(t, "Tomato Late Blight", first.Label)
	assert.Equal(t, 94, first.Confidence)
	assert.Equal(t, 2, first.Alternatives)
	assert.Equal(t, "view:r1", first.ViewAction)
	assert.Equal(t, "delete:r1", first.DeleteAction)

	second := v.Entries[1]
	assert.Equal(t, "thumb:img0", second.Thumbnail, "falls back to the full image")
	assert.Equal(t, 0, second.Alternatives)
	assert.Equal(t, "Healthy Plant", second.Label)
}
