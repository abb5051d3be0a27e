package gemini

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"

	"github.com/bryanwahyu/agroscan/internal/domain/diagnosis"
)

func TestAnalyzeRequiresKey(t *testing.T) {
	_, err := NewClient("  ", "").Analyze(context.Background(), diagnosis.Image{})
	assert.EqualError(t, err, "GEMINI_API_KEY is empty")
}

func TestFirstText(t *testing.T) {
	assert.Equal(t, "", firstText(nil))
	assert.Equal(t, "", firstText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{Candidates: []*genai.Candidate{
		{Content: nil},
		{Content: &genai.Content{Parts: []genai.Part{genai.Blob{MIMEType: "image/png"}, genai.Text(`{"diagnoses":[]}`)}}},
	}}
	assert.Equal(t, `{"diagnoses":[]}`, firstText(resp))
}
