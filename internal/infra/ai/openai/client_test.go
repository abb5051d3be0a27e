package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domai "github.com/bryanwahyu/agroscan/internal/domain/ai"
	"github.com/bryanwahyu/agroscan/internal/domain/diagnosis"
)

func completion(content string) map[string]any {
	return map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": 1,
		"model":   "gpt-4o-mini",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
}

func TestClientAnalyze(t *testing.T) {
	var body string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		b, _ := io.ReadAll(r.Body)
		body = string(b)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion(`{"diagnoses":[{"label":"Powdery Mildew","confidence":72,"severity":"medium","description":"white patches","remediation":["prune"]}]}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", "", srv.URL+"/v1")
	out, err := c.Analyze(context.Background(), diagnosis.Image{Name: "leaf.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Powdery Mildew", out[0].Label)
	assert.Equal(t, diagnosis.SeverityMedium, out[0].Severity)

	assert.True(t, strings.Contains(body, "data:image/png;base64,"))
	assert.True(t, strings.Contains(body, defaultModel))
}

func TestClientQuota(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error":{"message":"quota","type":"insufficient_quota"}}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", "gpt-4o-mini", srv.URL+"/v1")
	_, err := c.Analyze(context.Background(), diagnosis.Image{Name: "leaf.png", ContentType: "image/png", Data: []byte{1}})
	assert.ErrorIs(t, err, domai.ErrQuotaExceeded)
}

func TestClientEmptyAnswer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(completion(`{"diagnoses":[]}`))
	}))
	defer srv.Close()

	c := NewClientWithBaseURL("test-key", "gpt-4o-mini", srv.URL+"/v1")
	_, err := c.Analyze(context.Background(), diagnosis.Image{Name: "leaf.png", ContentType: "image/png", Data: []byte{1}})
	assert.ErrorIs(t, err, domai.ErrEmptyResult)
}
