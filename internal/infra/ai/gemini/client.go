package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	domai "github.com/bryanwahyu/agroscan/internal/domain/ai"
	"github.com/bryanwahyu/agroscan/internal/domain/diagnosis"
	"github.com/bryanwahyu/agroscan/internal/infra/ai/prompt"
)

const defaultModel = "gemini-2.5-flash"

// Client sends the leaf image to Gemini as an inline blob.
type Client struct {
	APIKey string
	Model  string
	opts   []option.ClientOption
}

func NewClient(apiKey, model string, opts ...option.ClientOption) *Client {
	return &Client{
		APIKey: strings.TrimSpace(apiKey),
		Model:  strings.TrimSpace(model),
		opts:   opts,
	}
}

func (c *Client) Name() string { return "gemini" }

func (c *Client) Analyze(ctx context.Context, img diagnosis.Image) ([]diagnosis.Diagnosis, error) {
	if c.APIKey == "" {
		return nil, errors.New("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, append([]option.ClientOption{option.WithAPIKey(c.APIKey)}, c.opts...)...)
	if err != nil {
		return nil, err
	}
	defer cl.Close()

	model := c.Model
	if model == "" {
		model = defaultModel
	}
	m := cl.GenerativeModel(model)
	temp := float32(0)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      &temp,
		ResponseMIMEType: "application/json",
	}
	m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(prompt.GetSystemPrompt())}}

	mime := img.ContentType
	if mime == "" {
		mime = http.DetectContentType(img.Data)
	}
	resp, err := m.GenerateContent(ctx,
		genai.Text(prompt.GetUserPrompt(img.Name)),
		genai.Blob{MIMEType: mime, Data: img.Data},
	)
	if err != nil {
		var gerr *googleapi.Error
		if errors.As(err, &gerr) && gerr.Code == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %v", domai.ErrQuotaExceeded, err)
		}
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	txt := firstText(resp)
	if txt == "" {
		return nil, domai.ErrEmptyResult
	}
	out, err := prompt.ParseDiagnoses(txt)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, domai.ErrEmptyResult
	}
	return out, nil
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}
