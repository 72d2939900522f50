package generator

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider implements Provider for Google Gemini
type GeminiProvider struct {
	client *genai.Client
	model  *genai.GenerativeModel
	name   string
}

// NewGeminiProvider creates a new Gemini provider
func NewGeminiProvider(ctx context.Context, apiKey, model string, maxTokens int) (*GeminiProvider, error) {
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	gm := client.GenerativeModel(model)
	if maxTokens > 0 {
		v := int32(min(maxTokens, math.MaxInt32))
		gm.MaxOutputTokens = &v
	}

	return &GeminiProvider{client: client, model: gm, name: model}, nil
}

// Name returns the provider name
func (p *GeminiProvider) Name() string {
	return "gemini"
}

// Generate makes an API call to Google Gemini
func (p *GeminiProvider) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := p.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		// first candidate with content wins
		if sb.Len() > 0 {
			break
		}
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("gemini model %s returned no text", p.name)
	}
	return sb.String(), nil
}

// Close closes the underlying client
func (p *GeminiProvider) Close() error {
	return p.client.Close()
}
