package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/provagen/provagen/internal/model"
)

// Gemini calls the Google Generative AI API. Attachments are passed as
// inline blobs and the response is constrained to JSON via the response
// MIME type; the parser still validates everything.
type Gemini struct {
	apiKey string
	model  string
}

// NewGemini creates a Gemini provider.
func NewGemini(apiKey, modelName string) *Gemini {
	return &Gemini{
		apiKey: strings.TrimSpace(apiKey),
		model:  strings.TrimSpace(modelName),
	}
}

// Invoke sends the prompt and attachments and returns the raw response
// text. Transient API failures are retried up to three times.
func (g *Gemini) Invoke(ctx context.Context, prompt string, attachments []model.Attachment) (string, error) {
	if g.apiKey == "" {
		return "", errors.New("gemini: API key is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	if err != nil {
		return "", fmt.Errorf("gemini: create client: %w", err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(g.model)
	m.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
	}

	parts := make([]genai.Part, 0, len(attachments)+1)
	parts = append(parts, genai.Text(prompt))
	for _, a := range attachments {
		parts = append(parts, genai.Blob{MIMEType: a.MIMEType, Data: a.Data})
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		resp, err := m.GenerateContent(ctx, parts...)
		if err != nil {
			lastErr = err
			slog.Debug("gemini call failed", "attempt", attempt, "error", err)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
			continue
		}
		txt := firstText(resp)
		if txt == "" {
			return "", errors.New("gemini: empty response")
		}
		return txt, nil
	}
	return "", fmt.Errorf("gemini: %w", lastErr)
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}
