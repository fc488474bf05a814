// Package llm issues requests to the generative model. The model is an
// opaque text-in/text-out (or images-in/text-out) function with no
// guaranteed output format; providers transport the prompt and the
// ordered attachments and hand back raw response text for the parser.
package llm

import (
	"context"
	"fmt"

	"github.com/provagen/provagen/internal/model"
)

// Invoker issues one model request. Attachments must reach the model in
// the order supplied: page order is part of the semantic contract for
// multi-page documents.
type Invoker interface {
	Invoke(ctx context.Context, prompt string, attachments []model.Attachment) (string, error)
}

// Supported provider names.
const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

// Config selects and configures a provider.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	// BaseURL applies to OpenAI-compatible endpoints only.
	BaseURL string
}

// New creates the configured provider. Gemini is the default.
func New(cfg Config) (Invoker, error) {
	switch cfg.Provider {
	case ProviderGemini, "":
		return NewGemini(cfg.APIKey, cfg.Model), nil
	case ProviderOpenAI:
		return NewOpenAI(cfg.BaseURL, cfg.APIKey, cfg.Model), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.Provider)
	}
}
