package llm

import (
	"context"
	"encoding/base64"
	"fmt"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/provagen/provagen/internal/model"
)

// OpenAI calls any OpenAI-compatible chat completion endpoint.
// Attachments travel as base64 data URLs in a multimodal user message.
type OpenAI struct {
	api   *openai.Client
	model string
}

// NewOpenAI creates an OpenAI-compatible provider. An empty baseURL uses
// the default endpoint.
func NewOpenAI(baseURL, apiKey, modelName string) *OpenAI {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAI{
		api:   openai.NewClientWithConfig(config),
		model: modelName,
	}
}

// Invoke sends the prompt and attachments and returns the raw response
// text.
func (c *OpenAI) Invoke(ctx context.Context, prompt string, attachments []model.Attachment) (string, error) {
	msg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser}
	if len(attachments) == 0 {
		msg.Content = prompt
	} else {
		urls, err := encodeAttachments(attachments)
		if err != nil {
			return "", err
		}
		parts := make([]openai.ChatMessagePart, 0, len(urls)+1)
		parts = append(parts, openai.ChatMessagePart{
			Type: openai.ChatMessagePartTypeText,
			Text: prompt,
		})
		for _, u := range urls {
			parts = append(parts, openai.ChatMessagePart{
				Type:     openai.ChatMessagePartTypeImageURL,
				ImageURL: &openai.ChatMessageImageURL{URL: u},
			})
		}
		msg.MultiContent = parts
	}

	resp, err := c.api.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: []openai.ChatCompletionMessage{msg},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("LLM API call: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("LLM returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// encodeAttachments base64-encodes each attachment concurrently.
// Indexed writes keep the result in the caller's order; page order is
// semantic for multi-page documents.
func encodeAttachments(attachments []model.Attachment) ([]string, error) {
	urls := make([]string, len(attachments))
	var g errgroup.Group
	for i, a := range attachments {
		g.Go(func() error {
			if a.MIMEType == "" {
				return fmt.Errorf("attachment %d: missing MIME type", i)
			}
			urls[i] = "data:" + a.MIMEType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return urls, nil
}
