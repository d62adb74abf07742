package translation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/ammosu/realtime-subtitle/internal/languages"
)

// defaultModel is used when no model is configured.
const defaultModel = "gpt-4o-mini"

// Result holds a corrected transcript and its translation.
type Result struct {
	Corrected  string `json:"corrected"`
	Translated string `json:"translated"`
}

// Translator turns one line of recognized speech into a corrected transcript
// and a translation for the given direction.
type Translator interface {
	Translate(ctx context.Context, text string, direction languages.Direction) (Result, error)
}

// OpenAITranslator implements Translator on the OpenAI chat completion API.
type OpenAITranslator struct {
	client      *openai.Client
	model       string
	maxTokens   int
	temperature float32
}

// NewOpenAITranslator creates a translator using the given API key and model.
func NewOpenAITranslator(apiKey, model string) (*OpenAITranslator, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key cannot be empty")
	}
	if model == "" {
		model = defaultModel
	}

	return &OpenAITranslator{
		client:      openai.NewClient(apiKey),
		model:       model,
		maxTokens:   400,
		temperature: 0.1,
	}, nil
}

// Translate sends one transcript line through the chat completion API.
func (t *OpenAITranslator) Translate(ctx context.Context, text string, direction languages.Direction) (Result, error) {
	resp, err := t.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       t.model,
		MaxTokens:   t.maxTokens,
		Temperature: t.temperature,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt(direction),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: text,
			},
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("chat completion failed: %w", err)
	}

	if len(resp.Choices) == 0 {
		return Result{}, fmt.Errorf("chat completion returned no choices")
	}

	content := strings.TrimSpace(resp.Choices[0].Message.Content)

	var result Result
	if err := json.Unmarshal([]byte(content), &result); err != nil || result.Translated == "" {
		// Some responses come back as plain text despite the JSON response
		// format. Use the raw content as the translation so the subtitle is
		// not lost.
		return Result{Corrected: text, Translated: content}, nil
	}
	if result.Corrected == "" {
		result.Corrected = text
	}

	return result, nil
}
