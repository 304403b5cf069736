package genai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAIClient talks to any OpenAI-compatible chat completions endpoint,
// including Gemini's OpenAI surface when URL points there.
type OpenAIClient struct {
	client openai.Client
	model  string
}

func newOpenAIClient(cfg Config) *OpenAIClient {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
		option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
	}
	if cfg.URL != "" {
		base := cfg.URL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		opts = append(opts, option.WithBaseURL(base))
	}
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
	}
}

func (o *OpenAIClient) generate(ctx context.Context, prompt string) (string, error) {
	var reqOpts []option.RequestOption
	if corrID := extractCorrelationID(ctx); corrID != "" {
		reqOpts = append(reqOpts, option.WithHeader("X-Correlation-ID", corrID))
	}

	chat, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Model: openai.ChatModel(o.model),
	}, reqOpts...)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return "", statusError("openai", apiErr.StatusCode, err.Error())
		}
		return "", fmt.Errorf("openai request failed: %w", err)
	}

	if len(chat.Choices) == 0 {
		return "", ErrEmptyResponse
	}
	return chat.Choices[0].Message.Content, nil
}
