package llmclient

import (
	"context"
	"fmt"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/hubenschmidt/voicebridge/internal/metrics"
)

// OpenAIClient is the alternate LLM engine, selected via LLM_ENGINE=openai.
// Unlike GeminiClient it streams through the official SDK rather than a
// hand-rolled SSE reader, since the SDK already exposes a token-level
// streaming iterator for this provider shape.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient creates a client against baseURL (empty uses the SDK's
// default), authenticating with apiKey.
func NewOpenAIClient(baseURL, apiKey, model string) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// StreamReply streams a chat completion, matching GeminiClient's contract:
// onToken is called per delta and once more with isComplete=true at the end.
func (c *OpenAIClient) StreamReply(ctx context.Context, prompt string, onToken OnToken) (*string, error) {
	start := time.Now()

	stream := c.client.Chat.Completions.NewStreaming(ctx, openai.ChatCompletionNewParams{
		Model: c.model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(temperature),
		TopP:        openai.Float(topP),
		MaxTokens:   openai.Int(maxOutputTokens),
	})

	var full string
	sawDelta := false
	for stream.Next() {
		chunk := stream.Current()
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		full += delta
		sawDelta = true
		if onToken != nil {
			onToken(delta, false)
		}
	}
	if onToken != nil {
		onToken("", true)
	}

	if err := stream.Err(); err != nil {
		metrics.Errors.WithLabelValues("llm", "transient").Inc()
		return nil, fmt.Errorf("llmclient: openai stream: %w", err)
	}
	metrics.StageDuration.WithLabelValues("llm").Observe(time.Since(start).Seconds())

	if !sawDelta {
		return nil, nil
	}
	return &full, nil
}
