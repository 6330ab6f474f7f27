// Package llmclient streams a chat reply from the LLM provider's
// Server-Sent-Events endpoint, token by token.
package llmclient

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hubenschmidt/voicebridge/internal/httputil"
	"github.com/hubenschmidt/voicebridge/internal/metrics"
)

const (
	headerTimeout   = 10 * time.Second
	temperature     = 0.7
	maxOutputTokens = 150
	topP            = 1.0
	topK            = 40
)

// OnToken is invoked for every streamed delta, and exactly once more at
// stream end with delta="" and isComplete=true.
type OnToken func(delta string, isComplete bool)

// GeminiClient is the primary LLM engine: a hand-rolled SSE reader against
// a generateContent-shaped streaming endpoint (candidates[0].content.parts).
type GeminiClient struct {
	streamURL string
	apiKey    string
	model     string
	client    *http.Client
}

// NewGeminiClient creates a client against streamURL (the provider's
// streaming generation endpoint), authenticating with apiKey.
func NewGeminiClient(streamURL, apiKey, model string, poolSize int) *GeminiClient {
	return &GeminiClient{
		streamURL: streamURL,
		apiKey:    apiKey,
		model:     model,
		// No overall Timeout: the stream may be long-lived. Only the
		// connection/header phase is bounded, via ResponseHeaderTimeout.
		client: httputil.NewPooledClient(poolSize, 0, headerTimeout),
	}
}

type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopP            float64 `json:"topP"`
	TopK            int     `json:"topK"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type contentPart struct {
	Text string `json:"text"`
}

type content struct {
	Role  string        `json:"role,omitempty"`
	Parts []contentPart `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type candidate struct {
	Content      content `json:"content"`
	FinishReason string  `json:"finishReason,omitempty"`
}

type generateChunk struct {
	Candidates []candidate `json:"candidates"`
}

// StreamReply opens a streaming request for prompt and invokes onToken for
// each delta extracted from the first candidate's content parts, then once
// more with isComplete=true. Returns the full accumulated reply, or nil if
// the stream produced no text (e.g. every chunk failed to parse).
func (c *GeminiClient) StreamReply(ctx context.Context, prompt string, onToken OnToken) (*string, error) {
	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: []contentPart{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     temperature,
			TopP:            topP,
			TopK:            topK,
			MaxOutputTokens: maxOutputTokens,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("llmclient: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.streamURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llmclient: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		req.Header.Set("x-goog-api-key", c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("llm", "transient").Inc()
		return nil, fmt.Errorf("llmclient: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		metrics.Errors.WithLabelValues("llm", "status").Inc()
		return nil, fmt.Errorf("llmclient: status %d: %s", resp.StatusCode, errBody)
	}

	full, sawDelta := consumeSSE(resp.Body, onToken)
	metrics.StageDuration.WithLabelValues("llm").Observe(time.Since(start).Seconds())

	if !sawDelta {
		return nil, nil
	}
	return &full, nil
}

// consumeSSE reads `data:` lines from an SSE body, extracting the first
// candidate's delta text from each, invoking onToken per delta and once
// more at stream end. bufio.Scanner's line buffering already accumulates
// partial reads and keeps the unterminated tail for the next Scan, giving
// the required tolerance for frames split across TCP reads.
func consumeSSE(body io.Reader, onToken OnToken) (full string, sawDelta bool) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var b strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") && !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "" || payload == "[DONE]" {
			continue
		}

		var chunk generateChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			continue // malformed/split JSON line: skip silently
		}
		if len(chunk.Candidates) == 0 {
			continue
		}
		cand := chunk.Candidates[0]
		for _, part := range cand.Content.Parts {
			if part.Text == "" {
				continue
			}
			b.WriteString(part.Text)
			sawDelta = true
			if onToken != nil {
				onToken(part.Text, false)
			}
		}
	}

	// Stream end (finish_reason is carried in a candidate above but the
	// terminal signal is reaching end-of-stream, which covers both a
	// finish_reason chunk and a connection close).
	if onToken != nil {
		onToken("", true)
	}
	full = b.String()
	return full, sawDelta
}
