// Package ttsclient wraps a cloud text-to-speech provider's HTTP endpoint.
package ttsclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hubenschmidt/voicebridge/internal/audio"
	"github.com/hubenschmidt/voicebridge/internal/httputil"
	"github.com/hubenschmidt/voicebridge/internal/metrics"
)

const requestTimeout = 30 * time.Second

// defaultVoice is used whenever a synthesize call omits a voice or supplies
// one that isn't in the configured voice table.
const defaultVoice = "default-female"

// Client synthesizes text to PCM audio via a cloud TTS provider.
type Client struct {
	url    string
	apiKey string
	client *http.Client
	voices map[string]string
	logger *slog.Logger
}

// New creates a Client targeting the provider endpoint url. voices maps
// caller-facing voice identifiers (which may originate from a different
// naming scheme than the provider's own) to the provider's native voice
// IDs; unknown identifiers fall back to defaultVoice.
func New(url, apiKey string, poolSize int, voices map[string]string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		url:    url,
		apiKey: apiKey,
		client: httputil.NewPooledClient(poolSize, requestTimeout, requestTimeout),
		voices: voices,
		logger: logger,
	}
}

// Result is the synthesized audio and the sample rate it was produced at.
// The caller resamples to the session's target rate if they differ.
type Result struct {
	PCM              []byte
	SourceSampleRate int
}

type synthesizeRequest struct {
	Text  string `json:"text"`
	Voice string `json:"voice"`
}

// Synthesize renders text as speech using voice (resolved through the
// configured voice table, falling back to the default voice). Empty text
// is rejected.
func (c *Client) Synthesize(ctx context.Context, text, voice string) (*Result, error) {
	if text == "" {
		return nil, fmt.Errorf("ttsclient: empty text rejected")
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	start := time.Now()
	payload, err := json.Marshal(synthesizeRequest{Text: text, Voice: c.resolveVoice(voice)})
	if err != nil {
		return nil, fmt.Errorf("ttsclient: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("ttsclient: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("tts", "transient").Inc()
		return nil, fmt.Errorf("ttsclient: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		metrics.Errors.WithLabelValues("tts", "status").Inc()
		return nil, fmt.Errorf("ttsclient: status %d: %s", resp.StatusCode, string(respBody))
	}

	wavBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ttsclient: read response: %w", err)
	}

	pcm, sourceRate, err := audio.WAVToPCM(wavBytes)
	if err != nil {
		return nil, fmt.Errorf("ttsclient: decode response audio: %w", err)
	}

	metrics.StageDuration.WithLabelValues("tts").Observe(time.Since(start).Seconds())

	return &Result{PCM: pcm, SourceSampleRate: sourceRate}, nil
}

func (c *Client) resolveVoice(voice string) string {
	if voice == "" {
		return defaultVoice
	}
	if resolved, ok := c.voices[voice]; ok {
		return resolved
	}
	c.logger.Warn("ttsclient: unknown voice identifier, falling back to default", "voice", voice)
	return defaultVoice
}
