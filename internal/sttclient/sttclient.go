// Package sttclient wraps a cloud speech-to-text provider's HTTP endpoint.
package sttclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/hubenschmidt/voicebridge/internal/audio"
	"github.com/hubenschmidt/voicebridge/internal/httputil"
	"github.com/hubenschmidt/voicebridge/internal/metrics"
)

const requestTimeout = 30 * time.Second

// Client posts PCM audio to the STT provider and returns the top
// transcript alternative.
type Client struct {
	url    string
	apiKey string
	client *http.Client
}

// New creates a Client targeting the provider endpoint url, poolSize
// connections deep.
func New(url, apiKey string, poolSize int) *Client {
	return &Client{
		url:    url,
		apiKey: apiKey,
		client: httputil.NewPooledClient(poolSize, requestTimeout, requestTimeout),
	}
}

type transcribeResponse struct {
	Text string `json:"text"`
}

// Transcribe wraps pcm (16-bit LE mono at sampleRate) as WAV, posts it to
// the provider, and returns the trimmed top transcript. Returns nil, nil on
// empty input or an empty transcript; on a provider error (transport
// failure, non-200 status, undecodable body) it returns nil text with a
// non-nil error. The caller decides whether to skip the turn. language
// defaults to "en".
func (c *Client) Transcribe(ctx context.Context, pcm []byte, sampleRate int, language string) (*string, error) {
	if len(pcm) == 0 {
		return nil, nil
	}
	if language == "" {
		language = "en"
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	start := time.Now()
	body, contentType, err := buildMultipartAudio(pcm, sampleRate, language)
	if err != nil {
		return nil, fmt.Errorf("sttclient: build request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return nil, fmt.Errorf("sttclient: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.Errors.WithLabelValues("stt", "transient").Inc()
		return nil, fmt.Errorf("sttclient: request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		metrics.Errors.WithLabelValues("stt", "status").Inc()
		return nil, fmt.Errorf("sttclient: status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("sttclient: decode response: %w", err)
	}

	metrics.StageDuration.WithLabelValues("stt").Observe(time.Since(start).Seconds())

	text := strings.TrimSpace(parsed.Text)
	if text == "" {
		return nil, nil
	}
	return &text, nil
}

func buildMultipartAudio(pcm []byte, sampleRate int, language string) (*bytes.Buffer, string, error) {
	wavData := audio.PCMToWAV(pcm, sampleRate)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(wavData); err != nil {
		return nil, "", fmt.Errorf("write wav data: %w", err)
	}
	if err := writer.WriteField("language", language); err != nil {
		return nil, "", fmt.Errorf("write language field: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("close writer: %w", err)
	}
	return &body, writer.FormDataContentType(), nil
}
