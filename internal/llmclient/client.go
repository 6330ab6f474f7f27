package llmclient

import (
	"context"

	"github.com/hubenschmidt/voicebridge/internal/router"
)

// Engine is satisfied by every LLM backend (GeminiClient, OpenAIClient).
type Engine interface {
	StreamReply(ctx context.Context, prompt string, onToken OnToken) (*string, error)
}

// Client dispatches stream_reply calls to a configured engine, falling back
// to the default when an unrecognized engine name is requested.
type Client struct {
	routes *router.Router[Engine]
}

// NewClient builds a Client from named engine backends, with fallback as
// the engine used when an unknown name is routed.
func NewClient(backends map[string]Engine, fallback string) *Client {
	return &Client{routes: router.New(backends, fallback)}
}

// StreamReply routes to engine (or the configured fallback) and streams the
// reply through it.
func (c *Client) StreamReply(ctx context.Context, engine, prompt string, onToken OnToken) (*string, error) {
	backend, err := c.routes.Route(engine)
	if err != nil {
		return nil, err
	}
	return backend.StreamReply(ctx, prompt, onToken)
}
