// Package httputil provides a pooled HTTP client shared by the STT, TTS,
// and LLM clients.
package httputil

import (
	"net/http"
	"time"
)

// NewPooledClient creates an http.Client with connection pooling and a
// tuned transport. timeout bounds the whole request/response cycle; pass 0
// for clients that need to stream an unbounded response body and enforce
// their own header-only deadline via responseHeaderTimeout.
func NewPooledClient(poolSize int, timeout, responseHeaderTimeout time.Duration) *http.Client {
	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			MaxIdleConns:          poolSize,
			MaxIdleConnsPerHost:   poolSize,
			IdleConnTimeout:       90 * time.Second,
			ResponseHeaderTimeout: responseHeaderTimeout,
			ForceAttemptHTTP2:     true,
		},
	}
}
