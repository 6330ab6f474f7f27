package sttclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTranscribeReturnsTrimmedText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(transcribeResponse{Text: "  hello there  "})
	}))
	defer srv.Close()

	c := New(srv.URL, "key", 2)
	pcm := make([]byte, 3200)
	text, err := c.Transcribe(context.Background(), pcm, 16000, "")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text == nil || *text != "hello there" {
		t.Fatalf("text = %v, want \"hello there\"", text)
	}
}

func TestTranscribeEmptyInputReturnsNil(t *testing.T) {
	c := New("http://unused", "", 1)
	text, err := c.Transcribe(context.Background(), nil, 16000, "en")
	if err != nil || text != nil {
		t.Fatalf("expected nil, nil for empty input; got %v, %v", text, err)
	}
}

func TestTranscribeEmptyTranscriptReturnsNil(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(transcribeResponse{Text: "   "})
	}))
	defer srv.Close()

	c := New(srv.URL, "", 1)
	text, err := c.Transcribe(context.Background(), make([]byte, 100), 16000, "en")
	if err != nil || text != nil {
		t.Fatalf("expected nil, nil for empty transcript; got %v, %v", text, err)
	}
}

func TestTranscribeProviderErrorReturnsNilError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "", 1)
	text, err := c.Transcribe(context.Background(), make([]byte, 100), 16000, "en")
	if err == nil {
		t.Fatal("expected an error for a 500 response")
	}
	if text != nil {
		t.Fatal("expected nil text on provider error")
	}
}
