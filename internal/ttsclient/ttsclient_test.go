package ttsclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hubenschmidt/voicebridge/internal/audio"
)

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	c := New("http://unused", "", 1, nil, nil)
	if _, err := c.Synthesize(context.Background(), "", ""); err == nil {
		t.Fatal("expected error for empty text")
	}
}

func TestSynthesizeDecodesSourceSampleRate(t *testing.T) {
	wavBytes := audio.PCMToWAV(make([]byte, 480), 24000)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		w.Write(wavBytes)
	}))
	defer srv.Close()

	c := New(srv.URL, "", 1, nil, nil)
	result, err := c.Synthesize(context.Background(), "hello", "")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if result.SourceSampleRate != 24000 {
		t.Fatalf("source sample rate = %d, want 24000", result.SourceSampleRate)
	}
}

func TestResolveVoiceFallsBackForUnknown(t *testing.T) {
	c := New("http://unused", "", 1, map[string]string{"alloy": "piper-en-amy"}, nil)
	if got := c.resolveVoice("alloy"); got != "piper-en-amy" {
		t.Fatalf("resolveVoice(alloy) = %q, want mapped voice", got)
	}
	if got := c.resolveVoice("does-not-exist"); got != defaultVoice {
		t.Fatalf("resolveVoice(unknown) = %q, want default", got)
	}
	if got := c.resolveVoice(""); got != defaultVoice {
		t.Fatalf("resolveVoice(\"\") = %q, want default", got)
	}
}
