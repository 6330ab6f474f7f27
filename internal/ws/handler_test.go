package ws

import (
	"encoding/base64"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hubenschmidt/voicebridge/internal/session"
)

func dialTestServer(t *testing.T, h *Handler) (*websocket.Conn, func()) {
	t.Helper()
	return dialTestServerWithQuery(t, h, "")
}

func dialTestServerWithQuery(t *testing.T, h *Handler, query string) (*websocket.Conn, func()) {
	t.Helper()
	srv := httptest.NewServer(h)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	if query != "" {
		wsURL += "?" + query
	}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		srv.Close()
		t.Fatalf("dial: %v", err)
	}
	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

func TestHandlerParsesSampleRateAndCallIDQueryParams(t *testing.T) {
	h := NewHandler(HandlerConfig{})
	conn, cleanup := dialTestServerWithQuery(t, h, "sample_rate=16000&call_id=abc123")
	defer cleanup()

	start, _ := json.Marshal(map[string]any{
		"event": "start",
		"start": map[string]any{"streamSid": "MZ9"},
	})
	conn.WriteMessage(websocket.TextMessage, start)
	time.Sleep(50 * time.Millisecond)

	sess, ok := h.registry.Load("abc123")
	if !ok {
		t.Fatal("expected session registered under the call_id query param")
	}
	if got := sess.(*session.Session).SampleRate; got != 16000 {
		t.Fatalf("SampleRate = %d, want 16000", got)
	}
}

func TestHandlerInvalidSampleRateFallsBackToDefault(t *testing.T) {
	h := NewHandler(HandlerConfig{})
	conn, cleanup := dialTestServerWithQuery(t, h, "sample_rate=44100&call_id=xyz")
	defer cleanup()

	start, _ := json.Marshal(map[string]any{
		"event": "start",
		"start": map[string]any{"streamSid": "MZ10"},
	})
	conn.WriteMessage(websocket.TextMessage, start)
	time.Sleep(50 * time.Millisecond)

	sess, ok := h.registry.Load("xyz")
	if !ok {
		t.Fatal("expected session registered under the call_id query param")
	}
	if got := sess.(*session.Session).SampleRate; got != defaultSampleRate {
		t.Fatalf("SampleRate = %d, want default %d", got, defaultSampleRate)
	}
}

func TestHandlerConnectedPinsStreamSIDAndCustomParameters(t *testing.T) {
	h := NewHandler(HandlerConfig{})
	conn, cleanup := dialTestServer(t, h)
	defer cleanup()

	connected, _ := json.Marshal(map[string]any{
		"event":     "connected",
		"streamSid": "MZ11",
		"custom_parameters": map[string]any{
			"greeting": "Hi.",
		},
	})
	if err := conn.WriteMessage(websocket.TextMessage, connected); err != nil {
		t.Fatalf("write connected: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	var sess *session.Session
	h.registry.Range(func(_, v any) bool {
		sess = v.(*session.Session)
		return true
	})
	if sess == nil {
		t.Fatal("expected a session registered after connected")
	}
	if sess.StreamSID != "MZ11" {
		t.Fatalf("StreamSID = %q, want MZ11", sess.StreamSID)
	}
	if sess.CustomParameters["greeting"] != "Hi." {
		t.Fatalf("custom_parameters[greeting] = %q, want %q", sess.CustomParameters["greeting"], "Hi.")
	}
}

func TestHandlerInfersStreamSIDFromFirstMediaFrame(t *testing.T) {
	h := NewHandler(HandlerConfig{})
	conn, cleanup := dialTestServer(t, h)
	defer cleanup()

	media, _ := json.Marshal(map[string]any{
		"event":     "media",
		"streamSid": "MZ12",
		"media": map[string]any{
			"track":   "inbound",
			"payload": base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4}),
		},
	})
	if err := conn.WriteMessage(websocket.TextMessage, media); err != nil {
		t.Fatalf("write media: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	var sess *session.Session
	h.registry.Range(func(_, v any) bool {
		sess = v.(*session.Session)
		return true
	})
	if sess == nil {
		t.Fatal("expected a session registered after the first media frame")
	}
	if sess.StreamSID != "MZ12" {
		t.Fatalf("StreamSID = %q, want MZ12 (inferred from media frame)", sess.StreamSID)
	}
}

func TestHandlerAcceptsStartFrameWithoutPipeline(t *testing.T) {
	h := NewHandler(HandlerConfig{})
	conn, cleanup := dialTestServer(t, h)
	defer cleanup()

	startFrame, _ := json.Marshal(map[string]any{
		"event": "start",
		"start": map[string]any{
			"streamSid": "MZ123",
		},
	})
	if err := conn.WriteMessage(websocket.TextMessage, startFrame); err != nil {
		t.Fatalf("write start: %v", err)
	}

	// No Pipeline configured, so no greeting frame is produced; assert that
	// no frame arrives before the read deadline.
	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatal("expected a read timeout since no greeting pipeline is configured")
	}
}

func TestHandlerMediaOnOutboundTrackIsDiscarded(t *testing.T) {
	h := NewHandler(HandlerConfig{})
	conn, cleanup := dialTestServer(t, h)
	defer cleanup()

	start, _ := json.Marshal(map[string]any{
		"event": "start",
		"start": map[string]any{"streamSid": "MZ1"},
	})
	conn.WriteMessage(websocket.TextMessage, start)

	media, _ := json.Marshal(map[string]any{
		"event": "media",
		"media": map[string]any{
			"track":   "outbound",
			"payload": base64.StdEncoding.EncodeToString([]byte{1, 2, 3, 4}),
		},
	})
	if err := conn.WriteMessage(websocket.TextMessage, media); err != nil {
		t.Fatalf("write media: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	h.registry.Range(func(_, v any) bool {
		if n := len(v.(*session.Session).InboundAudioBuffer); n != 0 {
			t.Errorf("inbound buffer holds %d bytes after an outbound-track frame, want 0", n)
		}
		return true
	})

	stop, _ := json.Marshal(map[string]any{"event": "stop"})
	if err := conn.WriteMessage(websocket.TextMessage, stop); err != nil {
		t.Fatalf("write stop: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(500 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatal("expected connection to close cleanly after stop with no crash")
	}
}

func TestHandlerClearSetsBargeIn(t *testing.T) {
	h := NewHandler(HandlerConfig{})
	conn, cleanup := dialTestServer(t, h)
	defer cleanup()

	start, _ := json.Marshal(map[string]any{
		"event": "start",
		"start": map[string]any{"streamSid": "MZ2"},
	})
	conn.WriteMessage(websocket.TextMessage, start)

	clear, _ := json.Marshal(map[string]any{"event": "clear"})
	if err := conn.WriteMessage(websocket.TextMessage, clear); err != nil {
		t.Fatalf("write clear: %v", err)
	}

	// Give the handler goroutine a moment to process start then clear.
	time.Sleep(50 * time.Millisecond)

	var found bool
	h.registry.Range(func(_, v any) bool {
		found = true
		sess := v.(*session.Session)
		if !sess.BargeInPending {
			t.Error("expected BargeInPending to be set after a clear frame")
		}
		return true
	})
	if !found {
		t.Fatal("expected a registered session after start")
	}
}
