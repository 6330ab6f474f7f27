package turn

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/hubenschmidt/voicebridge/internal/audio"
	"github.com/hubenschmidt/voicebridge/internal/carrier"
	"github.com/hubenschmidt/voicebridge/internal/llmclient"
	"github.com/hubenschmidt/voicebridge/internal/session"
	"github.com/hubenschmidt/voicebridge/internal/sttclient"
	"github.com/hubenschmidt/voicebridge/internal/ttsclient"
)

// fakeEngine feeds a fixed sequence of deltas to onToken, mimicking a
// streaming LLM backend without any network dependency.
type fakeEngine struct {
	deltas []string
	delay  time.Duration
}

func (f *fakeEngine) StreamReply(ctx context.Context, prompt string, onToken llmclient.OnToken) (*string, error) {
	var full string
	for _, d := range f.deltas {
		if f.delay > 0 {
			time.Sleep(f.delay)
		}
		full += d
		onToken(d, false)
	}
	onToken("", true)
	return &full, nil
}

// recordingSender captures every frame sent, in order.
type recordingSender struct {
	mu     sync.Mutex
	frames [][]byte
	closed bool
}

func (r *recordingSender) Send(frame []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.frames = append(r.frames, frame)
	return nil
}

func (r *recordingSender) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *recordingSender) close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
}

func (r *recordingSender) mediaSequenceNumbers(t *testing.T) []uint64 {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	var seqs []uint64
	for _, f := range r.frames {
		var m carrier.OutboundMedia
		if err := json.Unmarshal(f, &m); err != nil {
			t.Fatalf("unmarshal frame: %v", err)
		}
		if m.Event != carrier.EventMedia {
			continue
		}
		seq, err := strconv.ParseUint(m.SequenceNumber, 10, 64)
		if err != nil {
			t.Fatalf("parse sequence number %q: %v", m.SequenceNumber, err)
		}
		seqs = append(seqs, seq)
	}
	return seqs
}

func newTTSServer(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pcm := make([]byte, 640)
		w.Write(audio.PCMToWAV(pcm, 16000))
	}))
}

func newSTTServer(t *testing.T, text string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(struct {
			Text string `json:"text"`
		}{Text: text})
	}))
}

func testPipeline(t *testing.T, sttText string, engine *fakeEngine) (*Pipeline, *sttclient.Client, *ttsclient.Client) {
	t.Helper()
	ttsSrv := newTTSServer(t)
	t.Cleanup(ttsSrv.Close)
	sttSrv := newSTTServer(t, sttText)
	t.Cleanup(sttSrv.Close)

	stt := sttclient.New(sttSrv.URL, "", 2)
	tts := ttsclient.New(ttsSrv.URL, "", 2, nil, nil)
	llm := llmclient.NewClient(map[string]llmclient.Engine{"fake": engine}, "fake")

	cfg := DefaultConfig()
	cfg.DefaultEngine = "fake"
	cfg.ChunkPaceDelay = 0

	return New(stt, tts, llm, nil, cfg, nil), stt, tts
}

func nonSilentPCM(n int) []byte {
	pcm := make([]byte, n)
	for i := 0; i+1 < n; i += 2 {
		pcm[i] = 0xFF
		pcm[i+1] = 0x7F
	}
	return pcm
}

func TestRunSkipsTurnOnSilence(t *testing.T) {
	engine := &fakeEngine{deltas: []string{"should not run."}}
	p, _, _ := testPipeline(t, "hello", engine)

	sess := session.New("call-1", 16000)
	sess.SetStreamSID("stream-1")
	sess.AppendInboundAudio(make([]byte, 3200))

	sender := &recordingSender{}
	p.Run(context.Background(), sess, sender)

	if len(sender.frames) != 0 {
		t.Fatalf("expected no frames sent on silence, got %d", len(sender.frames))
	}
	if len(sess.ConversationHistory) != 0 {
		t.Fatalf("expected no conversation history recorded on silence skip")
	}
}

func TestRunAbortsOnPendingBargeIn(t *testing.T) {
	engine := &fakeEngine{deltas: []string{"should not run."}}
	p, _, _ := testPipeline(t, "hello", engine)

	sess := session.New("call-2", 16000)
	sess.SetStreamSID("stream-2")
	sess.AppendInboundAudio(nonSilentPCM(3200))
	sess.SetBargeIn()

	sender := &recordingSender{}
	p.Run(context.Background(), sess, sender)

	if len(sender.frames) != 0 {
		t.Fatalf("expected no frames sent when turn is aborted by a pending barge-in")
	}
}

func TestRunStreamsReplyWithContiguousSequenceNumbers(t *testing.T) {
	engine := &fakeEngine{deltas: []string{"Hello", ", how", " are you?"}}
	p, _, _ := testPipeline(t, "hi there", engine)

	sess := session.New("call-3", 16000)
	sess.SetStreamSID("stream-3")
	sess.AppendInboundAudio(nonSilentPCM(3200))

	sender := &recordingSender{}
	p.Run(context.Background(), sess, sender)

	seqs := sender.mediaSequenceNumbers(t)
	if len(seqs) == 0 {
		t.Fatal("expected at least one media frame")
	}
	for i, s := range seqs {
		if s != uint64(i) {
			t.Fatalf("sequence numbers not contiguous from zero: %v", seqs)
		}
	}

	if len(sess.ConversationHistory) != 2 {
		t.Fatalf("expected user+assistant turns recorded, got %d", len(sess.ConversationHistory))
	}
	if sess.ConversationHistory[1].Role != session.RoleAssistant {
		t.Fatalf("expected second turn to be the assistant reply")
	}
}

func TestRunHaltsStreamingOnMidReplyBargeIn(t *testing.T) {
	engine := &fakeEngine{
		deltas: []string{"First sentence. ", "Second sentence that keeps going. "},
		delay:  5 * time.Millisecond,
	}
	p, _, _ := testPipeline(t, "hi", engine)

	sess := session.New("call-4", 16000)
	sess.SetStreamSID("stream-4")
	sess.AppendInboundAudio(nonSilentPCM(3200))

	sender := &recordingSender{}

	go func() {
		time.Sleep(2 * time.Millisecond)
		sess.SetBargeIn()
	}()

	p.Run(context.Background(), sess, sender)

	if len(sess.ConversationHistory) > 1 {
		t.Fatalf("assistant reply must not be recorded once a barge-in preempted the turn")
	}
}

func TestFindFlushBoundarySplitsOnSentenceEnd(t *testing.T) {
	buf := "Hello, how are you? "
	end, start, ok := findFlushBoundary(buf)
	if !ok {
		t.Fatal("expected a flush boundary")
	}
	if got := buf[:end]; got != "Hello, how are you?" {
		t.Fatalf("fragment = %q, want %q", got, "Hello, how are you?")
	}
	if start != end {
		t.Fatalf("remainder start = %d, want %d (the boundary space itself begins the remainder)", start, end)
	}
	if remainder := buf[start:]; remainder != " " {
		t.Fatalf("remainder = %q, want a single trailing space", remainder)
	}
}
