// Package ws upgrades incoming carrier media-stream connections and drives
// each call's session through its lifecycle: connected, start, media
// buffering and turn triggering, mark/clear handling, and stop cleanup.
package ws

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/hubenschmidt/voicebridge/internal/carrier"
	"github.com/hubenschmidt/voicebridge/internal/metrics"
	"github.com/hubenschmidt/voicebridge/internal/session"
	"github.com/hubenschmidt/voicebridge/internal/trace"
	"github.com/hubenschmidt/voicebridge/internal/turn"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  16384,
	WriteBufferSize: 16384,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// defaultSampleRate is the fallback used when the connection's sample_rate
// query parameter is absent or not one of the two rates the carrier supports.
const defaultSampleRate = 8000

// HandlerConfig holds the shared collaborators every call session uses.
type HandlerConfig struct {
	Pipeline *turn.Pipeline
	Trace    *trace.Store
	Logger   *slog.Logger
}

// Handler manages WebSocket call sessions for the carrier media stream.
type Handler struct {
	cfg      HandlerConfig
	registry sync.Map // call_id -> *session.Session
}

// NewHandler creates a WebSocket handler.
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Handler{cfg: cfg}
}

// ServeHTTP upgrades the connection and runs the call session to
// completion. It returns only once the carrier closes the socket or sends
// a stop frame.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	callID := r.URL.Query().Get("call_id")
	if callID == "" {
		callID = uuid.NewString()
	}

	sampleRate := defaultSampleRate
	if raw := r.URL.Query().Get("sample_rate"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && (parsed == 8000 || parsed == 16000) {
			sampleRate = parsed
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.cfg.Logger.Error("ws: upgrade failed", "err", err)
		return
	}
	defer conn.Close()

	h.runSession(conn, callID, sampleRate)
}

// connSender adapts a gorilla/websocket.Conn to turn.Sender, serializing
// writes behind a mutex since gorilla/websocket connections aren't safe for
// concurrent writers.
type connSender struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func (s *connSender) Send(frame []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	if err := s.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		s.closed = true
		return err
	}
	return nil
}

func (s *connSender) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *connSender) markClosed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (h *Handler) runSession(conn *websocket.Conn, callID string, sampleRate int) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := &connSender{conn: conn}
	logger := h.cfg.Logger.With("call_id", callID)

	metrics.CallsTotal.Inc()
	metrics.CallsActive.Inc()
	defer metrics.CallsActive.Dec()

	sess := session.New(callID, sampleRate)
	h.registry.Store(callID, sess)
	var tracer *trace.Tracer

	defer func() {
		sender.markClosed()
		sess.Terminate()
		h.registry.Delete(callID)
		if tracer != nil {
			tracer.Close()
		}
		logger.Info("ws: call ended")
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage && msgType != websocket.BinaryMessage {
			continue
		}

		env, err := carrier.Parse(data)
		if err != nil {
			logger.Warn("ws: dropping unparseable frame", "err", err)
			continue
		}

		switch env.Event {
		case carrier.EventConnected:
			h.handleConnected(ctx, sess, env, sender, &tracer, logger)

		case carrier.EventStart:
			h.handleStart(ctx, sess, env, sender, &tracer, logger)

		case carrier.EventMedia:
			h.handleMedia(ctx, sess, env, sender, &tracer, logger)

		case carrier.EventMark:
			// Marks on the inbound side are carrier acknowledgements of
			// frames we sent; nothing to act on.

		case carrier.EventClear:
			h.handleClear(sess, logger)

		case carrier.EventStop:
			// Flush queued incremental turn writes before EndCall replaces
			// the call's turns, so none of them lands after the final write.
			if tracer != nil {
				tracer.Close()
			}
			h.handleStop(ctx, sess, tracer, env, logger)
			tracer = nil
			return

		default:
			logger.Warn("ws: unrecognized event", "event", env.Event)
		}
	}
}

// pinSession records streamSID/customParams on sess as soon as either
// arrives (on connected, start, or inferred from the first media frame:
// stream_sid may arrive on any of the three), lazily creates the trace
// tracer, and fires the greeting exactly once stream_sid is known.
func (h *Handler) pinSession(ctx context.Context, sess *session.Session, sender turn.Sender, streamSID string, customParams map[string]string, tracer **trace.Tracer, logger *slog.Logger) {
	sess.SetStreamSID(streamSID)
	if len(customParams) > 0 {
		if sess.CustomParameters == nil {
			sess.CustomParameters = customParams
		} else {
			for k, v := range customParams {
				sess.CustomParameters[k] = v
			}
		}
	}

	if !sess.HasStreamSID() {
		return
	}

	if *tracer == nil && h.cfg.Trace != nil {
		if err := h.cfg.Trace.CreateCall(sess.CallID, sess.CustomParameters); err != nil {
			logger.Warn("ws: trace call creation failed", "err", err)
		} else {
			t := trace.NewTracer(h.cfg.Trace, sess.CallID)
			*tracer = t
			sess.OnTurnAppended = func(index int, role session.Role, text string) {
				t.RecordTurn(index, string(role), text)
			}
		}
	}

	if h.cfg.Pipeline != nil && sess.GreetingState == session.GreetingPending {
		greeting := sess.CustomParameters["greeting"]
		go h.cfg.Pipeline.Greet(ctx, sess, sender, greeting)
	}
}

func (h *Handler) handleConnected(ctx context.Context, sess *session.Session, env *carrier.Envelope, sender turn.Sender, tracer **trace.Tracer, logger *slog.Logger) {
	customParams := carrier.ExtractCustomParameters(env.CustomParameters)
	logger.Info("ws: connected", "stream_sid", env.StreamSID)
	h.pinSession(ctx, sess, sender, env.StreamSID, customParams, tracer, logger)
}

func (h *Handler) handleStart(ctx context.Context, sess *session.Session, env *carrier.Envelope, sender turn.Sender, tracer **trace.Tracer, logger *slog.Logger) {
	start, err := env.ParseStart()
	if err != nil {
		logger.Warn("ws: malformed start frame", "err", err)
		return
	}

	customParams := carrier.ExtractCustomParameters(start.CustomParameters)
	logger.Info("ws: start", "stream_sid", start.StreamSID, "custom_parameters", customParams)
	h.pinSession(ctx, sess, sender, start.StreamSID, customParams, tracer, logger)
}

func (h *Handler) handleMedia(ctx context.Context, sess *session.Session, env *carrier.Envelope, sender turn.Sender, tracer **trace.Tracer, logger *slog.Logger) {
	media, err := env.ParseMedia()
	if err != nil {
		logger.Warn("ws: malformed media frame", "err", err)
		return
	}
	if media.Track == carrier.TrackOutbound {
		return
	}

	if !sess.HasStreamSID() {
		h.pinSession(ctx, sess, sender, env.StreamSID, nil, tracer, logger)
	}

	pcm, err := carrier.DecodeMediaPayload(media.Payload)
	if err != nil {
		logger.Warn("ws: malformed media payload", "err", err)
		return
	}

	sess.AppendInboundAudio(pcm)
	metrics.InboundAudioChunks.Inc()

	if len(pcm) > 0 && !sess.ProcessingTurn && h.cfg.Pipeline != nil {
		if sess.SnapshotLen() >= sess.InboundBufferThresholdBytes() {
			sess.ProcessingTurn = true
			go h.cfg.Pipeline.Run(ctx, sess, sender)
		}
	}
}

func (h *Handler) handleClear(sess *session.Session, logger *slog.Logger) {
	sess.SetBargeIn()
	metrics.BargeIns.Inc()
	logger.Info("ws: clear (barge-in)")
}

func (h *Handler) handleStop(ctx context.Context, sess *session.Session, tracer *trace.Tracer, env *carrier.Envelope, logger *slog.Logger) {
	stop := env.ParseStop()
	logger.Info("ws: stop", "reason", stop.Reason)

	if tracer != nil {
		history := make([]trace.HistoryEntry, 0, len(sess.ConversationHistory))
		for _, t := range sess.ConversationHistory {
			history = append(history, trace.HistoryEntry{Role: string(t.Role), Text: t.Text})
		}
		if err := h.cfg.Trace.EndCall(sess.CallID, history); err != nil {
			logger.Warn("ws: trace call finalize failed", "err", err)
		}
	}

	sess.Terminate()
}
