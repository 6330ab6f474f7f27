// Package turn orchestrates one STT->LLM->TTS turn: trigger, silence gate,
// transcription, persona/context prompt assembly, streaming LLM reply with
// an ordered TTS fragment queue, and barge-in preemption.
package turn

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hubenschmidt/voicebridge/internal/audio"
	"github.com/hubenschmidt/voicebridge/internal/carrier"
	"github.com/hubenschmidt/voicebridge/internal/kb"
	"github.com/hubenschmidt/voicebridge/internal/llmclient"
	"github.com/hubenschmidt/voicebridge/internal/metrics"
	"github.com/hubenschmidt/voicebridge/internal/session"
	"github.com/hubenschmidt/voicebridge/internal/sttclient"
	"github.com/hubenschmidt/voicebridge/internal/ttsclient"
)

// Config tunes the thresholds the design notes call out as implementer
// choices rather than spec constants.
type Config struct {
	DefaultEngine          string
	DefaultVoice           string
	DefaultGreeting        string
	STTLanguage            string
	SilenceSampleThreshold int
	SilenceRatioThreshold  float64
	ChunkPaceDelay         time.Duration
	RelevantChunkCount     int
}

// DefaultConfig returns sensible defaults, tunable via env at startup.
func DefaultConfig() Config {
	return Config{
		DefaultEngine:          "gemini",
		DefaultVoice:           "",
		DefaultGreeting:        "Hello, how can I help you today?",
		STTLanguage:            "en",
		SilenceSampleThreshold: 100,
		SilenceRatioThreshold:  0.05,
		ChunkPaceDelay:         10 * time.Millisecond,
		RelevantChunkCount:     3,
	}
}

// Pipeline holds the external collaborators a turn needs.
type Pipeline struct {
	STT    *sttclient.Client
	TTS    *ttsclient.Client
	LLM    *llmclient.Client
	KB     *kb.KB
	Cfg    Config
	Logger *slog.Logger
}

// New builds a Pipeline, defaulting a nil logger to slog.Default().
func New(stt *sttclient.Client, tts *ttsclient.Client, llm *llmclient.Client, store *kb.KB, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{STT: stt, TTS: tts, LLM: llm, KB: store, Cfg: cfg, Logger: logger}
}

// Run executes one turn against sess's currently buffered inbound audio.
// Safe to call both on threshold trigger and once on session stop to flush
// residual audio. Re-entrancy across sessions is the caller's
// responsibility (the owner goroutine serializes calls per session).
func (p *Pipeline) Run(ctx context.Context, sess *session.Session, sender Sender) {
	sess.ProcessingTurn = true
	defer func() { sess.ProcessingTurn = false }()

	pcm := sess.SnapshotAndClearInboundBuffer()

	if sess.ClearBargeIn() {
		return
	}

	if len(pcm) == 0 {
		return
	}

	metrics.TurnsTriggered.Inc()

	if NonSilentRatio(pcm, p.Cfg.SilenceSampleThreshold) < p.Cfg.SilenceRatioThreshold {
		metrics.TurnsSkippedSilence.Inc()
		return
	}

	userTextPtr, err := p.STT.Transcribe(ctx, pcm, sess.SampleRate, p.Cfg.STTLanguage)
	if err != nil {
		p.Logger.Warn("turn: stt failed, aborting turn", "call_id", sess.CallID, "err", err)
		metrics.Errors.WithLabelValues("turn", "transient").Inc()
		return
	}
	if userTextPtr == nil || *userTextPtr == "" {
		return
	}
	userText := *userTextPtr

	sess.AppendTurn(session.RoleUser, userText)

	if p.KB != nil {
		personaContent, err := p.KB.LoadPersona("")
		if err != nil {
			p.Logger.Warn("turn: persona load failed", "call_id", sess.CallID, "err", err)
		}
		sess.EnsureSystemMessage(personaContent)

		chunks, err := p.KB.RelevantChunks(userText, p.Cfg.RelevantChunkCount)
		if err != nil {
			p.Logger.Warn("turn: kb retrieval failed", "call_id", sess.CallID, "err", err)
			chunks = nil
		}
		sess.UpsertRelevantContext(buildRelevantContextBlock(chunks))
	}

	prompt := buildPrompt(sess, userText)

	start := time.Now()
	assistantText, err := p.streamReplyWithTTS(ctx, sess, sender, prompt)
	metrics.TurnDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		p.Logger.Warn("turn: llm/tts streaming failed", "call_id", sess.CallID, "err", err)
		metrics.Errors.WithLabelValues("turn", "transient").Inc()
		return
	}
	if assistantText != "" {
		sess.AppendTurn(session.RoleAssistant, assistantText)
	}
}

type ttsTask struct {
	text  string
	final bool
}

// streamReplyWithTTS implements the three-stage producer/consumer: the LLM
// delta callback (producer, running synchronously inside LLM.StreamReply)
// drains the token buffer into fragments and enqueues them; a single writer
// goroutine (consumer) drains the FIFO channel, synthesizing and streaming
// each fragment strictly in enqueue order before starting the next.
func (p *Pipeline) streamReplyWithTTS(ctx context.Context, sess *session.Session, sender Sender, prompt string) (string, error) {
	taskCh := make(chan ttsTask, 8)
	done := make(chan struct{})

	var writerErr error
	go func() {
		defer close(done)
		for task := range taskCh {
			if sess.BargeInPending || sender.Closed() {
				continue
			}
			if task.text != "" {
				if err := p.streamFragment(ctx, sess, sender, task.text); err != nil {
					writerErr = err
					continue
				}
			}
			if task.final && !sess.BargeInPending && !sender.Closed() {
				if frame, err := carrier.BuildOutboundMark(sess.StreamSID, "assistant_reply_done"); err == nil {
					sender.Send(frame)
				}
			}
		}
	}()

	enqueue := func(text string, final bool) bool {
		if sess.BargeInPending {
			return false
		}
		select {
		case taskCh <- ttsTask{text: text, final: final}:
			return true
		case <-ctx.Done():
			return false
		}
	}

	var tokenBuf strings.Builder
	var fullReply strings.Builder

	_, llmErr := p.LLM.StreamReply(ctx, p.Cfg.DefaultEngine, prompt, func(delta string, isComplete bool) {
		if sess.BargeInPending {
			return
		}

		if isComplete {
			remainder := strings.TrimSpace(tokenBuf.String())
			tokenBuf.Reset()
			if remainder != "" {
				if fullReply.Len() > 0 {
					fullReply.WriteString(" ")
				}
				fullReply.WriteString(remainder)
				enqueue(remainder, false)
			}
			enqueue("", true)
			return
		}

		tokenBuf.WriteString(delta)
		fragments, remainder := drainFragments(tokenBuf.String())
		tokenBuf.Reset()
		tokenBuf.WriteString(remainder)

		for _, f := range fragments {
			if fullReply.Len() > 0 {
				fullReply.WriteString(" ")
			}
			fullReply.WriteString(f)
			if !enqueue(f, false) {
				return
			}
		}
	})

	close(taskCh)
	<-done

	if llmErr != nil {
		return "", llmErr
	}
	if sess.BargeInPending {
		return "", nil
	}
	if writerErr != nil {
		return "", writerErr
	}

	return llmclient.NormalizeForSpeech(fullReply.String()), nil
}

// streamFragment synthesizes one TTS fragment and streams its chunks,
// halting at the next chunk boundary if the connection closes or a
// barge-in arrives mid-stream.
func (p *Pipeline) streamFragment(ctx context.Context, sess *session.Session, sender Sender, text string) error {
	result, err := p.TTS.Synthesize(ctx, text, p.Cfg.DefaultVoice)
	if err != nil {
		return err
	}

	pcm := result.PCM
	if result.SourceSampleRate != sess.SampleRate {
		pcm = audio.Resample(pcm, result.SourceSampleRate, sess.SampleRate)
	}
	p.streamPCM(sess, sender, pcm)
	return nil
}
