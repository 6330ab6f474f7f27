package turn

import (
	"context"
	"strings"
	"time"

	"github.com/hubenschmidt/voicebridge/internal/audio"
	"github.com/hubenschmidt/voicebridge/internal/carrier"
	"github.com/hubenschmidt/voicebridge/internal/metrics"
	"github.com/hubenschmidt/voicebridge/internal/session"
)

// Greet synthesizes and streams the greeting exactly once (greeting_state
// pending -> in_progress -> done). customGreeting is typically
// custom_parameters["greeting"]; an empty value falls through to the
// pipeline's configured default.
func (p *Pipeline) Greet(ctx context.Context, sess *session.Session, sender Sender, customGreeting string) {
	if !sess.AdvanceGreeting() {
		return
	}

	text := resolveGreetingText(customGreeting, p.Cfg.DefaultGreeting)
	result, err := p.TTS.Synthesize(ctx, text, p.Cfg.DefaultVoice)
	if err != nil {
		p.Logger.Warn("turn: greeting synthesis failed", "call_id", sess.CallID, "err", err)
		sess.RevertGreeting()
		p.streamSilenceKeepalive(sess, sender)
		return
	}

	pcm := result.PCM
	if result.SourceSampleRate != sess.SampleRate {
		pcm = audio.Resample(pcm, result.SourceSampleRate, sess.SampleRate)
	}

	if sentAny := p.streamPCM(sess, sender, pcm); !sentAny {
		sess.RevertGreeting()
		p.streamSilenceKeepalive(sess, sender)
		return
	}

	if frame, ferr := carrier.BuildOutboundMark(sess.StreamSID, "assistant_reply_done"); ferr == nil {
		sender.Send(frame)
	}
	sess.CompleteGreeting()
}

// streamPCM chunks pcm at the session's rate and emits outbound media
// frames, pacing between chunks. Reports whether any chunk was sent.
func (p *Pipeline) streamPCM(sess *session.Session, sender Sender, pcm []byte) bool {
	chunkSize := audio.ChunkSizeForRate(sess.SampleRate)
	sentAny := false
	for _, c := range audio.Chunk(pcm, chunkSize) {
		if sender.Closed() || sess.BargeInPending {
			break
		}
		seq := sess.NextSequenceNumber()
		frame, err := carrier.BuildOutboundMedia(sess.StreamSID, seq, c)
		if err != nil {
			continue
		}
		if err := sender.Send(frame); err != nil {
			break
		}
		sentAny = true
		metrics.OutboundAudioChunks.Inc()
		time.Sleep(p.Cfg.ChunkPaceDelay)
	}
	return sentAny
}

func (p *Pipeline) streamSilenceKeepalive(sess *session.Session, sender Sender) {
	silence := make([]byte, sess.SampleRate*2) // 1 second of zeroed 16-bit PCM
	p.streamPCM(sess, sender, silence)
}

func resolveGreetingText(customGreeting, fallback string) string {
	text := strings.TrimSpace(customGreeting)
	if text == "" {
		text = fallback
	}
	text = strings.TrimPrefix(text, "GREETING_TEXT=")
	text = strings.Trim(text, `"'`)
	return text
}
