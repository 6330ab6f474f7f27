// Package metrics exposes Prometheus instrumentation for the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CallsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "voicebridge_calls_active",
		Help: "Currently active call sessions",
	})

	CallsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebridge_calls_total",
		Help: "Total calls accepted",
	})

	StageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "voicebridge_stage_duration_seconds",
		Help:    "Per-stage latency (stt, llm, tts)",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.5, 0.8, 1.0, 2.0, 5.0},
	}, []string{"stage"})

	TurnDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicebridge_turn_duration_seconds",
		Help:    "Latency of a turn's streamed LLM reply and TTS playback, from LLM request to final mark",
		Buckets: []float64{0.1, 0.2, 0.5, 0.8, 1.0, 1.5, 2.0, 3.0, 5.0},
	})

	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "voicebridge_errors_total",
		Help: "Error counts by stage and taxonomy",
	}, []string{"stage", "error_type"})

	InboundAudioChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebridge_inbound_media_frames_total",
		Help: "Inbound media frames accepted into a session buffer",
	})

	OutboundAudioChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebridge_outbound_media_frames_total",
		Help: "Outbound media frames emitted to the carrier",
	})

	TurnsTriggered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebridge_turns_triggered_total",
		Help: "Turn pipeline invocations started",
	})

	TurnsSkippedSilence = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebridge_turns_skipped_silence_total",
		Help: "Turns skipped by the silence gate before STT",
	})

	BargeIns = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voicebridge_barge_ins_total",
		Help: "Barge-in (clear) events handled",
	})

	KBRetrievalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voicebridge_kb_retrieval_duration_seconds",
		Help:    "relevant_chunks scoring latency",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
	})
)
