package main

import (
	"github.com/hubenschmidt/voicebridge/internal/env"
	"github.com/hubenschmidt/voicebridge/internal/turn"
)

type config struct {
	port   string
	wsPath string

	sttURL      string
	sttAPIKey   string
	sttPoolSize int

	ttsURL      string
	ttsAPIKey   string
	ttsPoolSize int

	geminiURL      string
	geminiAPIKey   string
	geminiModel    string
	geminiPoolSize int

	openaiURL    string
	openaiAPIKey string
	openaiModel  string

	postgresURL string

	twilioAccountSID  string
	twilioAuthToken   string
	twilioFromNumber  string
	twilioTwimlAppURL string

	turn turn.Config
}

func loadConfig() config {
	t := turn.DefaultConfig()
	t.DefaultEngine = env.Str("LLM_ENGINE", "gemini")
	t.DefaultVoice = env.Str("DEFAULT_VOICE", "")
	t.DefaultGreeting = env.Str("DEFAULT_GREETING", t.DefaultGreeting)
	t.STTLanguage = env.Str("STT_LANGUAGE", t.STTLanguage)
	t.SilenceSampleThreshold = env.Int("SILENCE_SAMPLE_THRESHOLD", t.SilenceSampleThreshold)
	t.SilenceRatioThreshold = env.Float("SILENCE_RATIO_THRESHOLD", t.SilenceRatioThreshold)
	t.ChunkPaceDelay = env.Duration("CHUNK_PACE_DELAY", t.ChunkPaceDelay)
	t.RelevantChunkCount = env.Int("KB_RELEVANT_CHUNK_COUNT", t.RelevantChunkCount)

	return config{
		port:   env.Str("GATEWAY_PORT", "8000"),
		wsPath: env.Str("GATEWAY_WS_PATH", "/voicebot/ws"),

		sttURL:      env.Str("STT_URL", "http://localhost:9000/transcribe"),
		sttAPIKey:   env.Str("STT_API_KEY", ""),
		sttPoolSize: env.Int("STT_POOL_SIZE", 50),

		ttsURL:      env.Str("TTS_URL", "http://localhost:9100/synthesize"),
		ttsAPIKey:   env.Str("TTS_API_KEY", ""),
		ttsPoolSize: env.Int("TTS_POOL_SIZE", 50),

		geminiURL:      env.Str("GEMINI_STREAM_URL", "https://generativelanguage.googleapis.com/v1beta/models/gemini-1.5-flash:streamGenerateContent"),
		geminiAPIKey:   env.Str("GEMINI_API_KEY", ""),
		geminiModel:    env.Str("GEMINI_MODEL", "gemini-1.5-flash"),
		geminiPoolSize: env.Int("GEMINI_POOL_SIZE", 50),

		openaiURL:    env.Str("OPENAI_URL", "https://api.openai.com/v1"),
		openaiAPIKey: env.Str("OPENAI_API_KEY", ""),
		openaiModel:  env.Str("OPENAI_MODEL", "gpt-4o-mini"),

		postgresURL: env.Str("POSTGRES_URL", ""),

		twilioAccountSID:  env.Str("TWILIO_ACCOUNT_SID", ""),
		twilioAuthToken:   env.Str("TWILIO_AUTH_TOKEN", ""),
		twilioFromNumber:  env.Str("TWILIO_FROM_NUMBER", ""),
		twilioTwimlAppURL: env.Str("TWILIO_TWIML_APP_URL", ""),

		turn: t,
	}
}
