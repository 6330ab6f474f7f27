package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hubenschmidt/voicebridge/internal/admin"
	"github.com/hubenschmidt/voicebridge/internal/kb"
	"github.com/hubenschmidt/voicebridge/internal/llmclient"
	"github.com/hubenschmidt/voicebridge/internal/outbound"
	"github.com/hubenschmidt/voicebridge/internal/sttclient"
	"github.com/hubenschmidt/voicebridge/internal/trace"
	"github.com/hubenschmidt/voicebridge/internal/ttsclient"
	"github.com/hubenschmidt/voicebridge/internal/turn"
	"github.com/hubenschmidt/voicebridge/internal/ws"
)

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})))

	cfg := loadConfig()

	sttClient := sttclient.New(cfg.sttURL, cfg.sttAPIKey, cfg.sttPoolSize)
	ttsClient := ttsclient.New(cfg.ttsURL, cfg.ttsAPIKey, cfg.ttsPoolSize, nil, slog.Default())
	llmClient := initLLM(cfg)

	var store *kb.KB
	var traceStore *trace.Store
	if cfg.postgresURL != "" {
		kbStore, err := kb.Open(cfg.postgresURL)
		if err != nil {
			slog.Error("kb store open failed", "error", err)
		} else {
			store = kb.New(kbStore)
			slog.Info("knowledge base enabled", "postgres", cfg.postgresURL)
		}

		var traceErr error
		traceStore, traceErr = trace.Open(cfg.postgresURL)
		if traceErr != nil {
			slog.Error("trace store open failed", "error", traceErr)
		} else {
			slog.Info("call tracing enabled", "postgres", cfg.postgresURL)
		}
	}

	pipeline := turn.New(sttClient, ttsClient, llmClient, store, cfg.turn, slog.Default())

	wsHandler := ws.NewHandler(ws.HandlerConfig{
		Pipeline: pipeline,
		Trace:    traceStore,
		Logger:   slog.Default(),
	})

	var outboundTrigger *outbound.Trigger
	if cfg.twilioAccountSID != "" {
		var err error
		outboundTrigger, err = outbound.New(outbound.Config{
			AccountSID:  cfg.twilioAccountSID,
			AuthToken:   cfg.twilioAuthToken,
			FromNumber:  cfg.twilioFromNumber,
			TwimlAppURL: cfg.twilioTwimlAppURL,
		})
		if err != nil {
			slog.Error("outbound trigger disabled", "error", err)
		}
	}

	adminHandlers := admin.New(store, slog.Default())

	mux := http.NewServeMux()
	mux.Handle(cfg.wsPath, wsHandler)
	mux.HandleFunc("GET /health", handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	adminHandlers.Register(mux)
	registerOutboundRoute(mux, outboundTrigger)
	registerCallHistoryRoutes(mux, traceStore)

	addr := ":" + cfg.port
	srv := &http.Server{Addr: addr, Handler: mux}

	go awaitShutdown(srv)

	slog.Info("gateway starting", "addr", addr, "ws_path", cfg.wsPath)

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}

	slog.Info("gateway stopped")
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// awaitShutdown blocks until SIGINT/SIGTERM, then shuts the server down with
// a 30s deadline: listeners close first, then idle HTTP connections. Upgraded
// WebSocket calls are hijacked connections, which Shutdown does not wait for.
func awaitShutdown(srv *http.Server) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("shutting down", "signal", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	srv.Shutdown(ctx)
}

// initLLM wires the Gemini engine as primary, with OpenAI registered as a
// secondary engine whenever an API key is configured.
func initLLM(cfg config) *llmclient.Client {
	backends := map[string]llmclient.Engine{
		"gemini": llmclient.NewGeminiClient(cfg.geminiURL, cfg.geminiAPIKey, cfg.geminiModel, cfg.geminiPoolSize),
	}
	if cfg.openaiAPIKey != "" {
		backends["openai"] = llmclient.NewOpenAIClient(cfg.openaiURL, cfg.openaiAPIKey, cfg.openaiModel)
	}
	fallback := cfg.turn.DefaultEngine
	if _, ok := backends[fallback]; !ok {
		fallback = "gemini"
	}
	return llmclient.NewClient(backends, fallback)
}
