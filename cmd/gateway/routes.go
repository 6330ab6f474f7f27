package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/hubenschmidt/voicebridge/internal/outbound"
	"github.com/hubenschmidt/voicebridge/internal/trace"
)

// defaultCallHistoryLimit is how many calls are returned when the caller
// omits the ?limit= query parameter.
const defaultCallHistoryLimit = 20

// registerOutboundRoute wires the outbound-call trigger route. When trigger
// is nil (Twilio credentials weren't configured) the route reports 503
// rather than being absent, so callers get a clear reason instead of a 404.
func registerOutboundRoute(mux *http.ServeMux, trigger *outbound.Trigger) {
	mux.HandleFunc("POST /api/calls/outbound", func(w http.ResponseWriter, r *http.Request) {
		if trigger == nil {
			http.Error(w, "outbound calling is not configured", http.StatusServiceUnavailable)
			return
		}
		var req struct {
			To   string `json:"to"`
			From string `json:"from,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		result, err := trigger.Call(req.To, req.From)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(result)
	})
}

// registerCallHistoryRoutes wires read-only call transcript routes backed by
// the trace store. When store is nil (tracing disabled) both routes report
// 503.
func registerCallHistoryRoutes(mux *http.ServeMux, store *trace.Store) {
	mux.HandleFunc("GET /api/calls", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "call tracing is not configured", http.StatusServiceUnavailable)
			return
		}
		limit := defaultCallHistoryLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		offset := 0
		if v := r.URL.Query().Get("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n >= 0 {
				offset = n
			}
		}
		calls, total, err := store.ListCalls(limit, offset)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"calls": calls, "total": total})
	})

	mux.HandleFunc("GET /api/calls/{id}", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "call tracing is not configured", http.StatusServiceUnavailable)
			return
		}
		id := r.PathValue("id")
		call, history, err := store.GetCall(id)
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"call": call, "history": history})
	})
}
