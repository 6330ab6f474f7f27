// Package admin exposes HTTP handlers for persona and knowledge-document
// management, backed by the kb package.
package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/hubenschmidt/voicebridge/internal/kb"
)

// Handlers wires admin HTTP routes to a knowledge base.
type Handlers struct {
	kb     *kb.KB
	logger *slog.Logger
}

// New creates admin Handlers backed by store.
func New(store *kb.KB, logger *slog.Logger) *Handlers {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handlers{kb: store, logger: logger}
}

// Register wires every admin route onto mux using Go 1.22+ method patterns.
func (h *Handlers) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/admin/persona", h.getPersona)
	mux.HandleFunc("PUT /api/admin/persona", h.putPersona)
	mux.HandleFunc("GET /api/admin/documents", h.listDocuments)
	mux.HandleFunc("POST /api/admin/documents", h.createDocument)
	mux.HandleFunc("GET /api/admin/documents/{id}", h.getDocument)
	mux.HandleFunc("DELETE /api/admin/documents/{id}", h.deleteDocument)
}

func (h *Handlers) getPersona(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	content, err := h.kb.LoadPersona(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]string{"name": name, "content": content})
}

type putPersonaRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func (h *Handlers) putPersona(w http.ResponseWriter, r *http.Request) {
	var req putPersonaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}
	p, err := h.kb.UpdatePersona(req.Name, req.Content)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, p)
}

func (h *Handlers) listDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.kb.ListDocuments()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, map[string]any{"documents": docs})
}

type createDocumentRequest struct {
	Filename string `json:"filename"`
	Mimetype string `json:"mimetype"`
	Content  string `json:"content"`
}

func (h *Handlers) createDocument(w http.ResponseWriter, r *http.Request) {
	var req createDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	if req.Content == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}
	doc, err := h.kb.UploadDocument(req.Filename, req.Mimetype, req.Content)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusCreated)
	writeJSON(w, doc)
}

func (h *Handlers) getDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	doc, err := h.kb.GetDocument(id)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	writeJSON(w, doc)
}

func (h *Handlers) deleteDocument(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := h.kb.DeleteDocument(id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
