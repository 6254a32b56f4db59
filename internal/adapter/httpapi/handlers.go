// Package httpapi exposes the AI orchestration contract over HTTP.
// The transport is a thin serialization layer; all semantics live in
// the service pipeline.
package httpapi

import (
	"net/http"

	"github.com/ConvoSphere/convosphere/internal/adapter/ws"
	"github.com/ConvoSphere/convosphere/internal/service"
)

// Handlers bundles the dependencies of the HTTP surface.
type Handlers struct {
	Processor   *service.ChatProcessor
	Hub         *ws.Hub
	MaxBodySize int64
}

// ChatCompletions handles POST /v1/chat/completions. Streaming
// requests are served as SSE; everything else as one JSON response.
func (h *Handlers) ChatCompletions(w http.ResponseWriter, r *http.Request) {
	in, ok := readJSON[service.Input](w, r, h.MaxBodySize)
	if !ok {
		return
	}

	if in.Stream {
		h.streamCompletion(w, r, in)
		return
	}

	resp, err := h.Processor.Complete(r.Context(), in)
	if err != nil {
		writeTypedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Embeddings handles POST /v1/embeddings.
func (h *Handlers) Embeddings(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[struct {
		Input string `json:"input"`
		Model string `json:"model"`
	}](w, r, h.MaxBodySize)
	if !ok {
		return
	}
	if req.Input == "" || req.Model == "" {
		writeError(w, http.StatusBadRequest, "input and model are required")
		return
	}

	vec, err := h.Processor.Embed(r.Context(), req.Input, req.Model)
	if err != nil {
		writeTypedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"model":     req.Model,
		"embedding": vec,
	})
}

// ProviderStatus handles GET /v1/providers/status.
func (h *Handlers) ProviderStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.Processor.ProviderStatus())
}

// CostSummary handles GET /v1/costs/summary?user=<id>.
func (h *Handlers) CostSummary(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user")
	if userID == "" {
		writeError(w, http.StatusBadRequest, "user query parameter is required")
		return
	}

	summary, err := h.Processor.CostSummary(r.Context(), userID)
	if err != nil {
		writeTypedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Healthz handles GET /healthz.
func (h *Handlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
