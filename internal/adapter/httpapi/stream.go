package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/ConvoSphere/convosphere/internal/service"
)

// streamCompletion serves one streaming completion as SSE. Each delta
// is one `data:` event; the terminal event carries the finalized
// response, followed by [DONE].
func (h *Handlers) streamCompletion(w http.ResponseWriter, r *http.Request, in service.Input) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	chunks, err := h.Processor.CompleteStream(r.Context(), in)
	if err != nil {
		writeTypedError(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for chunk := range chunks {
		var payload any = chunk
		if chunk.Err != nil {
			payload = map[string]string{"error": chunk.Err.Error()}
		}
		data, err := json.Marshal(payload)
		if err != nil {
			slog.Error("sse marshal failed", "error", err)
			break
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	fmt.Fprint(w, "data: [DONE]\n\n")
	flusher.Flush()
}
