package gateway

import (
	"encoding/json"
	"log"
	"net/http"
)

type errorBody struct {
	Type  string `json:"type"`
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[ERROR] Failed to write response: %v", err)
	}
}

// writeError responds with an Anthropic-style error object.
func writeError(w http.ResponseWriter, status int, kind, msg string) {
	var body errorBody
	body.Type = "error"
	body.Error.Type = kind
	body.Error.Message = msg
	writeJSON(w, status, body)
}

// sseWriter sets the event-stream headers on first write and flushes after
// every write, so an error before any output can still be sent as JSON.
type sseWriter struct {
	w       http.ResponseWriter
	started bool
}

func (s *sseWriter) Write(p []byte) (int, error) {
	if !s.started {
		s.started = true
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		s.w.WriteHeader(http.StatusOK)
	}
	return s.w.Write(p)
}

func (s *sseWriter) Flush() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
