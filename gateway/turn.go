package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/missdeer/agentbridge/cliemu"
	"github.com/missdeer/agentbridge/convert"
	"github.com/missdeer/agentbridge/message"
	"github.com/missdeer/agentbridge/stream"
)

// TurnRequest asks for one assistant turn from the named vendor.
type TurnRequest struct {
	Vendor      string            `json:"vendor"`
	Model       string            `json:"model"`
	System      string            `json:"system,omitempty"`
	Messages    []message.Message `json:"messages"`
	Tools       []message.Tool    `json:"tools,omitempty"`
	MaxTokens   int               `json:"max_tokens,omitempty"`
	Temperature *float64          `json:"temperature,omitempty"`
	// Stream selects an Anthropic SSE response instead of a JSON result.
	Stream bool `json:"stream,omitempty"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}

	var req TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	vendor, err := message.ParseVendor(req.Vendor)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "messages must not be empty")
		return
	}

	c := s.snapshot()
	if vendor == message.VendorCLI {
		s.turnCLI(w, r, c, req)
		return
	}
	s.turnHTTP(w, r, c, vendor, req)
}

func (s *Server) turnHTTP(w http.ResponseWriter, r *http.Request, c components, vendor message.Vendor, req TurnRequest) {
	if req.Model == "" {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "model is required")
		return
	}

	upstream := s.balancer.Next(vendor, req.Model)
	if upstream == nil {
		writeError(w, http.StatusServiceUnavailable, "overloaded_error",
			fmt.Sprintf("no available %s upstream for model %q", vendor, req.Model))
		return
	}
	model := upstream.MapModel(req.Model)

	body, err := convert.Project(vendor, convert.Request{
		Model:       model,
		System:      req.System,
		Messages:    req.Messages,
		Tools:       req.Tools,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      true,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	log.Printf("[TURN] vendor=%s upstream=%s model=%s->%s messages=%d tools=%d",
		vendor, upstream.Name, req.Model, model, len(req.Messages), len(req.Tools))

	raw, err := send(r.Context(), c.client, *upstream, vendor, model, body)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			log.Printf("[TURN] client went away: %v", err)
			return
		}
		var statusErr *UpstreamStatusError
		if !errors.As(err, &statusErr) || statusErr.StatusCode >= 500 || statusErr.StatusCode == http.StatusTooManyRequests {
			if s.balancer.RecordFailure(upstream.Name) {
				log.Printf("[FORWARD] upstream %s taken out of rotation", upstream.Name)
			}
		}
		log.Printf("[ERROR] upstream %s: %v", upstream.Name, err)
		writeError(w, http.StatusBadGateway, "api_error", err.Error())
		return
	}
	s.balancer.RecordSuccess(upstream.Name)

	parsed, err := stream.Parse(vendor, string(raw))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "api_error", err.Error())
		return
	}
	writeResult(w, parsed, model, req.Stream)
}

func (s *Server) turnCLI(w http.ResponseWriter, r *http.Request, c components, req TurnRequest) {
	creq := cliemu.Request{
		Model:     req.Model,
		System:    req.System,
		Messages:  req.Messages,
		Tools:     req.Tools,
		MaxTokens: req.MaxTokens,
	}

	if req.Stream {
		sw := &sseWriter{w: w}
		res, err := c.emulator.Stream(r.Context(), creq, sw)
		if err != nil {
			if sw.started {
				log.Printf("[CLI] stream interrupted: %v", err)
				return
			}
			writeCLIError(w, err)
			return
		}
		if res.Parsed == nil {
			log.Printf("[CLI] no content, exit code %d", res.ExitCode)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		log.Printf("[CLI] streamed %d events, exit code %d", len(res.Chunks), res.ExitCode)
		return
	}

	res, err := c.emulator.Run(r.Context(), creq)
	if err != nil {
		writeCLIError(w, err)
		return
	}
	if res.Parsed == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	writeJSON(w, http.StatusOK, res.Parsed)
}

func writeCLIError(w http.ResponseWriter, err error) {
	var (
		notFound *cliemu.CLINotFoundError
		procErr  *cliemu.ProcessError
	)
	switch {
	case errors.Is(err, context.Canceled):
		log.Printf("[CLI] client went away: %v", err)
	case errors.Is(err, cliemu.ErrTimeout):
		writeError(w, http.StatusGatewayTimeout, "timeout_error", err.Error())
	case errors.As(err, &notFound):
		log.Printf("[ERROR] %v", err)
		writeError(w, http.StatusBadGateway, "api_error", err.Error())
	case errors.As(err, &procErr):
		log.Printf("[ERROR] %v; stderr: %s", err, truncate(procErr.Stderr, 500))
		writeError(w, http.StatusBadGateway, "api_error", err.Error())
	default:
		log.Printf("[ERROR] cli: %v", err)
		writeError(w, http.StatusInternalServerError, "api_error", err.Error())
	}
}

// writeResult sends a parsed turn as JSON or as synthesized Anthropic SSE.
// A nil result has no content and is answered with 204.
func writeResult(w http.ResponseWriter, parsed *message.ParsedResult, model string, asSSE bool) {
	if parsed == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if !asSSE {
		writeJSON(w, http.StatusOK, parsed)
		return
	}

	sw := &sseWriter{w: w}
	for _, chunk := range cliemu.Synthesize(message.NewMessageID(), model, parsed.Message.Content, parsed.StopReason, cliemu.Usage{}) {
		if _, err := io.WriteString(sw, chunk); err != nil {
			log.Printf("[TURN] write sse: %v", err)
			return
		}
		sw.Flush()
	}
}
