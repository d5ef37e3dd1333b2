package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/missdeer/agentbridge/convert"
	"github.com/missdeer/agentbridge/message"
)

type normalizeRequest struct {
	Vendor   string          `json:"vendor"`
	Messages json.RawMessage `json:"messages"`
}

type normalizeResponse struct {
	Messages []message.Message `json:"messages"`
}

// handleNormalize converts vendor-format history into canonical messages.
func (s *Server) handleNormalize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}

	var req normalizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	vendor, err := message.ParseVendor(req.Vendor)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", err.Error())
		return
	}

	msgs, err := convert.Normalize(vendor, req.Messages)
	if err != nil {
		status := http.StatusBadRequest
		if !errors.Is(err, convert.ErrNotArray) && !errors.Is(err, convert.ErrUnsupportedVendor) {
			status = http.StatusInternalServerError
		}
		writeError(w, status, "invalid_request_error", err.Error())
		return
	}
	if msgs == nil {
		msgs = []message.Message{}
	}
	writeJSON(w, http.StatusOK, normalizeResponse{Messages: msgs})
}

type budgetResponse struct {
	USD             float64 `json:"usd"`
	Model           string  `json:"model,omitempty"`
	PricePerMillion float64 `json:"price_per_million"`
	Ceiling         float64 `json:"ceiling"`
}

// handleBudget translates ?max_tokens= (and optional &model=) into a USD ceiling.
func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "invalid_request_error", "method not allowed")
		return
	}

	q := r.URL.Query()
	maxTokens, err := strconv.Atoi(q.Get("max_tokens"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_error", "max_tokens must be an integer")
		return
	}
	model := q.Get("model")

	tr := s.snapshot().budget
	writeJSON(w, http.StatusOK, budgetResponse{
		USD:             tr.Budget(maxTokens, model),
		Model:           model,
		PricePerMillion: tr.Price(model),
		Ceiling:         tr.Ceiling(),
	})
}
