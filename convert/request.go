package convert

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tidwall/sjson"

	"github.com/missdeer/agentbridge/message"
)

// DefaultMaxTokens is sent to Anthropic when the caller gives no ceiling;
// the Messages API requires max_tokens.
const DefaultMaxTokens = 4096

// ErrUnsupportedVendor is returned when a vendor has no HTTP request format.
var ErrUnsupportedVendor = errors.New("vendor has no request body format")

// Request is the vendor-neutral description of one outbound model call.
type Request struct {
	Model       string
	System      string
	Messages    []message.Message
	Tools       []message.Tool
	MaxTokens   int
	Temperature *float64
	Stream      bool
}

// Project renders req as the JSON request body expected by vendor.
func Project(vendor message.Vendor, req Request) ([]byte, error) {
	switch {
	case vendor == message.VendorAnthropic:
		return projectAnthropic(req)
	case vendor.OpenAICompatible():
		return projectOpenAI(req)
	case vendor == message.VendorGemini:
		return projectGemini(req)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedVendor, vendor)
	}
}

func projectAnthropic(req Request) ([]byte, error) {
	base := map[string]any{"messages": ToAnthropicMessages(req.Messages)}
	if len(req.Tools) > 0 {
		base["tools"] = anthropicTools(req.Tools)
	}
	body, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	sets := []fieldSet{
		{"model", req.Model, true},
		{"max_tokens", maxTokens, true},
		{"system", req.System, req.System != ""},
		{"stream", req.Stream, true},
	}
	if req.Temperature != nil {
		sets = append(sets, fieldSet{"temperature", *req.Temperature, true})
	}
	return applyFields(body, sets)
}

func projectOpenAI(req Request) ([]byte, error) {
	var messages []map[string]any
	if req.System != "" {
		messages = append(messages, map[string]any{"role": "system", "content": req.System})
	}
	messages = append(messages, ToOpenAIMessages(req.Messages)...)

	base := map[string]any{"messages": messages}
	if len(req.Tools) > 0 {
		base["tools"] = openAITools(req.Tools)
	}
	body, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}

	sets := []fieldSet{
		{"model", req.Model, true},
		{"max_tokens", req.MaxTokens, req.MaxTokens > 0},
		{"stream", req.Stream, true},
	}
	if req.Temperature != nil {
		sets = append(sets, fieldSet{"temperature", *req.Temperature, true})
	}
	return applyFields(body, sets)
}

// projectGemini builds a generateContent body. Model and streaming are part
// of the Gemini URL, not the body.
func projectGemini(req Request) ([]byte, error) {
	base := map[string]any{"contents": ToGeminiContents(req.Messages)}
	if req.System != "" {
		base["systemInstruction"] = map[string]any{
			"parts": []map[string]any{{"text": req.System}},
		}
	}
	if len(req.Tools) > 0 {
		base["tools"] = geminiTools(req.Tools)
	}
	body, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}

	var sets []fieldSet
	if req.MaxTokens > 0 {
		sets = append(sets, fieldSet{"generationConfig.maxOutputTokens", req.MaxTokens, true})
	}
	if req.Temperature != nil {
		sets = append(sets, fieldSet{"generationConfig.temperature", *req.Temperature, true})
	}
	return applyFields(body, sets)
}

type fieldSet struct {
	path  string
	value any
	when  bool
}

func applyFields(body []byte, sets []fieldSet) ([]byte, error) {
	var err error
	for _, s := range sets {
		if !s.when {
			continue
		}
		if body, err = sjson.SetBytes(body, s.path, s.value); err != nil {
			return nil, fmt.Errorf("set %s: %w", s.path, err)
		}
	}
	return body, nil
}
