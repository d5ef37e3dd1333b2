package stream

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/missdeer/agentbridge/message"
	"github.com/missdeer/agentbridge/sse"
)

// GeminiCallIDPrefix prefixes the per-parse ids given to Gemini function calls,
// which carry no id of their own.
const GeminiCallIDPrefix = "gemini_call"

// ParseGemini assembles a Gemini streamGenerateContent response. Both the SSE
// form (alt=sse) and the plain JSON array form are accepted. The single text
// block always precedes the tool_use blocks.
func ParseGemini(raw string) *message.ParsedResult {
	var (
		text         strings.Builder
		calls        []message.ContentBlock
		finishReason string
		ids          = message.NewIDGenerator(GeminiCallIDPrefix)
	)

	handle := func(root gjson.Result) {
		// Gemini CLI / Code Assist wrap the payload under "response".
		if resp := root.Get("response"); resp.IsObject() {
			root = resp
		}
		candidate := root.Get("candidates.0")
		if !candidate.IsObject() {
			return
		}
		for _, part := range candidate.Get("content.parts").Array() {
			if part.Get("thought").Bool() {
				continue
			}
			if t := part.Get("text"); t.Type == gjson.String {
				text.WriteString(t.String())
				continue
			}
			fc := part.Get("functionCall")
			if !fc.IsObject() || fc.Get("name").String() == "" {
				continue
			}
			block := message.ToolUseBlock(ids.Next(), fc.Get("name").String(), json.RawMessage(fc.Get("args").Raw))
			block.ThoughtSignature = part.Get("thoughtSignature").String()
			calls = append(calls, block)
		}
		if fr := candidate.Get("finishReason").String(); fr != "" {
			finishReason = fr
		}
	}

	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") && gjson.Valid(trimmed) {
		for _, item := range gjson.Parse(trimmed).Array() {
			handle(item)
		}
	} else {
		for _, ev := range sse.Events(raw) {
			data := strings.TrimSpace(ev.Data)
			if data == "" || data == "[DONE]" || !gjson.Valid(data) {
				continue
			}
			handle(gjson.Parse(data))
		}
	}

	content := append([]message.ContentBlock{message.TextBlock(text.String())}, calls...)
	return finish(content, MapGeminiFinishReason(finishReason, len(calls) > 0))
}
