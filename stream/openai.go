package stream

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/missdeer/agentbridge/message"
	"github.com/missdeer/agentbridge/sse"
)

type openAIToolCall struct {
	id   string
	name strings.Builder
	args strings.Builder
}

// ParseOpenAI assembles an OpenAI chat-completions stream. Ollama and the
// Gemini OpenAI-compatibility endpoint use the same format.
func ParseOpenAI(raw string) *message.ParsedResult {
	var (
		text         strings.Builder
		calls        = make(map[int64]*openAIToolCall)
		finishReason string
	)

	for _, ev := range sse.Events(raw) {
		data := strings.TrimSpace(ev.Data)
		if data == "[DONE]" {
			break
		}
		if data == "" || !gjson.Valid(data) {
			continue
		}

		choice := gjson.Get(data, "choices.0")
		if !choice.IsObject() {
			continue
		}
		delta := choice.Get("delta")

		if content := delta.Get("content"); content.Type == gjson.String {
			text.WriteString(content.String())
		}

		for pos, tc := range delta.Get("tool_calls").Array() {
			idx := int64(pos)
			if i := tc.Get("index"); i.Exists() {
				idx = i.Int()
			}
			call, ok := calls[idx]
			if !ok {
				call = &openAIToolCall{}
				calls[idx] = call
			}
			if id := tc.Get("id").String(); id != "" && call.id == "" {
				call.id = id
			}
			call.name.WriteString(tc.Get("function.name").String())
			call.args.WriteString(tc.Get("function.arguments").String())
		}

		if fr := choice.Get("finish_reason"); fr.Type == gjson.String && fr.String() != "" {
			finishReason = fr.String()
		}
	}

	content := []message.ContentBlock{message.TextBlock(text.String())}

	indexes := make([]int64, 0, len(calls))
	for idx := range calls {
		indexes = append(indexes, idx)
	}
	sort.Slice(indexes, func(i, j int) bool { return indexes[i] < indexes[j] })

	ids := message.NewIDGenerator("call")
	for _, idx := range indexes {
		call := calls[idx]
		if call.name.Len() == 0 {
			continue
		}
		id := call.id
		if id == "" {
			id = ids.Next()
		}
		content = append(content, message.ToolUseBlock(id, call.name.String(), json.RawMessage(call.args.String())))
	}

	return finish(content, MapOpenAIFinishReason(finishReason, len(content) > 1))
}
