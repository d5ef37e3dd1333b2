package cliemu

import (
	"github.com/missdeer/agentbridge/message"
	"github.com/missdeer/agentbridge/sse"
)

// Synthesize renders one assistant message as the Anthropic Messages SSE
// event sequence. Each block is sent whole in a single delta.
func Synthesize(id, model string, blocks []message.ContentBlock, stop message.StopReason, usage Usage) []string {
	chunks := make([]string, 0, 3*len(blocks)+3)
	emit := func(event string, payload map[string]any) {
		payload["type"] = event
		chunks = append(chunks, sse.Format(event, payload))
	}

	emit("message_start", map[string]any{
		"message": map[string]any{
			"id":            id,
			"type":          "message",
			"role":          "assistant",
			"model":         model,
			"content":       []any{},
			"stop_reason":   nil,
			"stop_sequence": nil,
			"usage": map[string]any{
				"input_tokens":  usage.InputTokens,
				"output_tokens": 0,
			},
		},
	})

	for i, b := range blocks {
		var start, delta map[string]any
		switch b.Type {
		case message.BlockText:
			start = map[string]any{"type": "text", "text": ""}
			delta = map[string]any{"type": "text_delta", "text": b.Text}
		case message.BlockToolUse:
			start = map[string]any{"type": "tool_use", "id": b.ID, "name": b.Name, "input": map[string]any{}}
			delta = map[string]any{"type": "input_json_delta", "partial_json": string(message.ObjectOrEmpty(b.Input))}
		default:
			continue
		}
		emit("content_block_start", map[string]any{"index": i, "content_block": start})
		emit("content_block_delta", map[string]any{"index": i, "delta": delta})
		emit("content_block_stop", map[string]any{"index": i})
	}

	emit("message_delta", map[string]any{
		"delta": map[string]any{"stop_reason": stop, "stop_sequence": nil},
		"usage": map[string]any{"output_tokens": usage.OutputTokens},
	})
	emit("message_stop", map[string]any{})
	return chunks
}
