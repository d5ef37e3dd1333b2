package convert

import (
	"strings"

	"github.com/missdeer/agentbridge/message"
)

// ToOpenAIMessages projects canonical history into OpenAI chat messages.
// Assistant tool_use blocks become tool_calls; user tool_result blocks are
// split out into role "tool" messages placed ahead of the remaining user
// content, so they directly follow the assistant turn that issued the calls.
func ToOpenAIMessages(msgs []message.Message) []map[string]any {
	var out []map[string]any
	for _, m := range msgs {
		if m.Role == message.RoleAssistant {
			out = append(out, openAIAssistantMessage(m))
			continue
		}
		out = append(out, openAIUserMessages(m)...)
	}
	return out
}

func openAIAssistantMessage(m message.Message) map[string]any {
	var (
		text  strings.Builder
		calls []map[string]any
	)
	for _, b := range m.Content {
		switch b.Type {
		case message.BlockText:
			text.WriteString(b.Text)
		case message.BlockToolUse:
			calls = append(calls, map[string]any{
				"id":   b.ID,
				"type": "function",
				"function": map[string]any{
					"name":      b.Name,
					"arguments": string(cloneRaw(b.Input)),
				},
			})
		}
	}

	msg := map[string]any{"role": "assistant", "content": nil}
	if text.Len() > 0 {
		msg["content"] = text.String()
	}
	if len(calls) > 0 {
		msg["tool_calls"] = calls
	}
	return msg
}

func openAIUserMessages(m message.Message) []map[string]any {
	var (
		out      []map[string]any
		texts    []string
		parts    []map[string]any
		hasImage bool
	)
	for _, b := range m.Content {
		switch b.Type {
		case message.BlockToolResult:
			out = append(out, map[string]any{
				"role":         "tool",
				"tool_call_id": b.ToolUseID,
				"content":      b.Content,
			})
		case message.BlockText:
			if b.Text == "" {
				continue
			}
			texts = append(texts, b.Text)
			parts = append(parts, map[string]any{"type": "text", "text": b.Text})
		case message.BlockImage:
			if b.Source == nil {
				continue
			}
			hasImage = true
			parts = append(parts, map[string]any{
				"type":      "image_url",
				"image_url": map[string]any{"url": dataURL(b.Source)},
			})
		}
	}

	switch {
	case hasImage:
		out = append(out, map[string]any{"role": "user", "content": parts})
	case len(texts) > 0:
		out = append(out, map[string]any{"role": "user", "content": strings.Join(texts, "\n")})
	}
	return out
}

func openAITools(tools []message.Tool) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		fn := map[string]any{
			"name":       t.Name,
			"parameters": cloneRaw(t.Schema()),
		}
		if t.Description != "" {
			fn["description"] = t.Description
		}
		out = append(out, map[string]any{"type": "function", "function": fn})
	}
	return out
}
