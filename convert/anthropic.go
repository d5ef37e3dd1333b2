package convert

import (
	"github.com/missdeer/agentbridge/message"
)

// ToAnthropicMessages projects canonical history into Anthropic Messages API
// entries. thoughtSignature is Gemini-only and is not copied. Messages left
// empty are skipped, and neighbours that then share a role are merged so the
// roles alternate.
func ToAnthropicMessages(msgs []message.Message) []map[string]any {
	type entry struct {
		role    string
		content []map[string]any
	}
	entries := make([]entry, 0, len(msgs))
	for _, m := range msgs {
		content := make([]map[string]any, 0, len(m.Content))
		for _, b := range m.Content {
			if block := anthropicBlock(b); block != nil {
				content = append(content, block)
			}
		}
		if len(content) == 0 {
			continue
		}

		role := string(m.Role)
		if n := len(entries); n > 0 && entries[n-1].role == role {
			entries[n-1].content = append(entries[n-1].content, content...)
			continue
		}
		entries = append(entries, entry{role: role, content: content})
	}

	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"role":    e.role,
			"content": e.content,
		})
	}
	return out
}

func anthropicBlock(b message.ContentBlock) map[string]any {
	switch b.Type {
	case message.BlockText:
		if b.Text == "" {
			return nil
		}
		return map[string]any{"type": "text", "text": b.Text}
	case message.BlockToolUse:
		return map[string]any{
			"type":  "tool_use",
			"id":    b.ID,
			"name":  b.Name,
			"input": cloneRaw(b.Input),
		}
	case message.BlockToolResult:
		return map[string]any{
			"type":        "tool_result",
			"tool_use_id": b.ToolUseID,
			"content":     b.Content,
		}
	case message.BlockImage:
		if b.Source == nil {
			return nil
		}
		return map[string]any{
			"type": "image",
			"source": map[string]any{
				"type":       "base64",
				"media_type": b.Source.MediaType,
				"data":       b.Source.Data,
			},
		}
	default:
		return nil
	}
}

func anthropicTools(tools []message.Tool) []map[string]any {
	out := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		tool := map[string]any{
			"name":         t.Name,
			"input_schema": cloneRaw(t.Schema()),
		}
		if t.Description != "" {
			tool["description"] = t.Description
		}
		out = append(out, tool)
	}
	return out
}
