package convert

import (
	"encoding/json"

	"github.com/missdeer/agentbridge/message"
)

// UnknownFunctionName is used for a functionResponse whose tool_use_id matches
// no call in the preceding assistant turn.
const UnknownFunctionName = "unknown"

type geminiContent struct {
	role  string
	parts []map[string]any
}

// ToGeminiContents projects canonical history into Gemini contents.
//
// functionResponse parts need the function name, which canonical tool_result
// blocks do not carry; it is resolved through an id->name map rebuilt at each
// assistant turn. Consecutive entries with the same role are merged because
// Gemini rejects them.
func ToGeminiContents(msgs []message.Message) []map[string]any {
	var (
		contents []geminiContent
		names    = make(map[string]string)
	)

	for _, m := range msgs {
		role := mapRoleToGemini(m.Role)
		if m.Role == message.RoleAssistant {
			names = make(map[string]string)
		}

		var parts []map[string]any
		for _, b := range m.Content {
			switch b.Type {
			case message.BlockText:
				if b.Text != "" {
					parts = append(parts, map[string]any{"text": b.Text})
				}
			case message.BlockImage:
				if b.Source != nil {
					parts = append(parts, map[string]any{
						"inlineData": map[string]any{
							"mimeType": b.Source.MediaType,
							"data":     b.Source.Data,
						},
					})
				}
			case message.BlockToolUse:
				names[b.ID] = b.Name
				part := map[string]any{
					"functionCall": map[string]any{
						"name": b.Name,
						"args": cloneRaw(b.Input),
					},
				}
				if b.ThoughtSignature != "" {
					part["thoughtSignature"] = b.ThoughtSignature
				}
				parts = append(parts, part)
			case message.BlockToolResult:
				name, ok := names[b.ToolUseID]
				if !ok {
					name = UnknownFunctionName
				}
				parts = append(parts, map[string]any{
					"functionResponse": map[string]any{
						"name":     name,
						"response": map[string]any{"content": b.Content},
					},
				})
			}
		}
		if len(parts) == 0 {
			continue
		}

		if n := len(contents); n > 0 && contents[n-1].role == role {
			contents[n-1].parts = append(contents[n-1].parts, parts...)
			continue
		}
		contents = append(contents, geminiContent{role: role, parts: parts})
	}

	out := make([]map[string]any, 0, len(contents))
	for _, c := range contents {
		out = append(out, map[string]any{"role": c.role, "parts": c.parts})
	}
	return out
}

func geminiTools(tools []message.Tool) []map[string]any {
	decls := make([]map[string]any, 0, len(tools))
	for _, t := range tools {
		decl := map[string]any{
			"name":       t.Name,
			"parameters": geminiSchema(t.Schema()),
		}
		if t.Description != "" {
			decl["description"] = t.Description
		}
		decls = append(decls, decl)
	}
	return []map[string]any{{"functionDeclarations": decls}}
}

// geminiUnsupportedSchemaKeys are JSON Schema keywords the Gemini function
// declaration parser rejects.
var geminiUnsupportedSchemaKeys = []string{"$schema", "$id", "additionalProperties", "$defs", "definitions"}

// geminiSchema returns a copy of schema without the keywords Gemini rejects.
func geminiSchema(schema json.RawMessage) any {
	var v any
	if err := json.Unmarshal(schema, &v); err != nil {
		return map[string]any{"type": "object"}
	}
	return stripSchemaKeys(v)
}

func stripSchemaKeys(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for _, k := range geminiUnsupportedSchemaKeys {
			delete(t, k)
		}
		for k, child := range t {
			t[k] = stripSchemaKeys(child)
		}
		return t
	case []any:
		for i, child := range t {
			t[i] = stripSchemaKeys(child)
		}
		return t
	default:
		return v
	}
}
