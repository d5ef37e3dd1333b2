package toolcall

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/missdeer/agentbridge/message"
)

// FormatToolCall encodes a call in the marker form Extract understands.
func FormatToolCall(name string, input json.RawMessage) string {
	body, err := json.Marshal(struct {
		Name      string          `json:"name"`
		Arguments json.RawMessage `json:"arguments"`
	}{name, message.ObjectOrEmpty(input)})
	if err != nil {
		body = []byte(fmt.Sprintf(`{"name":%q,"arguments":{}}`, name))
	}
	return callOpen + string(body) + callClose
}

// FormatToolResult encodes a tool result for a text transcript.
func FormatToolResult(toolUseID, content string) string {
	return fmt.Sprintf("<tool_result tool_use_id=%q>%s</tool_result>", toolUseID, content)
}

// Catalog renders a compact, line-per-tool description of tools: the name,
// description, required parameters and the allowed values of enum
// parameters.
func Catalog(tools []message.Tool) string {
	var sb strings.Builder
	for i, t := range tools {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString("- ")
		sb.WriteString(t.Name)
		if t.Description != "" {
			sb.WriteString(": ")
			sb.WriteString(oneLine(t.Description))
		}

		var schema jsonschema.Schema
		if err := json.Unmarshal(t.Schema(), &schema); err != nil {
			continue
		}
		if len(schema.Required) > 0 {
			sb.WriteString(" | required: ")
			sb.WriteString(strings.Join(schema.Required, ", "))
		}
		if enums := enumParameters(&schema); len(enums) > 0 {
			sb.WriteString(" | enums: ")
			sb.WriteString(strings.Join(enums, "; "))
		}
	}
	return sb.String()
}

func enumParameters(schema *jsonschema.Schema) []string {
	if schema.Properties == nil {
		return nil
	}
	var out []string
	for pair := schema.Properties.Oldest(); pair != nil; pair = pair.Next() {
		prop := pair.Value
		if prop == nil || len(prop.Enum) == 0 {
			continue
		}
		values := make([]string, 0, len(prop.Enum))
		for _, v := range prop.Enum {
			values = append(values, fmt.Sprint(v))
		}
		out = append(out, pair.Key+"="+strings.Join(values, "|"))
	}
	return out
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
