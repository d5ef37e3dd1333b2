package message

import "encoding/json"

// Tool describes one entry of the tool catalog offered to the model.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

// Schema returns the tool's input schema, defaulting to an empty object schema.
func (t Tool) Schema() json.RawMessage {
	if len(t.InputSchema) == 0 || !json.Valid(t.InputSchema) {
		return json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return t.InputSchema
}
