package sse

import (
	"encoding/json"
	"fmt"
)

// Format renders one SSE record: "event: <name>\ndata: <json>\n\n".
func Format(eventType string, data any) string {
	payload, _ := json.Marshal(data)
	return fmt.Sprintf("event: %s\ndata: %s\n\n", eventType, payload)
}
