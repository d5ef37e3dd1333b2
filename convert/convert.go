// Package convert projects canonical history into vendor request payloads and
// normalizes vendor-format history back into canonical messages.
//
// Outbound projection uses an explicit field allowlist per vendor: only the
// fields named here are ever copied, so caller metadata (turnId, type and
// anything added later) never reaches a transport. Projection always copies;
// the returned values share no memory with the input messages.
package convert

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/missdeer/agentbridge/message"
)

// cloneRaw copies a JSON value so the projected payload never aliases stored history.
func cloneRaw(raw json.RawMessage) json.RawMessage {
	return json.RawMessage(bytes.Clone(message.ObjectOrEmpty(raw)))
}

// mapRoleToGemini converts a canonical role to a Gemini role.
func mapRoleToGemini(role message.Role) string {
	if role == message.RoleAssistant {
		return "model"
	}
	return "user"
}

// mapRoleFromGemini converts a Gemini role to a canonical role.
func mapRoleFromGemini(role string) message.Role {
	if role == "model" {
		return message.RoleAssistant
	}
	return message.RoleUser
}

// dataURL renders an inline image as a data: URL.
func dataURL(src *message.ImageSource) string {
	return fmt.Sprintf("data:%s;base64,%s", src.MediaType, src.Data)
}

// parseDataURL splits a base64 data: URL into media type and payload.
func parseDataURL(url string) (mediaType, data string, ok bool) {
	if !strings.HasPrefix(url, "data:") {
		return "", "", false
	}
	header, payload, found := strings.Cut(url, ",")
	if !found {
		return "", "", false
	}
	mediaType = strings.TrimPrefix(strings.Split(header, ";")[0], "data:")
	return mediaType, payload, true
}
