package message

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// IDGenerator hands out sequential ids for one request or one conversion.
// It is not safe for concurrent use; each request owns its own generator.
type IDGenerator struct {
	prefix string
	n      int
}

func NewIDGenerator(prefix string) *IDGenerator {
	return &IDGenerator{prefix: prefix}
}

// Next returns prefix_1, prefix_2, ...
func (g *IDGenerator) Next() string {
	g.n++
	return fmt.Sprintf("%s_%d", g.prefix, g.n)
}

// NewToolUseID returns a collision-resistant tool_use id.
func NewToolUseID() string {
	return "toolu_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

// NewMessageID returns an Anthropic-style message id.
func NewMessageID() string {
	return "msg_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}
