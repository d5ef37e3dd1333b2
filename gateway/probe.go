package gateway

import (
	"context"

	"github.com/missdeer/agentbridge/config"
	"github.com/missdeer/agentbridge/convert"
	"github.com/missdeer/agentbridge/message"
)

const heartbeatMaxTokens = 10

// probe sends a one-word turn to the upstream through the normal request
// path. It is the heartbeat.Probe of the server.
func (s *Server) probe(ctx context.Context, upstream config.Upstream, model string) error {
	vendor := upstream.GetVendor()
	mapped := upstream.MapModel(model)
	body, err := convert.Project(vendor, convert.Request{
		Model: mapped,
		Messages: []message.Message{{
			Role:    message.RoleUser,
			Content: []message.ContentBlock{message.TextBlock("hi")},
		}},
		MaxTokens: heartbeatMaxTokens,
		Stream:    true,
	})
	if err != nil {
		return err
	}
	_, err = send(ctx, s.snapshot().client, upstream, vendor, mapped, body)
	return err
}
