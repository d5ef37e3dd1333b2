package cliemu

import (
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/missdeer/agentbridge/message"
	"github.com/missdeer/agentbridge/toolcall"
)

// Transcript flattens history into the Human/Assistant text fed to the CLI.
// Tool blocks are re-encoded as the markers the extractor reads back.
//
// Image blocks are decoded into files under imageDir and referenced by path.
// Those files are never removed here; the caller owns them.
func Transcript(msgs []message.Message, imageDir string) (string, error) {
	turns := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts := make([]string, 0, len(m.Content))
		for _, b := range m.Content {
			switch b.Type {
			case message.BlockText:
				if b.Text != "" {
					parts = append(parts, b.Text)
				}
			case message.BlockToolUse:
				parts = append(parts, toolcall.FormatToolCall(b.Name, b.Input))
			case message.BlockToolResult:
				parts = append(parts, toolcall.FormatToolResult(b.ToolUseID, b.Content))
			case message.BlockImage:
				if b.Source == nil {
					continue
				}
				path, err := writeImage(b.Source, imageDir)
				if err != nil {
					return "", err
				}
				parts = append(parts, fmt.Sprintf("[Image: %s]", path))
			}
		}
		if len(parts) == 0 {
			continue
		}

		speaker := "Human"
		if m.Role == message.RoleAssistant {
			speaker = "Assistant"
		}
		turns = append(turns, speaker+": "+strings.Join(parts, "\n"))
	}
	return strings.Join(turns, "\n\n"), nil
}

func writeImage(src *message.ImageSource, dir string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(src.Data)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	f, err := os.CreateTemp(dir, "agentbridge-image-*"+imageExt(src.MediaType))
	if err != nil {
		return "", fmt.Errorf("create image file: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return "", fmt.Errorf("write image file: %w", err)
	}
	return f.Name(), nil
}

func imageExt(mediaType string) string {
	switch mediaType {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	default:
		return ""
	}
}
