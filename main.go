// Command agentbridge runs a turn-level gateway in front of Anthropic,
// OpenAI-compatible and Gemini backends and a local coding CLI.
package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "agentbridge",
	Short: "Protocol adapter gateway for LLM vendors",
	Long: `agentbridge accepts conversation turns in one canonical format,
forwards them to an Anthropic, OpenAI-compatible or Gemini upstream (or a
local coding CLI), and returns the assembled assistant turn.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.yaml", "Path to configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
