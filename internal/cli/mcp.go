package cli

import (
	"context"
	"os"

	"github.com/spf13/cobra"

	"github.com/grab/TalkToFigmaDesktop-sub000/internal/adapter"
	"github.com/grab/TalkToFigmaDesktop-sub000/internal/config"
	"github.com/grab/TalkToFigmaDesktop-sub000/internal/monitoring"
)

var flagBrokerURL string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run the MCP stdio adapter",
	Long: `Runs the process an MCP client launches. Tools and prompts are served
over stdio; tool calls are relayed to the broker over WebSocket. All logs go
to stderr because stdout carries MCP framing.`,
	RunE: runMCP,
}

func init() {
	mcpCmd.Flags().StringVar(&flagBrokerURL, "url", "", "broker WebSocket URL (default from BRIDGE_HOST/BRIDGE_PORT)")
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, _ []string) error {
	logger := monitoring.NewLogger(os.Stderr, os.Getenv("LOG_LEVEL"), "json")

	cfg, err := config.Load(&logger)
	if err != nil {
		return err
	}
	url := cfg.WebSocketURL()
	if flagBrokerURL != "" {
		url = flagBrokerURL
	}

	a := adapter.New(adapter.Config{
		BrokerURL:         url,
		Version:           version,
		ReconnectDelay:    cfg.ReconnectDelay,
		RequestTimeout:    cfg.RequestTimeout,
		ProgressExtension: cfg.ProgressExtension,
	}, logger)

	logger.Info().Str("url", url).Str("version", version).Msg("stdio adapter starting")
	return a.Run(context.Background())
}
