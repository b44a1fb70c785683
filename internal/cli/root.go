// Package cli wires the bridge binaries together: `serve` runs the broker
// and the SSE migration sniffer, `mcp` runs the stdio adapter that MCP
// clients launch.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via
// -ldflags "-X github.com/grab/TalkToFigmaDesktop-sub000/internal/cli.version=...".
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "figma-bridge",
	Short: "Local bridge between AI assistants and the Figma desktop plugin",
	Long: `figma-bridge relays Model Context Protocol tool calls to a Figma plugin.

The broker (figma-bridge serve) accepts WebSocket connections on loopback
and pairs AI controllers with plugin executors through named channels. The
adapter (figma-bridge mcp) is what an MCP client launches; it speaks MCP on
stdio and forwards tool calls to the broker.`,
}

// Execute runs the CLI.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
