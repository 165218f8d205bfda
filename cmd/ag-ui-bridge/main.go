// Command ag-ui-bridge serves the AG-UI protocol bridge over HTTP/SSE,
// backed by the Anthropic reference runner.
//
// # Configuration
//
// A YAML config file (--config) provides the base settings; environment
// variables override it:
//
//	BRIDGE_ADDR             - HTTP listen address (default: ":8080")
//	BRIDGE_APP_NAME         - static app name (default: agent name)
//	BRIDGE_AGENT_NAME       - agent name (default: "ag-ui-agent")
//	BRIDGE_INSTRUCTION      - base system instruction (optional)
//	ANTHROPIC_API_KEY       - API key for the Anthropic runner (required)
//	ANTHROPIC_MODEL         - Claude model id (default: "claude-sonnet-4-5")
//	ANTHROPIC_MAX_TOKENS    - per-turn completion cap (default: 4096)
//	MONGO_URL               - MongoDB URI for durable sessions (optional;
//	                          in-memory sessions when unset)
//	MONGO_DATABASE          - database name (default: "agui")
//	REDIS_URL               - Redis address for the cross-process sweep
//	                          lock (optional)
//	SESSION_TIMEOUT         - idle session TTL (default: "20m")
//	CLEANUP_INTERVAL        - expiry sweep period (default: "5m")
//	MAX_SESSIONS_PER_USER   - per-user session quota (default: 0, unlimited)
//	EXECUTION_TIMEOUT       - stale execution threshold (default: "10m")
//	MAX_CONCURRENT          - concurrent execution cap (default: 10)
//
// # Example
//
//	ANTHROPIC_API_KEY=sk-... ./ag-ui-bridge serve
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time via
// -ldflags "-X main.version=v1.0.0".
var version = "dev"

var cfgFile string

func main() {
	root := &cobra.Command{
		Use:          "ag-ui-bridge",
		Short:        "AG-UI protocol bridge server",
		Long:         "ag-ui-bridge streams AG-UI events for conversational runs executed against an agent runtime.",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, optional)")
	root.AddCommand(serveCmd(), versionCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("ag-ui-bridge %s\n", version)
		},
	}
}
