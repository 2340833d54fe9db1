package commands

import (
	"funnel-mcp/internal/config"
	"funnel-mcp/internal/eventlog"
	"funnel-mcp/internal/logging"
	"funnel-mcp/internal/mcp"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	// Version, Commit, and BuildDate are set at build time via ldflags.
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"

	verbose bool
	cfg     *config.AppConfig

	store *eventlog.EventStore
)

var rootCmd = &cobra.Command{
	Use:   "funnel-mcp",
	Short: "funnel-mcp is a funnel conversion analysis MCP server",
	Long: `An MCP server that computes funnel conversion analysis over actor event logs:
per-step counts, conversion-time statistics and breakdown partitioning under
ordered, strict or unordered step matching.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logging.Init(verbose)

		// Load configuration
		var err error
		cfg, err = config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}

		store = eventlog.NewEventStore()

		log.Info().
			Str("version", Version).
			Str("commit", Commit).
			Str("buildDate", BuildDate).
			Msg("funnel-mcp starting")
	},
	Run: func(cmd *cobra.Command, args []string) {
		log.Info().Msg("MCP Server starting Stdio loop")
		server := mcp.NewServer(cfg, store)
		if err := server.Serve(); err != nil {
			log.Fatal().Err(err).Msg("Stdio loop failed")
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
}
