// Command kabomba-status runs the status page server and its maintenance
// commands.
//
// Usage:
//
//	kabomba-status serve              # start the API and the check scheduler
//	kabomba-status migrate up         # apply pending migrations
//	kabomba-status migrate down 1     # roll back one migration
//	kabomba-status probe <url>        # run one health probe and print the result
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fuomag9/kabomba-status/internal/config"
	"github.com/fuomag9/kabomba-status/internal/logger"
)

// Set at build time via -ldflags "-X main.version=..."
var (
	version = "dev"
	commit  = "none"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "kabomba-status",
	Short: "Self-hosted status page with scheduled HTTP health checks",
	Long: `kabomba-status probes registered HTTP services on their own intervals,
records every result, notifies webhooks and email on outages and recoveries,
and pushes results to connected clients in real time.

Configuration comes from environment variables, optionally layered on a YAML
file given with --config or CONFIG_FILE.`,
	SilenceUsage: true,
	// serve is the default action
	RunE: runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("kabomba-status %s (%s)\n", version, commit)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "path to a YAML config file")
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads the configuration and sets up the global logger
func loadConfig() (*config.Config, error) {
	if configFile != "" {
		if err := os.Setenv("CONFIG_FILE", configFile); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger.Setup(logger.Options{
		Level: cfg.Log.Level,
		Debug: cfg.Log.Level == "debug",
		File:  cfg.Log.File,
	})
	return cfg, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
