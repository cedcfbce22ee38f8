// Rfxcom is a command line tool for RFXCOM RFXtrx gateways.
//
// It decodes and encodes gateway frames, watches a live gateway or a capture
// file, and finds gateways and bridges on the local network.
//
// Usage:
//
//	rfxcom [command] [flags]
//
// See 'rfxcom --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/muurk/rfxcom/internal/config"
	"github.com/muurk/rfxcom/internal/logging"
	"github.com/muurk/rfxcom/internal/version"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// Global flags
var (
	logLevel   string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "rfxcom",
	Short: "RFXCOM gateway toolkit",
	Long: `A toolkit for RFXCOM RFXtrx 433MHz gateways.

Decodes and encodes gateway frames, monitors a live gateway or a capture
file, and discovers gateways and bridges advertised over mDNS.

Use 'rfxcom-bridge' to relay a gateway to WebSocket clients.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logging.Initialize(logLevel); err != nil {
			return err
		}
		if configPath != "" {
			return os.Setenv(config.ConfigPathEnvVar, configPath)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Sync()
	},
}

func init() {
	// Disable automatic completion command generation
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error); silent when unset")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default: $"+config.ConfigPathEnvVar+" or the user config directory)")

	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "rfxcom %s\n", version.Full())
	},
}
