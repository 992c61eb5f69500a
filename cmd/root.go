// Package cmd implements the CLI surface (§9 ambient stack): a root
// cobra command wiring config resolution, a "serve" command that starts
// the full orchestration server, and operational subcommands (version,
// tools validation).
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/engageops/pkg/protocol"
)

// Version is set at build time via -ldflags
// "-X github.com/nextlevelbuilder/engageops/cmd.Version=v1.0.0".
var Version = "dev"

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "engageops",
	Short: "EngageOps — authorized security-assessment orchestration server",
	Long: "EngageOps runs external security tools against in-scope targets, " +
		"drives an LLM agent across chat and autonomous modes, and schedules " +
		"recurring or deferred tool runs, all behind scope and credential-leak " +
		"defenses.",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.json or $ENGAGE_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(toolsCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("engageops %s (protocol %d)\n", Version, protocol.ProtocolVersion)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("ENGAGE_CONFIG"); v != "" {
		return v
	}
	return "config.json"
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
