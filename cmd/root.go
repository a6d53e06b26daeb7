package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	// configPath replaces the layered configuration with a single file.
	configPath string
	// debug forces debug level logging.
	debug bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "rcarelay",
	Short: "Relay commands between a planner, control units and a scene",
	Long: `rcarelay accepts TCP connections from one planner and any number of
control units. Each connection announces itself with a one-byte handshake.
Planner commands ("name:payload", batched with '|') are delivered to the
named unit, "e" shuts every unit down, and unit commands are forwarded to
the scene as "{name : payload}".`,
	// SilenceUsage is set to true to prevent printing usage message on errors
	// that are not usage errors (e.g. a port that is already in use)
	SilenceUsage: true,
}

// SetVersion sets the version for the root command
func SetVersion(v string) {
	rootCmd.Version = v
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "rcarelay version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		// Cobra prints the error, we just exit non-zero
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Configuration file (default: ~/.config/rcarelay/config.yaml layered with ./.rcarelay/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newSimCmd())
	rootCmd.AddCommand(newTestCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
