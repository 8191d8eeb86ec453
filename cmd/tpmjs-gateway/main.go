package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "tpmjs-gateway",
	Short: "MCP gateway for tpmjs tool collections",
	Long: "tpmjs-gateway exposes tool collections to MCP agents over HTTP, " +
		"routing tool calls to the registry executor or to the owner's bridge poller.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("tpmjs-gateway version %s\n", version))

	rootCmd.AddCommand(newServeCmd())
}
