package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the drivebridge application
var rootCmd = &cobra.Command{
	Use:   "drivebridge",
	Short: "Google Drive streaming proxy for browser clients",
	Long: `drivebridge exposes a Google Drive folder tree to browser clients:
range-aware video streaming, inline image viewing, file downloads,
on-demand ZIP archives of folders, and proxied resumable uploads.

The server authenticates against Google once through an operator-driven
OAuth flow and serves media to clients without handing them Drive
credentials.`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "drivebridge version %s\n" .Version}}`)

	// If no subcommand is provided, run the serve command by default
	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
