// Package cli builds the callsheet command tree.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

// NewRootCmd returns the callsheet root command. Without a subcommand it
// opens the console.
func NewRootCmd(version string) *cobra.Command {
	var dir string
	rootCmd := &cobra.Command{
		Use:     "callsheet",
		Short:   "Operator console for walking a customer worklist",
		Version: version,
		Long: `callsheet walks a worklist of customer records, checks each phone number
against the registration gateway, skips unregistered numbers on its own and
lets the operator mark the rest done or invalid.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConsole(cmd, dir)
		},
	}
	rootCmd.PersistentFlags().StringVar(&dir, "dir", "", "project directory holding .callsheet/ (default: current directory)")

	rootCmd.AddCommand(ConsoleCmd(&dir))
	rootCmd.AddCommand(InitCmd(&dir))
	rootCmd.AddCommand(CheckCmd(&dir))
	rootCmd.AddCommand(StatsCmd(&dir))
	rootCmd.AddCommand(ImportCmd(&dir))
	rootCmd.AddCommand(ServeStubCmd())
	return rootCmd
}

func projectDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}
