package cli

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kingrea/callsheet/internal/config"
)

// InitCmd returns the init command
func InitCmd(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create .callsheet/ and a default config",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := projectDir(*dir)
			if err != nil {
				return err
			}
			if err := config.InitDir(root); err != nil {
				return fmt.Errorf("initialize %s: %w", config.Dir, err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s %s\n", color.New(color.FgGreen).Sprint("✓"), filepath.Join(root, config.Dir, "config.yaml"))
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintln(out, "  callsheet import worklist.csv   # sqlite/postgres drivers")
			fmt.Fprintln(out, "  callsheet stats")
			fmt.Fprintln(out, "  callsheet")
			return nil
		},
	}
}
