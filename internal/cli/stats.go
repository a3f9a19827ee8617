package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kingrea/callsheet/internal/worklist"
)

// StatsCmd returns the stats command
func StatsCmd(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Count worklist records by status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*dir)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store, err := openStore(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer store.Close()

			snap, err := store.FetchSnapshot(ctx)
			if err != nil {
				return err
			}
			printCounts(cmd, snap)
			return nil
		},
	}
}

func printCounts(cmd *cobra.Command, snap worklist.Snapshot) {
	counts := snap.Counts()
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-12s %d\n", "records", counts.Total())
	fmt.Fprintf(out, "%-12s %s\n", "unprocessed", color.New(color.FgYellow).Sprint(counts.Unprocessed))
	fmt.Fprintf(out, "%-12s %s\n", "done", color.New(color.FgGreen).Sprint(counts.Done))
	fmt.Fprintf(out, "%-12s %s\n", "invalid", color.New(color.FgRed).Sprint(counts.Invalid))
	if next, ok := snap.NextUnprocessed(worklist.FirstPosition); ok {
		fmt.Fprintf(out, "%-12s row %d · %s\n", "next", next.Position, next.Label())
	}
}
