package cli

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/kingrea/callsheet/internal/worklist"
)

// ImportCmd returns the import command
func ImportCmd(dir *string) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Load a CSV export of the sheet into the sqlite or postgres store",
		Long: `Load a CSV export (header row first) into the configured database store.
Rows keep their sheet row numbers, so importing the same export twice
updates rows in place.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(*dir)
			if err != nil {
				return err
			}
			header, cells, err := readCSV(args[0])
			if err != nil {
				return err
			}
			rows, err := worklist.RowsFromTable(header, cells, cfg.Project.Columns)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			store, err := openStore(ctx, cfg, nil)
			if err != nil {
				return err
			}
			defer store.Close()
			imp, ok := store.Store.(importer)
			if !ok {
				return fmt.Errorf("store driver %q does not support import", cfg.Project.Store.Driver)
			}
			n, err := imp.Import(ctx, rows)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s imported %d rows from %s\n", color.New(color.FgGreen).Sprint("✓"), n, args[0])
			return nil
		},
	}
}

func readCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil, fmt.Errorf("%s is empty", path)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	cells, err := r.ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}
	return header, cells, nil
}
