package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/crm-etl/internal/model"
	"github.com/sells-group/crm-etl/internal/pipeline"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Run a full load from the source directory",
	Long:  "Reads companies, contacts, opportunities and activities in referential order, validates every record, inserts new rows, skips already-loaded ids, and writes per-entity rejection reports.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		sourceDir, _ := cmd.Flags().GetString("source")
		errorDir, _ := cmd.Flags().GetString("errors")
		if sourceDir == "" {
			sourceDir = cfg.Source.Dir
		}
		if errorDir == "" {
			errorDir = cfg.Report.Dir
		}

		p := pipeline.New(st, pipeline.Options{
			SourceDir: sourceDir,
			ErrorDir:  errorDir,
			BatchSize: cfg.Source.BatchSize,
			FlushSize: cfg.Load.FlushSize,
		})

		run, err := p.Run(ctx)
		if run != nil {
			printRunSummary(run)
		}
		return err
	},
}

func printRunSummary(run *model.RunSummary) {
	fmt.Printf("run %s: %s\n", run.ID, run.Status)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENTITY\tPROCESSED\tLOADED\tSKIPPED\tREJECTED")
	for _, entity := range model.LoadOrder {
		c := run.Counts(entity)
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n",
			entity, c.Processed, c.Loaded, c.Skipped, c.Rejected)
	}
	w.Flush() //nolint:errcheck
}

func init() {
	loadCmd.Flags().String("source", "", "directory with source files (overrides config)")
	loadCmd.Flags().String("errors", "", "directory for rejection reports (overrides config)")
	rootCmd.AddCommand(loadCmd)
}
