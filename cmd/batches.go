package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/velocityfibre/fieldsync/internal/model"
)

var batchesCmd = &cobra.Command{
	Use:   "batches",
	Short: "Inspect import batch history",
	Long:  "Commands for listing and viewing import batches.",
}

// -- batches list --

var batchesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List import batches",
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

		limit, _ := cmd.Flags().GetInt("limit")

		batches, err := st.ListBatches(ctx, limit)
		if err != nil {
			return eris.Wrap(err, "batches list")
		}

		if len(batches) == 0 {
			fmt.Fprintln(os.Stderr, "No batches found.")
			return nil
		}

		formatBatchList(os.Stdout, batches)
		return nil
	},
}

// -- batches show --

var batchesShowCmd = &cobra.Command{
	Use:   "show <batch-id>",
	Short: "Show full details of a batch",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		batch, err := st.GetBatch(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "batches show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(batch)
	},
}

func init() {
	batchesListCmd.Flags().Int("limit", 50, "max number of batches to display")

	batchesCmd.AddCommand(batchesListCmd)
	batchesCmd.AddCommand(batchesShowCmd)
	rootCmd.AddCommand(batchesCmd)
}

// formatBatchList writes a tabular list of batches to w.
func formatBatchList(out io.Writer, batches []model.Batch) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tFILE\tSTATUS\tTOTAL\tNEW\tUPDATED\tVERIFIED\tSTARTED")
	_, _ = fmt.Fprintln(w, "--\t----\t------\t-----\t---\t-------\t--------\t-------")

	for _, b := range batches {
		verified := ""
		if b.Status == model.BatchCompleted {
			verified = passFailCell(b.VerificationPassed)
		}

		file := b.FileName
		if len(file) > 30 {
			file = file[:27] + "..."
		}

		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%s\t%s\n",
			b.ID,
			file,
			b.Status,
			b.TotalRecords,
			b.NewRecords,
			b.DuplicateCount,
			verified,
			b.StartedAt.Format("2006-01-02 15:04"),
		)
	}
	_ = w.Flush()
}

func passFailCell(ok bool) string {
	if ok {
		return "yes"
	}
	return "NO"
}
