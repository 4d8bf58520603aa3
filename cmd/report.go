package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/velocityfibre/fieldsync/internal/ingest"
)

var reportCmd = &cobra.Command{
	Use:   "report <batch-id>",
	Short: "Print the verification report for a batch",
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

		report, err := st.GetReport(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "report")
		}
		if report == nil {
			return eris.Errorf("no report for batch %s", args[0])
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		fmt.Fprint(os.Stdout, ingest.FormatReport(report))
		return nil
	},
}

func init() {
	reportCmd.Flags().Bool("json", false, "emit the structured report as JSON")
	rootCmd.AddCommand(reportCmd)
}
