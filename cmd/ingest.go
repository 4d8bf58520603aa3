package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/velocityfibre/fieldsync/internal/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>",
	Short: "Import one field export file as a batch",
	Long:  "Parses a CSV or XLSX export, stages every record, claims first instances, validates business constraints, and writes a verification report.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		pipe := ingest.New(cfg.Ingest, st)
		report, err := pipe.Run(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "ingest")
		}

		fmt.Fprint(os.Stdout, ingest.FormatReport(report))

		if !report.Summary.VerificationPassed {
			zap.L().Warn("verification failed, review the report",
				zap.String("batch_id", report.BatchID))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
