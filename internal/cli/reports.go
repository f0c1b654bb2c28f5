package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"appsweep/internal/report"
)

var reportsCmd = &cobra.Command{
	Use:   "reports",
	Short: "List persisted cleanup run reports",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := report.NewFileStore(report.DefaultDir())
		if err != nil {
			return err
		}
		records, err := store.List()
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(records)
		}

		if len(records) == 0 {
			PrintEmptyState("No cleanup runs recorded yet.")
			return nil
		}

		rows := make([][]string, 0, len(records))
		for _, r := range records {
			rows = append(rows, []string{
				r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.App,
				fmt.Sprintf("%d removed, %d failed", r.Summary.RemovedCount, r.Summary.FailureCount),
				formatBytes(r.Summary.FreedBytes),
				r.ID,
			})
		}
		PrintTable([]string{"STARTED", "APP", "OUTCOME", "FREED", "RUN ID"}, rows)
		return nil
	},
}
