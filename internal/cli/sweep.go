package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"appsweep/internal/engine"
)

var (
	sweepDesc   descriptorFlags
	sweepDryRun bool
	sweepWait   int
	sweepPasses int
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Stop running processes related to the application",
	Long: `Detect processes related to the application and terminate them, walking an
escalation ladder from a polite window close to a management-layer kill.
Survivors are re-detected and retried between passes.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, err := sweepDesc.resolve()
		if err != nil {
			return err
		}
		eng, err := newEngine()
		if err != nil {
			return err
		}

		res, err := eng.Sweep(context.Background(), engine.SweepRequest{
			Descriptor:  desc,
			DryRun:      sweepDryRun,
			MaxPasses:   sweepPasses,
			WaitSeconds: sweepWait,
		})
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(res)
		}

		if res.Detected == 0 {
			PrintEmptyState("No related processes are running.")
			return nil
		}
		if sweepDryRun {
			PrintInfo(fmt.Sprintf("Would stop %s.", PrintCount(res.Detected, "process", "processes")))
			return nil
		}

		PrintSuccess(fmt.Sprintf("Stopped %d of %s in %d attempts",
			res.Stopped, PrintCount(res.Detected, "process", "processes"), res.Attempts))
		for _, p := range res.Remaining {
			PrintWarning(fmt.Sprintf("still running: %s (pid %d)", p.Name, p.PID))
		}
		if len(res.Remaining) > 0 {
			return fmt.Errorf("%s survived every pass", PrintCount(len(res.Remaining), "process", "processes"))
		}
		return nil
	},
}

func init() {
	sweepDesc.register(sweepCmd)
	sweepCmd.Flags().BoolVar(&sweepDryRun, "dry-run", false, "Report what would be stopped without acting")
	sweepCmd.Flags().IntVar(&sweepWait, "wait", 2, "Seconds to wait between passes")
	sweepCmd.Flags().IntVar(&sweepPasses, "passes", 3, "Maximum detection/termination passes")
}
