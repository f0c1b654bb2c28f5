package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"appsweep/internal/artifact"
	"appsweep/internal/engine"
	"appsweep/internal/removal"
	"appsweep/internal/report"
)

var (
	cleanDesc       descriptorFlags
	cleanDryRun     bool
	cleanForce      bool
	cleanHeuristics bool
	cleanSkipSweep  bool
	cleanNoReport   bool
	cleanWait       int
	cleanPasses     int
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Discover and remove every artifact the application left behind",
	Long: `Run the full cleanup workflow: resolve trust anchors, discover artifacts,
stop related processes, remove everything selected, and verify the result.

Heuristic candidates (token-matched directories and shortcuts) are reported
but not removed unless --include-heuristics is set. With --force, removals
that fail escalate through unlock, ownership, purge, and shell strategies,
finally deferring to a boot-time deletion.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, err := cleanDesc.resolve()
		if err != nil {
			return err
		}
		eng, err := newEngine()
		if err != nil {
			return err
		}

		startedAt := time.Now()
		res, err := eng.Run(context.Background(), engine.RunRequest{
			Descriptor:        desc,
			DryRun:            cleanDryRun,
			IncludeHeuristics: cleanHeuristics,
			Force:             cleanForce,
			SkipProcessSweep:  cleanSkipSweep,
			SweepMaxPasses:    cleanPasses,
			SweepWaitSeconds:  cleanWait,
		})
		if errors.Is(err, engine.ErrNothingDiscovered) {
			PrintEmptyState("No authoritative trace of the application was found; nothing to remove.")
			return nil
		}
		if err != nil {
			return err
		}

		reportPath := ""
		if !cleanDryRun && !cleanNoReport {
			reportPath, err = saveRunReport(desc.Name, startedAt, res)
			if err != nil {
				PrintWarning(fmt.Sprintf("failed to save run report: %v", err))
			}
		}

		if jsonOutput {
			return outputJSON(res)
		}

		printRunResult(res)
		if reportPath != "" {
			PrintLabelValue("Report", reportPath)
		}

		if res.Summary.FailureCount > 0 {
			return fmt.Errorf("%s could not be removed", PrintCount(res.Summary.FailureCount, "artifact", "artifacts"))
		}
		return nil
	},
}

func printRunResult(res *engine.RunResult) {
	if res.Sweep != nil && res.Sweep.Detected > 0 {
		PrintSection("Process Sweep")
		PrintLabelValue("Detected", fmt.Sprintf("%d", res.Sweep.Detected))
		PrintLabelValue("Stopped", fmt.Sprintf("%d", res.Sweep.Stopped))
		for _, p := range res.Sweep.Remaining {
			PrintWarning(fmt.Sprintf("still running: %s (pid %d)", p.Name, p.PID))
		}
	}
	if res.SweepErr != "" {
		PrintWarning(fmt.Sprintf("process sweep failed: %s", res.SweepErr))
	}

	if res.DryRun {
		PrintSection("Dry Run")
	} else {
		PrintSection("Removal")
	}
	if len(res.Artifacts) == 0 {
		PrintEmptyState("Nothing selected for removal.")
	} else {
		rows := make([][]string, 0, len(res.Artifacts))
		for _, a := range res.Artifacts {
			rows = append(rows, []string{string(a.Type), a.Path, artifactStatus(a), a.Strategy})
		}
		PrintTable([]string{"TYPE", "PATH", "STATUS", "STRATEGY"}, rows)
	}

	if res.ForceErr != "" {
		PrintWarning(fmt.Sprintf("force escalation skipped: %s", res.ForceErr))
	}
	for _, r := range res.Reversals {
		PrintWarning(fmt.Sprintf("reported removed but still present: %s", r.Path))
	}

	fmt.Println()
	verb := "Removed"
	if res.DryRun {
		verb = "Would remove"
	}
	PrintSuccess(fmt.Sprintf("%s %s, freeing %s", verb,
		PrintCount(res.Summary.RemovedCount, "artifact", "artifacts"),
		formatBytes(res.Summary.FreedBytes)))
}

// saveRunReport persists the run for later audit.
func saveRunReport(appName string, startedAt time.Time, res *engine.RunResult) (string, error) {
	store, err := report.NewFileStore(report.DefaultDir())
	if err != nil {
		return "", err
	}
	return store.Save(&report.Record{
		ID:        uuid.NewString(),
		App:       appName,
		StartedAt: startedAt,
		DryRun:    res.DryRun,
		Summary:   res.Summary,
		Artifacts: res.Artifacts,
		Results:   res.Results,
	})
}

func artifactStatus(a *artifact.Artifact) string {
	switch {
	case a.Removed && a.Strategy == removal.StrategyPendingDelete:
		return "deferred to reboot"
	case a.Removed:
		return "removed"
	case a.Err != "":
		return "failed"
	default:
		return "skipped"
	}
}

func init() {
	cleanDesc.register(cleanCmd)
	cleanCmd.Flags().BoolVar(&cleanDryRun, "dry-run", false, "Report what would be removed without acting")
	cleanCmd.Flags().BoolVarP(&cleanForce, "force", "f", false, "Escalate failed removals through the force ladder")
	cleanCmd.Flags().BoolVar(&cleanHeuristics, "include-heuristics", false, "Also remove token-matched heuristic candidates")
	cleanCmd.Flags().BoolVar(&cleanSkipSweep, "skip-process-sweep", false, "Do not stop related processes first")
	cleanCmd.Flags().BoolVar(&cleanNoReport, "no-report", false, "Do not persist a run report")
	cleanCmd.Flags().IntVar(&cleanWait, "wait", 2, "Seconds to wait between process sweep passes")
	cleanCmd.Flags().IntVar(&cleanPasses, "passes", 3, "Maximum process sweep passes")
}
