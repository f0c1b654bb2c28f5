package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"appsweep/internal/engine"
)

var discoverDesc descriptorFlags

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Propose removable artifacts without removing anything",
	Long: `Resolve the application's trust anchors and list every artifact that would
be proposed for removal, with its provenance and confidence. Nothing is
modified.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, err := discoverDesc.resolve()
		if err != nil {
			return err
		}
		eng, err := newEngine()
		if err != nil {
			return err
		}

		res, err := eng.Discover(engine.DiscoverRequest{Descriptor: desc})
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(res)
		}

		PrintSection("Trust Anchors")
		if len(res.Anchors) == 0 {
			PrintEmptyState("No authoritative source resolved; heuristic scanning is disabled.")
		} else {
			rows := make([][]string, 0, len(res.Anchors))
			for _, a := range res.Anchors {
				rows = append(rows, []string{a.Path, string(a.Reason)})
			}
			PrintTable([]string{"PATH", "SOURCE"}, rows)
		}

		PrintSection("Artifacts")
		if len(res.Report.Artifacts) == 0 {
			PrintEmptyState("Nothing to propose.")
		} else {
			rows := make([][]string, 0, len(res.Report.Artifacts))
			for _, a := range res.Report.Artifacts {
				size := ""
				if a.SizeBytes > 0 {
					size = formatBytes(a.SizeBytes)
				}
				selected := ""
				if a.Selected {
					selected = "yes"
				}
				rows = append(rows, []string{string(a.Type), a.Path, string(a.Metadata.Reason), string(a.Metadata.Confidence), size, selected})
			}
			PrintTable([]string{"TYPE", "PATH", "REASON", "CONFIDENCE", "SIZE", "SELECTED"}, rows)
		}

		if len(res.Report.Details) > 0 {
			PrintSection("Notes")
			PrintList(res.Report.Details, 1)
		}

		fmt.Println()
		PrintInfo(fmt.Sprintf("Proposed %s.", PrintCount(len(res.Report.Artifacts), "artifact", "artifacts")))
		return nil
	},
}

func init() {
	discoverDesc.register(discoverCmd)
}
