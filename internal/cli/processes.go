package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"appsweep/internal/engine"
)

var processesDesc descriptorFlags

var processesCmd = &cobra.Command{
	Use:   "processes",
	Short: "List running processes related to the application",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		desc, err := processesDesc.resolve()
		if err != nil {
			return err
		}
		eng, err := newEngine()
		if err != nil {
			return err
		}

		res, err := eng.Processes(engine.ProcessesRequest{Descriptor: desc})
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(res)
		}

		if len(res.Processes) == 0 {
			PrintEmptyState("No related processes are running.")
			return nil
		}

		rows := make([][]string, 0, len(res.Processes))
		for _, p := range res.Processes {
			rows = append(rows, []string{strconv.Itoa(p.PID), p.Name, p.Path})
		}
		PrintTable([]string{"PID", "NAME", "PATH"}, rows)
		fmt.Println()
		PrintInfo(fmt.Sprintf("Found %s.", PrintCount(len(res.Processes), "related process", "related processes")))
		return nil
	},
}

func init() {
	processesDesc.register(processesCmd)
}
