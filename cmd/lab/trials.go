package main

import (
	"log/slog"

	"github.com/labyrinth/etl/internal/trials"
	"github.com/spf13/cobra"
)

func init() {
	trialsCmd.AddCommand(trialsParseCmd)
	rootCmd.AddCommand(trialsCmd)
}

var trialsCmd = &cobra.Command{
	Use:   "trials",
	Short: "ClinicalTrials.gov records",
}

var trialsParseCmd = &cobra.Command{
	Use:   "parse <xmldir> <outdir>",
	Short: "Extract study records into CSV tables",
	Long: `Parse every *.xml study record under <xmldir> and write
<outdir>/trials_info.csv and <outdir>/intervention.csv.

Studies without a brief title, phase or study type, and studies whose phase
is N/A, are skipped. Existing output files are overwritten.`,
	Args: cobra.ExactArgs(2),
	RunE: runTrialsParse,
}

// TrialsResult is the response for the trials parse command.
type TrialsResult struct {
	Status string `json:"status"`
	Dir    string `json:"dir"`
	trials.Stats
}

func runTrialsParse(cmd *cobra.Command, args []string) error {
	stats, err := trials.Run(cmd.Context(), args[0], args[1], slog.Default())
	if err != nil {
		exitWithError(ExitDataError, "parsing trials: %v", err)
	}

	if humanOutput {
		printStatus(stats.Failed == 0, "Wrote %d of %d studies to %s", stats.Written, stats.Files, args[1])
		printField("Interventions", stats.Interventions)
		printField("Skipped", stats.Rejected)
		printField("Unreadable", stats.Failed)
		return nil
	}
	outputJSON(TrialsResult{Status: "parsed", Dir: args[1], Stats: stats})
	return nil
}
