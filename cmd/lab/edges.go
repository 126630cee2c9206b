package main

import (
	"github.com/labyrinth/etl/internal/edge"
	"github.com/spf13/cobra"
)

var edgesUnique bool

func init() {
	edgesExportCmd.Flags().BoolVar(&edgesUnique, "unique", false, "Skip edges already written in this run")

	edgesCmd.AddCommand(edgesExportCmd)
	rootCmd.AddCommand(edgesCmd)
}

var edgesCmd = &cobra.Command{
	Use:   "edges",
	Short: "Citation edge lists",
}

var edgesExportCmd = &cobra.Command{
	Use:   "export <edge.txt> <outdir>",
	Short: "Split an edge-table dump into per-subject TSV files",
	Long: `Split a comma-separated dump of the edge table into <outdir>/<drug_id>.tsv,
one "from<TAB>to" row per citation. Rows are appended, so rerunning adds
to existing files.`,
	Args: cobra.ExactArgs(2),
	RunE: runEdgesExport,
}

// EdgesResult is the response for the edges export command.
type EdgesResult struct {
	Status string `json:"status"`
	Dir    string `json:"dir"`
	edge.Stats
}

func runEdgesExport(cmd *cobra.Command, args []string) error {
	stats, err := edge.ExportFile(args[0], args[1], edgesUnique)
	if err != nil {
		exitWithError(ExitDataError, "exporting edges: %v", err)
	}

	if humanOutput {
		printStatus(true, "Wrote %d edges to %d files in %s", stats.Written, stats.Files, args[1])
		printField("Lines read", stats.Lines)
		printField("Skipped", stats.Skipped)
		printField("Malformed", stats.Malformed)
		if edgesUnique {
			printField("Duplicates", stats.Duplicates)
		}
		return nil
	}
	outputJSON(EdgesResult{Status: "exported", Dir: args[1], Stats: stats})
	return nil
}
