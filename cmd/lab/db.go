package main

import (
	"fmt"
	"strconv"

	"github.com/labyrinth/etl/internal/reference"
	"github.com/labyrinth/etl/internal/storage"
	"github.com/labyrinth/etl/internal/subject"
	"github.com/spf13/cobra"
)

var (
	dedupeDryRun bool
	rebuildFrom  string
	listSubject  int
	listLimit    int
)

func init() {
	dbDedupeCmd.Flags().BoolVar(&dedupeDryRun, "dry-run", false, "Count duplicates without deleting")
	dbRebuildCmd.Flags().StringVar(&rebuildFrom, "from", "", "JSONL dump to load (required)")
	dbRebuildCmd.MarkFlagRequired("from")
	dbListCmd.Flags().IntVar(&listSubject, "subject", 0, "Only records of this subject id")
	dbListCmd.Flags().IntVarP(&listLimit, "limit", "n", DefaultListLimit, "Maximum records (0 for all)")

	dbCmd.AddCommand(dbStatsCmd)
	dbCmd.AddCommand(dbDedupeCmd)
	dbCmd.AddCommand(dbRebuildCmd)
	dbCmd.AddCommand(dbListCmd)
	rootCmd.AddCommand(dbCmd)
}

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Inspect and maintain the SQLite store",
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show record and edge counts",
	Args:  cobra.NoArgs,
	RunE:  runDBStats,
}

var dbDedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "Remove repeated rows",
	Long: `Remove repeated rows, keeping the first row per (drug_id, doi) in info
and per (drug_id, paper, ref) in edge.

Imports never deduplicate, so run this after importing overlapping exports.`,
	Args: cobra.NoArgs,
	RunE: runDBDedupe,
}

var dbRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Reload the store from a JSONL dump",
	Long: `Clear the info and edge tables and reload them from a JSONL dump
written by 'lab wos import --jsonl'. Edges are rebuilt from each record's
references.`,
	Args: cobra.NoArgs,
	RunE: runDBRebuild,
}

var dbListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored records",
	Args:  cobra.NoArgs,
	RunE:  runDBList,
}

// StatsResult is the response for the db stats command.
type StatsResult struct {
	Path          string                 `json:"path"`
	SchemaVersion uint                   `json:"schema_version"`
	Records       int                    `json:"records"`
	Edges         int                    `json:"edges"`
	Subjects      []storage.SubjectCount `json:"subjects"`
}

func runDBStats(cmd *cobra.Command, args []string) error {
	cfg := mustResolveConfig(cmd)
	db := mustOpenDatabase(cfg.DBPath)
	defer db.Close()

	result := StatsResult{Path: cfg.DBPath, SchemaVersion: db.SchemaVersion()}
	var err error
	if result.Records, err = db.CountRecords(); err != nil {
		exitWithError(ExitError, "counting records: %v", err)
	}
	if result.Edges, err = db.CountEdges(); err != nil {
		exitWithError(ExitError, "counting edges: %v", err)
	}
	if result.Subjects, err = db.CountBySubject(); err != nil {
		exitWithError(ExitError, "%v", err)
	}
	if result.Subjects == nil {
		result.Subjects = []storage.SubjectCount{}
	}

	if !humanOutput {
		outputJSON(result)
		return nil
	}

	// Term names are a nicety; stats work without a query-words file.
	var terms *subject.Table
	if cfg.QueryWords != "" {
		terms, _ = subject.Load(cfg.QueryWords)
	}

	printField("Database", result.Path)
	printField("Schema version", result.SchemaVersion)
	printField("Records", result.Records)
	printField("Citation edges", result.Edges)
	if len(result.Subjects) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(result.Subjects))
	for _, s := range result.Subjects {
		rows = append(rows, []string{subjectLabel(terms, s.SubjectID), strconv.Itoa(s.Records)})
	}
	fmt.Println(renderTable([]string{"Subject", "Records"}, rows))
	return nil
}

// DedupeResult is the response for the db dedupe command.
type DedupeResult struct {
	Status  string `json:"status"`
	Records int    `json:"records"`
	Edges   int    `json:"edges"`
}

func runDBDedupe(cmd *cobra.Command, args []string) error {
	cfg := mustResolveConfig(cmd)
	db := mustOpenDatabase(cfg.DBPath)
	defer db.Close()

	var res storage.DedupeResult
	var err error
	status := "deduplicated"
	if dedupeDryRun {
		res, err = db.CountDuplicates()
		status = "dry_run"
	} else {
		res, err = db.Dedupe()
	}
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		verb := "Removed"
		if dedupeDryRun {
			verb = "Would remove"
		}
		printStatus(true, "%s %d duplicate records and %d duplicate edges", verb, res.Records, res.Edges)
		return nil
	}
	outputJSON(DedupeResult{Status: status, Records: res.Records, Edges: res.Edges})
	return nil
}

// RebuildResult is the response for the db rebuild command.
type RebuildResult struct {
	Status  string `json:"status"`
	Records int    `json:"records"`
	Edges   int    `json:"edges"`
}

func runDBRebuild(cmd *cobra.Command, args []string) error {
	cfg := mustResolveConfig(cmd)
	db := mustOpenDatabase(cfg.DBPath)
	defer db.Close()

	records, edges, err := db.RebuildFromJSONL(rebuildFrom)
	if err != nil {
		exitWithError(ExitDataError, "rebuilding database: %v", err)
	}

	if humanOutput {
		printStatus(true, "Rebuilt %s with %d records and %d edges", cfg.DBPath, records, edges)
		return nil
	}
	outputJSON(RebuildResult{Status: "rebuilt", Records: records, Edges: edges})
	return nil
}

func runDBList(cmd *cobra.Command, args []string) error {
	cfg := mustResolveConfig(cmd)
	db := mustOpenDatabase(cfg.DBPath)
	defer db.Close()

	recs, err := db.ListRecords(listSubject, listLimit)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	if recs == nil {
		recs = []reference.Record{}
	}

	if !humanOutput {
		outputJSON(recs)
		return nil
	}

	if len(recs) == 0 {
		fmt.Println("No records.")
		return nil
	}
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		rows = append(rows, []string{
			strconv.Itoa(r.SubjectID),
			r.DOI,
			r.PubDate,
			truncateString(r.Title, ListTitleMaxLen),
		})
	}
	fmt.Println(renderTable([]string{"Subject", "DOI", "Published", "Title"}, rows))
	return nil
}
