package main

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"github.com/labyrinth/etl/internal/batch"
	"github.com/labyrinth/etl/internal/reference"
	"github.com/labyrinth/etl/internal/storage"
	"github.com/labyrinth/etl/internal/subject"
	"github.com/labyrinth/etl/internal/wos"
	"github.com/spf13/cobra"
)

// Flags for wos import.
var (
	importWorkers     int
	importCommitEvery int
	importCitations   bool
	importJSONL       string
	importDryRun      bool
)

// Flags for wos parse.
var parseSubject int

func init() {
	wosImportCmd.Flags().IntVar(&importWorkers, "workers", 0, "Files parsed in parallel (overrides workers)")
	wosImportCmd.Flags().IntVar(&importCommitEvery, "commit-every", 0, "Commit after this many files (overrides commit_every)")
	wosImportCmd.Flags().BoolVar(&importCitations, "citations", false, "Also store citation edges")
	wosImportCmd.Flags().StringVar(&importJSONL, "jsonl", "", "Append records to this JSONL file instead of SQLite")
	wosImportCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "Parse and count without storing")

	wosParseCmd.Flags().IntVar(&parseSubject, "subject", 0, "Subject id (default: parent directory name)")

	wosCmd.AddCommand(wosImportCmd)
	wosCmd.AddCommand(wosParseCmd)
	rootCmd.AddCommand(wosCmd)
}

var wosCmd = &cobra.Command{
	Use:   "wos",
	Short: "Web of Science tagged exports",
}

var wosImportCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Parse every export under a directory into the store",
	Long: `Parse every *.txt export under <dir> into the SQLite store.

Each file must sit in a directory named after its subject id, e.g.
  <dir>/12/savedrecs.txt
Records are kept when their abstract, keywords or title mention one of the
subject's query words (see --query-words).`,
	Args: cobra.ExactArgs(1),
	RunE: runWosImport,
}

var wosParseCmd = &cobra.Command{
	Use:   "parse <file>",
	Short: "Parse one export and print its records",
	Long: `Parse one export and print the accepted records.

Without --query-words configured every record with a DOI and an accepted
publication type is printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runWosParse,
}

// ImportResult is the response for the wos import command.
type ImportResult struct {
	Status   string          `json:"status"`
	Target   string          `json:"target"`
	Files    int             `json:"files"`
	Failed   int             `json:"failed"`
	Skipped  int             `json:"skipped"`
	Stats    wos.Stats       `json:"stats"`
	Edges    int             `json:"edges,omitempty"`
	Failures []ImportFailure `json:"failures,omitempty"`
	Elapsed  string          `json:"elapsed"`
}

// ImportFailure names one file that could not be fully parsed.
type ImportFailure struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

func runWosImport(cmd *cobra.Command, args []string) error {
	cfg := mustResolveConfig(cmd)
	terms := mustLoadSubjects(cfg)

	jobs, err := batch.Discover(args[0], ".txt")
	if err != nil {
		exitWithError(ExitDataError, "discovering exports: %v", err)
	}
	slog.Info("exports found", "files", len(jobs), "workers", cfg.Workers)

	var (
		sink   batch.Sink
		finish func() error
		target string
		edges  func() int
	)
	switch {
	case importDryRun:
		sink, target = &batch.Discard{}, "none"
	case importJSONL != "":
		w, err := storage.OpenJSONL(importJSONL)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		sink, finish, target = w, w.Close, importJSONL
	default:
		db := mustOpenDatabase(cfg.DBPath)
		w := db.NewWriter(storage.WriterOptions{
			CommitEvery: cfg.CommitEvery,
			Citations:   cfg.Citations,
		})
		finish = func() error {
			return errors.Join(w.Close(), db.Close())
		}
		sink, target, edges = w, cfg.DBPath, w.Edges
	}

	summary := batch.Run(cmd.Context(), jobs, batch.Options{
		Workers: cfg.Workers,
		Terms:   terms,
		Sink:    sink,
		Logger:  slog.Default(),
	})
	if finish != nil {
		if err := finish(); err != nil {
			exitWithError(ExitError, "finishing import: %v", err)
		}
	}

	result := ImportResult{
		Status:  "imported",
		Target:  target,
		Files:   summary.Files,
		Failed:  summary.Failed,
		Skipped: summary.Skipped,
		Stats:   summary.Stats,
		Elapsed: formatDuration(summary.Elapsed),
	}
	if edges != nil {
		result.Edges = edges()
	}
	if importDryRun {
		result.Status = "dry_run"
	}
	if summary.Skipped > 0 {
		result.Status = "interrupted"
	}
	for _, r := range summary.Failures() {
		result.Failures = append(result.Failures, ImportFailure{Path: r.Path, Error: r.Err.Error()})
	}

	if humanOutput {
		printImportHuman(result)
	} else {
		outputJSON(result)
	}

	if summary.Failed > 0 || summary.Skipped > 0 {
		os.Exit(ExitDataError)
	}
	return nil
}

func printImportHuman(r ImportResult) {
	printStatus(r.Failed == 0 && r.Skipped == 0,
		"Parsed %d files into %s in %s", r.Files-r.Skipped, r.Target, r.Elapsed)
	printField("Records kept", r.Stats.Emitted)
	printField("Entries seen", r.Stats.Records)
	printField("Dropped (no DOI)", r.Stats.NoDOI)
	printField("Dropped (excluded type)", r.Stats.ExcludedType)
	printField("Dropped (off subject)", r.Stats.OffSubject)
	printField("Unfinished entries", r.Stats.Unfinished)
	if r.Edges > 0 {
		printField("Citation edges", r.Edges)
	}
	if r.Skipped > 0 {
		printField("Not started", r.Skipped)
	}
	for _, f := range r.Failures {
		fmt.Printf("  %s %s\n", yellow.Render(f.Path), dim.Render(f.Error))
	}
}

// ParseResult is the response for the wos parse command.
type ParseResult struct {
	SubjectID int                `json:"drug_id"`
	Stats     wos.Stats          `json:"stats"`
	Records   []reference.Record `json:"records"`
}

func runWosParse(cmd *cobra.Command, args []string) error {
	path := args[0]
	cfg := mustResolveConfig(cmd)

	id := parseSubject
	if !cmd.Flags().Changed("subject") {
		var err error
		id, err = subject.IDFromDir(path)
		if err != nil {
			exitWithError(ExitDataError, "%v (pass --subject)", err)
		}
	}

	var terms wos.Matcher = wos.MatchAll{}
	if cfg.QueryWords != "" {
		terms = mustLoadSubjects(cfg)
	} else {
		slog.Debug("no query words configured, subject filter disabled")
	}

	result := ParseResult{SubjectID: id, Records: []reference.Record{}}
	collect := wos.SinkFunc(func(rec reference.Record) error {
		result.Records = append(result.Records, rec)
		return nil
	})

	stats, err := wos.ParseFile(path, id, terms, collect)
	result.Stats = stats
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			exitWithError(ExitError, "%v", err)
		}
		exitWithError(ExitDataError, "%v", err)
	}

	if humanOutput {
		printStatus(true, "%d of %d entries kept (subject %d)", stats.Emitted, stats.Records, id)
		for _, rec := range result.Records {
			fmt.Printf("%s  %s\n", bold.Render(rec.DOI), dim.Render(rec.PubDate))
			fmt.Printf("  %s\n", truncateString(rec.Title, ListTitleMaxLen))
		}
		return nil
	}

	outputJSON(result)
	return nil
}

// subjectLabel formats a subject id with its first term, if known.
func subjectLabel(terms *subject.Table, id int) string {
	if terms == nil {
		return strconv.Itoa(id)
	}
	if t := terms.Terms(id); len(t) > 0 {
		return fmt.Sprintf("%d (%s)", id, t[0])
	}
	return strconv.Itoa(id)
}
