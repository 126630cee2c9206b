// Package main provides the lab CLI entry point.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/labyrinth/etl/internal/config"
	"github.com/labyrinth/etl/internal/storage"
	"github.com/labyrinth/etl/internal/subject"
	"github.com/spf13/cobra"
)

// Version is set at build time via ldflags
var Version = "dev"

// humanOutput controls whether to use human-readable output
var humanOutput bool

// verbose enables debug logging
var verbose bool

// Flags shared by every command that touches the store or the term table.
var (
	flagDBPath     string
	flagQueryWords string
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		// Print the error since we have SilenceErrors: true
		// This ensures Cobra errors (like missing required flags) are visible
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		stop()
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lab",
	Short: "ETL jobs for the literature and trial corpora",
	Long: `lab turns raw bibliographic and clinical-trial exports into tables.

Jobs:
  - Web of Science tagged exports into a SQLite store (info + citation edges)
  - Citation edge dumps into per-subject TSV edge lists
  - ClinicalTrials.gov XML records into CSV tables

All commands output JSON by default; pass --human for readable output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug messages")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "SQLite database path (overrides db_path)")
	rootCmd.PersistentFlags().StringVar(&flagQueryWords, "query-words", "", "Query-words file (overrides query_words)")
	rootCmd.Version = Version
}

// setupLogging installs the default slog logger on stderr.
func setupLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// applyFlagOverrides copies explicitly set flags over resolved config values.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath = config.ExpandPath(flagDBPath)
	}
	if flags.Changed("query-words") {
		cfg.QueryWords = config.ExpandPath(flagQueryWords)
	}
	if flags.Changed("workers") {
		cfg.Workers = importWorkers
	}
	if flags.Changed("commit-every") {
		cfg.CommitEvery = importCommitEvery
	}
	if flags.Changed("citations") {
		cfg.Citations = importCitations
	}
}

// mustResolveConfig resolves config for cmd, exits on error.
func mustResolveConfig(cmd *cobra.Command) config.Config {
	cfg, err := config.Resolve(config.DotEnvFile)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	applyFlagOverrides(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		exitWithError(ExitConfigError, "%v", err)
	}
	return cfg
}

// mustLoadSubjects loads the subject term table, exits on error.
func mustLoadSubjects(cfg config.Config) *subject.Table {
	path, err := cfg.RequireQueryWords()
	if err != nil {
		if err == config.ErrQueryWordsNotConfigured {
			fmt.Fprintln(os.Stderr, config.HelpfulConfigMessage())
			os.Exit(ExitConfigError)
		}
		exitWithError(ExitConfigError, "%v", err)
	}

	table, err := subject.Load(path)
	if err != nil {
		exitWithError(ExitDataError, "loading query words: %v", err)
	}
	slog.Debug("query words loaded", "path", path, "subjects", table.Len())
	return table
}

// mustOpenDatabase opens the SQLite database, exits on error.
// The caller is responsible for calling Close() on the returned DB.
func mustOpenDatabase(path string) *storage.DB {
	db, err := storage.OpenDB(path)
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}
	return db
}
