package main

import (
	"github.com/labyrinth/etl/internal/config"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the resolved configuration",
	Long: `Show the configuration after applying, in order, the global config file,
.env, LAB_* environment variables and flags.

Config file keys:
  db_path       SQLite database path (default info.db)
  query_words   Query-words file, one subject per line
  commit_every  Files per transaction during import (default 20)
  workers       Files parsed in parallel (default: CPU count)
  citations     Store citation edges during import (default false)`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

// ConfigResponse is the response for the config command.
type ConfigResponse struct {
	ConfigFile string `json:"config_file"`
	config.Config
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg := mustResolveConfig(cmd)
	path := config.GlobalConfigPath()

	if humanOutput {
		printField("config file", path)
		printField("db_path", cfg.DBPath)
		printField("query_words", cfg.QueryWords)
		printField("commit_every", cfg.CommitEvery)
		printField("workers", cfg.Workers)
		printField("citations", cfg.Citations)
		return nil
	}
	outputJSON(ConfigResponse{ConfigFile: path, Config: cfg})
	return nil
}
