package main

import (
	"testing"
	"time"

	"github.com/labyrinth/etl/internal/config"
	"github.com/spf13/cobra"
)

func TestApplyFlagOverrides(t *testing.T) {
	origDB, origWorkers, origCitations := flagDBPath, importWorkers, importCitations
	defer func() {
		flagDBPath, importWorkers, importCitations = origDB, origWorkers, origCitations
	}()

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().StringVar(&flagDBPath, "db", "", "")
	cmd.Flags().IntVar(&importWorkers, "workers", 0, "")
	cmd.Flags().BoolVar(&importCitations, "citations", false, "")
	if err := cmd.ParseFlags([]string{"--db", "/tmp/other.db", "--citations"}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	cfg := config.Config{DBPath: "info.db", Workers: 4, CommitEvery: 20}
	applyFlagOverrides(cmd, &cfg)

	want := config.Config{DBPath: "/tmp/other.db", Workers: 4, CommitEvery: 20, Citations: true}
	if cfg != want {
		t.Errorf("applyFlagOverrides() = %+v, want %+v", cfg, want)
	}
}

func TestCommandTree(t *testing.T) {
	paths := [][]string{
		{"wos", "import"},
		{"wos", "parse"},
		{"db", "stats"},
		{"db", "dedupe"},
		{"db", "rebuild"},
		{"db", "list"},
		{"subjects", "list"},
		{"subjects", "show"},
		{"edges", "export"},
		{"trials", "parse"},
		{"config"},
	}

	for _, path := range paths {
		cmd, rest, err := rootCmd.Find(path)
		if err != nil {
			t.Errorf("Find(%v) error = %v", path, err)
			continue
		}
		if len(rest) != 0 || cmd.Name() != path[len(path)-1] {
			t.Errorf("Find(%v) = %q with leftover %v", path, cmd.Name(), rest)
		}
		if cmd.RunE == nil {
			t.Errorf("%v has no RunE", path)
		}
	}
}

func TestTruncateString(t *testing.T) {
	tests := []struct {
		s      string
		maxLen int
		want   string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"this is too long", 10, "this is..."},
		{"äöüäöüäöüäöü", 8, "äöüäö..."},
	}
	for _, tt := range tests {
		if got := truncateString(tt.s, tt.maxLen); got != tt.want {
			t.Errorf("truncateString(%q, %d) = %q, want %q", tt.s, tt.maxLen, got, tt.want)
		}
	}
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{1500 * time.Millisecond, "1.5s"},
		{59 * time.Second, "59.0s"},
		{2*time.Minute + 5*time.Second, "2m 5s"},
	}
	for _, tt := range tests {
		if got := formatDuration(tt.d); got != tt.want {
			t.Errorf("formatDuration(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}

func TestSubjectLabel(t *testing.T) {
	if got := subjectLabel(nil, 3); got != "3" {
		t.Errorf("subjectLabel(nil, 3) = %q", got)
	}
}
