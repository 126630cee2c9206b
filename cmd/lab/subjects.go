package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	subjectsCmd.AddCommand(subjectsListCmd)
	subjectsCmd.AddCommand(subjectsShowCmd)
	rootCmd.AddCommand(subjectsCmd)
}

var subjectsCmd = &cobra.Command{
	Use:   "subjects",
	Short: "Inspect the query-words subject table",
}

var subjectsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every subject with its terms",
	Args:  cobra.NoArgs,
	RunE:  runSubjectsList,
}

var subjectsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show the terms of one subject",
	Args:  cobra.ExactArgs(1),
	RunE:  runSubjectsShow,
}

// SubjectResult describes one subject.
type SubjectResult struct {
	ID    int      `json:"drug_id"`
	Terms []string `json:"terms"`
}

func runSubjectsList(cmd *cobra.Command, args []string) error {
	terms := mustLoadSubjects(mustResolveConfig(cmd))

	results := make([]SubjectResult, 0, terms.Len())
	for _, id := range terms.IDs() {
		results = append(results, SubjectResult{ID: id, Terms: terms.Terms(id)})
	}

	if !humanOutput {
		outputJSON(results)
		return nil
	}

	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{strconv.Itoa(r.ID), strings.Join(r.Terms, " | ")})
	}
	fmt.Println(renderTable([]string{"ID", "Terms"}, rows))
	return nil
}

func runSubjectsShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.Atoi(args[0])
	if err != nil {
		exitWithError(ExitError, "invalid subject id %q", args[0])
	}

	terms := mustLoadSubjects(mustResolveConfig(cmd))
	list := terms.Terms(id)
	if len(list) == 0 {
		exitWithError(ExitError, "subject %d has no terms", id)
	}

	if humanOutput {
		printField("Subject", id)
		for _, t := range list {
			fmt.Printf("  %s\n", t)
		}
		return nil
	}
	outputJSON(SubjectResult{ID: id, Terms: list})
	return nil
}
