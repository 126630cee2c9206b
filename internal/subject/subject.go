// Package subject maps search-query terms to the subject tags that input
// files were exported under.
//
// The query-words file holds one subject per line; line N is subject N. A line
// is a search query whose alternatives are joined by " OR " and may be
// double-quoted, e.g.
//
//	"ASPIRIN" OR "ACETYLSALICYLIC ACID"
package subject

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/labyrinth/etl/internal/textio"
)

// ErrNotInteger is returned when a directory name is not a subject id.
var ErrNotInteger = errors.New("directory name is not an integer subject id")

// Table maps terms to subject ids. Terms are stored upper-cased.
type Table struct {
	byTerm map[string]int
	byID   map[int][]string
}

// Load reads a query-words file.
func Load(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening query words: %w", err)
	}
	defer f.Close()

	t, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return t, nil
}

// Parse builds a table from query-words content.
// A term listed on several lines belongs to the last of them.
func Parse(r io.Reader) (*Table, error) {
	byTerm := make(map[string]int)
	var order []string

	scanner := textio.NewScanner(r)
	lineID := 0
	for scanner.Scan() {
		lineID++
		for _, term := range splitQuery(scanner.Text()) {
			if _, seen := byTerm[term]; !seen {
				order = append(order, term)
			}
			byTerm[term] = lineID
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	byID := make(map[int][]string)
	for _, term := range order {
		id := byTerm[term]
		byID[id] = append(byID[id], term)
	}
	return &Table{byTerm: byTerm, byID: byID}, nil
}

// splitQuery turns one query line into its upper-cased alternatives.
func splitQuery(line string) []string {
	line = strings.TrimSpace(line)
	line = strings.ReplaceAll(line, " OR ", "|")
	line = strings.ReplaceAll(line, `"`, "")

	var terms []string
	for _, term := range strings.Split(line, "|") {
		if term == "" {
			continue
		}
		terms = append(terms, strings.ToUpper(term))
	}
	return terms
}

// Len returns the number of distinct terms.
func (t *Table) Len() int {
	return len(t.byTerm)
}

// IDs returns the subject ids that own at least one term, ascending.
func (t *Table) IDs() []int {
	ids := make([]int, 0, len(t.byID))
	for id := range t.byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// Terms returns the terms bound to a subject id in file order.
func (t *Table) Terms(id int) []string {
	return t.byID[id]
}

// Lookup returns the subject id a term is bound to.
func (t *Table) Lookup(term string) (int, bool) {
	id, ok := t.byTerm[strings.ToUpper(term)]
	return id, ok
}

// Match reports whether any term of the subject occurs in text.
// text must already be upper-cased. An unknown id never matches.
func (t *Table) Match(id int, text string) bool {
	for _, term := range t.byID[id] {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

// IDFromDir derives the subject id of a file from its parent directory name.
func IDFromDir(path string) (int, error) {
	dir := filepath.Base(filepath.Dir(path))
	id, err := strconv.Atoi(strings.TrimSpace(dir))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrNotInteger, dir)
	}
	return id, nil
}
