// Package edge reformats citation edge-list dumps into per-subject TSV files.
package edge

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labyrinth/etl/internal/textio"
)

// Edge is one citation from a paper to a referenced work.
type Edge struct {
	SubjectID int    `json:"drug_id"`
	From      string `json:"from"`
	To        string `json:"to"`
}

// Key returns the identity of an edge for duplicate detection.
func (e Edge) Key() Key {
	return Key{SubjectID: e.SubjectID, From: e.From, To: e.To}
}

// Key identifies an edge.
type Key struct {
	SubjectID int
	From      string
	To        string
}

// Line rejection reasons.
var (
	ErrHeader      = errors.New("header or empty row")
	ErrShortRow    = errors.New("fewer than 4 cells")
	ErrBadSubject  = errors.New("drug_id is not an integer")
	ErrShortFromTo = errors.New("identifier too short")
)

// Minimum lengths of the cleaned identifiers; the quoted target includes
// its two quote characters.
const (
	minToLen   = 13
	minFromLen = 11
)

// Clean strips the dump artefacts around a DOI cell: a leading bracket,
// "doi"/"d0i" prefixes, the trailing "');" statement terminator and a
// trailing backslash.
func Clean(cell string) string {
	cell = strings.TrimSpace(cell)
	cell = strings.TrimPrefix(cell, "[")
	if strings.HasPrefix(cell, "doi 1") {
		cell, _, _ = strings.Cut(cell, ",")
		cell = strings.ReplaceAll(cell, "doi ", "")
	}
	cell = strings.TrimPrefix(cell, "d0i")
	if strings.HasPrefix(cell, "doi") {
		cell = strings.ReplaceAll(cell, "doi", "")
	}
	cell = strings.TrimSuffix(cell, "');")
	cell = strings.TrimSuffix(cell, `\`)
	return strings.TrimSpace(cell)
}

// ParseLine converts one dump row ("row_id, drug_id, 'paper', 'ref');")
// into an Edge. The error names why a row was rejected.
func ParseLine(line string) (Edge, error) {
	cells := strings.Split(line, ",")
	first := strings.TrimSpace(cells[0])
	if first == "" || first == "row_id" {
		return Edge{}, ErrHeader
	}
	if len(cells) < 4 {
		return Edge{}, ErrShortRow
	}
	for i := range cells {
		cells[i] = strings.TrimSpace(cells[i])
	}

	id, err := strconv.Atoi(cells[1])
	if err != nil {
		return Edge{}, fmt.Errorf("%w: %q", ErrBadSubject, cells[1])
	}

	// The target cell opens with a quote that is dropped before cleaning,
	// then the cleaned value is re-quoted.
	to := `"` + Clean(dropFirstRune(cells[3])) + `"`
	if len(to) < minToLen {
		return Edge{}, ErrShortFromTo
	}
	from := Clean(strings.ReplaceAll(cells[2], "'", `"`))
	if len(from) < minFromLen {
		return Edge{}, ErrShortFromTo
	}

	return Edge{SubjectID: id, From: from, To: to}, nil
}

func dropFirstRune(s string) string {
	for i := range s {
		if i > 0 {
			return s[i:]
		}
	}
	return ""
}

// Stats counts what an export did with its input lines.
type Stats struct {
	Lines      int `json:"lines"`
	Written    int `json:"written"`
	Skipped    int `json:"skipped"`
	Malformed  int `json:"malformed"`
	Duplicates int `json:"duplicates"`
	Files      int `json:"files"`
}

// Exporter appends edges to <dir>/<drug_id>.tsv, one tab-separated row per
// edge. Files are opened in append mode and kept open until Close.
type Exporter struct {
	dir    string
	unique bool
	seen   map[Key]struct{}
	files  map[int]*os.File
	out    map[int]*csv.Writer
	stats  Stats
}

// NewExporter returns an Exporter writing under dir. With unique set, an
// edge already written by this Exporter is counted and skipped.
func NewExporter(dir string, unique bool) (*Exporter, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	return &Exporter{
		dir:    dir,
		unique: unique,
		seen:   make(map[Key]struct{}),
		files:  make(map[int]*os.File),
		out:    make(map[int]*csv.Writer),
	}, nil
}

// Write appends one edge to its subject's file.
func (x *Exporter) Write(e Edge) error {
	if x.unique {
		if _, ok := x.seen[e.Key()]; ok {
			x.stats.Duplicates++
			return nil
		}
		x.seen[e.Key()] = struct{}{}
	}

	w, err := x.writer(e.SubjectID)
	if err != nil {
		return err
	}
	if err := w.Write([]string{e.From, e.To}); err != nil {
		return fmt.Errorf("writing edge for subject %d: %w", e.SubjectID, err)
	}
	x.stats.Written++
	return nil
}

func (x *Exporter) writer(subjectID int) (*csv.Writer, error) {
	if w, ok := x.out[subjectID]; ok {
		return w, nil
	}

	path := filepath.Join(x.dir, strconv.Itoa(subjectID)+".tsv")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	w.Comma = '\t'
	w.UseCRLF = true

	x.files[subjectID] = f
	x.out[subjectID] = w
	x.stats.Files++
	return w, nil
}

// Stats returns the counts so far.
func (x *Exporter) Stats() Stats {
	return x.stats
}

// Close flushes and closes every open file.
func (x *Exporter) Close() error {
	var errs []error
	for id, w := range x.out {
		w.Flush()
		if err := w.Error(); err != nil {
			errs = append(errs, fmt.Errorf("flushing subject %d: %w", id, err))
		}
		if err := x.files[id].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	x.out = make(map[int]*csv.Writer)
	x.files = make(map[int]*os.File)
	return errors.Join(errs...)
}

// Export reads an edge dump from r and appends its usable rows under dir.
func Export(r io.Reader, dir string, unique bool) (Stats, error) {
	x, err := NewExporter(dir, unique)
	if err != nil {
		return Stats{}, err
	}

	scanner := textio.NewScanner(r)
	for scanner.Scan() {
		x.stats.Lines++
		e, err := ParseLine(scanner.Text())
		switch {
		case err == nil:
		case errors.Is(err, ErrBadSubject):
			x.stats.Malformed++
			continue
		default:
			x.stats.Skipped++
			continue
		}
		if err := x.Write(e); err != nil {
			x.Close()
			return x.stats, fmt.Errorf("line %d: %w", x.stats.Lines, err)
		}
	}
	if err := scanner.Err(); err != nil {
		x.Close()
		return x.stats, fmt.Errorf("reading after line %d: %w", x.stats.Lines, err)
	}

	return x.stats, x.Close()
}

// ExportFile is Export over the file at path.
func ExportFile(path, dir string, unique bool) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("opening edge dump: %w", err)
	}
	defer f.Close()
	return Export(f, dir, unique)
}
