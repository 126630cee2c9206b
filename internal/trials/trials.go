// Package trials extracts study metadata from ClinicalTrials.gov XML records
// into CSV tables.
package trials

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/labyrinth/etl/internal/textio"
)

// Output file names written by Run.
const (
	InfoFile         = "trials_info.csv"
	InterventionFile = "intervention.csv"
)

// InfoHeader is the header row of InfoFile.
var InfoHeader = []string{
	"NCT_ID", "brief_title", "official_title", "summary", "description",
	"phase", "study_type", "study_allocation", "study_masking", "study_enrollment",
	"post_date", "start_date", "completion_date", "result_reference", "result_doi",
}

// InterventionHeader is the header row of InterventionFile.
var InterventionHeader = []string{"NCT_ID", "intervention"}

// Rejection reasons. A rejected study is skipped, not a failure.
var (
	ErrMissingField = errors.New("required element missing")
	ErrNoPhase      = errors.New("phase is N/A")
)

// Trial is the flattened projection of one study record.
type Trial struct {
	NCTID           string   `json:"nct_id"`
	BriefTitle      string   `json:"brief_title"`
	OfficialTitle   string   `json:"official_title"`
	Summary         string   `json:"summary"`
	Description     string   `json:"description"`
	Phase           string   `json:"phase"`
	StudyType       string   `json:"study_type"`
	Allocation      string   `json:"study_allocation"`
	Masking         string   `json:"study_masking"`
	Enrollment      string   `json:"study_enrollment"`
	PostDate        string   `json:"post_date"`
	StartDate       string   `json:"start_date"`
	CompletionDate  string   `json:"completion_date"`
	ResultReference string   `json:"result_reference"`
	ResultDOI       string   `json:"result_doi"`
	Interventions   []string `json:"interventions,omitempty"`
}

// InfoRow returns the InfoFile row for t.
func (t Trial) InfoRow() []string {
	return []string{
		t.NCTID, t.BriefTitle, t.OfficialTitle, t.Summary, t.Description,
		t.Phase, t.StudyType, t.Allocation, t.Masking, t.Enrollment,
		t.PostDate, t.StartDate, t.CompletionDate, t.ResultReference, t.ResultDOI,
	}
}

// stripBreaks removes carriage returns and line feeds.
func stripBreaks(s string) string {
	return strings.NewReplacer("\r", "", "\n", "").Replace(s)
}

// collapse removes line breaks, then squeezes remaining whitespace runs to a
// single space.
func collapse(s string) string {
	return strings.Join(strings.Fields(stripBreaks(s)), " ")
}

// doiOf returns the text after the last "doi: " marker, or the whole
// reference when there is none.
func doiOf(reference string) string {
	if i := strings.LastIndex(reference, "doi: "); i >= 0 {
		return reference[i+len("doi: "):]
	}
	return reference
}

// Parse reads one study record. nctID names the study in the output rows.
func Parse(r io.Reader, nctID string) (Trial, error) {
	doc, err := goquery.NewDocumentFromReader(textio.NewReader(r))
	if err != nil {
		return Trial{}, fmt.Errorf("parsing %s: %w", nctID, err)
	}

	first := func(name string) (string, bool) {
		sel := doc.Find(name).First()
		if sel.Length() == 0 {
			return "", false
		}
		return sel.Text(), true
	}
	optional := func(name string, norm func(string) string) string {
		text, _ := first(name)
		return norm(text)
	}

	t := Trial{NCTID: nctID}

	title, ok := first("brief_title")
	if !ok {
		return Trial{}, fmt.Errorf("%s: %w: brief_title", nctID, ErrMissingField)
	}
	t.BriefTitle = stripBreaks(title)
	t.OfficialTitle = optional("official_title", stripBreaks)
	t.Summary = optional("brief_summary", collapse)
	t.Description = optional("detailed_description", collapse)

	phase, ok := first("phase")
	if !ok {
		return Trial{}, fmt.Errorf("%s: %w: phase", nctID, ErrMissingField)
	}
	t.Phase = collapse(phase)
	if t.Phase == "N/A" {
		return Trial{}, fmt.Errorf("%s: %w", nctID, ErrNoPhase)
	}

	studyType, ok := first("study_type")
	if !ok {
		return Trial{}, fmt.Errorf("%s: %w: study_type", nctID, ErrMissingField)
	}
	t.StudyType = collapse(studyType)

	t.Allocation = optional("allocation", collapse)
	t.Masking = optional("masking", collapse)
	t.Enrollment = optional("enrollment", collapse)
	t.ResultReference = optional("results_reference", collapse)
	t.ResultDOI = doiOf(t.ResultReference)
	t.PostDate = optional("study_first_posted", stripBreaks)
	t.StartDate = optional("start_date", stripBreaks)
	t.CompletionDate = optional("completion_date", stripBreaks)

	doc.Find("intervention_name").Each(func(_ int, s *goquery.Selection) {
		t.Interventions = append(t.Interventions, collapse(s.Text()))
	})

	return t, nil
}

// ParseFile parses the record at path; the NCT id is the file stem.
func ParseFile(path string) (Trial, error) {
	f, err := os.Open(path)
	if err != nil {
		return Trial{}, fmt.Errorf("opening trial file: %w", err)
	}
	defer f.Close()

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return Parse(f, stem)
}

// Rejected reports whether err only means the study does not qualify.
func Rejected(err error) bool {
	return errors.Is(err, ErrMissingField) || errors.Is(err, ErrNoPhase)
}

// Writer writes trials to the two output tables.
type Writer struct {
	infoFile *os.File
	itvFile  *os.File
	info     *csv.Writer
	itv      *csv.Writer
}

// Create truncates or creates both output files under dir and writes their
// headers.
func Create(dir string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	infoFile, err := os.Create(filepath.Join(dir, InfoFile))
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", InfoFile, err)
	}
	itvFile, err := os.Create(filepath.Join(dir, InterventionFile))
	if err != nil {
		infoFile.Close()
		return nil, fmt.Errorf("creating %s: %w", InterventionFile, err)
	}

	w := &Writer{
		infoFile: infoFile,
		itvFile:  itvFile,
		info:     csv.NewWriter(infoFile),
		itv:      csv.NewWriter(itvFile),
	}
	w.info.UseCRLF = true
	w.itv.UseCRLF = true

	if err := w.info.Write(InfoHeader); err != nil {
		w.Close()
		return nil, err
	}
	if err := w.itv.Write(InterventionHeader); err != nil {
		w.Close()
		return nil, err
	}
	return w, nil
}

// Write appends one info row and one intervention row per intervention.
func (w *Writer) Write(t Trial) error {
	if err := w.info.Write(t.InfoRow()); err != nil {
		return fmt.Errorf("writing %s: %w", t.NCTID, err)
	}
	for _, name := range t.Interventions {
		if err := w.itv.Write([]string{t.NCTID, name}); err != nil {
			return fmt.Errorf("writing interventions of %s: %w", t.NCTID, err)
		}
	}
	return nil
}

// Close flushes and closes both files.
func (w *Writer) Close() error {
	w.info.Flush()
	w.itv.Flush()
	return errors.Join(
		w.info.Error(),
		w.itv.Error(),
		w.infoFile.Close(),
		w.itvFile.Close(),
	)
}

// Discover returns every *.xml file under root, sorted.
func Discover(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() && strings.EqualFold(filepath.Ext(path), ".xml") {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Stats summarizes a Run.
type Stats struct {
	Files         int `json:"files"`
	Written       int `json:"written"`
	Rejected      int `json:"rejected"`
	Failed        int `json:"failed"`
	Interventions int `json:"interventions"`
}

// Run parses every record under xmlDir and writes the tables under outDir.
// Unreadable records are logged and counted; only output errors abort.
func Run(ctx context.Context, xmlDir, outDir string, logger *slog.Logger) (Stats, error) {
	var stats Stats
	if logger == nil {
		logger = slog.Default()
	}

	paths, err := Discover(xmlDir)
	if err != nil {
		return stats, err
	}

	w, err := Create(outDir)
	if err != nil {
		return stats, err
	}

	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			w.Close()
			return stats, err
		}
		stats.Files++

		t, err := ParseFile(path)
		switch {
		case err == nil:
		case Rejected(err):
			stats.Rejected++
			logger.Debug("trial skipped", "path", path, "reason", err)
			continue
		default:
			stats.Failed++
			logger.Warn("trial failed", "path", path, "error", err)
			continue
		}

		if err := w.Write(t); err != nil {
			w.Close()
			return stats, err
		}
		stats.Written++
		stats.Interventions += len(t.Interventions)
	}

	return stats, w.Close()
}
