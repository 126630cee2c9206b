package wos

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/labyrinth/etl/internal/reference"
	"github.com/labyrinth/etl/internal/textio"
)

// termMatcher binds upper-case terms to subject ids.
type termMatcher map[int][]string

func (m termMatcher) Match(id int, text string) bool {
	for _, term := range m[id] {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

var aspirin = termMatcher{1: {"ASPIRIN"}}

// collector is a Sink that keeps every record it receives.
type collector struct {
	records []reference.Record
}

func (c *collector) Put(rec reference.Record) error {
	c.records = append(c.records, rec)
	return nil
}

const twoRecordExport = `FN Clarivate Analytics Web of Science
VR 1.0
PT J
AU Smith, J
TI Aspirin and platelet
   Aggregation in Mice
SO NATURE
DT Article
DE Aspirin; Platelets
ID ASPIRIN; THROMBOSIS;
   INFLAMMATION
AB Aspirin reduces aggregation.
RP Smith, J (corresponding author), Harvard Univ, Boston, MA 02115 USA.; Li, X (corresponding author), Peking Univ, Beijing, Peoples R China.
CR Doe J, 2001, LANCET, V1, P1, DOI 10.1016/S0140-6736(01)00001-1
   Roe K, 2005, BLOOD, V2, P3
   Poe Q, 2010, CELL, V5, P6, DOI [10.1016/j.cell.2010.01.001, 10.1016/J.CELL.2010.01.002]
TC 12
PD MAR 15
PY 2019
DI 10.1038/nature12345
WC Hematology
SC Hematology
ER

PT J
TI Metformin in diabetes
DI 10.1000/abc
PY 2020
ER

EF
`

func parseString(t *testing.T, input string, terms Matcher) ([]reference.Record, Stats) {
	t.Helper()
	var c collector
	stats, err := Parse(strings.NewReader(input), 1, terms, &c)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return c.records, stats
}

func TestParse_EndToEnd(t *testing.T) {
	records, stats := parseString(t, twoRecordExport, aspirin)

	if len(records) != 1 {
		t.Fatalf("Parse() emitted %d records, want 1", len(records))
	}

	want := reference.Record{
		SubjectID: 1,
		DOI:       "10.1038/nature12345",
		JournalID: "10.1038",
		PaperID:   "nature12345",
		Title:     "aspirin and platelet aggregation in mice",
		Abstract:  "aspirin reduces aggregation.",
		Keywords:  "aspirin;platelets;thrombosis;inflammation",
		Category:  "Hematology",
		Area:      "Hematology",
		PubType:   "article",
		PubDate:   "MAR 15 2019",
		Nation:    "USA;Peoples R China",
		CiteCount: "12",
		References: []string{
			"10.1016/s0140-6736(01)00001-1",
			"[10.1016/j.cell.2010.01.001, 10.1016/j.cell.2010.01.002]",
		},
	}
	if !reflect.DeepEqual(records[0], want) {
		t.Errorf("record =\n%+v\nwant\n%+v", records[0], want)
	}

	if stats.Records != 2 || stats.Emitted != 1 || stats.OffSubject != 1 {
		t.Errorf("stats = %+v, want 2 records, 1 emitted, 1 off subject", stats)
	}
}

func TestParse_StickyOperator(t *testing.T) {
	input := `PT J
TI first
   second
   third
AB one
   two
DI 10.1/x
ER
`
	records, _ := parseString(t, input, MatchAll{})
	if len(records) != 1 {
		t.Fatalf("Parse() emitted %d records, want 1", len(records))
	}
	if records[0].Title != "first second third" {
		t.Errorf("Title = %q, want %q", records[0].Title, "first second third")
	}
	if records[0].Abstract != "one two" {
		t.Errorf("Abstract = %q, want %q", records[0].Abstract, "one two")
	}
}

func TestParse_RecordFilters(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantStats Stats
	}{
		{
			name:      "empty doi",
			input:     "PT J\nTI aspirin\nER\n",
			wantStats: Stats{Lines: 3, Records: 1, NoDOI: 1},
		},
		{
			name:      "blank doi value",
			input:     "PT J\nTI aspirin\nDI   \nER\n",
			wantStats: Stats{Lines: 4, Records: 1, NoDOI: 1},
		},
		{
			name:      "retraction",
			input:     "PT J\nTI aspirin\nDT Retraction\nDI 10.1/x\nER\n",
			wantStats: Stats{Lines: 5, Records: 1, ExcludedType: 1},
		},
		{
			name:      "news item",
			input:     "PT J\nTI aspirin\nDT NEWS ITEM\nDI 10.1/x\nER\n",
			wantStats: Stats{Lines: 5, Records: 1, ExcludedType: 1},
		},
		{
			name:      "compound type is kept",
			input:     "PT J\nTI aspirin\nDT Article; Retracted Publication\nDI 10.1/x\nER\n",
			wantStats: Stats{Lines: 5, Records: 1, Emitted: 1},
		},
		{
			name:      "term only in keywords",
			input:     "PT J\nTI heart\nDE Aspirin\nDI 10.1/x\nER\n",
			wantStats: Stats{Lines: 5, Records: 1, Emitted: 1},
		},
		{
			name:      "term missing",
			input:     "PT J\nTI heart\nDI 10.1/x\nER\n",
			wantStats: Stats{Lines: 4, Records: 1, OffSubject: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, stats := parseString(t, tt.input, aspirin)
			if stats != tt.wantStats {
				t.Errorf("stats = %+v, want %+v", stats, tt.wantStats)
			}
			if len(records) != tt.wantStats.Emitted {
				t.Errorf("emitted %d records, want %d", len(records), tt.wantStats.Emitted)
			}
		})
	}
}

func TestParse_UnknownSubject(t *testing.T) {
	var c collector
	stats, err := Parse(strings.NewReader(twoRecordExport), 42, aspirin, &c)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(c.records) != 0 || stats.OffSubject != 2 {
		t.Errorf("got %d records, stats %+v; want none, all off subject", len(c.records), stats)
	}
}

func TestParse_KeywordDedup(t *testing.T) {
	input := "PT J\nTI x\nDE Aspirin; ASPIRIN; aspirin \nDI 10.1/x\nER\n"
	records, _ := parseString(t, input, aspirin)
	if len(records) != 1 {
		t.Fatalf("emitted %d records, want 1", len(records))
	}
	if records[0].Keywords != "aspirin" {
		t.Errorf("Keywords = %q, want %q", records[0].Keywords, "aspirin")
	}
}

func TestParse_PTWithoutER(t *testing.T) {
	input := `PT J
TI aspirin lost
DI 10.1/lost
PT J
TI aspirin kept
DI 10.1/kept
ER
PT J
TI aspirin truncated
DI 10.1/truncated
`
	records, stats := parseString(t, input, aspirin)
	if len(records) != 1 || records[0].DOI != "10.1/kept" {
		t.Fatalf("records = %+v, want only 10.1/kept", records)
	}
	if stats.Unfinished != 2 {
		t.Errorf("Unfinished = %d, want 2", stats.Unfinished)
	}
}

func TestParse_FieldsOutsideRecordIgnored(t *testing.T) {
	input := `TI aspirin stray
DI 10.1/stray
ER
PT J
TI aspirin
DI 10.1/x
ER
DI 10.1/after
   continued
ER
`
	records, stats := parseString(t, input, aspirin)
	if len(records) != 1 || records[0].DOI != "10.1/x" {
		t.Fatalf("records = %+v, want only 10.1/x", records)
	}
	if stats.Records != 1 {
		t.Errorf("Records = %d, want 1", stats.Records)
	}
}

func TestParse_UnknownTagContinuation(t *testing.T) {
	input := `PT J
TI aspirin
AU Smith, J
   Doe, K
DI 10.1/x
ER
`
	records, _ := parseString(t, input, aspirin)
	if len(records) != 1 {
		t.Fatalf("emitted %d records, want 1", len(records))
	}
	if records[0].Title != "aspirin" {
		t.Errorf("Title = %q, author continuation leaked into title", records[0].Title)
	}
}

func TestParse_SinkError(t *testing.T) {
	errFull := errors.New("disk full")
	sink := SinkFunc(func(reference.Record) error { return errFull })

	_, err := Parse(strings.NewReader("PT J\nTI aspirin\nDI 10.1/x\nER\n"), 1, aspirin, sink)
	if !errors.Is(err, errFull) {
		t.Errorf("Parse() error = %v, want wrapped sink error", err)
	}
}

func TestParse_InvalidUTF8KeepsEarlierRecords(t *testing.T) {
	input := "PT J\nTI aspirin\nDI 10.1/x\nER\nPT J\nTI aspirin \xff\nDI 10.1/y\nER\n"

	var c collector
	_, err := Parse(strings.NewReader(input), 1, aspirin, &c)
	if !errors.Is(err, textio.ErrInvalidUTF8) {
		t.Fatalf("Parse() error = %v, want ErrInvalidUTF8", err)
	}
	if len(c.records) != 1 || c.records[0].DOI != "10.1/x" {
		t.Errorf("records = %+v, want the record before the bad line", c.records)
	}
}

func TestParseFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "1")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "savedrecs.txt")
	content := "\ufeffFN Clarivate\r\nPT J\r\nTI Aspirin\r\nDI 10.1/X\r\nER\r\nEF\r\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	var c collector
	stats, err := ParseFile(path, 1, aspirin, &c)
	if err != nil {
		t.Fatalf("ParseFile() error = %v", err)
	}
	if stats.Emitted != 1 || c.records[0].DOI != "10.1/x" {
		t.Errorf("stats = %+v, records = %+v", stats, c.records)
	}

	if _, err := ParseFile(filepath.Join(dir, "missing.txt"), 1, aspirin, &c); err == nil {
		t.Error("ParseFile() on missing file returned nil error")
	}
}

func TestSplitLine(t *testing.T) {
	tests := []struct {
		line      string
		wantTag   string
		wantValue string
	}{
		{"PT J", "PT", " J"},
		{"ER", "ER", ""},
		{"   more", "  ", " more"},
		{"X", "X", ""},
		{"éé rest", "éé", " rest"},
	}
	for _, tt := range tests {
		tag, value := splitLine(tt.line)
		if tag != tt.wantTag || value != tt.wantValue {
			t.Errorf("splitLine(%q) = %q, %q; want %q, %q", tt.line, tag, value, tt.wantTag, tt.wantValue)
		}
	}
}

func TestStats_Add(t *testing.T) {
	s := Stats{Lines: 1, Records: 2, Emitted: 1, OffSubject: 1}
	s.Add(Stats{Lines: 3, Records: 1, NoDOI: 1, Unfinished: 1})

	want := Stats{Lines: 4, Records: 3, Emitted: 1, NoDOI: 1, OffSubject: 1, Unfinished: 1}
	if s != want {
		t.Errorf("Add() = %+v, want %+v", s, want)
	}
}
