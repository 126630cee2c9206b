package wos

import (
	"strings"
	"unicode"

	"github.com/labyrinth/etl/internal/reference"
)

// RawRecord accumulates the fields of one entry between its PT and ER lines.
// Values keep the separator space that follows the tag; Finalize trims them.
type RawRecord struct {
	Title    string
	DOI      string
	Abstract string
	Keywords string // "; "-separated DE and ID content
	Category string
	Area     string
	PubMonth string
	PubYear  string
	PubType  string
	Cites    string
	Nations  []string // corresponding-author countries, distinct, in order seen
	Refs     []string // cited DOIs, in order, duplicates kept
}

// DropReason says why a finished record was not emitted.
type DropReason string

const (
	Accepted     DropReason = ""
	NoDOI        DropReason = "no_doi"
	ExcludedType DropReason = "excluded_type"
	OffSubject   DropReason = "off_subject"
)

// excludedTypes lists document types that never describe research findings.
var excludedTypes = map[string]bool{
	"correction":            true,
	"news item":             true,
	"note":                  true,
	"retracted publication": true,
	"retraction":            true,
	"biographical-item":     true,
}

// addNations records the country of every corresponding-author address in an
// RP value. Each address ends in ", <country>." and addresses are ";"-separated.
func (r *RawRecord) addNations(v string) {
	for _, addr := range strings.Split(v, ";") {
		fields := strings.Split(addr, ",")
		nation := strings.TrimRightFunc(fields[len(fields)-1], func(c rune) bool {
			return c == '.' || unicode.IsSpace(c)
		})
		nation = strings.TrimSpace(nation)
		if strings.Contains(nation, "USA") {
			nation = "USA"
		}
		if nation == "" || containsString(r.Nations, nation) {
			continue
		}
		r.Nations = append(r.Nations, nation)
	}
}

// Finalize runs the end-of-record pipeline. It returns the record and
// Accepted, or a zero record and the reason it was dropped.
func (r *RawRecord) Finalize(subjectID int, terms Matcher) (reference.Record, DropReason) {
	doi := clean(r.DOI)
	if doi == "" {
		return reference.Record{}, NoDOI
	}

	pubType := clean(r.PubType)
	if excludedTypes[pubType] {
		return reference.Record{}, ExcludedType
	}

	title := clean(r.Title)
	abstract := clean(r.Abstract)
	keywords := dedupeKeywords(clean(r.Keywords))

	text := strings.ToUpper(strings.Join([]string{abstract, keywords, title}, " "))
	if !terms.Match(subjectID, text) {
		return reference.Record{}, OffSubject
	}

	pubYear := clean(r.PubYear)
	journalID, paperID := reference.SplitDOI(doi)

	var refs []string
	for _, ref := range r.Refs {
		refs = append(refs, clean(ref))
	}

	return reference.Record{
		SubjectID:  subjectID,
		DOI:        doi,
		JournalID:  journalID,
		PaperID:    paperID,
		Title:      title,
		Abstract:   abstract,
		Keywords:   keywords,
		Category:   clean(r.Category),
		Area:       clean(r.Area),
		PubType:    pubType,
		PubDate:    PubDate(clean(r.PubMonth), pubYear),
		Nation:     clean(strings.Join(r.Nations, ";")),
		CiteCount:  clean(r.Cites),
		References: refs,
	}, Accepted
}

// clean trims s and collapses double spaces in a single pass, so four
// spaces become two.
func clean(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "  ", " ")
}

// dedupeKeywords lowercases the ";"-separated keywords and drops empty and
// repeated entries, keeping first occurrences in order.
func dedupeKeywords(s string) string {
	var out []string
	seen := make(map[string]bool)
	for _, kw := range strings.Split(s, ";") {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return strings.Join(out, ";")
}

// PubDate merges the PD and PY values into one date string. The month part
// is cut at "-" and stripped of the year; when no day is left, day 1 is used.
//
//	PubDate("MAR 15", "2019")   == "MAR 15 2019"
//	PubDate("MAR-APR", "2019")  == "MAR 1 2019"
//	PubDate("2019", "2019")     == "1 2019"
func PubDate(month, year string) string {
	m, _, _ := strings.Cut(month, "-")
	if year != "" {
		m = strings.ReplaceAll(m, year, "")
	}
	if !strings.ContainsFunc(m, unicode.IsDigit) {
		m += " 1"
	}
	m += " " + year
	return strings.TrimSpace(strings.ReplaceAll(m, "  ", " "))
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
