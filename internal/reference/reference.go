// Package reference defines the core domain types for parsed literature records.
package reference

import "strings"

// Record is a finalized bibliographic entry, ready for persistence.
// Records are built once by a parser and never mutated afterwards.
type Record struct {
	// Identity
	SubjectID int    `json:"drug_id"` // Subject tag the source file was searched for
	DOI       string `json:"doi"`
	JournalID string `json:"journal_id"` // DOI registrant prefix
	PaperID   string `json:"paper_id"`   // DOI suffix

	// Metadata (lowercased free text)
	Title    string `json:"title"`
	Abstract string `json:"abstract"`
	Keywords string `json:"keywords"` // ";"-joined, deduplicated

	// Classification
	Category string `json:"study_category"` // WoS categories
	Area     string `json:"research_areas"` // WoS research areas
	PubType  string `json:"pub_type"`

	PubDate   string `json:"pub_date"`   // e.g. "MAR 1 2019"
	Nation    string `json:"nation"`     // ";"-joined corresponding-author countries
	CiteCount string `json:"cite_count"` // Times cited, as exported

	// Relationships
	References []string `json:"references,omitempty"` // DOIs of cited works, in export order
}

// SplitDOI splits a DOI into its registrant prefix and suffix.
// "10.1016/j.cell.2020.01.001" yields ("10.1016", "j.cell.2020.01.001").
func SplitDOI(doi string) (journalID, paperID string) {
	parts := strings.Split(doi, "/")
	return parts[0], strings.Join(parts[1:], "/")
}

// Citations returns one citation edge per reference of the record.
func (r *Record) Citations() []Citation {
	if len(r.References) == 0 {
		return nil
	}
	edges := make([]Citation, len(r.References))
	for i, ref := range r.References {
		edges[i] = Citation{SubjectID: r.SubjectID, Paper: r.DOI, Ref: ref}
	}
	return edges
}
