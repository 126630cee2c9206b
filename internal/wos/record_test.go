package wos

import (
	"reflect"
	"testing"
)

func TestPubDate(t *testing.T) {
	tests := []struct {
		month string
		year  string
		want  string
	}{
		{"MAR-2019", "2019", "MAR 1 2019"},
		{"2019", "2019", "1 2019"},
		{"MAR 15", "2019", "MAR 15 2019"},
		{"MAR-APR", "2019", "MAR 1 2019"},
		{"MAR 2019", "2019", "MAR 1 2019"},
		{"", "2019", "1 2019"},
		{"SPR", "", "SPR 1"},
	}

	for _, tt := range tests {
		t.Run(tt.month+"/"+tt.year, func(t *testing.T) {
			if got := PubDate(tt.month, tt.year); got != tt.want {
				t.Errorf("PubDate(%q, %q) = %q, want %q", tt.month, tt.year, got, tt.want)
			}
		})
	}
}

func TestClean(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"  a  b ", "a b"},
		{"a    b", "a  b"}, // single pass
		{"\ta b\n", "a b"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := clean(tt.in); got != tt.want {
			t.Errorf("clean(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDedupeKeywords(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Aspirin; ASPIRIN; aspirin ", "aspirin"},
		{"a; b;; a ;C", "a;b;c"},
		{";;", ""},
	}
	for _, tt := range tests {
		if got := dedupeKeywords(tt.in); got != tt.want {
			t.Errorf("dedupeKeywords(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAddNations(t *testing.T) {
	var r RawRecord
	r.addNations(" Wang, L (corresponding author), Fudan Univ, Shanghai, Peoples R China.")
	r.addNations(" Doe, J (corresponding author), Stanford Univ, Stanford, CA 94305 USA.; Roe, K (corresponding author), Univ Oxford, Oxford, England.")
	r.addNations(" Li, X (corresponding author), Peking Univ, Beijing, Peoples R China.;")

	want := []string{"Peoples R China", "USA", "England"}
	if !reflect.DeepEqual(r.Nations, want) {
		t.Errorf("Nations = %v, want %v", r.Nations, want)
	}
}

func TestFinalize_DerivesIdentifiers(t *testing.T) {
	r := RawRecord{
		Title:    "  aspirin  trial",
		DOI:      "  10.1016/j.cell.2020.01.001",
		PubMonth: " JAN",
		PubYear:  " 2020",
		Refs:     []string{" 10.1/a ", "10.1/a"},
	}

	rec, reason := r.Finalize(3, MatchAll{})
	if reason != Accepted {
		t.Fatalf("Finalize() reason = %q, want accepted", reason)
	}
	if rec.SubjectID != 3 {
		t.Errorf("SubjectID = %d, want 3", rec.SubjectID)
	}
	if rec.JournalID != "10.1016" || rec.PaperID != "j.cell.2020.01.001" {
		t.Errorf("JournalID, PaperID = %q, %q", rec.JournalID, rec.PaperID)
	}
	if rec.Title != "aspirin trial" {
		t.Errorf("Title = %q, want %q", rec.Title, "aspirin trial")
	}
	if rec.PubDate != "JAN 1 2020" {
		t.Errorf("PubDate = %q, want %q", rec.PubDate, "JAN 1 2020")
	}
	if !reflect.DeepEqual(rec.References, []string{"10.1/a", "10.1/a"}) {
		t.Errorf("References = %v, want duplicates kept", rec.References)
	}
}
