package reference

import "testing"

func TestSplitDOI(t *testing.T) {
	tests := []struct {
		doi         string
		wantJournal string
		wantPaper   string
	}{
		{"10.1016/j.cell.2020.01.001", "10.1016", "j.cell.2020.01.001"},
		{"10.1002/(sici)1097-0258/abc", "10.1002", "(sici)1097-0258/abc"},
		{"10.1234", "10.1234", ""},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.doi, func(t *testing.T) {
			journal, paper := SplitDOI(tt.doi)
			if journal != tt.wantJournal {
				t.Errorf("journal = %q, want %q", journal, tt.wantJournal)
			}
			if paper != tt.wantPaper {
				t.Errorf("paper = %q, want %q", paper, tt.wantPaper)
			}
		})
	}
}

func TestRecord_Citations(t *testing.T) {
	rec := Record{
		SubjectID:  7,
		DOI:        "10.1/a",
		References: []string{"10.2/b", "10.3/c", "10.2/b"},
	}

	edges := rec.Citations()
	if len(edges) != 3 {
		t.Fatalf("Citations() returned %d edges, want 3", len(edges))
	}
	for i, e := range edges {
		if e.SubjectID != 7 || e.Paper != "10.1/a" {
			t.Errorf("edge %d = %+v, want subject 7 from 10.1/a", i, e)
		}
	}
	if edges[2].Ref != "10.2/b" {
		t.Errorf("duplicate reference dropped: %+v", edges)
	}

	empty := Record{DOI: "10.1/a"}
	if got := empty.Citations(); got != nil {
		t.Errorf("Citations() on record without references = %v, want nil", got)
	}
}
