package storage

import (
	"fmt"
	"sync"
	"testing"

	"github.com/labyrinth/etl/internal/reference"
)

func TestWriter_CommitEvery(t *testing.T) {
	db := openTestDB(t)
	w := db.NewWriter(WriterOptions{CommitEvery: 2})

	for file := 0; file < 5; file++ {
		rec := reference.Record{SubjectID: 1, DOI: fmt.Sprintf("10.1/%d", file)}
		if err := w.Put(rec); err != nil {
			t.Fatalf("Put() error = %v", err)
		}
		if err := w.FileDone(); err != nil {
			t.Fatalf("FileDone() error = %v", err)
		}
	}

	if w.Commits() != 2 {
		t.Errorf("Commits() before Close = %d, want 2", w.Commits())
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if w.Commits() != 3 {
		t.Errorf("Commits() after Close = %d, want 3", w.Commits())
	}

	count, err := db.CountRecords()
	if err != nil {
		t.Fatalf("CountRecords() error = %v", err)
	}
	if count != 5 {
		t.Errorf("CountRecords() = %d, want 5", count)
	}
}

func TestWriter_FileWithoutRecords(t *testing.T) {
	db := openTestDB(t)
	w := db.NewWriter(WriterOptions{CommitEvery: 1})

	if err := w.FileDone(); err != nil {
		t.Fatalf("FileDone() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if w.Commits() != 0 {
		t.Errorf("Commits() = %d, want 0 with nothing written", w.Commits())
	}
}

func TestWriter_Citations(t *testing.T) {
	rec := reference.Record{SubjectID: 4, DOI: "10.1/a", References: []string{"10.1/b", "10.1/b"}}

	tests := []struct {
		name      string
		citations bool
		wantEdges int
	}{
		{"enabled keeps duplicates", true, 2},
		{"disabled", false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := openTestDB(t)
			w := db.NewWriter(WriterOptions{Citations: tt.citations})
			if err := w.Put(rec); err != nil {
				t.Fatalf("Put() error = %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}

			if w.Edges() != tt.wantEdges {
				t.Errorf("Edges() = %d, want %d", w.Edges(), tt.wantEdges)
			}
			count, err := db.CountEdges()
			if err != nil {
				t.Fatalf("CountEdges() error = %v", err)
			}
			if count != tt.wantEdges {
				t.Errorf("CountEdges() = %d, want %d", count, tt.wantEdges)
			}
		})
	}
}

func TestWriter_ConcurrentPut(t *testing.T) {
	db := openTestDB(t)
	w := db.NewWriter(WriterOptions{CommitEvery: 3, Citations: true})

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				rec := reference.Record{
					SubjectID:  g,
					DOI:        fmt.Sprintf("10.%d/%d", g, i),
					References: []string{"10.9/x"},
				}
				if err := w.Put(rec); err != nil {
					errs <- err
					return
				}
			}
			if err := w.FileDone(); err != nil {
				errs <- err
			}
		}(g)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent write error = %v", err)
	}

	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if w.Records() != 200 || w.Edges() != 200 {
		t.Errorf("Records(), Edges() = %d, %d; want 200, 200", w.Records(), w.Edges())
	}
	count, _ := db.CountRecords()
	if count != 200 {
		t.Errorf("CountRecords() = %d, want 200", count)
	}
}
