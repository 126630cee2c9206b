package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/labyrinth/etl/internal/reference"
)

// MaxJSONLLineCapacity is the maximum buffer size for reading JSONL lines.
// Records carry full abstracts and reference lists.
const MaxJSONLLineCapacity = 4 * 1024 * 1024

// JSONLWriter appends records to a JSONL file, one record per line.
// It is safe for concurrent use.
type JSONLWriter struct {
	mu      sync.Mutex
	f       *os.File
	w       *bufio.Writer
	records int
}

// OpenJSONL opens path for appending, creating it if needed.
func OpenJSONL(path string) (*JSONLWriter, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening records file for append: %w", err)
	}
	return &JSONLWriter{f: f, w: bufio.NewWriter(f)}, nil
}

// Put appends one record.
func (j *JSONLWriter) Put(rec reference.Record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding record %s: %w", rec.DOI, err)
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if _, err := j.w.Write(data); err != nil {
		return fmt.Errorf("writing record: %w", err)
	}
	if err := j.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("writing newline: %w", err)
	}
	j.records++
	return nil
}

// FileDone flushes buffered records.
func (j *JSONLWriter) FileDone() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.w.Flush()
}

// Records returns the number of records written so far.
func (j *JSONLWriter) Records() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.records
}

// Close flushes and closes the file.
func (j *JSONLWriter) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.w.Flush(); err != nil {
		j.f.Close()
		return fmt.Errorf("flushing records file: %w", err)
	}
	return j.f.Close()
}

// ReadAllRecords reads all records from a JSONL file.
// A missing file yields no records.
func ReadAllRecords(path string) ([]reference.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening records file: %w", err)
	}
	defer f.Close()

	var recs []reference.Record
	scanner := bufio.NewScanner(f)

	// Increase buffer size for long lines
	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, MaxJSONLLineCapacity)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue // Skip empty lines
		}

		var rec reference.Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", lineNum, err)
		}
		recs = append(recs, rec)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading records file: %w", err)
	}

	return recs, nil
}
