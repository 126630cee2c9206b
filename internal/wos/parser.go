// Package wos parses Web of Science tagged export files ("savedrecs.txt")
// into literature records.
//
// An export is a sequence of lines whose first two columns hold a field tag:
//
//	PT J
//	TI Effects of aspirin on
//	   platelet aggregation
//	DI 10.1000/xyz123
//	ER
//
// A line with a blank tag continues the field of the last tag seen. Each
// entry runs from PT to ER; finished entries are filtered and handed to a
// Sink one at a time.
package wos

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/labyrinth/etl/internal/reference"
	"github.com/labyrinth/etl/internal/textio"
)

// Sink receives accepted records. Implementations shared between
// concurrently parsed files must serialize Put themselves.
type Sink interface {
	Put(rec reference.Record) error
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(rec reference.Record) error

// Put calls f(rec).
func (f SinkFunc) Put(rec reference.Record) error {
	return f(rec)
}

// Matcher decides whether upper-cased record text is about a subject.
type Matcher interface {
	Match(subjectID int, text string) bool
}

// MatchAll is a Matcher that accepts every record.
type MatchAll struct{}

// Match always returns true.
func (MatchAll) Match(int, string) bool { return true }

// Stats counts what happened to the entries of one or more files.
type Stats struct {
	Lines        int `json:"lines"`
	Records      int `json:"records"` // entries that reached ER
	Emitted      int `json:"emitted"`
	NoDOI        int `json:"no_doi"`
	ExcludedType int `json:"excluded_type"`
	OffSubject   int `json:"off_subject"`
	Unfinished   int `json:"unfinished"` // entries cut off by PT or end of file
}

// Add accumulates other into s.
func (s *Stats) Add(other Stats) {
	s.Lines += other.Lines
	s.Records += other.Records
	s.Emitted += other.Emitted
	s.NoDOI += other.NoDOI
	s.ExcludedType += other.ExcludedType
	s.OffSubject += other.OffSubject
	s.Unfinished += other.Unfinished
}

func (s *Stats) drop(reason DropReason) {
	switch reason {
	case NoDOI:
		s.NoDOI++
	case ExcludedType:
		s.ExcludedType++
	case OffSubject:
		s.OffSubject++
	}
}

// state of the record-boundary machine.
type state int

const (
	stateIdle state = iota
	stateAccumulating
)

// Parser is the line-driven state machine for one export file.
// It is not safe for concurrent use.
type Parser struct {
	subjectID int
	terms     Matcher
	sink      Sink

	state    state
	operator string // last non-blank tag (sticky operator)
	rec      RawRecord
	stats    Stats
}

// NewParser returns a parser for a file exported under subjectID.
func NewParser(subjectID int, terms Matcher, sink Sink) *Parser {
	return &Parser{subjectID: subjectID, terms: terms, sink: sink}
}

// Feed processes one line. The only error it returns comes from the sink.
func (p *Parser) Feed(line string) error {
	p.stats.Lines++

	line = strings.TrimRightFunc(line, unicode.IsSpace)
	if line == "" {
		return nil
	}

	tag, value := splitLine(line)
	if strings.TrimSpace(tag) != "" {
		p.operator = tag
	}

	rule, ok := tagTable[p.operator]
	if !ok {
		return nil
	}

	switch rule.action {
	case actBegin:
		if p.state == stateAccumulating {
			p.stats.Unfinished++
		}
		p.rec = RawRecord{}
		p.state = stateAccumulating
	case actEnd:
		if p.state != stateAccumulating {
			return nil
		}
		return p.end()
	case actField:
		if p.state == stateAccumulating {
			rule.apply(&p.rec, tag, value)
		}
	}
	return nil
}

// end finalizes the open record and returns to idle, whatever the outcome.
func (p *Parser) end() error {
	raw := p.rec
	p.rec = RawRecord{}
	p.state = stateIdle
	p.stats.Records++

	rec, reason := raw.Finalize(p.subjectID, p.terms)
	if reason != Accepted {
		p.stats.drop(reason)
		return nil
	}

	if err := p.sink.Put(rec); err != nil {
		return fmt.Errorf("storing %s: %w", rec.DOI, err)
	}
	p.stats.Emitted++
	return nil
}

// Finish closes the input. An entry still open is dropped.
func (p *Parser) Finish() Stats {
	if p.state == stateAccumulating {
		p.stats.Unfinished++
		p.rec = RawRecord{}
		p.state = stateIdle
	}
	return p.stats
}

// splitLine separates the two-character tag from the rest of the line.
func splitLine(line string) (tag, value string) {
	n := 0
	for i := range line {
		if n == 2 {
			return line[:i], line[i:]
		}
		n++
	}
	return line, ""
}

// Parse reads an export from r. Records accepted before a read or sink error
// have already been handed to the sink.
func Parse(r io.Reader, subjectID int, terms Matcher, sink Sink) (Stats, error) {
	p := NewParser(subjectID, terms, sink)

	scanner := textio.NewScanner(r)
	for scanner.Scan() {
		if err := p.Feed(scanner.Text()); err != nil {
			return p.Finish(), fmt.Errorf("line %d: %w", p.stats.Lines, err)
		}
	}
	if err := scanner.Err(); err != nil {
		stats := p.Finish()
		return stats, fmt.Errorf("reading after line %d: %w", stats.Lines, err)
	}

	return p.Finish(), nil
}

// ParseFile parses the export at path.
func ParseFile(path string, subjectID int, terms Matcher, sink Sink) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	stats, err := Parse(f, subjectID, terms, sink)
	if err != nil {
		return stats, fmt.Errorf("parsing %s: %w", path, err)
	}
	return stats, nil
}
