package storage

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/labyrinth/etl/internal/reference"
)

// WriterOptions configures a Writer.
type WriterOptions struct {
	// CommitEvery commits the open transaction after this many finished
	// files. Zero commits only on Close.
	CommitEvery int
	// Citations also stores one edge row per record reference.
	Citations bool
}

// Writer inserts records inside a transaction that is committed every
// CommitEvery files. It is safe for concurrent use; inserts are serialized.
// Rows are not deduplicated.
type Writer struct {
	db   *DB
	opts WriterOptions

	mu       sync.Mutex
	tx       *sql.Tx
	infoStmt *sql.Stmt
	edgeStmt *sql.Stmt
	files    int
	records  int
	edges    int
	commits  int
}

// NewWriter returns a Writer on d. The caller must Close it before running
// other queries on d.
func (d *DB) NewWriter(opts WriterOptions) *Writer {
	return &Writer{db: d, opts: opts}
}

// Put inserts one record and, if enabled, its citation edges.
func (w *Writer) Put(rec reference.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.begin(); err != nil {
		return err
	}

	_, err := w.infoStmt.Exec(
		rec.SubjectID, rec.DOI, rec.JournalID, rec.PaperID,
		rec.Title, rec.Abstract, rec.Keywords,
		rec.Category, rec.PubDate, rec.Nation, rec.Area, rec.PubType, rec.CiteCount,
	)
	if err != nil {
		return fmt.Errorf("inserting record %s: %w", rec.DOI, err)
	}
	w.records++

	if !w.opts.Citations {
		return nil
	}
	for _, c := range rec.Citations() {
		if _, err := w.edgeStmt.Exec(c.SubjectID, c.Paper, c.Ref); err != nil {
			return fmt.Errorf("inserting citation %s -> %s: %w", c.Paper, c.Ref, err)
		}
		w.edges++
	}
	return nil
}

// FileDone marks one input file as finished and commits when the
// CommitEvery threshold is reached.
func (w *Writer) FileDone() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.files++
	if w.opts.CommitEvery > 0 && w.files%w.opts.CommitEvery == 0 {
		return w.commit()
	}
	return nil
}

// Close commits any pending rows. The underlying DB stays open.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.commit()
}

// Records returns the number of records inserted so far.
func (w *Writer) Records() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.records
}

// Edges returns the number of citation edges inserted so far.
func (w *Writer) Edges() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.edges
}

// Commits returns the number of transactions committed so far.
func (w *Writer) Commits() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.commits
}

func (w *Writer) begin() error {
	if w.tx != nil {
		return nil
	}

	tx, err := w.db.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	infoStmt, err := tx.Prepare(insertInfoSQL)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("preparing info insert: %w", err)
	}
	edgeStmt, err := tx.Prepare(insertEdgeSQL)
	if err != nil {
		infoStmt.Close()
		tx.Rollback()
		return fmt.Errorf("preparing edge insert: %w", err)
	}

	w.tx, w.infoStmt, w.edgeStmt = tx, infoStmt, edgeStmt
	return nil
}

func (w *Writer) commit() error {
	if w.tx == nil {
		return nil
	}

	w.infoStmt.Close()
	w.edgeStmt.Close()
	err := w.tx.Commit()
	w.tx, w.infoStmt, w.edgeStmt = nil, nil, nil
	if err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	w.commits++
	return nil
}
