// Package storage persists parsed records in SQLite and JSONL.
package storage

import (
	"database/sql"
	"fmt"

	"github.com/labyrinth/etl/internal/reference"
	_ "modernc.org/sqlite"
)

// DB wraps a SQLite database connection.
//
// The pool holds a single connection, so an open Writer transaction blocks
// every other query on the same DB until the Writer is closed.
type DB struct {
	db      *sql.DB
	version uint
}

// selectInfoFields contains the standard field list for SELECT queries on info.
const selectInfoFields = `drug_id, doi, journal_id, paper_id,
	title, abstract, keywords,
	study_category, pub_date, nation, research_areas, pub_type, cite_count`

const insertInfoSQL = `
	INSERT INTO info (
		drug_id, doi, journal_id, paper_id,
		title, abstract, keywords,
		study_category, pub_date, nation, research_areas, pub_type, cite_count
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

const insertEdgeSQL = `INSERT INTO edge (drug_id, paper, ref) VALUES (?, ?, ?)`

// OpenDB opens or creates a SQLite database at the given path and brings its
// schema up to date.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	version, err := runMigrations(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	return &DB{db: db, version: version}, nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// SchemaVersion returns the migration version applied at open.
func (d *DB) SchemaVersion() uint {
	return d.version
}

// CountRecords returns the number of rows in info.
func (d *DB) CountRecords() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM info").Scan(&count)
	return count, err
}

// CountEdges returns the number of rows in edge.
func (d *DB) CountEdges() (int, error) {
	var count int
	err := d.db.QueryRow("SELECT COUNT(*) FROM edge").Scan(&count)
	return count, err
}

// SubjectCount is the number of stored records for one subject.
type SubjectCount struct {
	SubjectID int `json:"drug_id"`
	Records   int `json:"records"`
}

// CountBySubject returns record counts grouped by subject, ascending by id.
func (d *DB) CountBySubject() ([]SubjectCount, error) {
	rows, err := d.db.Query(`
		SELECT drug_id, COUNT(*)
		FROM info
		GROUP BY drug_id
		ORDER BY drug_id
	`)
	if err != nil {
		return nil, fmt.Errorf("counting by subject: %w", err)
	}
	defer rows.Close()

	var counts []SubjectCount
	for rows.Next() {
		var c SubjectCount
		if err := rows.Scan(&c.SubjectID, &c.Records); err != nil {
			return nil, err
		}
		counts = append(counts, c)
	}
	return counts, rows.Err()
}

// ListRecords returns stored records in insertion order. A subjectID of 0
// lists every subject; a limit of 0 means no limit. References are not loaded.
func (d *DB) ListRecords(subjectID, limit int) ([]reference.Record, error) {
	query := `SELECT ` + selectInfoFields + ` FROM info`
	var args []interface{}

	if subjectID != 0 {
		query += " WHERE drug_id = ?"
		args = append(args, subjectID)
	}
	query += " ORDER BY rowid"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

// GetCitations returns the stored references of a paper, in insertion order.
func (d *DB) GetCitations(subjectID int, paper string) ([]string, error) {
	rows, err := d.db.Query(`
		SELECT ref FROM edge
		WHERE drug_id = ? AND paper = ?
		ORDER BY rowid
	`, subjectID, paper)
	if err != nil {
		return nil, fmt.Errorf("querying citations: %w", err)
	}
	defer rows.Close()

	var refs []string
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// DedupeResult reports rows removed (or that would be removed) by Dedupe.
type DedupeResult struct {
	Records int `json:"records"`
	Edges   int `json:"edges"`
}

const duplicateInfoWhere = `rowid NOT IN (SELECT MIN(rowid) FROM info GROUP BY drug_id, doi)`
const duplicateEdgeWhere = `rowid NOT IN (SELECT MIN(rowid) FROM edge GROUP BY drug_id, paper, ref)`

// CountDuplicates reports how many rows Dedupe would remove.
func (d *DB) CountDuplicates() (DedupeResult, error) {
	var res DedupeResult
	if err := d.db.QueryRow("SELECT COUNT(*) FROM info WHERE " + duplicateInfoWhere).Scan(&res.Records); err != nil {
		return res, fmt.Errorf("counting duplicate records: %w", err)
	}
	if err := d.db.QueryRow("SELECT COUNT(*) FROM edge WHERE " + duplicateEdgeWhere).Scan(&res.Edges); err != nil {
		return res, fmt.Errorf("counting duplicate edges: %w", err)
	}
	return res, nil
}

// Dedupe removes repeated rows, keeping the first row per (drug_id, doi) in
// info and per (drug_id, paper, ref) in edge.
func (d *DB) Dedupe() (DedupeResult, error) {
	var res DedupeResult

	tx, err := d.db.Begin()
	if err != nil {
		return res, fmt.Errorf("beginning dedupe: %w", err)
	}
	defer tx.Rollback()

	r, err := tx.Exec("DELETE FROM info WHERE " + duplicateInfoWhere)
	if err != nil {
		return res, fmt.Errorf("deleting duplicate records: %w", err)
	}
	n, _ := r.RowsAffected()
	res.Records = int(n)

	r, err = tx.Exec("DELETE FROM edge WHERE " + duplicateEdgeWhere)
	if err != nil {
		return res, fmt.Errorf("deleting duplicate edges: %w", err)
	}
	n, _ = r.RowsAffected()
	res.Edges = int(n)

	if err := tx.Commit(); err != nil {
		return DedupeResult{}, fmt.Errorf("committing dedupe: %w", err)
	}
	return res, nil
}

// RebuildFromJSONL clears info and edge and reloads them from a JSONL dump.
// Edges are rebuilt from each record's references.
func (d *DB) RebuildFromJSONL(jsonlPath string) (records, edges int, err error) {
	recs, err := ReadAllRecords(jsonlPath)
	if err != nil {
		return 0, 0, fmt.Errorf("reading JSONL: %w", err)
	}

	if _, err := d.db.Exec("DELETE FROM info"); err != nil {
		return 0, 0, fmt.Errorf("clearing info table: %w", err)
	}
	if _, err := d.db.Exec("DELETE FROM edge"); err != nil {
		return 0, 0, fmt.Errorf("clearing edge table: %w", err)
	}

	w := d.NewWriter(WriterOptions{Citations: true})
	for _, rec := range recs {
		if err := w.Put(rec); err != nil {
			w.Close()
			return 0, 0, err
		}
	}
	if err := w.Close(); err != nil {
		return 0, 0, err
	}

	return w.Records(), w.Edges(), nil
}

// scanner interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(s scanner) (reference.Record, error) {
	var rec reference.Record
	var journalID, paperID, title, abstract, keywords sql.NullString
	var category, pubDate, nation, area, pubType, cites sql.NullString

	err := s.Scan(
		&rec.SubjectID, &rec.DOI, &journalID, &paperID,
		&title, &abstract, &keywords,
		&category, &pubDate, &nation, &area, &pubType, &cites,
	)
	if err != nil {
		return rec, err
	}

	// Handle nullable fields
	rec.JournalID = journalID.String
	rec.PaperID = paperID.String
	rec.Title = title.String
	rec.Abstract = abstract.String
	rec.Keywords = keywords.String
	rec.Category = category.String
	rec.PubDate = pubDate.String
	rec.Nation = nation.String
	rec.Area = area.String
	rec.PubType = pubType.String
	rec.CiteCount = cites.String

	return rec, nil
}

func scanRecords(rows *sql.Rows) ([]reference.Record, error) {
	var recs []reference.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}
