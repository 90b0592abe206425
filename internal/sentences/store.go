package sentences

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Schema is the SQL DDL for a corpus database. A store is created from
// scratch on every rebuild; there are no migrations.
const Schema = `
CREATE TABLE sentences (id INTEGER PRIMARY KEY AUTOINCREMENT, input_text TEXT, output_text TEXT);
CREATE TABLE words (id INTEGER PRIMARY KEY AUTOINCREMENT, word TEXT);
`

// Store is a corpus database: every concrete sentence the grammar can
// produce, paired with its canonical output text, plus the vocabulary of
// whitespace-delimited input tokens. It is a single SQLite file and is
// treated as single-writer.
type Store struct {
	db   *sql.DB
	path string
}

// CreateStore creates a fresh corpus database at path and applies
// [Schema]. The file must not already contain the schema.
func CreateStore(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sentences: open store %q: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sentences: create schema in %q: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// OpenStore opens an existing corpus database for reading.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sentences: open store %q: %w", path, err)
	}
	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string { return s.path }

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// SentenceWriter inserts sentence rows within one transaction. The
// builder opens one writer per sentence template so that a failed
// expansion rolls the whole template back.
type SentenceWriter struct {
	tx   *sql.Tx
	stmt *sql.Stmt
}

// BeginSentences starts a sentence-insert transaction.
func (s *Store) BeginSentences(ctx context.Context) (*SentenceWriter, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("sentences: begin transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO sentences (input_text, output_text) VALUES (?, ?)")
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("sentences: prepare insert: %w", err)
	}
	return &SentenceWriter{tx: tx, stmt: stmt}, nil
}

// Insert adds one (input_text, output_text) row.
func (w *SentenceWriter) Insert(ctx context.Context, inputText, outputText string) error {
	if _, err := w.stmt.ExecContext(ctx, inputText, outputText); err != nil {
		return fmt.Errorf("sentences: insert row: %w", err)
	}
	return nil
}

// Commit finalizes the transaction.
func (w *SentenceWriter) Commit() error {
	w.stmt.Close()
	if err := w.tx.Commit(); err != nil {
		return fmt.Errorf("sentences: commit: %w", err)
	}
	return nil
}

// Rollback abandons the transaction. Safe to call after Commit.
func (w *SentenceWriter) Rollback() error {
	w.stmt.Close()
	return w.tx.Rollback()
}

// InsertWords stores the vocabulary in one transaction.
func (s *Store) InsertWords(ctx context.Context, words []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sentences: begin words transaction: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, "INSERT INTO words (word) VALUES (?)")
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sentences: prepare words insert: %w", err)
	}
	for _, word := range words {
		if _, err := stmt.ExecContext(ctx, word); err != nil {
			stmt.Close()
			tx.Rollback()
			return fmt.Errorf("sentences: insert word %q: %w", word, err)
		}
	}
	stmt.Close()
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sentences: commit words: %w", err)
	}
	return nil
}

// ScanSentences streams every (input_text, output_text) row to fn in
// insertion order. It stops at the first error from fn.
func (s *Store) ScanSentences(ctx context.Context, fn func(inputText, outputText string) error) error {
	rows, err := s.db.QueryContext(ctx, "SELECT input_text, output_text FROM sentences ORDER BY id")
	if err != nil {
		return fmt.Errorf("sentences: query sentences: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var in, out string
		if err := rows.Scan(&in, &out); err != nil {
			return fmt.Errorf("sentences: scan row: %w", err)
		}
		if err := fn(in, out); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("sentences: iterate rows: %w", err)
	}
	return nil
}

// CountSentences returns the number of stored sentence rows.
func (s *Store) CountSentences(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM sentences").Scan(&n); err != nil {
		return 0, fmt.Errorf("sentences: count sentences: %w", err)
	}
	return n, nil
}

// Words returns the stored vocabulary in insertion order.
func (s *Store) Words(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT word FROM words ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("sentences: query words: %w", err)
	}
	defer rows.Close()

	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("sentences: scan word: %w", err)
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sentences: iterate words: %w", err)
	}
	return words, nil
}
