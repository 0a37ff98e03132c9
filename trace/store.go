package trace

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// Store is a SQLite database of trace records, for querying traces with
// SQL.
type Store struct {
	db   *sql.DB
	path string
}

// OpenStore opens or creates the database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("trace: opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("trace: setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS sends (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		session TEXT NOT NULL,
		time TEXT NOT NULL,
		selector TEXT NOT NULL,
		receiver INTEGER NOT NULL,
		super_class INTEGER NOT NULL,
		symbol TEXT NOT NULL,
		convention TEXT NOT NULL,
		checked INTEGER NOT NULL,
		error TEXT NOT NULL,
		exception INTEGER NOT NULL,
		elapsed_ns INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("trace: creating table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert adds records in one transaction.
func (s *Store) Insert(records []Record) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("trace: begin: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT INTO sends
		(session, time, selector, receiver, super_class, symbol, convention, checked, error, exception, elapsed_ns)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("trace: prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		_, err := stmt.Exec(r.Session, r.Time.UTC().Format(timeLayout), r.Selector,
			int64(r.Receiver), int64(r.SuperClass), r.Symbol, r.Convention,
			r.Checked, r.Error, r.Exception, int64(r.Elapsed))
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("trace: inserting record %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("trace: commit: %w", err)
	}
	return nil
}

// Summary is the per-selector aggregate returned by Summarize.
type Summary struct {
	Selector   string
	Sends      int
	Exceptions int
	Errors     int
}

// Summarize counts sends per selector, most frequent first.
func (s *Store) Summarize() ([]Summary, error) {
	rows, err := s.db.Query(`SELECT selector, COUNT(*), SUM(exception), SUM(error != '' AND exception = 0)
		FROM sends GROUP BY selector ORDER BY COUNT(*) DESC, selector`)
	if err != nil {
		return nil, fmt.Errorf("trace: querying summary: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.Selector, &sum.Sends, &sum.Exceptions, &sum.Errors); err != nil {
			return nil, fmt.Errorf("trace: scanning summary: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
