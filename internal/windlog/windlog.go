// Package windlog persists raw wind readings to sqlite. It is the
// log-holding side of the history protocol: the daemon appends every
// ingested reading here, and history responses are encoded from it.
package windlog

import (
	"database/sql"
	"fmt"
	"log"

	_ "modernc.org/sqlite"

	"github.com/faceless2/anemometer/internal/rose"
)

type DB struct {
	*sql.DB
}

// OpenDB opens a reading log at path without touching the schema. The
// migrate subcommand uses it so migrations alone manage the schema.
func OpenDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	return &DB{db}, nil
}

// NewDB opens (creating if needed) a reading log at path. Use
// ":memory:" for an ephemeral log in tests.
func NewDB(path string) (*DB, error) {
	db, err := OpenDB(path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS readings (
			direction         DOUBLE NOT NULL,
			speed             DOUBLE NOT NULL,
			when_ms           BIGINT NOT NULL,
			timestamp         TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS readings_when ON readings (when_ms);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// RecordReading appends one normalized reading to the log.
func (db *DB) RecordReading(dir, speed float64, whenMs int64) error {
	r := rose.NewReading(dir, speed, whenMs)
	_, err := db.Exec(
		"INSERT INTO readings (direction, speed, when_ms) VALUES (?, ?, ?)",
		r.Direction, r.Speed, r.When,
	)
	return err
}

// ReadingsSince returns the log contents at or after sinceMs in
// timestamp order, which is the order the history encoder requires.
// Rows that fail to scan are skipped with a log line rather than
// failing the whole read; one bad row must not make the log useless.
func (db *DB) ReadingsSince(sinceMs int64) ([]rose.Reading, error) {
	rows, err := db.Query(
		"SELECT direction, speed, when_ms FROM readings WHERE when_ms >= ? ORDER BY when_ms ASC",
		sinceMs,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []rose.Reading
	for rows.Next() {
		var r rose.Reading
		if err := rows.Scan(&r.Direction, &r.Speed, &r.When); err != nil {
			log.Printf("windlog: skipping unreadable row: %v", err)
			continue
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of logged readings.
func (db *DB) Count() (int, error) {
	var n int
	err := db.QueryRow("SELECT COUNT(*) FROM readings").Scan(&n)
	return n, err
}

// Prune deletes readings older than beforeMs and reclaims the space.
func (db *DB) Prune(beforeMs int64) (int64, error) {
	res, err := db.Exec("DELETE FROM readings WHERE when_ms < ?", beforeMs)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		if _, err := db.Exec("PRAGMA incremental_vacuum"); err != nil {
			return n, fmt.Errorf("prune vacuum: %w", err)
		}
	}
	return n, nil
}
