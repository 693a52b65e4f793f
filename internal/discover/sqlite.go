package discover

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/agentic-research/coherence/api"
)

// LoadSQLite reads a discovery corpus from a SQLite database with a
// records(id, record) table, where record is a flat JSON object. Records
// whose fields are not plain scalars are rejected; discovery works on
// validated flat records only.
func LoadSQLite(dbPath string) ([]api.Record, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	rows, err := db.Query("SELECT id, record FROM records")
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	var corpus []api.Record
	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		var fields map[string]any
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return nil, fmt.Errorf("record %s: parse json: %w", id, err)
		}
		rec, err := api.NewRecord(fields)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", id, err)
		}
		corpus = append(corpus, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return corpus, nil
}

// StreamSQLite iterates the records table calling fn per record, keeping
// only one parsed record alive at a time.
func StreamSQLite(dbPath string, fn func(id string, rec api.Record) error) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	defer func() { _ = db.Close() }() // safe to ignore

	rows, err := db.Query("SELECT id, record FROM records")
	if err != nil {
		return fmt.Errorf("query records: %w", err)
	}
	defer func() { _ = rows.Close() }() // safe to ignore

	for rows.Next() {
		var id, raw string
		if err := rows.Scan(&id, &raw); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		var fields map[string]any
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return fmt.Errorf("record %s: parse json: %w", id, err)
		}
		rec, err := api.NewRecord(fields)
		if err != nil {
			return fmt.Errorf("record %s: %w", id, err)
		}
		if err := fn(id, rec); err != nil {
			return err
		}
	}
	return rows.Err()
}
