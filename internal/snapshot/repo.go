package snapshot

import (
	"encoding/json"
	"fmt"

	"github.com/starford/obridge/internal/models"
)

// Store is the persistence contract used by the pipeline.
type Store interface {
	Replace(s models.Snapshot) error
	Load() (models.Snapshot, error)
	RecordRun(r models.Run) error
	ListRuns(limit int) ([]models.Run, error)
}

// Verify *DB satisfies Store at compile time.
var _ Store = (*DB)(nil)

// Replace overwrites the stored snapshot within a transaction.
func (db *DB) Replace(s models.Snapshot) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("snapshot: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	if _, err := tx.Exec(`DELETE FROM alias_records`); err != nil {
		return fmt.Errorf("snapshot: clear: %w", err)
	}
	if len(s) > 0 {
		stmt, err := tx.Prepare(`INSERT INTO alias_records (seq, file_name, full_file_path, data) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("snapshot: prepare insert: %w", err)
		}
		defer stmt.Close()
		for i, r := range s {
			data, err := json.Marshal(models.RecordData{Aliases: nonNil(r.Aliases)})
			if err != nil {
				return fmt.Errorf("snapshot: encode %s: %w", r.Path, err)
			}
			if _, err := stmt.Exec(i, r.Name, r.Path, string(data)); err != nil {
				return fmt.Errorf("snapshot: insert %s: %w", r.Path, err)
			}
		}
	}
	return tx.Commit()
}

// Load returns the stored snapshot in scan order. An undecodable data
// column degrades to an empty alias list.
func (db *DB) Load() (models.Snapshot, error) {
	rows, err := db.conn.Query(`SELECT file_name, full_file_path, data FROM alias_records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("snapshot: load: %w", err)
	}
	defer rows.Close()

	out := models.Snapshot{}
	for rows.Next() {
		var r models.AliasRecord
		var data string
		if err := rows.Scan(&r.Name, &r.Path, &data); err != nil {
			return nil, err
		}
		var d models.RecordData
		if json.Unmarshal([]byte(data), &d) == nil {
			r.Aliases = d.Aliases
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// RecordRun appends a run to the history.
func (db *DB) RecordRun(r models.Run) error {
	_, err := db.conn.Exec(`
		INSERT INTO runs (id, kind, started_at, finished_at, records, substitutions, links, documents, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Kind, r.StartedAt, r.FinishedAt, r.Records, r.Substitutions, r.Links, r.Documents, r.Error)
	if err != nil {
		return fmt.Errorf("snapshot: record run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs, newest first.
func (db *DB) ListRuns(limit int) ([]models.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.conn.Query(`
		SELECT id, kind, started_at, finished_at, records, substitutions, links, documents, error
		FROM runs
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("snapshot: list runs: %w", err)
	}
	defer rows.Close()

	out := []models.Run{}
	for rows.Next() {
		var r models.Run
		if err := rows.Scan(&r.ID, &r.Kind, &r.StartedAt, &r.FinishedAt, &r.Records, &r.Substitutions, &r.Links, &r.Documents, &r.Error); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
