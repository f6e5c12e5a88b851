// Package catalog keeps a sqlite index of every archived recording.
package catalog

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/leandrodaf/midi-archiver/sdk/contracts"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Catalog stores archive entries. It is safe for concurrent use; recorders of
// different devices index through the same Catalog.
type Catalog struct {
	db *sql.DB
}

// Open creates or opens the catalog database at path.
//
// The database runs in WAL mode with a single connection, since every device
// writes through the same handle and SQLite allows one writer at a time.
func Open(path string) (*Catalog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply catalog schema: %w", err)
	}
	return &Catalog{db: db}, nil
}

// Close closes the database.
func (c *Catalog) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

// Index implements contracts.Indexer.
func (c *Catalog) Index(entry contracts.ArchiveEntry) error {
	_, err := c.db.Exec(
		`INSERT INTO recordings (device_id, device_name, path, started_at, duration_us, events)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.DeviceID, entry.DeviceName, entry.Path,
		entry.StartedAt.UnixMicro(), entry.Duration.Microseconds(), entry.Events,
	)
	if err != nil {
		return fmt.Errorf("failed to index %s: %w", entry.Path, err)
	}
	return nil
}

// Recent returns up to limit entries of a device, newest first. An empty
// deviceID lists every device.
func (c *Catalog) Recent(deviceID string, limit int) ([]contracts.ArchiveEntry, error) {
	rows, err := c.db.Query(
		`SELECT device_id, device_name, path, started_at, duration_us, events
		 FROM recordings
		 WHERE ? = '' OR device_id = ?
		 ORDER BY started_at DESC, id DESC
		 LIMIT ?`,
		deviceID, deviceID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer rows.Close()

	var entries []contracts.ArchiveEntry
	for rows.Next() {
		var (
			e          contracts.ArchiveEntry
			startedAt  int64
			durationUS int64
		)
		if err := rows.Scan(&e.DeviceID, &e.DeviceName, &e.Path, &startedAt, &durationUS, &e.Events); err != nil {
			return nil, fmt.Errorf("failed to scan catalog row: %w", err)
		}
		e.StartedAt = time.UnixMicro(startedAt).UTC()
		e.Duration = time.Duration(durationUS) * time.Microsecond
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
