package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DBPair holds separate read and write connections. With WAL mode readers
// don't block the single writer.
type DBPair struct {
	reader *sql.DB
	writer *sql.DB
}

// Reader returns the read-only pool.
func (p *DBPair) Reader() *sql.DB { return p.reader }

// Writer returns the single-connection write pool.
func (p *DBPair) Writer() *sql.DB { return p.writer }

// Close closes both pools.
func (p *DBPair) Close() error {
	return errors.Join(
		wrapClose("reader", p.reader.Close()),
		wrapClose("writer", p.writer.Close()),
	)
}

func wrapClose(name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("close %s: %w", name, err)
}

// Init opens the SQLite database at dbPath and applies the schema. The
// sqlite3 driver must be registered by the caller.
func Init(dbPath string) (*DBPair, error) {
	if dbPath == "" {
		return nil, errors.New("db path is required")
	}
	if err := ensureDir(dbPath); err != nil {
		return nil, err
	}

	writer, err := sql.Open("sqlite3", fmt.Sprintf("%s?_journal=WAL&_busy_timeout=5000&cache=shared&mode=rwc", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open writer: %w", err)
	}
	writer.SetMaxOpenConns(1)
	writer.SetMaxIdleConns(1)
	writer.SetConnMaxLifetime(time.Hour)

	if _, err := writer.Exec("PRAGMA journal_mode = WAL;"); err != nil {
		writer.Close()
		return nil, fmt.Errorf("set WAL: %w", err)
	}
	if _, err := writer.Exec(schemaSQL); err != nil {
		writer.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if _, err := writer.Exec(fmt.Sprintf("PRAGMA user_version = %d;", SchemaVersion)); err != nil {
		writer.Close()
		return nil, fmt.Errorf("set schema version: %w", err)
	}

	reader, err := sql.Open("sqlite3", fmt.Sprintf("%s?_journal=WAL&_busy_timeout=5000&cache=shared&mode=ro", dbPath))
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("open reader: %w", err)
	}
	reader.SetMaxOpenConns(4)
	reader.SetMaxIdleConns(2)
	reader.SetConnMaxLifetime(time.Hour)

	return &DBPair{reader: reader, writer: writer}, nil
}

// Version returns the schema version stored in the database.
func (p *DBPair) Version() (int, error) {
	var version int
	if err := p.reader.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, err
	}
	return version, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if _, err := os.Stat(dir); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.MkdirAll(dir, 0o755)
}
