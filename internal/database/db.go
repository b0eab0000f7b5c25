package database

import (
	"database/sql"
	"fmt"
	"sort"
	"time"

	_ "modernc.org/sqlite"
)

// DB wraps the database connection. It is the device's non-volatile
// key/value storage, grouped by namespace.
type DB struct {
	conn *sql.DB
}

// New creates a new database connection and initializes the schema
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.initSchema(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

// initSchema creates the necessary tables
func (db *DB) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS preferences (
		namespace TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY(namespace, key)
	);
	`

	_, err := db.conn.Exec(schema)
	return err
}

// GetString returns the value stored under namespace/key, or def if there is none
func (db *DB) GetString(namespace, key, def string) (string, error) {
	query := `SELECT value FROM preferences WHERE namespace = ? AND key = ?`

	var value string
	err := db.conn.QueryRow(query, namespace, key).Scan(&value)
	if err == sql.ErrNoRows {
		return def, nil
	}
	if err != nil {
		return def, fmt.Errorf("querying %s/%s: %w", namespace, key, err)
	}

	return value, nil
}

const upsertQuery = `
	INSERT INTO preferences (namespace, key, value, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(namespace, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`

// PutString stores value under namespace/key, replacing any previous value
func (db *DB) PutString(namespace, key, value string) error {
	updatedAt := time.Now().UTC().Format(time.RFC3339)
	if _, err := db.conn.Exec(upsertQuery, namespace, key, value, updatedAt); err != nil {
		return fmt.Errorf("storing %s/%s: %w", namespace, key, err)
	}

	return nil
}

// PutStrings stores every key in values under namespace in one transaction.
// Either all of them are written or none are.
func (db *DB) PutStrings(namespace string, values map[string]string) error {
	updatedAt := time.Now().UTC().Format(time.RFC3339)

	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if _, err := tx.Exec(upsertQuery, namespace, key, values[key], updatedAt); err != nil {
			return fmt.Errorf("storing %s/%s: %w", namespace, key, err)
		}
	}

	return tx.Commit()
}

// Clear removes every key in a namespace
func (db *DB) Clear(namespace string) error {
	if _, err := db.conn.Exec(`DELETE FROM preferences WHERE namespace = ?`, namespace); err != nil {
		return fmt.Errorf("clearing namespace %s: %w", namespace, err)
	}
	return nil
}

// Keys lists the keys stored in a namespace, sorted
func (db *DB) Keys(namespace string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT key FROM preferences WHERE namespace = ? ORDER BY key`, namespace)
	if err != nil {
		return nil, fmt.Errorf("querying keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		keys = append(keys, key)
	}

	return keys, rows.Err()
}
