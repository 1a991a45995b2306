package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/keeptrack/internal/model"
)

const sqliteSchemaSQL = `
CREATE TABLE IF NOT EXISTS items (
	id         TEXT PRIMARY KEY,
	doc        TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS observations (
	item_id    TEXT NOT NULL REFERENCES items(id),
	id         TEXT NOT NULL,
	doc        TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (item_id, id)
);

CREATE INDEX IF NOT EXISTS idx_observations_item ON observations(item_id);
`

// SQLite implements Storage in a single SQLite database. Rows hold the same
// JSON documents FS writes to disk and are validated the same way on read.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database at dsn and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if _, err := conn.Exec(sqliteSchemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// StoreItem upserts the item document.
func (s *SQLite) StoreItem(item model.Item) error {
	doc, err := EncodeItem(item)
	if err != nil {
		return err
	}
	_, err = s.conn.Exec(`
		INSERT INTO items (id, doc) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET doc = excluded.doc
	`, item.ID, string(doc))
	if err != nil {
		return fmt.Errorf("storage: upsert item: %w", err)
	}
	return nil
}

// ItemExists reports whether the items table has a row for id.
func (s *SQLite) ItemExists(id string) bool {
	var one int
	err := s.conn.QueryRow(`SELECT 1 FROM items WHERE id = ?`, id).Scan(&one)
	return err == nil
}

// RetrieveItem reads and validates the item document for id.
func (s *SQLite) RetrieveItem(id string) (model.Item, error) {
	var doc string
	err := s.conn.QueryRow(`SELECT doc FROM items WHERE id = ?`, id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Item{}, fmt.Errorf("%w: %s: %w", ErrRetrieveFailed, id, os.ErrNotExist)
	}
	if err != nil {
		return model.Item{}, fmt.Errorf("%w: query %s: %w", ErrRetrieveFailed, id, err)
	}
	item, err := decodeItem([]byte(doc))
	if err != nil {
		return model.Item{}, fmt.Errorf("%w: decode %s: %w", ErrRetrieveFailed, id, err)
	}
	return item, nil
}

// Items returns every valid item in insertion order.
func (s *SQLite) Items() ([]model.Item, error) {
	rows, err := s.conn.Query(`SELECT doc FROM items ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("storage: list items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("storage: scan item: %w", err)
		}
		item, err := decodeItem([]byte(doc))
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list items: %w", err)
	}
	if items == nil {
		items = []model.Item{}
	}
	return items, nil
}

// StoreObservation upserts the observation document of an existing item.
func (s *SQLite) StoreObservation(itemID string, obs model.Observation) error {
	if !s.ItemExists(itemID) {
		return fmt.Errorf("storage: item %s: %w", itemID, os.ErrNotExist)
	}
	doc, err := EncodeObservation(obs)
	if err != nil {
		return err
	}
	_, err = s.conn.Exec(`
		INSERT INTO observations (item_id, id, doc) VALUES (?, ?, ?)
		ON CONFLICT(item_id, id) DO UPDATE SET doc = excluded.doc
	`, itemID, obs.ID, string(doc))
	if err != nil {
		return fmt.Errorf("storage: upsert observation: %w", err)
	}
	return nil
}

// Observations returns the valid observations of an item in insertion order.
func (s *SQLite) Observations(itemID string) ([]model.Observation, error) {
	if !s.ItemExists(itemID) {
		return nil, fmt.Errorf("storage: list observations of %s: %w", itemID, os.ErrNotExist)
	}
	rows, err := s.conn.Query(`SELECT doc FROM observations WHERE item_id = ? ORDER BY rowid`, itemID)
	if err != nil {
		return nil, fmt.Errorf("storage: list observations: %w", err)
	}
	defer rows.Close()

	out := []model.Observation{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("storage: scan observation: %w", err)
		}
		obs, err := decodeObservation([]byte(doc))
		if err != nil {
			continue
		}
		out = append(out, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: list observations: %w", err)
	}
	return out, nil
}
