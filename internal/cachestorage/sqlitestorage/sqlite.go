// Package sqlitestorage implements durable cache storage in a single SQLite
// database file.
package sqlitestorage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/discochess/nestcache/internal/cachestorage"
	"github.com/discochess/nestcache/internal/message"
)

// Compile-time checks.
var (
	_ cachestorage.Storage   = (*Storage)(nil)
	_ cachestorage.Partition = (*Partition)(nil)
)

const schema = `
CREATE TABLE IF NOT EXISTS partitions (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL UNIQUE
);
CREATE TABLE IF NOT EXISTS entries (
	partition_id INTEGER NOT NULL,
	key          TEXT    NOT NULL,
	url          TEXT    NOT NULL,
	status       INTEGER NOT NULL,
	status_text  TEXT    NOT NULL,
	header       TEXT    NOT NULL,
	body         BLOB,
	stored_at    INTEGER NOT NULL,
	PRIMARY KEY (partition_id, key)
);`

// Storage persists cache partitions in SQLite.
type Storage struct {
	sqlDB *sql.DB
	now   func() time.Time
}

// Open opens (creating if needed) a SQLite cache database at path.
func Open(path string) (*Storage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Storage{sqlDB: sqlDB, now: time.Now}, nil
}

// Close closes the SQLite handle.
func (s *Storage) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Open returns a handle to the named partition.
func (s *Storage) Open(ctx context.Context, name string) (cachestorage.Partition, error) {
	if err := cachestorage.CheckName(name); err != nil {
		return nil, err
	}
	return &Partition{storage: s, name: name}, nil
}

// Has reports whether the named partition exists.
func (s *Storage) Has(ctx context.Context, name string) (bool, error) {
	var id int64
	err := s.sqlDB.QueryRowContext(ctx, `SELECT id FROM partitions WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query partition: %w", err)
	}
	return true, nil
}

// Delete removes the named partition and all its entries.
func (s *Storage) Delete(ctx context.Context, name string) (bool, error) {
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM partitions WHERE name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query partition: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM entries WHERE partition_id = ?`, id); err != nil {
		return false, fmt.Errorf("delete entries: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM partitions WHERE id = ?`, id); err != nil {
		return false, fmt.Errorf("delete partition: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

// Names lists partitions in creation order.
func (s *Storage) Names(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT name FROM partitions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query partitions: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan partition: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Partition is a handle to one partition of a Storage.
type Partition struct {
	storage *Storage
	name    string
}

// Name returns the partition name.
func (p *Partition) Name() string {
	return p.name
}

// Match returns the stored response for req.
func (p *Partition) Match(ctx context.Context, req *message.Request) (*message.Response, error) {
	if !req.IsGet() {
		return nil, cachestorage.ErrNotFound
	}

	var (
		resp       message.Response
		headerJSON string
		storedAt   int64
	)
	err := p.storage.sqlDB.QueryRowContext(ctx,
		`SELECT e.url, e.status, e.status_text, e.header, e.body, e.stored_at
		   FROM entries e JOIN partitions p ON p.id = e.partition_id
		  WHERE p.name = ? AND e.key = ?`,
		p.name, req.Key(),
	).Scan(&resp.URL, &resp.Status, &resp.StatusText, &headerJSON, &resp.Body, &storedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cachestorage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query entry: %w", err)
	}

	resp.Header = make(http.Header)
	if err := json.Unmarshal([]byte(headerJSON), &resp.Header); err != nil {
		return nil, fmt.Errorf("decode header: %w", err)
	}
	resp.StoredAt = time.UnixMilli(storedAt).UTC()
	return &resp, nil
}

// Put upserts resp under req, creating the partition on first write.
func (p *Partition) Put(ctx context.Context, req *message.Request, resp *message.Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := cachestorage.CheckPut(req, resp); err != nil {
		return err
	}

	header := resp.Header
	if header == nil {
		header = make(http.Header)
	}
	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	tx, err := p.storage.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO partitions (name) VALUES (?) ON CONFLICT(name) DO NOTHING`, p.name,
	); err != nil {
		return fmt.Errorf("insert partition: %w", err)
	}

	body := resp.Body
	if body == nil {
		body = []byte{}
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO entries (partition_id, key, url, status, status_text, header, body, stored_at)
		 VALUES ((SELECT id FROM partitions WHERE name = ?), ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(partition_id, key) DO UPDATE SET
		   url = excluded.url,
		   status = excluded.status,
		   status_text = excluded.status_text,
		   header = excluded.header,
		   body = excluded.body,
		   stored_at = excluded.stored_at`,
		p.name, req.Key(), resp.URL, resp.Status, resp.StatusText, string(headerJSON), body,
		p.storage.now().UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("upsert entry: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Delete removes the entry for req.
func (p *Partition) Delete(ctx context.Context, req *message.Request) (bool, error) {
	res, err := p.storage.sqlDB.ExecContext(ctx,
		`DELETE FROM entries
		  WHERE partition_id = (SELECT id FROM partitions WHERE name = ?) AND key = ?`,
		p.name, req.Key(),
	)
	if err != nil {
		return false, fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Keys returns the stored keys in lexical order.
func (p *Partition) Keys(ctx context.Context) ([]string, error) {
	rows, err := p.storage.sqlDB.QueryContext(ctx,
		`SELECT e.key FROM entries e JOIN partitions p ON p.id = e.partition_id
		  WHERE p.name = ? ORDER BY e.key`,
		p.name,
	)
	if err != nil {
		return nil, fmt.Errorf("query keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("scan key: %w", err)
		}
		keys = append(keys, key)
	}
	return keys, rows.Err()
}
