// Package catalog is the content index: one row per catalogued file,
// grouped into the downloads/images/video/audio collections, plus the
// downloads side table the downloads document provider resolves ids
// against.
package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Item is a catalog row.
type Item struct {
	ID           int64  `db:"_id"`
	Collection   string `db:"collection"`
	Data         string `db:"_data"`
	DisplayName  string `db:"_display_name"`
	MimeType     string `db:"mime_type"`
	Size         int64  `db:"_size"`
	DateModified int64  `db:"date_modified"` // unix seconds
	Owner        string `db:"owner_package"`
}

// Download is a row of the downloads side table.
type Download struct {
	ID          int64          `db:"_id"`
	Data        sql.NullString `db:"_data"`
	DisplayName string         `db:"_display_name"`
}

type Catalog struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the catalog database at dbPath.
func Open(dbPath string) (*Catalog, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create catalog directory: %w", err)
	}

	db, err := sqlx.Connect("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to catalog at %s: %w", dbPath, err)
	}
	// one invocation, one writer
	db.SetMaxOpenConns(1)

	c := &Catalog{db: db}
	if err := c.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return c, nil
}

func (c *Catalog) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS files (
		_id INTEGER PRIMARY KEY AUTOINCREMENT,
		collection TEXT NOT NULL,
		_data TEXT UNIQUE NOT NULL COLLATE NOCASE,
		_display_name TEXT NOT NULL,
		mime_type TEXT NOT NULL DEFAULT '',
		_size INTEGER NOT NULL DEFAULT 0,
		date_modified INTEGER NOT NULL DEFAULT 0,
		owner_package TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_files_collection ON files(collection);
	CREATE TABLE IF NOT EXISTS downloads (
		_id INTEGER PRIMARY KEY AUTOINCREMENT,
		_data TEXT,
		_display_name TEXT NOT NULL
	);
	`
	_, err := c.db.Exec(schema)
	return err
}

// Insert adds item and sets its ID.
func (c *Catalog) Insert(ctx context.Context, item *Item) error {
	query := `
	INSERT INTO files (collection, _data, _display_name, mime_type, _size, date_modified, owner_package)
	VALUES (:collection, :_data, :_display_name, :mime_type, :_size, :date_modified, :owner_package)
	`
	res, err := c.db.NamedExecContext(ctx, query, item)
	if err != nil {
		return fmt.Errorf("failed to insert %s into %s: %w", item.Data, item.Collection, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	item.ID = id
	return nil
}

// Get returns the row id of collection, or nil if there is none.
func (c *Catalog) Get(ctx context.Context, collection string, id int64) (*Item, error) {
	var item Item
	err := c.db.GetContext(ctx, &item, "SELECT * FROM files WHERE _id = ? AND collection = ?", id, collection)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// FindByData returns the row of collection stored at data, or nil.
func (c *Catalog) FindByData(ctx context.Context, collection, data string) (*Item, error) {
	var item Item
	err := c.db.GetContext(ctx, &item, "SELECT * FROM files WHERE _data = ? AND collection = ?", data, collection)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Exists reports whether any row is stored at data.
func (c *Catalog) Exists(ctx context.Context, data string) (bool, error) {
	var n int
	if err := c.db.GetContext(ctx, &n, "SELECT COUNT(*) FROM files WHERE _data = ?", data); err != nil {
		return false, err
	}
	return n > 0, nil
}

// Move changes the stored path and display name of a row.
func (c *Catalog) Move(ctx context.Context, id int64, data, displayName string) (int64, error) {
	res, err := c.db.ExecContext(ctx, "UPDATE files SET _data = ?, _display_name = ? WHERE _id = ?", data, displayName, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Touch records the size and modification time of a row.
func (c *Catalog) Touch(ctx context.Context, id, size, modified int64) error {
	_, err := c.db.ExecContext(ctx, "UPDATE files SET _size = ?, date_modified = ? WHERE _id = ?", size, modified, id)
	return err
}

// Delete removes a row; it returns the number of rows removed.
func (c *Catalog) Delete(ctx context.Context, collection string, id int64) (int64, error) {
	res, err := c.db.ExecContext(ctx, "DELETE FROM files WHERE _id = ? AND collection = ?", id, collection)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ItemPath implements pathuri.Index.
func (c *Catalog) ItemPath(ctx context.Context, collection string, id int64) (string, error) {
	item, err := c.Get(ctx, collection, id)
	if err != nil || item == nil {
		return "", err
	}
	if item.Data != "" {
		return item.Data, nil
	}
	return item.DisplayName, nil
}

// RegisterDownload adds a downloads side-table row. data may be empty, in
// which case only the display name is known.
func (c *Catalog) RegisterDownload(ctx context.Context, data, displayName string) (int64, error) {
	var stored sql.NullString
	if data != "" {
		stored = sql.NullString{String: data, Valid: true}
	}
	res, err := c.db.ExecContext(ctx, "INSERT INTO downloads (_data, _display_name) VALUES (?, ?)", stored, displayName)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// FindDownload returns the side-table row stored at data, or nil.
func (c *Catalog) FindDownload(ctx context.Context, data string) (*Download, error) {
	var d Download
	err := c.db.GetContext(ctx, &d, "SELECT * FROM downloads WHERE _data = ? COLLATE NOCASE", data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DownloadPath implements pathuri.Index.
func (c *Catalog) DownloadPath(ctx context.Context, id int64) (string, error) {
	var d Download
	err := c.db.GetContext(ctx, &d, "SELECT * FROM downloads WHERE _id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if d.Data.Valid && d.Data.String != "" {
		return d.Data.String, nil
	}
	return d.DisplayName, nil
}

// ForgetDownload removes side-table rows stored at data.
func (c *Catalog) ForgetDownload(ctx context.Context, data string) error {
	_, err := c.db.ExecContext(ctx, "DELETE FROM downloads WHERE _data = ? COLLATE NOCASE", data)
	return err
}

// MoveDownload repoints side-table rows stored at data.
func (c *Catalog) MoveDownload(ctx context.Context, data, newData, displayName string) error {
	_, err := c.db.ExecContext(ctx, "UPDATE downloads SET _data = ?, _display_name = ? WHERE _data = ? COLLATE NOCASE", newData, displayName, data)
	return err
}

// ListByPrefix returns the rows stored under prefix.
func (c *Catalog) ListByPrefix(ctx context.Context, prefix string) ([]Item, error) {
	var items []Item
	escaped := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(prefix)
	err := c.db.SelectContext(ctx, &items, `SELECT * FROM files WHERE _data LIKE ? ESCAPE '\' ORDER BY _id`, escaped+"%")
	return items, err
}

func (c *Catalog) Close() error {
	return c.db.Close()
}
