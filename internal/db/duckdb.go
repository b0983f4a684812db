package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"
)

// DB is the build catalog: one row per rendered page plus a log of builds.
type DB struct {
	conn *sql.DB
}

func New(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	conn, err := sql.Open("duckdb", dbPath)
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

func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) initSchema() error {
	queries := []string{
		`CREATE SEQUENCE IF NOT EXISTS seq_page_id START 1;`,
		`CREATE SEQUENCE IF NOT EXISTS seq_build_id START 1;`,

		`CREATE TABLE IF NOT EXISTS pages (
			id INTEGER PRIMARY KEY,
			locator TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL,
			package TEXT NOT NULL,
			category TEXT NOT NULL,
			kind TEXT NOT NULL,
			hidden BOOLEAN NOT NULL DEFAULT false,
			content_hash TEXT NOT NULL,
			fragments TEXT NOT NULL DEFAULT '',
			rendered_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_pages_name ON pages (name)`,
		`CREATE INDEX IF NOT EXISTS idx_pages_package ON pages (package)`,

		`CREATE TABLE IF NOT EXISTS builds (
			id INTEGER PRIMARY KEY,
			index_version TEXT NOT NULL,
			started_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			finished_at TIMESTAMP,
			rendered INTEGER NOT NULL DEFAULT 0,
			unchanged INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0
		)`,
	}

	for _, q := range queries {
		if _, err := db.conn.Exec(q); err != nil {
			return fmt.Errorf("executing %q: %w", q, err)
		}
	}
	return nil
}

// --- Page operations ---

type Page struct {
	ID          int
	Locator     string
	Name        string
	Package     string
	Category    string
	Kind        string
	Hidden      bool
	ContentHash string
	Fragments   []string
	RenderedAt  time.Time
}

const pageColumns = `id, locator, name, package, category, kind, hidden, content_hash, fragments, rendered_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanPage(s scanner) (*Page, error) {
	var p Page
	var fragments string
	if err := s.Scan(&p.ID, &p.Locator, &p.Name, &p.Package, &p.Category, &p.Kind, &p.Hidden, &p.ContentHash, &fragments, &p.RenderedAt); err != nil {
		return nil, err
	}
	if fragments != "" {
		p.Fragments = strings.Split(fragments, ",")
	}
	return &p, nil
}

// UpsertPage records a rendered page, reporting whether its content hash
// differs from the previously recorded one. rendered_at only moves when the
// content changes.
func (db *DB) UpsertPage(p *Page) (bool, error) {
	var id int
	var oldHash string
	err := db.conn.QueryRow(
		`SELECT id, content_hash FROM pages WHERE locator = ?`, p.Locator,
	).Scan(&id, &oldHash)

	fragments := strings.Join(p.Fragments, ",")
	switch {
	case err == sql.ErrNoRows:
		err = db.conn.QueryRow(
			`INSERT INTO pages (id, locator, name, package, category, kind, hidden, content_hash, fragments)
			 VALUES (nextval('seq_page_id'), ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`,
			p.Locator, p.Name, p.Package, p.Category, p.Kind, p.Hidden, p.ContentHash, fragments,
		).Scan(&p.ID)
		if err != nil {
			return false, fmt.Errorf("inserting page: %w", err)
		}
		return true, nil
	case err != nil:
		return false, fmt.Errorf("checking page: %w", err)
	}

	p.ID = id
	changed := oldHash != p.ContentHash
	query := `UPDATE pages SET name = ?, package = ?, category = ?, kind = ?, hidden = ?, content_hash = ?, fragments = ? WHERE id = ?`
	if changed {
		query = `UPDATE pages SET name = ?, package = ?, category = ?, kind = ?, hidden = ?, content_hash = ?, fragments = ?,
			rendered_at = CURRENT_TIMESTAMP WHERE id = ?`
	}
	if _, err := db.conn.Exec(query, p.Name, p.Package, p.Category, p.Kind, p.Hidden, p.ContentHash, fragments, id); err != nil {
		return false, fmt.Errorf("updating page: %w", err)
	}
	return changed, nil
}

// GetPage returns the page recorded for locator, or nil if there is none.
func (db *DB) GetPage(locator string) (*Page, error) {
	p, err := scanPage(db.conn.QueryRow(
		`SELECT `+pageColumns+` FROM pages WHERE locator = ?`, locator,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (db *DB) ListPages() ([]Page, error) {
	rows, err := db.conn.Query(`SELECT ` + pageColumns + ` FROM pages ORDER BY package, name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var pages []Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		pages = append(pages, *p)
	}
	return pages, rows.Err()
}

// PrunePages deletes every page whose locator is not in keep and returns
// the locators that were removed.
func (db *DB) PrunePages(keep []string) ([]string, error) {
	pages, err := db.ListPages()
	if err != nil {
		return nil, err
	}
	wanted := make(map[string]bool, len(keep))
	for _, loc := range keep {
		wanted[loc] = true
	}

	var removed []string
	for _, p := range pages {
		if wanted[p.Locator] {
			continue
		}
		if _, err := db.conn.Exec(`DELETE FROM pages WHERE id = ?`, p.ID); err != nil {
			return removed, fmt.Errorf("deleting page %s: %w", p.Locator, err)
		}
		removed = append(removed, p.Locator)
	}
	return removed, nil
}

func (db *DB) CountPages() (int, error) {
	var count int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM pages`).Scan(&count)
	return count, err
}

// --- Build operations ---

type Build struct {
	ID           int
	IndexVersion string
	StartedAt    time.Time
	FinishedAt   *time.Time
	Rendered     int
	Unchanged    int
	Failed       int
}

func (db *DB) StartBuild(indexVersion string) (int, error) {
	var id int
	err := db.conn.QueryRow(
		`INSERT INTO builds (id, index_version) VALUES (nextval('seq_build_id'), ?) RETURNING id`, indexVersion,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("inserting build: %w", err)
	}
	return id, nil
}

func (db *DB) FinishBuild(id, rendered, unchanged, failed int) error {
	_, err := db.conn.Exec(
		`UPDATE builds SET finished_at = CURRENT_TIMESTAMP, rendered = ?, unchanged = ?, failed = ? WHERE id = ?`,
		rendered, unchanged, failed, id,
	)
	return err
}

// LastBuild returns the most recently started build, or nil if none ran.
func (db *DB) LastBuild() (*Build, error) {
	var b Build
	err := db.conn.QueryRow(
		`SELECT id, index_version, started_at, finished_at, rendered, unchanged, failed
		 FROM builds ORDER BY id DESC LIMIT 1`,
	).Scan(&b.ID, &b.IndexVersion, &b.StartedAt, &b.FinishedAt, &b.Rendered, &b.Unchanged, &b.Failed)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// Clear empties the catalog. The schema is kept.
func (db *DB) Clear() error {
	for _, q := range []string{`DELETE FROM pages`, `DELETE FROM builds`} {
		if _, err := db.conn.Exec(q); err != nil {
			return fmt.Errorf("executing %q: %w", q, err)
		}
	}
	return nil
}
