package index

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/starford/adcanvas/internal/apperr"
)

// ProjectRow represents a row in the projects table.
type ProjectRow struct {
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Checksum  string    `json:"checksum"`
	Nodes     int       `json:"nodes"`
	Edges     int       `json:"edges"`
	Products  int       `json:"products"`
	Concepts  int       `json:"concepts"`
	Creatives int       `json:"creatives"`
	SavedAt   time.Time `json:"savedAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// SearchResult represents one search hit.
type SearchResult struct {
	Path    string `json:"path"`
	Name    string `json:"name"`
	Snippet string `json:"snippet"`
}

const projectColumns = `path, name, checksum, node_count, edge_count, product_count,
	concept_count, creative_count, saved_at, updated_at`

// UpsertProject inserts or replaces a project and its FTS entry within a transaction.
func (db *DB) UpsertProject(p ProjectRow, body string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	var savedAt sql.NullTime
	if !p.SavedAt.IsZero() {
		savedAt = sql.NullTime{Time: p.SavedAt, Valid: true}
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = time.Now().UTC()
	}

	// Upsert projects table (includes body for fallback search).
	_, err = tx.Exec(`
		INSERT INTO projects (path, name, checksum, node_count, edge_count, product_count,
			concept_count, creative_count, body, saved_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			name           = excluded.name,
			checksum       = excluded.checksum,
			node_count     = excluded.node_count,
			edge_count     = excluded.edge_count,
			product_count  = excluded.product_count,
			concept_count  = excluded.concept_count,
			creative_count = excluded.creative_count,
			body           = excluded.body,
			saved_at       = excluded.saved_at,
			updated_at     = excluded.updated_at
	`, p.Path, p.Name, p.Checksum, p.Nodes, p.Edges, p.Products, p.Concepts, p.Creatives, body, savedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert project: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, p.Path, p.Name, body); err != nil {
		return err
	}

	return tx.Commit()
}

// DeleteProject removes a project and its FTS entry.
func (db *DB) DeleteProject(path string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, path)
	if _, err := tx.Exec(`DELETE FROM projects WHERE path = ?`, path); err != nil {
		return fmt.Errorf("index: delete project: %w", err)
	}

	return tx.Commit()
}

// GetChecksum returns the stored checksum for a project, or empty string if not found.
func (db *DB) GetChecksum(path string) (string, error) {
	var cs string
	err := db.conn.QueryRow(`SELECT checksum FROM projects WHERE path = ?`, path).Scan(&cs)
	if err != nil {
		return "", nil // not found is fine
	}
	return cs, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(s scanner) (ProjectRow, error) {
	var (
		p       ProjectRow
		savedAt sql.NullTime
	)
	err := s.Scan(&p.Path, &p.Name, &p.Checksum, &p.Nodes, &p.Edges, &p.Products,
		&p.Concepts, &p.Creatives, &savedAt, &p.UpdatedAt)
	if savedAt.Valid {
		p.SavedAt = savedAt.Time
	}
	return p, err
}

// GetProject returns one catalog row.
func (db *DB) GetProject(path string) (*ProjectRow, error) {
	row := db.conn.QueryRow(`SELECT `+projectColumns+` FROM projects WHERE path = ?`, path)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: project %s", apperr.ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("index: get project: %w", err)
	}
	return &p, nil
}

// ListProjects returns a page of projects and the total count. sort is
// "name" or "updated" (newest first, the default).
func (db *DB) ListProjects(limit, offset int, sort string) ([]ProjectRow, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	order := "updated_at DESC, path"
	if sort == "name" {
		order = "name COLLATE NOCASE, path"
	}

	var total int
	if err := db.conn.QueryRow(`SELECT count(*) FROM projects`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("index: count projects: %w", err)
	}

	rows, err := db.conn.Query(`SELECT `+projectColumns+` FROM projects ORDER BY `+order+` LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("index: list projects: %w", err)
	}
	defer rows.Close()

	out := []ProjectRow{}
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// AllChecksums returns path → checksum for every indexed project.
func (db *DB) AllChecksums() (map[string]string, error) {
	rows, err := db.conn.Query(`SELECT path, checksum FROM projects`)
	if err != nil {
		return nil, fmt.Errorf("index: all checksums: %w", err)
	}
	defer rows.Close()
	out := make(map[string]string)
	for rows.Next() {
		var p, cs string
		if err := rows.Scan(&p, &cs); err != nil {
			return nil, err
		}
		out[p] = cs
	}
	return out, rows.Err()
}
