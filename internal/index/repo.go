package index

import (
	"database/sql"
	"fmt"
	"time"
)

// EntityRow represents a row in the entities table.
type EntityRow struct {
	ID        string
	Kind      string
	Name      string
	Archived  bool
	UpdatedAt time.Time
}

// SearchResult represents one search hit.
type SearchResult struct {
	ID      string
	Kind    string
	Name    string
	Snippet string
}

// GraphNode is one node in the link graph projection.
type GraphNode struct {
	ID   string
	Kind string
	Name string
}

// GraphLink is one directed reference edge.
type GraphLink struct {
	Source string
	Target string
}

// UpsertEntity inserts or replaces an entity, its FTS entry, and its
// outgoing links within a transaction.
func (db *DB) UpsertEntity(row EntityRow, content string, links []string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // best-effort on failure path

	// Upsert entities table (includes content for fallback search).
	_, err = tx.Exec(`
		INSERT INTO entities (id, kind, name, content, archived, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind       = excluded.kind,
			name       = excluded.name,
			content    = excluded.content,
			archived   = excluded.archived,
			updated_at = excluded.updated_at
	`, row.ID, row.Kind, row.Name, content, row.Archived, row.UpdatedAt)
	if err != nil {
		return fmt.Errorf("index: upsert entity: %w", err)
	}

	// FTS upsert (no-op when FTS5 tag is absent).
	if err := ftsUpsert(tx, row.ID, row.Kind, row.Name, content); err != nil {
		return err
	}

	// Replace links: delete old then bulk insert.
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, row.ID)
	if len(links) > 0 {
		stmt, err := tx.Prepare(`INSERT OR IGNORE INTO links (source, target) VALUES (?, ?)`)
		if err != nil {
			return fmt.Errorf("index: prepare link insert: %w", err)
		}
		defer stmt.Close()
		for _, target := range links {
			if _, err := stmt.Exec(row.ID, target); err != nil {
				return fmt.Errorf("index: insert link: %w", err)
			}
		}
	}

	return tx.Commit()
}

// DeleteEntity removes an entity, its FTS entry, and its outgoing links.
func (db *DB) DeleteEntity(id string) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return fmt.Errorf("index: begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	ftsDelete(tx, id)
	_, _ = tx.Exec(`DELETE FROM links WHERE source = ?`, id)
	_, _ = tx.Exec(`DELETE FROM entities WHERE id = ?`, id)

	return tx.Commit()
}

// GetEntity returns one indexed entity, or nil when not indexed.
func (db *DB) GetEntity(id string) (*EntityRow, error) {
	var row EntityRow
	err := db.conn.QueryRow(`
		SELECT id, kind, name, archived, updated_at FROM entities WHERE id = ?
	`, id).Scan(&row.ID, &row.Kind, &row.Name, &row.Archived, &row.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("index: get entity: %w", err)
	}
	return &row, nil
}

// AllIDs returns every indexed entity id.
func (db *DB) AllIDs() (map[string]struct{}, error) {
	rows, err := db.conn.Query(`SELECT id FROM entities`)
	if err != nil {
		return nil, fmt.Errorf("index: all ids: %w", err)
	}
	defer rows.Close()
	out := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out[id] = struct{}{}
	}
	return out, rows.Err()
}

// Backlinks returns all entity ids that link to the given target.
func (db *DB) Backlinks(target string) ([]string, error) {
	rows, err := db.conn.Query(`SELECT source FROM links WHERE target = ?`, target)
	if err != nil {
		return nil, fmt.Errorf("index: backlinks: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// Graph returns every indexed entity and every reference edge between
// indexed entities. Edges pointing at unindexed targets are dropped.
func (db *DB) Graph() ([]GraphNode, []GraphLink, error) {
	rows, err := db.conn.Query(`SELECT id, kind, name FROM entities`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph nodes: %w", err)
	}
	defer rows.Close()

	var nodes []GraphNode
	known := make(map[string]struct{})
	for rows.Next() {
		var n GraphNode
		if err := rows.Scan(&n.ID, &n.Kind, &n.Name); err != nil {
			return nil, nil, err
		}
		nodes = append(nodes, n)
		known[n.ID] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	lrows, err := db.conn.Query(`SELECT source, target FROM links`)
	if err != nil {
		return nil, nil, fmt.Errorf("index: graph links: %w", err)
	}
	defer lrows.Close()

	var edges []GraphLink
	for lrows.Next() {
		var l GraphLink
		if err := lrows.Scan(&l.Source, &l.Target); err != nil {
			return nil, nil, err
		}
		if _, ok := known[l.Target]; !ok {
			continue
		}
		edges = append(edges, l)
	}
	return nodes, edges, lrows.Err()
}
