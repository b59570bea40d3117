// pkg/linking/store.go
package linking

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Store is a persistent resolution cache backed by database/sql.
// It keeps resolved entities and authoritative no-matches across runs.
type Store struct {
	db *sql.DB
	pg bool // postgres placeholder dialect
}

// OpenStore opens and initializes a resolution store. postgres:// and
// postgresql:// DSNs use the pgx driver; anything else is treated as a
// SQLite database path (":memory:" included).
func OpenStore(dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store DSN is required")
	}

	driver := "sqlite"
	pg := strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
	if pg {
		driver = "pgx"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening resolution store: %w", err)
	}
	if !pg {
		// sqlite hands every pooled connection its own ":memory:" database
		// and serializes writers anyway.
		db.SetMaxOpenConns(1)
	}
	if err := createStoreSchema(db, pg); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating resolution store schema: %w", err)
	}
	return &Store{db: db, pg: pg}, nil
}

func createStoreSchema(db *sql.DB, pg bool) error {
	confidence := "REAL"
	if pg {
		confidence = "DOUBLE PRECISION"
	}
	_, err := db.Exec(fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS resolutions (
			key         TEXT PRIMARY KEY NOT NULL,
			identifier  TEXT NOT NULL,
			page_id     TEXT NOT NULL,
			name        TEXT NOT NULL,
			source      TEXT NOT NULL,
			confidence  %s NOT NULL,
			resolved_at TEXT NOT NULL
		)
	`, confidence))
	return err
}

// Get retrieves a cached resolution. ok reports whether the key was
// present; a present key with an empty identifier is a cached no-match
// and returns a nil entity.
func (s *Store) Get(ctx context.Context, key string) (*Entity, bool, error) {
	query := "SELECT identifier, page_id, name, source, confidence FROM resolutions WHERE key = ?"
	if s.pg {
		query = "SELECT identifier, page_id, name, source, confidence FROM resolutions WHERE key = $1"
	}

	var e Entity
	err := s.db.QueryRowContext(ctx, query, key).Scan(&e.ID, &e.PageID, &e.Name, &e.Source, &e.Confidence)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying resolution: %w", err)
	}
	if e.ID == "" {
		return nil, true, nil
	}
	return &e, true, nil
}

// Put stores a resolution. A nil entity records a no-match.
func (s *Store) Put(ctx context.Context, key string, e *Entity) error {
	row := Entity{}
	if e != nil {
		row = *e
	}

	query := `
		INSERT INTO resolutions (key, identifier, page_id, name, source, confidence, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			identifier = excluded.identifier,
			page_id = excluded.page_id,
			name = excluded.name,
			source = excluded.source,
			confidence = excluded.confidence,
			resolved_at = excluded.resolved_at`
	if s.pg {
		query = `
		INSERT INTO resolutions (key, identifier, page_id, name, source, confidence, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT(key) DO UPDATE SET
			identifier = excluded.identifier,
			page_id = excluded.page_id,
			name = excluded.name,
			source = excluded.source,
			confidence = excluded.confidence,
			resolved_at = excluded.resolved_at`
	}

	_, err := s.db.ExecContext(ctx, query,
		key, row.ID, row.PageID, row.Name, row.Source, row.Confidence,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting resolution: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
