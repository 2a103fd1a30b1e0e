package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/conorfennell/flashdeck/internal/domain"
	_ "modernc.org/sqlite" // Registers the sqlite driver
)

// DB represents a wrapper around the SQL database connection.
type DB struct {
	conn *sql.DB
}

// Open creates a new database connection and ensures the schema is up to date.
func Open(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Execute the schema to create tables if they don't exist.
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &DB{conn: db}, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// SessionRow is one journaled review session.
type SessionRow struct {
	ID        string    `json:"id" yaml:"id"`
	DeckPath  string    `json:"deck" yaml:"deck"`
	Presented int       `json:"presented" yaml:"presented"`
	Correct   int       `json:"correct" yaml:"correct"`
	Retired   int       `json:"retired" yaml:"retired"`
	Completed bool      `json:"completed" yaml:"completed"`
	Recorded  bool      `json:"recorded" yaml:"recorded"`
	StartedAt time.Time `json:"started_at" yaml:"started_at"`
	EndedAt   time.Time `json:"ended_at" yaml:"ended_at"`
}

// InsertSession journals a finished session. Only the counts are kept.
func (db *DB) InsertSession(ctx context.Context, deckPath string, report domain.SessionReport) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO sessions (id, deck_path, presented, correct, retired, completed, recorded, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.ID,
		deckPath,
		report.Presented,
		report.Correct,
		len(report.Retired),
		report.Completed,
		report.Recorded,
		report.StartedAt.UTC(),
		report.EndedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert session %s: %w", report.ID, err)
	}
	return nil
}

// RecentSessions returns up to limit sessions, most recent first. A limit of
// zero or less returns every session.
func (db *DB) RecentSessions(ctx context.Context, limit int) ([]SessionRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, deck_path, presented, correct, retired, completed, recorded, started_at, ended_at
		FROM sessions
		ORDER BY ended_at DESC, started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent sessions: %w", err)
	}
	defer rows.Close()

	var sessions []SessionRow
	for rows.Next() {
		var s SessionRow
		if err := rows.Scan(
			&s.ID,
			&s.DeckPath,
			&s.Presented,
			&s.Correct,
			&s.Retired,
			&s.Completed,
			&s.Recorded,
			&s.StartedAt,
			&s.EndedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan session row: %w", err)
		}
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read session rows: %w", err)
	}
	return sessions, nil
}

// Source represents an import source, either a local path or a git reference.
type Source struct {
	ID           int64
	Path         string
	LastImported sql.NullTime
}

// upsertSource records that path was imported at the given time and returns
// its ID.
func upsertSource(ctx context.Context, tx *sql.Tx, path string, at time.Time) (int64, error) {
	var id int64
	err := tx.QueryRowContext(ctx, `
		INSERT INTO sources (path, last_imported)
		VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET last_imported = excluded.last_imported
		RETURNING id
	`, path, at.UTC()).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert source %s: %w", path, err)
	}
	return id, nil
}

// GetAllSources retrieves all stored sources from the database.
func (db *DB) GetAllSources(ctx context.Context) ([]Source, error) {
	rows, err := db.conn.QueryContext(ctx, `
		SELECT id, path, last_imported
		FROM sources
		ORDER BY path
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to get all sources: %w", err)
	}
	defer rows.Close()

	var sources []Source
	for rows.Next() {
		var s Source
		if err := rows.Scan(&s.ID, &s.Path, &s.LastImported); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		sources = append(sources, s)
	}
	return sources, rows.Err()
}

// ImportRow is one journaled import run.
type ImportRow struct {
	ID         int64     `json:"id" yaml:"id"`
	Source     string    `json:"source" yaml:"source"`
	Added      int       `json:"added" yaml:"added"`
	Updated    int       `json:"updated" yaml:"updated"`
	Unchanged  int       `json:"unchanged" yaml:"unchanged"`
	Malformed  int       `json:"malformed" yaml:"malformed"`
	ImportedAt time.Time `json:"imported_at" yaml:"imported_at"`
}

// InsertImport journals the counts of an import and marks its source as
// imported at the given time.
func (db *DB) InsertImport(ctx context.Context, report domain.ImportReport, at time.Time) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin import transaction: %w", err)
	}
	defer tx.Rollback()

	sourceID, err := upsertSource(ctx, tx, report.Source, at)
	if err != nil {
		return 0, err
	}

	res, err := tx.ExecContext(ctx, `
		INSERT INTO imports (source_id, added, updated, unchanged, malformed, imported_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		sourceID,
		report.Added,
		report.Updated,
		report.Unchanged,
		report.Malformed,
		at.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert import of %s: %w", report.Source, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get last insert ID for import of %s: %w", report.Source, err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import of %s: %w", report.Source, err)
	}
	return id, nil
}

// RecentImports returns up to limit imports, most recent first.
func (db *DB) RecentImports(ctx context.Context, limit int) ([]ImportRow, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := db.conn.QueryContext(ctx, `
		SELECT i.id, s.path, i.added, i.updated, i.unchanged, i.malformed, i.imported_at
		FROM imports i JOIN sources s ON s.id = i.source_id
		ORDER BY i.imported_at DESC, i.id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get recent imports: %w", err)
	}
	defer rows.Close()

	var imports []ImportRow
	for rows.Next() {
		var r ImportRow
		if err := rows.Scan(&r.ID, &r.Source, &r.Added, &r.Updated, &r.Unchanged, &r.Malformed, &r.ImportedAt); err != nil {
			return nil, fmt.Errorf("failed to scan import row: %w", err)
		}
		imports = append(imports, r)
	}
	return imports, rows.Err()
}
