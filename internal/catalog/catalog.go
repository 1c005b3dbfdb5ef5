// Package catalog persists the video catalog: display metadata for every
// ingested video plus ingestion bookkeeping. Titles are used for display
// only and never influence ranking.
package catalog

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when a video is not in the catalog.
var ErrNotFound = errors.New("video not found")

// Video is one catalog entry.
type Video struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	URL          string    `json:"url,omitempty"`
	SegmentCount int       `json:"segment_count"`
	IngestedAt   time.Time `json:"ingested_at"`
}

// Store wraps a SQLite database holding the video catalog.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the catalog database in dataDir. Pass ":memory:"
// for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "catalog.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening catalog database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging catalog database: %w", err)
	}

	// Single connection avoids "database is locked" errors.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating catalog: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS videos (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		url TEXT NOT NULL DEFAULT '',
		segment_count INTEGER NOT NULL DEFAULT 0,
		ingested_at DATETIME NOT NULL
	)`)
	return err
}

// Upsert records a video, replacing any previous entry with the same ID.
func (s *Store) Upsert(v Video) error {
	ingestedAt := v.IngestedAt
	if ingestedAt.IsZero() {
		ingestedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO videos (id, title, url, segment_count, ingested_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title = excluded.title,
			url = excluded.url,
			segment_count = excluded.segment_count,
			ingested_at = excluded.ingested_at`,
		v.ID, v.Title, v.URL, v.SegmentCount, ingestedAt.Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("upserting video %s: %w", v.ID, err)
	}
	return nil
}

// Get returns the video with the given ID, or ErrNotFound.
func (s *Store) Get(id string) (Video, error) {
	row := s.db.QueryRow(`SELECT id, title, url, segment_count, ingested_at FROM videos WHERE id = ?`, id)
	v, err := scanVideo(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Video{}, ErrNotFound
	}
	return v, err
}

// List returns all videos ordered by ingestion time, newest first.
func (s *Store) List() ([]Video, error) {
	rows, err := s.db.Query(`SELECT id, title, url, segment_count, ingested_at FROM videos ORDER BY ingested_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("listing videos: %w", err)
	}
	defer rows.Close()

	var videos []Video
	for rows.Next() {
		v, err := scanVideo(rows)
		if err != nil {
			return nil, err
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

// Count returns the number of cataloged videos.
func (s *Store) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM videos`).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting videos: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanVideo(r rowScanner) (Video, error) {
	var v Video
	var ingestedAt string
	if err := r.Scan(&v.ID, &v.Title, &v.URL, &v.SegmentCount, &ingestedAt); err != nil {
		return Video{}, err
	}
	t, err := time.Parse(time.RFC3339, ingestedAt)
	if err != nil {
		return Video{}, fmt.Errorf("parsing ingested_at for %s: %w", v.ID, err)
	}
	v.IngestedAt = t
	return v, nil
}
