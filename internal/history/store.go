// Package history keeps a record of finished downloads in SQLite.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/handiism/dlqueue/internal/model"
)

// DefaultLimit is how many entries the store keeps.
const DefaultLimit = 500

// ErrNotFound is returned when no entry matches a URL.
var ErrNotFound = errors.New("history entry not found")

// Entry summarizes one finished download.
type Entry struct {
	ID       int64        `json:"id"`
	Date     time.Time    `json:"date"`
	Title    string       `json:"title"`
	URL      string       `json:"url"`
	Duration float64      `json:"duration"` // seconds
	FilePath string       `json:"file_path,omitempty"`
	Status   model.Status `json:"status"`
	Error    string       `json:"error,omitempty"`
}

// EntryFromJob builds an Entry from a job snapshot.
func EntryFromJob(job model.Job, now time.Time) Entry {
	e := Entry{
		Date:     now,
		Title:    "Unknown",
		URL:      job.ID,
		FilePath: job.FilePath,
		Status:   job.Status,
		Error:    job.ErrorMessage(),
	}
	if job.Metadata != nil {
		if job.Metadata.Title != "" {
			e.Title = job.Metadata.Title
		}
		e.Duration = job.Metadata.Duration
	}
	return e
}

// Store is a SQLite-backed history, newest entry first.
type Store struct {
	db    *sql.DB
	limit int
}

// Open opens or creates the history database at path.
// A limit <= 0 keeps DefaultLimit entries.
func Open(path string, limit int) (*Store, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer at a time; avoids SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS history (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  date INTEGER NOT NULL,
  title TEXT NOT NULL,
  url TEXT NOT NULL,
  duration REAL NOT NULL DEFAULT 0,
  file_path TEXT,
  status TEXT NOT NULL,
  error_message TEXT
);
CREATE INDEX IF NOT EXISTS history_url ON history (url);
`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create history schema: %w", err)
	}
	return &Store{db: db, limit: limit}, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Record inserts e and drops entries beyond the store's limit.
func (s *Store) Record(ctx context.Context, e Entry) (Entry, error) {
	if e.Date.IsZero() {
		e.Date = time.Now()
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO history (date, title, url, duration, file_path, status, error_message)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.Date.UnixMilli(),
		e.Title,
		e.URL,
		e.Duration,
		nullable(e.FilePath),
		string(e.Status),
		nullable(e.Error),
	)
	if err != nil {
		return Entry{}, err
	}
	if e.ID, err = res.LastInsertId(); err != nil {
		return Entry{}, err
	}

	_, err = s.db.ExecContext(ctx,
		`DELETE FROM history WHERE id NOT IN (
           SELECT id FROM history ORDER BY date DESC, id DESC LIMIT ?)`, s.limit)
	return e, err
}

// List returns up to limit entries, newest first. A non-empty filter
// keeps entries whose title, URL or date contains it, ignoring case.
func (s *Store) List(ctx context.Context, filter string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > s.limit {
		limit = s.limit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, date, title, url, duration, file_path, status, error_message
       FROM history ORDER BY date DESC, id DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	filter = strings.ToLower(strings.TrimSpace(filter))
	var out []Entry
	for rows.Next() && len(out) < limit {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		if filter != "" && !e.matches(filter) {
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Get returns the newest entry for url.
func (s *Store) Get(ctx context.Context, url string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, date, title, url, duration, file_path, status, error_message
       FROM history WHERE url = ? ORDER BY date DESC, id DESC LIMIT 1`, url)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	return e, err
}

// Delete removes every entry for url.
func (s *Store) Delete(ctx context.Context, url string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM history WHERE url = ?`, url)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Clear removes all entries.
func (s *Store) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM history`)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (Entry, error) {
	var (
		e          Entry
		dateMs     int64
		status     string
		filePath   sql.NullString
		errMessage sql.NullString
	)
	if err := row.Scan(&e.ID, &dateMs, &e.Title, &e.URL, &e.Duration, &filePath, &status, &errMessage); err != nil {
		return Entry{}, err
	}
	e.Date = time.UnixMilli(dateMs)
	e.Status = model.Status(status)
	e.FilePath = filePath.String
	e.Error = errMessage.String
	return e, nil
}

func (e Entry) matches(filter string) bool {
	date := e.Date.Format(time.DateTime)
	for _, field := range []string{e.Title, e.URL, date} {
		if strings.Contains(strings.ToLower(field), filter) {
			return true
		}
	}
	return false
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
