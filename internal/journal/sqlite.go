package journal

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and runs migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("journal: open: %w", err)
	}

	// WAL mode so API reads don't block submissions
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal: wal: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS submissions (
			id         TEXT PRIMARY KEY,
			ticket_id  INTEGER NOT NULL DEFAULT 0,
			summary    TEXT NOT NULL,
			channel    TEXT NOT NULL,
			chat_id    TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_submissions_created ON submissions(created_at);
	`)
	if err != nil {
		return fmt.Errorf("journal: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Save(r Record) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO submissions (id, ticket_id, summary, channel, chat_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, r.TicketID, r.Summary, r.Channel, r.ChatID, r.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("journal: save: %w", err)
	}
	return nil
}

func (s *SQLiteStore) List(limit int) ([]Record, error) {
	q := `SELECT id, ticket_id, summary, channel, chat_id, created_at
	      FROM submissions ORDER BY created_at DESC`
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("journal: list: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var createdAt string
		if err := rows.Scan(&r.ID, &r.TicketID, &r.Summary, &r.Channel, &r.ChatID, &createdAt); err != nil {
			return nil, fmt.Errorf("journal: scan: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
