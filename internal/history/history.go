package history

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"ragbot/internal/domain"
)

//go:embed migrations/*.sql
var migrations embed.FS

// Entry is one question and its answer.
type Entry struct {
	ID         string    `json:"id"`
	AskedAt    time.Time `json:"asked_at"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	NumRecords int       `json:"num_records"`
	Sources    []string  `json:"sources"`
}

// EntryFor builds the log entry for an answered question.
func EntryFor(res *domain.QueryResult) Entry {
	sources := make([]string, 0, len(res.Records))
	for _, r := range res.Records {
		sources = append(sources, r.Record.Label())
	}
	return Entry{
		Question:   res.Question,
		Answer:     res.Answer,
		NumRecords: res.NumRecords,
		Sources:    sources,
	}
}

// Log stores exchanges in SQLite. It is write-mostly and never feeds back
// into answering.
type Log struct {
	db *sql.DB
}

// Open opens (or creates) the log at path and applies the schema.
func Open(path string) (*Log, error) {
	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite allows a single writer.
	db.SetMaxOpenConns(1)
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Log{db: db}, nil
}

func migrate(db *sql.DB) error {
	data, err := migrations.ReadFile("migrations/001_init.sql")
	if err != nil {
		return fmt.Errorf("read migration: %w", err)
	}
	if _, err := db.Exec(string(data)); err != nil {
		return fmt.Errorf("exec migration: %w", err)
	}
	return nil
}

// Append stores e, filling in ID and AskedAt when empty.
func (l *Log) Append(ctx context.Context, e Entry) (Entry, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.AskedAt.IsZero() {
		e.AskedAt = time.Now()
	}
	if e.Sources == nil {
		e.Sources = []string{}
	}
	sources, err := json.Marshal(e.Sources)
	if err != nil {
		return e, fmt.Errorf("marshal sources: %w", err)
	}
	_, err = l.db.ExecContext(ctx, `
		INSERT INTO exchanges (id, asked_at, question, answer, num_records, sources)
		VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.AskedAt.UnixNano(), e.Question, e.Answer, e.NumRecords, string(sources),
	)
	if err != nil {
		return e, fmt.Errorf("insert exchange: %w", err)
	}
	return e, nil
}

// Recent returns up to limit exchanges, oldest first.
func (l *Log) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, asked_at, question, answer, num_records, sources
		FROM (
			SELECT id, asked_at, question, answer, num_records, sources, rowid AS seq
			FROM exchanges ORDER BY asked_at DESC, seq DESC LIMIT ?
		) ORDER BY asked_at ASC, seq ASC`, limit)
	if err != nil {
		return nil, fmt.Errorf("query exchanges: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var (
			e       Entry
			askedAt int64
			sources string
		)
		if err := rows.Scan(&e.ID, &askedAt, &e.Question, &e.Answer, &e.NumRecords, &sources); err != nil {
			return nil, fmt.Errorf("scan exchange: %w", err)
		}
		e.AskedAt = time.Unix(0, askedAt)
		if err := json.Unmarshal([]byte(sources), &e.Sources); err != nil {
			return nil, fmt.Errorf("unmarshal sources: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear deletes every exchange.
func (l *Log) Clear(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, `DELETE FROM exchanges`); err != nil {
		return fmt.Errorf("clear exchanges: %w", err)
	}
	return nil
}

func (l *Log) Close() error {
	return l.db.Close()
}
