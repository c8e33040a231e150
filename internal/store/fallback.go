package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// journal is the local fallback: an append-only table of serialized
// writes that failed against the primary. Entries replay in insertion
// order through the primary's idempotent upserts.
type journal struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

type journalEntry struct {
	id      int64
	entity  string
	payload []byte
}

const (
	entitySession  = "session"
	entityTrade    = "trade"
	entityPosition = "position"
	entityOrder    = "pending_order"
)

func newJournal(path string) (*journal, error) {
	if path == "" {
		return nil, fmt.Errorf("store: fallback 路径不能为空")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	const schema = `CREATE TABLE IF NOT EXISTS write_journal (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entity TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL
	)`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &journal{db: db, path: path}, nil
}

func (j *journal) Close() error { return j.db.Close() }

func (j *journal) append(ctx context.Context, entity string, record any) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err = j.db.ExecContext(ctx,
		`INSERT INTO write_journal(entity, payload, created_at) VALUES(?, ?, ?)`,
		entity, string(payload), time.Now().Unix())
	return err
}

func (j *journal) pending(ctx context.Context) ([]journalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, entity, payload FROM write_journal ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []journalEntry
	for rows.Next() {
		var e journalEntry
		var payload string
		if err := rows.Scan(&e.id, &e.entity, &payload); err != nil {
			return nil, err
		}
		e.payload = []byte(payload)
		out = append(out, e)
	}
	return out, rows.Err()
}

func (j *journal) remove(ctx context.Context, id int64) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	_, err := j.db.ExecContext(ctx, `DELETE FROM write_journal WHERE id = ?`, id)
	return err
}

func (j *journal) size(ctx context.Context) (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	var n int
	err := j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM write_journal`).Scan(&n)
	return n, err
}
