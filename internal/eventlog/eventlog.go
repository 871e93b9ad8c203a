// Package eventlog is an append-only audit trail of domain events.
package eventlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/mind-engage/learnhub/internal/clock"
)

// Event types.
const (
	AttemptCompleted  = "attempt.completed"
	AttemptExpired    = "attempt.expired"
	CertificateIssued = "certificate.issued"
	SessionsRevoked   = "sessions.revoked"
	AccountDisabled   = "account.disabled"
)

type Event struct {
	Seq       int64           `json:"seq"`
	Type      string          `json:"type"`
	Key       string          `json:"key"`
	Data      json.RawMessage `json:"data"`
	CreatedAt int64           `json:"createdAt"`
}

// Sink accepts events. Services depend on this rather than on *Repo.
type Sink interface {
	Append(ctx context.Context, typ, key string, data any) error
}

type Repo struct {
	db    *sql.DB
	clock clock.Clock
}

func NewRepo(db *sql.DB, clk clock.Clock) *Repo {
	if clk == nil {
		clk = clock.System()
	}
	return &Repo{db: db, clock: clk}
}

func (r *Repo) Append(ctx context.Context, typ, key string, data any) error {
	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("eventlog: encode %s: %w", typ, err)
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO event_log (typ, event_key, data, created_at) VALUES ($1,$2,$3,$4)`,
		typ, key, string(b), r.clock.Now().Unix())
	if err != nil {
		return fmt.Errorf("eventlog: append %s: %w", typ, err)
	}
	return nil
}

// List returns events for key in append order, after the given sequence.
func (r *Repo) List(ctx context.Context, key string, afterSeq int64, limit int) ([]Event, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT seq, typ, event_key, data, created_at FROM event_log
		 WHERE event_key = $1 AND seq > $2 ORDER BY seq LIMIT $3`,
		key, afterSeq, limit)
	if err != nil {
		return nil, fmt.Errorf("eventlog: list: %w", err)
	}
	defer rows.Close()
	var out []Event
	for rows.Next() {
		var (
			e    Event
			data string
		)
		if err := rows.Scan(&e.Seq, &e.Type, &e.Key, &data, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Data = json.RawMessage(data)
		out = append(out, e)
	}
	return out, rows.Err()
}

// Nop discards events.
type Nop struct{}

func (Nop) Append(context.Context, string, string, any) error { return nil }
