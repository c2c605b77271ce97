package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"mintgate/pkg/domain"
	audit "mintgate/pkg/platform/audit"
	txcontext "mintgate/pkg/platform/tx"
)

// Store implements audit.Store over the ledger_events table.
//
// The postgres state store appends through this store with its transaction
// in the context, so events commit with the state change that produced them.
// Append is idempotent on the event ID, which makes the publisher's later
// re-append of the same events a no-op.
type Store struct {
	db *sql.DB
}

// New creates a PostgreSQL audit store.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append materializes an event. Duplicate IDs are ignored.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	payload, err := audit.MarshalPayload(event)
	if err != nil {
		return err
	}
	_, err = txcontext.Use(ctx, s.db).ExecContext(ctx, `
		INSERT INTO ledger_events (id, name, category, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING
	`, event.ID, string(event.Name), string(event.Category()), payload, event.Timestamp)
	if err != nil {
		return fmt.Errorf("insert ledger event: %w", err)
	}
	return nil
}

// ListByAccount returns every event the account took part in, oldest first.
func (s *Store) ListByAccount(ctx context.Context, account domain.Account) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, payload, created_at
		FROM ledger_events
		WHERE payload->>'caller' = $1
		   OR payload->>'account' = $1
		   OR payload->>'counterparty' = $1
		ORDER BY seq
	`, account.Hex())
	if err != nil {
		return nil, fmt.Errorf("query ledger events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListRecent returns the most recent limit events, oldest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	if limit <= 0 {
		return []audit.Event{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, payload, created_at FROM (
			SELECT seq, id, name, payload, created_at
			FROM ledger_events
			ORDER BY seq DESC
			LIMIT $1
		) recent
		ORDER BY seq
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query ledger events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	events := []audit.Event{}
	for rows.Next() {
		var (
			e       audit.Event
			name    string
			payload []byte
		)
		if err := rows.Scan(&e.ID, &name, &payload, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scan ledger event: %w", err)
		}
		e.Name = audit.AuditEvent(name)
		if err := audit.UnmarshalPayload(payload, &e); err != nil {
			return nil, fmt.Errorf("event %s: %w", e.ID, err)
		}
		e.Timestamp = e.Timestamp.UTC()
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ledger events: %w", err)
	}
	return events, nil
}
