package audit

import (
	"context"
	"database/sql"
	"fmt"

	txcontext "veritrail/pkg/platform/tx"
)

// PostgresStore is the append-only PostgreSQL event store.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	query := `
		INSERT INTO audit_events (
			id, occurred_at, action, action_type, entity_type, entity_id,
			actor, principal_id, token_id, status, notes
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		event.ID,
		event.OccurredAt,
		event.Action,
		string(event.ActionType),
		event.EntityType,
		event.EntityID,
		event.Actor,
		nullInt64(event.PrincipalID),
		nullStr(event.TokenID),
		event.Status,
		event.Notes,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

const eventColumns = `id, occurred_at, action, action_type, entity_type, entity_id,
	actor, principal_id, token_id, status, notes`

func (s *PostgresStore) ListByPrincipal(ctx context.Context, principalID int64, limit int) ([]Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM audit_events
		WHERE principal_id = $1
		ORDER BY occurred_at DESC
		LIMIT $2
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, principalID, limit)
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func (s *PostgresStore) ListByToken(ctx context.Context, tokenID string) ([]Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM audit_events
		WHERE token_id = $1
		ORDER BY occurred_at ASC
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, tokenID)
	if err != nil {
		return nil, fmt.Errorf("list audit events by token: %w", err)
	}
	defer rows.Close()
	return collectEvents(rows)
}

func collectEvents(rows *sql.Rows) ([]Event, error) {
	var events []Event
	for rows.Next() {
		var (
			event       Event
			principalID sql.NullInt64
			tokenID     sql.NullString
		)
		err := rows.Scan(
			&event.ID,
			&event.OccurredAt,
			&event.Action,
			&event.ActionType,
			&event.EntityType,
			&event.EntityID,
			&event.Actor,
			&principalID,
			&tokenID,
			&event.Status,
			&event.Notes,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.PrincipalID = principalID.Int64
		event.TokenID = tokenID.String
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func nullInt64(v int64) sql.NullInt64 {
	return sql.NullInt64{Int64: v, Valid: v != 0}
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
