package record

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"veritrail/pkg/platform/sentinel"
	txcontext "veritrail/pkg/platform/tx"
)

// PostgresStore implements Store on PostgreSQL. Status transitions are
// enforced in the UPDATE predicates so concurrent writers cannot regress a
// record, and writes join a context-carried transaction when present.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const recordColumns = `token_id, principal_id, tx_type, amount_cents, currency, description,
	data_hash, content_hash, content_locator, file_name, file_size,
	ledger_tx_ref, ledger_block, gas_used, status, failure_kind,
	is_verified, verified_at, created_at`

func (s *PostgresStore) Create(ctx context.Context, rec *Record) error {
	query := `
		INSERT INTO records (
			token_id, principal_id, tx_type, amount_cents, currency, description,
			data_hash, content_hash, content_locator, file_name, file_size, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at
	`
	err := s.execer(ctx).QueryRowContext(ctx, query,
		rec.TokenID,
		rec.PrincipalID,
		rec.Type,
		rec.AmountCents,
		rec.Currency,
		rec.Description,
		rec.DataHash,
		rec.ContentHash,
		nullString(rec.ContentLocator),
		nullString(rec.FileName),
		rec.FileSize,
		string(StatusPending),
	).Scan(&rec.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("record %s: %w", rec.TokenID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert record: %w", err)
	}
	rec.Status = StatusPending
	return nil
}

func (s *PostgresStore) GetByTokenID(ctx context.Context, tokenID string) (*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM records WHERE token_id = $1`
	rec, err := scanRecord(s.execer(ctx).QueryRowContext(ctx, query, tokenID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("record %s: %w", tokenID, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) ListByPrincipal(ctx context.Context, principalID int64, limit, offset int) ([]*Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM records
		WHERE principal_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, principalID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) CountByPrincipal(ctx context.Context, principalID int64) (int64, error) {
	var count int64
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE principal_id = $1`, principalID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) CountByStatus(ctx context.Context, principalID int64, status Status) (int64, error) {
	var count int64
	err := s.execer(ctx).QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE principal_id = $1 AND status = $2`,
		principalID, string(status),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count records by status: %w", err)
	}
	return count, nil
}

func (s *PostgresStore) ListPending(ctx context.Context, limit int) ([]*Record, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM records
		WHERE status = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := s.execer(ctx).QueryContext(ctx, query, string(StatusPending), limit)
	if err != nil {
		return nil, fmt.Errorf("list pending records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// MarkVerified finalizes a confirmed ledger write. Allowed from pending and,
// for explicit resubmissions, from failed; a verified record never changes.
func (s *PostgresStore) MarkVerified(ctx context.Context, tokenID string, conf Confirmation) error {
	query := `
		UPDATE records
		SET ledger_tx_ref = $2, ledger_block = $3, gas_used = $4,
			status = $5, failure_kind = NULL, is_verified = TRUE, verified_at = $6
		WHERE token_id = $1 AND status IN ($7, $8)
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		tokenID, conf.LedgerTxRef, conf.LedgerBlock, conf.GasUsed,
		string(StatusVerified), conf.VerifiedAt,
		string(StatusPending), string(StatusFailed),
	)
	if err != nil {
		return fmt.Errorf("mark record verified: %w", err)
	}
	return s.transitionOutcome(ctx, res, tokenID)
}

// MarkFailed records a ledger failure. A verified record never regresses.
func (s *PostgresStore) MarkFailed(ctx context.Context, tokenID, failureKind string) error {
	query := `
		UPDATE records
		SET status = $2, failure_kind = $3
		WHERE token_id = $1 AND status IN ($4, $5)
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		tokenID, string(StatusFailed), failureKind,
		string(StatusPending), string(StatusFailed),
	)
	if err != nil {
		return fmt.Errorf("mark record failed: %w", err)
	}
	return s.transitionOutcome(ctx, res, tokenID)
}

// transitionOutcome distinguishes "no such record" from "transition not
// allowed" when an UPDATE matched nothing.
func (s *PostgresStore) transitionOutcome(ctx context.Context, res sql.Result, tokenID string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		return nil
	}
	var exists bool
	err = s.execer(ctx).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM records WHERE token_id = $1)`, tokenID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check record existence: %w", err)
	}
	if !exists {
		return fmt.Errorf("record %s: %w", tokenID, sentinel.ErrNotFound)
	}
	return fmt.Errorf("record %s: %w", tokenID, sentinel.ErrInvalidState)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec            Record
		contentLocator sql.NullString
		fileName       sql.NullString
		fileSize       sql.NullInt64
		ledgerTxRef    sql.NullString
		ledgerBlock    sql.NullInt64
		gasUsed        sql.NullInt64
		failureKind    sql.NullString
		verifiedAt     sql.NullTime
	)
	err := row.Scan(
		&rec.TokenID,
		&rec.PrincipalID,
		&rec.Type,
		&rec.AmountCents,
		&rec.Currency,
		&rec.Description,
		&rec.DataHash,
		&rec.ContentHash,
		&contentLocator,
		&fileName,
		&fileSize,
		&ledgerTxRef,
		&ledgerBlock,
		&gasUsed,
		&rec.Status,
		&failureKind,
		&rec.IsVerified,
		&verifiedAt,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.ContentLocator = contentLocator.String
	rec.FileName = fileName.String
	rec.FileSize = fileSize.Int64
	rec.LedgerTxRef = ledgerTxRef.String
	rec.LedgerBlock = ledgerBlock.Int64
	rec.GasUsed = gasUsed.Int64
	rec.FailureKind = failureKind.String
	if verifiedAt.Valid {
		t := verifiedAt.Time
		rec.VerifiedAt = &t
	}
	return &rec, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
