package principal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"veritrail/pkg/platform/sentinel"
	txcontext "veritrail/pkg/platform/tx"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, p *Principal) error {
	query := `
		INSERT INTO principals (
			company_name, ledger_address, email, phone, registration_number,
			postal_address, subscription_tier, api_key_hash, is_active, registered_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`
	err := s.execer(ctx).QueryRowContext(ctx, query,
		p.CompanyName,
		p.LedgerAddress,
		p.Email,
		p.Phone,
		p.RegistrationNumber,
		p.PostalAddress,
		string(p.SubscriptionTier),
		p.APIKeyHash,
		p.IsActive,
		p.RegisteredAt,
	).Scan(&p.ID)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return fmt.Errorf("principal %s: %w", p.LedgerAddress, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert principal: %w", err)
	}
	return nil
}

func (s *PostgresStore) SetAPIKeyHash(ctx context.Context, id int64, hash string) error {
	res, err := s.execer(ctx).ExecContext(ctx,
		`UPDATE principals SET api_key_hash = $2 WHERE id = $1`, id, hash)
	if err != nil {
		return fmt.Errorf("set api key hash: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("principal %d: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

const principalColumns = `id, company_name, ledger_address, email, phone, registration_number,
	postal_address, subscription_tier, api_key_hash, is_active, registered_at`

func (s *PostgresStore) GetByID(ctx context.Context, id int64) (*Principal, error) {
	return s.getWhere(ctx, "id = $1", id)
}

func (s *PostgresStore) GetByAddress(ctx context.Context, ledgerAddress string) (*Principal, error) {
	return s.getWhere(ctx, "LOWER(ledger_address) = LOWER($1)", ledgerAddress)
}

func (s *PostgresStore) GetByAPIKeyHash(ctx context.Context, hash string) (*Principal, error) {
	return s.getWhere(ctx, "api_key_hash = $1", hash)
}

func (s *PostgresStore) getWhere(ctx context.Context, where string, arg any) (*Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals WHERE ` + where
	var (
		p                        Principal
		tier                     string
		phone, regNumber, postal sql.NullString
	)
	err := s.execer(ctx).QueryRowContext(ctx, query, arg).Scan(
		&p.ID,
		&p.CompanyName,
		&p.LedgerAddress,
		&p.Email,
		&phone,
		&regNumber,
		&postal,
		&tier,
		&p.APIKeyHash,
		&p.IsActive,
		&p.RegisteredAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("principal: %w", sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get principal: %w", err)
	}
	p.Phone = phone.String
	p.RegistrationNumber = regNumber.String
	p.PostalAddress = postal.String
	p.SubscriptionTier = Tier(tier)
	return &p, nil
}
