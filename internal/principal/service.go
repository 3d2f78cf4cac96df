package principal

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"veritrail/internal/audit"
	"veritrail/internal/tokenize"
	dErrors "veritrail/pkg/domain-errors"
	"veritrail/pkg/platform/sentinel"
	txcontext "veritrail/pkg/platform/tx"
)

// Authorizer grants a principal write access on the external ledger. The
// grant runs in the background; registration never waits for it.
type Authorizer interface {
	EnqueueAuthorize(principalID int64, ledgerAddress string)
}

// RegisterInput carries registration fields from the HTTP layer.
type RegisterInput struct {
	CompanyName        string
	LedgerAddress      string
	Email              string
	Phone              string
	RegistrationNumber string
	PostalAddress      string
	SubscriptionTier   Tier
}

// Service orchestrates principal registration and lookup.
type Service struct {
	store      Store
	authorizer Authorizer
	auditor    *audit.Publisher
	tx         txcontext.Runner
	logger     *slog.Logger
	now        func() time.Time
}

func NewService(store Store, authorizer Authorizer, auditor *audit.Publisher, tx txcontext.Runner, logger *slog.Logger) *Service {
	if tx == nil {
		tx = txcontext.PassthroughRunner{}
	}
	return &Service{
		store:      store,
		authorizer: authorizer,
		auditor:    auditor,
		tx:         tx,
		logger:     logger,
		now:        time.Now,
	}
}

// WithClock overrides the registration clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Register creates a principal and issues its API key. The plain key is
// returned exactly once; only the digest is stored. Ledger authorization is
// enqueued and completes in the background.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Principal, string, error) {
	p, err := NewPrincipal(in.CompanyName, in.LedgerAddress, in.Email, in.Phone,
		in.RegistrationNumber, in.PostalAddress, in.SubscriptionTier, s.now())
	if err != nil {
		return nil, "", err
	}

	var apiKey string
	err = s.tx.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.store.Create(txCtx, p); err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return dErrors.New(dErrors.CodeConflict, "ledger address or email already registered")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "create principal")
		}
		apiKey = tokenize.GenerateAPIKey(p.ID)
		p.APIKeyHash = tokenize.HashAPIKey(apiKey)
		if err := s.store.SetAPIKeyHash(txCtx, p.ID, p.APIKeyHash); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "store api key digest")
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}

	s.auditor.Emit(audit.Event{
		Action:      audit.ActionPrincipalRegistered,
		EntityType:  "principal",
		EntityID:    p.LedgerAddress,
		PrincipalID: p.ID,
	})

	if s.authorizer != nil {
		s.authorizer.EnqueueAuthorize(p.ID, p.LedgerAddress)
	}

	s.logger.Info("principal registered",
		"principal_id", p.ID, "ledger_address", p.LedgerAddress, "tier", p.SubscriptionTier)
	return p, apiKey, nil
}

// GetByAddress resolves a principal by ledger address.
func (s *Service) GetByAddress(ctx context.Context, ledgerAddress string) (*Principal, error) {
	if !ValidAddress(ledgerAddress) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "ledger address must be 0x followed by 40 hex characters")
	}
	p, err := s.store.GetByAddress(ctx, ledgerAddress)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "principal not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "get principal")
	}
	return p, nil
}

// Authenticate resolves an active principal from a presented API key.
func (s *Service) Authenticate(ctx context.Context, apiKey string) (*Principal, error) {
	if apiKey == "" {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing API key")
	}
	p, err := s.store.GetByAPIKeyHash(ctx, tokenize.HashAPIKey(apiKey))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid API key")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "resolve api key")
	}
	if !p.IsActive {
		return nil, dErrors.New(dErrors.CodeForbidden, "principal is deactivated")
	}
	return p, nil
}
