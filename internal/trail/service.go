// Package trail answers verification questions by cross-referencing the
// local record store with the external ledger. Local state is authoritative
// for existence; the ledger annotation is best effort and degrades to
// unknown when the ledger cannot be reached.
package trail

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"veritrail/internal/audit"
	"veritrail/internal/ledger"
	"veritrail/internal/principal"
	"veritrail/internal/record"
	dErrors "veritrail/pkg/domain-errors"
	"veritrail/pkg/platform/sentinel"
)

const defaultTrailLimit = 50

// Item is one trail entry: the local record plus its ledger annotation.
// LedgerVerified is nil when the ledger could not be consulted.
type Item struct {
	Record         *record.Record
	LedgerVerified *bool
}

// Trail is a page of a principal's audit trail.
type Trail struct {
	Principal    *principal.Principal
	Items        []Item
	Total        int64
	LedgerOnline bool
}

// Verification is the authoritative answer for one token. LedgerVerified is
// best effort and reads false when the ledger cannot be consulted; Record
// carries the authoritative local status.
type Verification struct {
	Record         *record.Record
	LedgerVerified bool
	LedgerEntry    *ledger.Entry
}

// Stats summarizes a principal's records against the ledger.
type Stats struct {
	Total            int64
	Verified         int64
	Pending          int64
	Failed           int64
	LedgerCount      int64
	LedgerOnline     bool
	VerificationRate float64
}

// Service reads trails and verifies tokens.
type Service struct {
	records    record.Store
	principals principal.Store
	ledger     ledger.Client
	auditor    *audit.Publisher
	logger     *slog.Logger
	tracer     trace.Tracer
}

func NewService(records record.Store, principals principal.Store, lc ledger.Client, auditor *audit.Publisher, logger *slog.Logger) *Service {
	return &Service{
		records:    records,
		principals: principals,
		ledger:     lc,
		auditor:    auditor,
		logger:     logger,
		tracer:     otel.Tracer("veritrail/trail"),
	}
}

// GetTrail returns the caller's records newest first, each annotated with the
// ledger's view. A ledger outage leaves every annotation nil and the query
// still succeeds.
func (s *Service) GetTrail(ctx context.Context, caller *principal.Principal, address string, limit, offset int) (*Trail, error) {
	p, err := s.resolveOwn(ctx, caller, address)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultTrailLimit
	}
	if offset < 0 {
		offset = 0
	}

	ctx, span := s.tracer.Start(ctx, "trail.read", trace.WithAttributes(
		attribute.String("principal", p.LedgerAddress),
	))
	defer span.End()

	records, err := s.records.ListByPrincipal(ctx, p.ID, limit, offset)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list records")
	}
	total, err := s.records.CountByPrincipal(ctx, p.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "count records")
	}

	// One full read covers every item; per-item calls would hammer the
	// ledger for nothing.
	remote, remoteErr := s.ledger.ReadTrail(ctx, p.LedgerAddress)
	ledgerOnline := remoteErr == nil
	if remoteErr != nil {
		s.logger.Warn("ledger unavailable for trail read, annotations degraded",
			"principal", p.LedgerAddress, "error", remoteErr)
	}
	byToken := make(map[string]ledger.Entry, len(remote))
	for _, entry := range remote {
		byToken[entry.TokenID] = entry
	}

	items := make([]Item, 0, len(records))
	for _, rec := range records {
		item := Item{Record: rec}
		if ledgerOnline {
			entry, found := byToken[rec.TokenID]
			verified := found && entry.Verified
			item.LedgerVerified = &verified
		}
		items = append(items, item)
	}

	s.auditor.Emit(audit.Event{
		Action:      audit.ActionTrailAccessed,
		EntityType:  "principal",
		EntityID:    p.LedgerAddress,
		PrincipalID: p.ID,
	})

	return &Trail{Principal: p, Items: items, Total: total, LedgerOnline: ledgerOnline}, nil
}

// Verify answers for one token. Local state decides existence and ownership;
// the ledger annotation is best effort.
func (s *Service) Verify(ctx context.Context, caller *principal.Principal, tokenID string) (*Verification, error) {
	rec, err := s.records.GetByTokenID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "token not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load record")
	}
	if caller == nil || rec.PrincipalID != caller.ID {
		return nil, dErrors.New(dErrors.CodeForbidden, "token belongs to another principal")
	}

	// An unreachable ledger cannot vouch for the token: the best-effort flag
	// reads false, the authoritative local status stands on its own.
	result := &Verification{Record: rec}
	exists, entry, err := s.ledger.VerifyEntry(ctx, tokenID, caller.LedgerAddress)
	if err != nil {
		s.logger.Warn("ledger unavailable for token verification",
			"token_id", tokenID, "error", err)
	} else {
		result.LedgerVerified = exists && entry != nil && entry.Verified
		result.LedgerEntry = entry
	}

	s.auditor.Emit(audit.Event{
		Action:      audit.ActionTokenVerified,
		EntityType:  "record",
		EntityID:    tokenID,
		PrincipalID: caller.ID,
		TokenID:     tokenID,
	})
	return result, nil
}

// CheckIntegrity compares an expected content hash against the ledger's
// stored hash. Every failure mode reads as false: an unreachable ledger
// cannot vouch for integrity.
func (s *Service) CheckIntegrity(ctx context.Context, caller *principal.Principal, tokenID, expectedHash string) bool {
	if caller == nil || !strings.HasPrefix(expectedHash, "0x") {
		return false
	}
	ok, err := s.ledger.VerifyIntegrity(ctx, tokenID, caller.LedgerAddress, expectedHash)
	if err != nil {
		s.logger.Warn("ledger unavailable for integrity check",
			"token_id", tokenID, "error", err)
		return false
	}

	s.auditor.Emit(audit.Event{
		Action:      audit.ActionIntegrityChecked,
		EntityType:  "record",
		EntityID:    tokenID,
		PrincipalID: caller.ID,
		TokenID:     tokenID,
	})
	return ok
}

// GetStats summarizes a principal's records. The ledger count is best
// effort.
func (s *Service) GetStats(ctx context.Context, caller *principal.Principal, address string) (*Stats, error) {
	p, err := s.resolveOwn(ctx, caller, address)
	if err != nil {
		return nil, err
	}

	stats := &Stats{}
	if stats.Total, err = s.records.CountByPrincipal(ctx, p.ID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "count records")
	}
	if stats.Verified, err = s.records.CountByStatus(ctx, p.ID, record.StatusVerified); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "count records")
	}
	if stats.Pending, err = s.records.CountByStatus(ctx, p.ID, record.StatusPending); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "count records")
	}
	if stats.Failed, err = s.records.CountByStatus(ctx, p.ID, record.StatusFailed); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "count records")
	}
	if stats.Total > 0 {
		stats.VerificationRate = float64(stats.Verified) / float64(stats.Total)
	}

	count, err := s.ledger.CountEntries(ctx, p.LedgerAddress)
	if err != nil {
		s.logger.Warn("ledger unavailable for stats", "principal", p.LedgerAddress, "error", err)
	} else {
		stats.LedgerCount = count
		stats.LedgerOnline = true
	}
	return stats, nil
}

// resolveOwn resolves address and enforces that the caller reads its own
// trail.
func (s *Service) resolveOwn(ctx context.Context, caller *principal.Principal, address string) (*principal.Principal, error) {
	if caller == nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "missing principal")
	}
	if !principal.ValidAddress(address) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "ledger address must be 0x followed by 40 hex characters")
	}
	p, err := s.principals.GetByAddress(ctx, address)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "principal not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "resolve principal")
	}
	if p.ID != caller.ID {
		return nil, dErrors.New(dErrors.CodeForbidden, "trail belongs to another principal")
	}
	return p, nil
}
