// Package ingest orchestrates transaction intake: hash the document, store
// it, mint the token, persist the pending record, then hand the ledger write
// to the reconciliation coordinator. The ledger step never fails an upload.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"veritrail/internal/audit"
	"veritrail/internal/content"
	"veritrail/internal/principal"
	"veritrail/internal/record"
	"veritrail/internal/tokenize"
	dErrors "veritrail/pkg/domain-errors"
)

var validTypes = map[string]bool{
	"PAYMENT":  true,
	"INVOICE":  true,
	"EXPENSE":  true,
	"RECEIPT":  true,
	"REFUND":   true,
	"CONTRACT": true,
	"OTHER":    true,
}

var validCurrencies = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true,
	"CAD": true, "AUD": true, "CHF": true, "CNY": true,
}

// Submitter hands a durable pending record to the background reconciler.
type Submitter interface {
	Submit(rec *record.Record, principalAddress string)
}

// UploadInput carries a validated upload from the HTTP layer. The principal
// comes from the auth middleware, never from the request body.
type UploadInput struct {
	Principal   *principal.Principal
	Type        string
	AmountCents int64
	Currency    string
	Description string
	FileName    string
	FileData    []byte
}

// Service runs the intake pipeline.
type Service struct {
	records     record.Store
	content     content.Client
	coordinator Submitter
	auditor     *audit.Publisher
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(records record.Store, contentClient content.Client, coordinator Submitter, auditor *audit.Publisher, logger *slog.Logger) *Service {
	return &Service{
		records:     records,
		content:     contentClient,
		coordinator: coordinator,
		auditor:     auditor,
		logger:      logger,
		now:         time.Now,
	}
}

// WithClock overrides the token timestamp clock.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Upload validates the transaction, persists it as a pending record and
// enqueues the ledger write. The returned record reflects local durable
// state; ledger confirmation arrives asynchronously.
func (s *Service) Upload(ctx context.Context, in UploadInput) (*record.Record, error) {
	if err := validate(in); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	contentHash := tokenize.HashContent(in.FileData)

	locator, err := s.content.Put(ctx, in.FileData, in.FileName)
	degradedStorage := err != nil
	if degradedStorage {
		locator = content.FallbackLocator(contentHash)
		s.logger.Warn("content store unavailable, using fallback locator",
			"locator", locator, "error", err)
	}

	tokenID, err := tokenize.Generate(in.Principal.ID, in.Type, now)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid transaction type")
	}

	dataHash, err := tokenize.HashStructured(map[string]any{
		"token_id":         tokenID,
		"principal_id":     in.Principal.ID,
		"wallet_address":   in.Principal.LedgerAddress,
		"transaction_type": in.Type,
		"amount_cents":     in.AmountCents,
		"currency":         in.Currency,
		"description":      in.Description,
		"file_name":        in.FileName,
		"file_size":        int64(len(in.FileData)),
		"content_hash":     contentHash,
		"timestamp":        now.Unix(),
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "hash transaction data")
	}

	rec := &record.Record{
		TokenID:        tokenID,
		PrincipalID:    in.Principal.ID,
		Type:           in.Type,
		AmountCents:    in.AmountCents,
		Currency:       in.Currency,
		Description:    in.Description,
		DataHash:       dataHash,
		ContentHash:    contentHash,
		ContentLocator: locator,
		FileName:       in.FileName,
		FileSize:       int64(len(in.FileData)),
	}
	if err := s.records.Create(ctx, rec); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "persist record")
	}

	notes := ""
	if degradedStorage {
		notes = "content store unavailable, fallback locator " + locator
	}
	s.auditor.Emit(audit.Event{
		Action:      audit.ActionRecordCreated,
		EntityType:  "record",
		EntityID:    tokenID,
		PrincipalID: in.Principal.ID,
		TokenID:     tokenID,
		Notes:       notes,
	})

	s.coordinator.Submit(rec, in.Principal.LedgerAddress)

	s.logger.Info("transaction recorded",
		"token_id", tokenID, "principal_id", in.Principal.ID,
		"type", in.Type, "amount_cents", in.AmountCents, "degraded_storage", degradedStorage)
	return rec, nil
}

func validate(in UploadInput) error {
	if in.Principal == nil {
		return dErrors.New(dErrors.CodeUnauthorized, "missing principal")
	}
	if !in.Principal.IsActive {
		return dErrors.New(dErrors.CodeForbidden, "principal is deactivated")
	}
	if !validTypes[in.Type] {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unknown transaction type %q", in.Type))
	}
	if !validCurrencies[in.Currency] {
		return dErrors.New(dErrors.CodeInvalidInput, fmt.Sprintf("unsupported currency %q", in.Currency))
	}
	if in.AmountCents <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	}
	if len(in.FileData) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "transaction document is required")
	}
	return nil
}
