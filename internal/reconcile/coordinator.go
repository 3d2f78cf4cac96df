// Package reconcile owns the pending → {verified | failed} lifecycle of local
// records. Every ledger write runs as a tracked background task so request
// handlers return as soon as the durable pending record exists.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"veritrail/internal/audit"
	"veritrail/internal/ledger"
	"veritrail/internal/ledger/authcache"
	"veritrail/internal/record"
	dErrors "veritrail/pkg/domain-errors"
	"veritrail/pkg/platform/sentinel"
	txcontext "veritrail/pkg/platform/tx"
)

const defaultMaxInFlight = 32

// Coordinator mirrors local records into the external ledger. A record it
// touches ends in exactly one terminal state; tasks it could not finish stay
// pending for restart-time reconciliation.
type Coordinator struct {
	ledger  ledger.Client
	records record.Store
	authz   *authcache.Checker
	auditor *audit.Publisher
	tx      txcontext.Runner
	metrics *Metrics
	logger  *slog.Logger
	tracer  trace.Tracer

	wg  sync.WaitGroup
	sem chan struct{}
}

// Option configures optional coordinator collaborators.
type Option func(*Coordinator)

// WithMetrics attaches prometheus metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) { c.metrics = m }
}

// WithMaxInFlight bounds concurrent ledger submissions.
func WithMaxInFlight(n int) Option {
	return func(c *Coordinator) {
		if n > 0 {
			c.sem = make(chan struct{}, n)
		}
	}
}

func NewCoordinator(lc ledger.Client, records record.Store, authz *authcache.Checker, auditor *audit.Publisher, tx txcontext.Runner, logger *slog.Logger, opts ...Option) *Coordinator {
	if tx == nil {
		tx = txcontext.PassthroughRunner{}
	}
	c := &Coordinator{
		ledger:  lc,
		records: records,
		authz:   authz,
		auditor: auditor,
		tx:      tx,
		logger:  logger,
		tracer:  otel.Tracer("veritrail/reconcile"),
		sem:     make(chan struct{}, defaultMaxInFlight),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit enqueues a ledger write for a pending record. It returns
// immediately; the outcome lands in the record store and the audit trail.
// The task runs detached from the request context so a closed client
// connection cannot orphan a confirmed ledger write.
func (c *Coordinator) Submit(rec *record.Record, principalAddress string) {
	cp := *rec
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.sem <- struct{}{}
		defer func() { <-c.sem }()
		c.submit(context.Background(), &cp, principalAddress)
	}()
}

func (c *Coordinator) submit(ctx context.Context, rec *record.Record, principalAddress string) {
	ctx, span := c.tracer.Start(ctx, "ledger.submit", trace.WithAttributes(
		attribute.String("token_id", rec.TokenID),
		attribute.String("principal", principalAddress),
	))
	defer span.End()

	start := time.Now()
	c.metrics.trackInFlight(1)
	defer c.metrics.trackInFlight(-1)

	authorized, err := c.authz.IsAuthorized(ctx, principalAddress)
	if err != nil {
		c.finalizeFailure(ctx, rec, fmt.Errorf("authorization check: %w", ledger.ErrUnavailable))
		c.metrics.observeSubmission("failed", start)
		return
	}
	if !authorized {
		// The registration-time grant may still be in flight. Leave the
		// record pending; a later resubmission or restart sweep picks it up.
		c.auditor.Emit(audit.Event{
			Action:      audit.ActionAuthorizationFailed,
			EntityType:  "record",
			EntityID:    rec.TokenID,
			PrincipalID: rec.PrincipalID,
			TokenID:     rec.TokenID,
			Status:      audit.StatusFailure,
			Notes:       "principal not authorized on ledger, record left pending",
		})
		c.logger.Warn("ledger submission skipped, principal not authorized",
			"token_id", rec.TokenID, "principal", principalAddress)
		c.metrics.observeSubmission("unauthorized", start)
		return
	}

	receipt, err := c.ledger.SubmitEntry(ctx, ledger.SubmitRequest{
		TokenID:        rec.TokenID,
		Type:           rec.Type,
		AmountCents:    rec.AmountCents,
		DataHash:       rec.DataHash,
		ContentLocator: rec.ContentLocator,
		Principal:      principalAddress,
	})
	if err != nil {
		c.finalizeFailure(ctx, rec, err)
		c.metrics.observeSubmission("failed", start)
		return
	}
	if !receipt.Success {
		// Included but unsuccessful, e.g. a reverted contract call. The
		// entry never made it onto the trail; the receipt is not a write.
		c.finalizeFailure(ctx, rec, fmt.Errorf("ledger rejected entry, tx %s", receipt.TxRef))
		c.metrics.observeSubmission("failed", start)
		return
	}

	if err := c.finalizeSuccess(ctx, rec, receipt); err != nil {
		c.logger.Error("ledger write confirmed but local finalize failed",
			"token_id", rec.TokenID, "ledger_tx_ref", receipt.TxRef, "error", err)
		c.metrics.observeSubmission("finalize_failed", start)
		return
	}
	c.metrics.observeSubmission("verified", start)
	c.logger.Info("record verified on ledger",
		"token_id", rec.TokenID, "ledger_tx_ref", receipt.TxRef, "block", receipt.Block)
}

// finalizeSuccess commits the status flip and its audit event atomically.
func (c *Coordinator) finalizeSuccess(ctx context.Context, rec *record.Record, receipt ledger.Receipt) error {
	return c.tx.RunInTx(ctx, func(txCtx context.Context) error {
		conf := record.Confirmation{
			LedgerTxRef: receipt.TxRef,
			LedgerBlock: receipt.Block,
			GasUsed:     receipt.GasUsed,
			VerifiedAt:  time.Now().UTC(),
		}
		if err := c.records.MarkVerified(txCtx, rec.TokenID, conf); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				// A concurrent finalizer already verified it. The ledger
				// entry exists either way, nothing to undo.
				return nil
			}
			return err
		}
		return c.auditor.Append(txCtx, audit.Event{
			Action:      audit.ActionLedgerConfirmed,
			EntityType:  "record",
			EntityID:    rec.TokenID,
			PrincipalID: rec.PrincipalID,
			TokenID:     rec.TokenID,
			Notes:       fmt.Sprintf("ledger tx %s block %d", receipt.TxRef, receipt.Block),
		})
	})
}

func (c *Coordinator) finalizeFailure(ctx context.Context, rec *record.Record, cause error) {
	kind := failureKind(cause)
	if err := c.records.MarkFailed(ctx, rec.TokenID, kind); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return
		}
		c.logger.Error("mark record failed",
			"token_id", rec.TokenID, "failure_kind", kind, "error", err)
		return
	}
	c.auditor.Emit(audit.Event{
		Action:      audit.ActionLedgerFailed,
		EntityType:  "record",
		EntityID:    rec.TokenID,
		PrincipalID: rec.PrincipalID,
		TokenID:     rec.TokenID,
		Status:      audit.StatusFailure,
		Notes:       cause.Error(),
	})
	c.logger.Warn("ledger submission failed",
		"token_id", rec.TokenID, "failure_kind", kind, "error", cause)
}

func failureKind(err error) string {
	switch {
	case errors.Is(err, ledger.ErrConfirmationTimeout):
		return record.FailureConfirmationTimeout
	case errors.Is(err, ledger.ErrUnavailable):
		return record.FailureLedgerUnavailable
	default:
		return record.FailureLedgerRejected
	}
}

// Resubmit re-enters submission for a failed record. Pending records are
// already owned by a task and verified records are immutable.
func (c *Coordinator) Resubmit(ctx context.Context, tokenID string, principalID int64, principalAddress string) error {
	rec, err := c.records.GetByTokenID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.New(dErrors.CodeNotFound, "record not found")
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "load record")
	}
	if rec.PrincipalID != principalID {
		return dErrors.New(dErrors.CodeForbidden, "record belongs to another principal")
	}
	if rec.Status != record.StatusFailed {
		return dErrors.New(dErrors.CodeConflict, fmt.Sprintf("record is %s, only failed records can be resubmitted", rec.Status))
	}

	c.auditor.Emit(audit.Event{
		Action:      audit.ActionRecordResubmitted,
		EntityType:  "record",
		EntityID:    rec.TokenID,
		PrincipalID: rec.PrincipalID,
		TokenID:     rec.TokenID,
	})
	c.Submit(rec, principalAddress)
	return nil
}

// Drain waits for all in-flight submissions, bounded by ctx. Tasks still
// running when ctx expires leave their records pending.
func (c *Coordinator) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain submissions: %w", ctx.Err())
	}
}
