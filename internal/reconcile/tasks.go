package reconcile

import (
	"context"
	"log/slog"
	"time"

	"veritrail/internal/audit"
	"veritrail/internal/ledger"
	"veritrail/internal/ledger/authcache"
)

type authTask struct {
	principalID   int64
	ledgerAddress string
}

// TaskRunner executes fire-and-forget ledger tasks, currently authorization
// grants issued at registration. Outcomes land in the audit trail; callers
// never wait on them.
type TaskRunner struct {
	ledger  ledger.Client
	authz   *authcache.Checker
	auditor *audit.Publisher
	logger  *slog.Logger
	queue   chan authTask
}

func NewTaskRunner(lc ledger.Client, authz *authcache.Checker, auditor *audit.Publisher, logger *slog.Logger) *TaskRunner {
	return &TaskRunner{
		ledger:  lc,
		authz:   authz,
		auditor: auditor,
		logger:  logger,
		queue:   make(chan authTask, 64),
	}
}

// EnqueueAuthorize schedules a ledger write-permission grant. A full queue
// drops the task with a log line; the principal can be authorized later by an
// operator re-triggering registration-time authorization.
func (t *TaskRunner) EnqueueAuthorize(principalID int64, ledgerAddress string) {
	select {
	case t.queue <- authTask{principalID: principalID, ledgerAddress: ledgerAddress}:
	default:
		t.logger.Error("authorization queue full, dropping grant",
			"principal_id", principalID, "ledger_address", ledgerAddress)
	}
}

// Run processes tasks until ctx is cancelled, then drains what is already
// queued.
func (t *TaskRunner) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			t.drain()
			return ctx.Err()
		case task := <-t.queue:
			t.authorize(ctx, task)
		}
	}
}

func (t *TaskRunner) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for {
		select {
		case task := <-t.queue:
			t.authorize(ctx, task)
		default:
			return
		}
	}
}

func (t *TaskRunner) authorize(ctx context.Context, task authTask) {
	receipt, err := t.ledger.SetAuthorization(ctx, task.ledgerAddress, true)
	if err != nil {
		t.auditor.Emit(audit.Event{
			Action:      audit.ActionAuthorizationFailed,
			EntityType:  "principal",
			EntityID:    task.ledgerAddress,
			PrincipalID: task.principalID,
			Status:      audit.StatusFailure,
			Notes:       err.Error(),
		})
		t.logger.Error("ledger authorization failed",
			"principal_id", task.principalID, "ledger_address", task.ledgerAddress, "error", err)
		return
	}

	// Drop any stale negative path so the next submission re-reads the grant.
	t.authz.Invalidate(ctx, task.ledgerAddress)

	t.auditor.Emit(audit.Event{
		Action:      audit.ActionPrincipalAuthorized,
		EntityType:  "principal",
		EntityID:    task.ledgerAddress,
		PrincipalID: task.principalID,
		Notes:       "ledger tx " + receipt.TxRef,
	})
	t.logger.Info("principal authorized on ledger",
		"principal_id", task.principalID, "ledger_address", task.ledgerAddress, "ledger_tx_ref", receipt.TxRef)
}
