// Package ledger wraps the remote append-only ledger's fixed function
// surface behind a typed client. The ledger is the sole writer of its own
// entries; this client only proposes writes and reads confirmed state.
package ledger

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds for the ledger surface. Transport failures and confirmation
// deadlines are expected operational states, not exceptions: callers branch
// on them with errors.Is.
var (
	// ErrUnavailable signals a transport or connection failure before the
	// ledger accepted the call. Safe to retry.
	ErrUnavailable = errors.New("ledger unavailable")

	// ErrConfirmationTimeout signals a submission that was sent but not
	// confirmed within the deadline. NOT safe to retry blindly: the entry
	// may still land. Resubmission is an explicit caller action.
	ErrConfirmationTimeout = errors.New("ledger confirmation timeout")

	// ErrNotAuthorized signals the principal lacks write permission.
	ErrNotAuthorized = errors.New("principal not authorized on ledger")
)

// RPCError is a failure reported by the ledger itself, as opposed to a
// transport failure reaching it.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("ledger rpc error %d: %s", e.Code, e.Message)
}

// Receipt reports a confirmed ledger write.
type Receipt struct {
	TxRef   string
	Block   int64
	GasUsed int64
	Success bool
}

// Entry is one immutable ledger record, keyed by (principal, token ID).
type Entry struct {
	TokenID        string
	Principal      string
	Timestamp      int64
	Type           string
	AmountCents    int64
	DataHash       string
	ContentLocator string
	Verified       bool
}

// SubmitRequest carries one proposed ledger write.
type SubmitRequest struct {
	TokenID        string
	Type           string
	AmountCents    int64
	DataHash       string
	ContentLocator string
	Principal      string
}

//go:generate mockgen -source=client.go -destination=mocks/client_mocks.go -package=mocks Client

// Client is the typed wrapper over the remote contract surface. The handle is
// stateless and safe for concurrent use by multiple in-flight submissions.
//
// SubmitEntry blocks until the ledger confirms inclusion, bounded by the
// client's confirmation timeout. It must never run on a request-serving
// goroutine that the caller expects to return quickly; the reconciliation
// coordinator owns that boundary.
type Client interface {
	SetAuthorization(ctx context.Context, principal string, enabled bool) (Receipt, error)
	SubmitEntry(ctx context.Context, req SubmitRequest) (Receipt, error)
	ReadTrail(ctx context.Context, principal string) ([]Entry, error)
	VerifyEntry(ctx context.Context, tokenID, principal string) (bool, *Entry, error)
	VerifyIntegrity(ctx context.Context, tokenID, principal, expectedHash string) (bool, error)
	CountEntries(ctx context.Context, principal string) (int64, error)
	IsAuthorized(ctx context.Context, principal string) (bool, error)
}
