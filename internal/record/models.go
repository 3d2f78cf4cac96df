// Package record owns the local transaction records that mirror ledger
// entries. The local store is the durable source of truth: a record is never
// deleted, even when its ledger mirror fails.
package record

import "time"

// Status is the reconciliation state of one record.
type Status string

const (
	// StatusPending: recorded locally, ledger write not yet concluded.
	StatusPending Status = "pending"
	// StatusVerified: ledger confirmed an entry with a matching data hash.
	StatusVerified Status = "verified"
	// StatusFailed: ledger submission or confirmation failed. Terminal but
	// retriable through an explicit resubmit, never deleted.
	StatusFailed Status = "failed"
)

// FailureKind labels why a record moved to StatusFailed.
const (
	FailureNone                = ""
	FailureLedgerUnavailable   = "ledger_unavailable"
	FailureConfirmationTimeout = "confirmation_timeout"
	FailureLedgerRejected      = "ledger_rejected"
)

// Record is one audited business transaction.
type Record struct {
	TokenID        string
	PrincipalID    int64
	Type           string
	AmountCents    int64
	Currency       string
	Description    string
	DataHash       string
	ContentHash    string
	ContentLocator string
	FileName       string
	FileSize       int64
	LedgerTxRef    string
	LedgerBlock    int64
	GasUsed        int64
	Status         Status
	FailureKind    string
	IsVerified     bool
	VerifiedAt     *time.Time
	CreatedAt      time.Time
}
