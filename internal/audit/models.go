package audit

import "time"

// ActionType classifies audit events by the kind of activity they capture.
type ActionType string

const (
	// TypeLifecycle covers principal registration and record creation.
	TypeLifecycle ActionType = "lifecycle"

	// TypeLedger covers ledger submissions, confirmations and failures.
	TypeLedger ActionType = "ledger"

	// TypeAccess covers reads of trails and verification requests.
	TypeAccess ActionType = "access"
)

// Action names for the audit trail.
const (
	ActionPrincipalRegistered = "principal_registered"
	ActionPrincipalAuthorized = "principal_authorized"
	ActionAuthorizationFailed = "authorization_failed"
	ActionRecordCreated       = "record_created"
	ActionLedgerSubmitted     = "ledger_submitted"
	ActionLedgerConfirmed     = "ledger_confirmed"
	ActionLedgerFailed        = "ledger_failed"
	ActionRecordResubmitted   = "record_resubmitted"
	ActionTrailAccessed       = "trail_accessed"
	ActionTokenVerified       = "token_verified"
	ActionIntegrityChecked    = "integrity_checked"
)

// Event statuses.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	ID          string
	OccurredAt  time.Time
	Action      string
	ActionType  ActionType
	EntityType  string
	EntityID    string
	Actor       string
	PrincipalID int64
	TokenID     string
	Status      string
	Notes       string
}

// actionTypes maps each action to its type so emitters only name the action.
var actionTypes = map[string]ActionType{
	ActionPrincipalRegistered: TypeLifecycle,
	ActionPrincipalAuthorized: TypeLifecycle,
	ActionAuthorizationFailed: TypeLifecycle,
	ActionRecordCreated:       TypeLifecycle,
	ActionLedgerSubmitted:     TypeLedger,
	ActionLedgerConfirmed:     TypeLedger,
	ActionLedgerFailed:        TypeLedger,
	ActionRecordResubmitted:   TypeLedger,
	ActionTrailAccessed:       TypeAccess,
	ActionTokenVerified:       TypeAccess,
	ActionIntegrityChecked:    TypeAccess,
}

// TypeOf returns the ActionType for an action. Unknown actions default to
// TypeAccess.
func TypeOf(action string) ActionType {
	if t, ok := actionTypes[action]; ok {
		return t
	}
	return TypeAccess
}
