package principal

import (
	"regexp"
	"strings"
	"time"

	dErrors "veritrail/pkg/domain-errors"
)

// Tier controls quota and feature gating for a registered principal.
type Tier string

const (
	TierBasic      Tier = "basic"
	TierPremium    Tier = "premium"
	TierEnterprise Tier = "enterprise"
)

var validTiers = map[Tier]bool{
	TierBasic:      true,
	TierPremium:    true,
	TierEnterprise: true,
}

// Principal is a registered business entity whose transactions are recorded.
// Its ledger address identifies it on the external ledger; the API key digest
// authenticates it against this service.
type Principal struct {
	ID                 int64
	CompanyName        string
	LedgerAddress      string
	Email              string
	Phone              string
	RegistrationNumber string
	PostalAddress      string
	SubscriptionTier   Tier
	APIKeyHash         string
	IsActive           bool
	RegisteredAt       time.Time
}

var (
	addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)
	emailPattern   = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

// NewPrincipal validates registration input and builds a principal in its
// initial state. The ID and API key digest are assigned by the store layer.
func NewPrincipal(companyName, ledgerAddress, email, phone, registrationNumber, postalAddress string, tier Tier, now time.Time) (*Principal, error) {
	companyName = strings.TrimSpace(companyName)
	ledgerAddress = strings.TrimSpace(ledgerAddress)
	email = strings.TrimSpace(strings.ToLower(email))

	if companyName == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "company name is required")
	}
	if !addressPattern.MatchString(ledgerAddress) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "ledger address must be 0x followed by 40 hex characters")
	}
	if !emailPattern.MatchString(email) {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "email is invalid")
	}
	if tier == "" {
		tier = TierBasic
	}
	if !validTiers[tier] {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown subscription tier")
	}

	return &Principal{
		CompanyName:        companyName,
		LedgerAddress:      strings.ToLower(ledgerAddress),
		Email:              email,
		Phone:              strings.TrimSpace(phone),
		RegistrationNumber: strings.TrimSpace(registrationNumber),
		PostalAddress:      strings.TrimSpace(postalAddress),
		SubscriptionTier:   tier,
		IsActive:           true,
		RegisteredAt:       now.UTC(),
	}, nil
}

// ValidAddress reports whether s is a well-formed ledger address.
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}
