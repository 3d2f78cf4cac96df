// Package tokenize generates transaction token identifiers and
// content-addressed hashes. Both formats are wire-visible: token IDs are
// ASCII with six underscore-delimited fields, hashes are "0x" plus 64
// lowercase hex characters of SHA-256. Any reimplementation must reproduce
// them bit for bit.
package tokenize

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Prefix is the constant first field of every token ID.
const Prefix = "TXN"

const (
	dateLayout = "20060102"
	timeLayout = "150405"
)

// TokenID is the parsed form of a transaction token identifier:
// TXN_YYYYMMDD_<principal>_<TYPE>_HHMMSS_<NONCE>.
type TokenID struct {
	Prefix      string
	Date        string
	PrincipalID int64
	Type        string
	Time        string
	Nonce       string
}

// String reassembles the canonical wire form.
func (t TokenID) String() string {
	return fmt.Sprintf("%s_%s_%d_%s_%s_%s", t.Prefix, t.Date, t.PrincipalID, t.Type, t.Time, t.Nonce)
}

// Timestamp recombines the date and time fields. The zero time is returned
// when the fields don't form a valid instant (e.g. month 13).
func (t TokenID) Timestamp() time.Time {
	ts, err := time.Parse(dateLayout+timeLayout, t.Date+t.Time)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// ParseError reports why a token ID failed to parse. It is a typed failure:
// malformed input never panics.
type ParseError struct {
	Field  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid token id: %s: %s", e.Field, e.Reason)
}

// Generate builds a token ID for one transaction. The type becomes a token
// field verbatim, so it must be non-empty and free of the underscore
// separator; anything else would produce a token that fails Parse. The fixed
// fields are deterministic in the inputs; only the nonce varies per call.
// Safe for concurrent use: the nonce comes from a fresh UUID, no shared
// counter.
func Generate(principalID int64, txType string, ts time.Time) (string, error) {
	if txType == "" || strings.Contains(txType, "_") {
		return "", fmt.Errorf("invalid transaction type %q: must be non-empty without underscores", txType)
	}
	ts = ts.UTC()
	nonce := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("%s_%s_%d_%s_%s_%s",
		Prefix, ts.Format(dateLayout), principalID, txType, ts.Format(timeLayout), nonce), nil
}

// Parse splits and validates a token ID, returning a *ParseError on any
// malformed input.
func Parse(s string) (TokenID, error) {
	parts := strings.Split(s, "_")
	if len(parts) != 6 {
		return TokenID{}, &ParseError{Field: "token", Reason: fmt.Sprintf("expected 6 fields, got %d", len(parts))}
	}
	if parts[0] != Prefix {
		return TokenID{}, &ParseError{Field: "prefix", Reason: fmt.Sprintf("expected %q, got %q", Prefix, parts[0])}
	}
	if len(parts[1]) != 8 || !allDigits(parts[1]) {
		return TokenID{}, &ParseError{Field: "date", Reason: "expected 8 digits (YYYYMMDD)"}
	}
	if parts[2] == "" || !allDigits(parts[2]) {
		return TokenID{}, &ParseError{Field: "principal_id", Reason: "expected numeric principal id"}
	}
	if parts[3] == "" {
		return TokenID{}, &ParseError{Field: "type", Reason: "must not be empty"}
	}
	if len(parts[4]) != 6 || !allDigits(parts[4]) {
		return TokenID{}, &ParseError{Field: "time", Reason: "expected 6 digits (HHMMSS)"}
	}
	if len(parts[5]) != 8 {
		return TokenID{}, &ParseError{Field: "nonce", Reason: "expected 8 characters"}
	}

	principalID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return TokenID{}, &ParseError{Field: "principal_id", Reason: "expected numeric principal id"}
	}

	return TokenID{
		Prefix:      parts[0],
		Date:        parts[1],
		PrincipalID: principalID,
		Type:        parts[3],
		Time:        parts[4],
		Nonce:       parts[5],
	}, nil
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return len(s) > 0
}

// HashContent hashes raw bytes. Pure: identical input yields identical
// output across calls and process restarts.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return "0x" + hex.EncodeToString(sum[:])
}

// HashStructured canonicalizes a structured payload and hashes it.
// Canonical form: JSON with lexically sorted keys, compact separators, UTF-8,
// no HTML escaping. Two logically equal payloads with different key order
// hash identically. Callers should carry monetary values as integers or
// strings; non-integral floats are runtime-dependent in their rendering.
func HashStructured(payload map[string]any) (string, error) {
	canonical, err := CanonicalJSON(payload)
	if err != nil {
		return "", fmt.Errorf("canonicalize payload: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return "0x" + hex.EncodeToString(sum[:]), nil
}

// CanonicalJSON serializes a payload deterministically. encoding/json sorts
// map keys and emits compact output; HTML escaping is disabled so the bytes
// match other runtimes' canonical JSON.
func CanonicalJSON(payload map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(payload); err != nil {
		return nil, err
	}
	// Encode appends a newline that is not part of the canonical form.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// VerifyHash recomputes the hash of payload (either raw []byte content or a
// structured map) and compares case-insensitively against expected.
// All failures, including un-hashable payloads, map to false.
func VerifyHash(payload any, expected string) bool {
	var computed string
	switch p := payload.(type) {
	case []byte:
		computed = HashContent(p)
	case map[string]any:
		var err error
		computed, err = HashStructured(p)
		if err != nil {
			return false
		}
	default:
		return false
	}
	return strings.EqualFold(computed, expected)
}
