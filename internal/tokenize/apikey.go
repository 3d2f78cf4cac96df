package tokenize

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// APIKeyPrefix marks issued keys so they are recognizable in logs and
// support tickets without revealing the secret part.
const APIKeyPrefix = "ak_"

// GenerateAPIKey issues an opaque bearer key for a principal. The key is
// shown once at registration; only its digest is stored.
func GenerateAPIKey(principalID int64) string {
	seed := fmt.Sprintf("%d_%s_%s", principalID, time.Now().UTC().Format(time.RFC3339Nano), uuid.NewString())
	sum := sha256.Sum256([]byte(seed))
	return APIKeyPrefix + hex.EncodeToString(sum[:])[:32]
}

// HashAPIKey digests a key for storage and lookup. SHA-256 keeps the lookup
// deterministic: the auth middleware resolves principals by digest equality.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}
