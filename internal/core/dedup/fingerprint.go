package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Fingerprint hashes the UTF-8 bytes of text without altering its content.
func Fingerprint(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Lookup answers whether a fingerprint is already indexed.
type Lookup interface {
	HasFingerprint(ctx context.Context, fingerprint string) (bool, error)
}

// IsDuplicate reports whether fingerprint is present in the indexed set or in
// the fingerprints already accepted earlier in the same batch.
func IsDuplicate(ctx context.Context, fingerprint string, existing Lookup, batch map[string]struct{}) (bool, error) {
	if _, ok := batch[fingerprint]; ok {
		return true, nil
	}
	if existing == nil {
		return false, nil
	}
	found, err := existing.HasFingerprint(ctx, fingerprint)
	if err != nil {
		return false, fmt.Errorf("lookup fingerprint: %w", err)
	}
	return found, nil
}
