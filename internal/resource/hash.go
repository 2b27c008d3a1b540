package resource

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed ids. The version suffix leaves room
// for a future algorithm change.
const (
	DomainMapping = "cloudsync/mapping/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// MappingID computes the primary key of the mapping row for (kind, syncKey).
// The id is stable across restarts, so a row deleted and later recreated for
// the same logical object gets the same key.
func MappingID(kind Kind, syncKey string) (string, error) {
	canonical, err := MarshalCanonical(Attrs{
		"kind":     String(kind),
		"sync_key": String(syncKey),
	})
	if err != nil {
		return "", fmt.Errorf("MappingID: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainMapping, canonical), nil
}

// MustMappingID is like MappingID but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustMappingID(kind Kind, syncKey string) string {
	id, err := MappingID(kind, syncKey)
	if err != nil {
		panic(err)
	}
	return id
}
