package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainField prefixes field-metadata identities. The version suffix
// leaves room for a future algorithm change.
const DomainField = "objstore/field/v1"

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// FieldID computes the identity of a field metadata row. The same
// (tenant, group, tag, path) always yields the same ID, so registering a
// field twice upserts instead of duplicating.
func FieldID(appID, groupID, tag, path string) (string, error) {
	obj := IRObject{
		"app_id":   IRString(appID),
		"group_id": IRString(groupID),
		"tag":      IRString(tag),
		"path":     IRString(path),
	}

	canonical, err := MarshalCanonical(obj)
	if err != nil {
		return "", fmt.Errorf("FieldID: failed to marshal: %w", err)
	}

	return hashWithDomain(DomainField, canonical), nil
}
