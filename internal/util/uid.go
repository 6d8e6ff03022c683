package util

import (
	"math/big"

	"github.com/google/uuid"
)

// uidRoot is the DICOM root for UUID-derived UIDs (PS3.5 B.2).
const uidRoot = "2.25."

// NewUID returns a fresh DICOM UID derived from a random UUID.
func NewUID() string {
	return UIDFromUUID(uuid.New())
}

// DeterministicUID returns a UID derived from a name-based (SHA-1) UUID,
// so the same seed always yields the same UID.
func DeterministicUID(seed string) string {
	return UIDFromUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)))
}

// UIDFromUUID renders a UUID as its 2.25 integer form.
func UIDFromUUID(u uuid.UUID) string {
	n := new(big.Int).SetBytes(u[:])
	return uidRoot + n.String()
}
