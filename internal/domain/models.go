package domain

import (
	"crypto/sha256"
	"encoding/hex"
)

// CredentialRequest is one credential to issue: an opaque JSON payload under a
// stable caller-chosen ID.
type CredentialRequest struct {
	ID      string
	Payload string
	Labels  map[string]string
}

// Fingerprint is the hex SHA-256 of the payload.
func (r CredentialRequest) Fingerprint() string {
	sum := sha256.Sum256([]byte(r.Payload))
	return hex.EncodeToString(sum[:])
}

// DedupeKey identifies this exact request: the same ID with an edited payload
// yields a different key.
func (r CredentialRequest) DedupeKey() string {
	return r.ID + ":" + r.Fingerprint()
}
