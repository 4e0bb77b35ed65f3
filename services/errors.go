package services

import "errors"

var (
	// ErrNotFound is returned by stores when a row does not exist
	ErrNotFound = errors.New("item not found")
	// ErrDuplicateKey is returned when a credential key is already provisioned
	ErrDuplicateKey = errors.New("credential key already exists")
	// ErrPairingExists is returned when an owner already holds a live pairing
	ErrPairingExists = errors.New("pairing already exists for owner")

	// ErrCredentialNotFound means no client owns the submitted key
	ErrCredentialNotFound = errors.New("credential not found")
	// ErrAlreadyRedeemed means the key is currently in use by another session
	ErrAlreadyRedeemed = errors.New("credential already redeemed")
	// ErrClientNotFound means the client id is unknown
	ErrClientNotFound = errors.New("client not found")
	// ErrPersistence wraps a write the store rejected
	ErrPersistence = errors.New("persistence failure")
	// ErrInvalidRoster is returned for malformed provisioning requests
	ErrInvalidRoster = errors.New("invalid roster request")
	// ErrExportUnavailable means no object storage is configured for exports
	ErrExportUnavailable = errors.New("roster export storage not configured")
)
