package domain

import "errors"

var (
	// ErrInvalidSignature is returned when a challenge signature does not
	// recover to the claimed wallet. The nonce stays valid for a retry.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrNonceExpiredOrReused is returned for unknown, expired or
	// already-consumed nonces, regardless of signature validity.
	ErrNonceExpiredOrReused = errors.New("nonce expired or reused")

	// ErrTokenMalformed is returned when a bearer token cannot be parsed.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenIntegrity is returned when the token tag does not verify.
	ErrTokenIntegrity = errors.New("token integrity check failed")
	// ErrTokenExpired is returned for well-formed but expired tokens.
	ErrTokenExpired = errors.New("token expired")

	// ErrIdentityRequired is returned when a wallet without a registered
	// heaven name tries to create a room.
	ErrIdentityRequired = errors.New("heaven name required")
	// ErrNotVerified is returned when the identity oracle has no positive
	// attestation for the wallet.
	ErrNotVerified = errors.New("wallet not verified")

	// ErrInsufficientBalance is returned by the ledger when a debit would
	// take the remaining balance below zero.
	ErrInsufficientBalance = errors.New("insufficient credit balance")

	// ErrRoomNotFound covers absent and already-closed rooms alike.
	ErrRoomNotFound = errors.New("room not found")
	// ErrConnectionStale covers unknown or already-finalized connections.
	ErrConnectionStale = errors.New("connection stale")
	// ErrHostAlreadyJoined keeps the at-most-one-host-connection
	// invariant: the host wallet cannot hold two live connections in
	// its own room.
	ErrHostAlreadyJoined = errors.New("host already joined")

	ErrBadVisibility = errors.New("bad visibility value")
)
