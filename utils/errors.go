package utils

import "errors"

// Protocol error kinds. Every failure surfaced by the client or server roles
// wraps exactly one of these so callers can dispatch with errors.Is.
var (
	// ErrParameterMismatch is returned when byte widths or domain sizes in a
	// Params bundle are inconsistent, or disagree between two sides.
	ErrParameterMismatch = errors.New("vldp: parameter mismatch")

	// ErrPrimitiveFailure is returned when an underlying hash, commitment or
	// signature primitive fails internally.
	ErrPrimitiveFailure = errors.New("vldp: primitive failure")

	// ErrSignatureInvalid is returned by the client when the server seed
	// signature fails the native check.
	ErrSignatureInvalid = errors.New("vldp: server signature invalid")

	// ErrProofInvalid is returned by the server when the proof does not
	// verify against the verification key.
	ErrProofInvalid = errors.New("vldp: proof invalid")

	// ErrReplay is returned by the server when a (commitment, seed) pair or
	// (root, leaf index) pair has already been consumed.
	ErrReplay = errors.New("vldp: contribution replayed")

	// ErrOutOfWindow is returned by the server when the embedded time lies
	// outside the acceptance window.
	ErrOutOfWindow = errors.New("vldp: time out of acceptance window")

	// ErrMerklePathInvalid is returned when an Expand authentication path is
	// structurally unusable for the configured tree depth.
	ErrMerklePathInvalid = errors.New("vldp: merkle path invalid")

	// ErrInvalidState is returned when a role method is called outside the
	// phase it belongs to.
	ErrInvalidState = errors.New("vldp: invalid session state")
)
