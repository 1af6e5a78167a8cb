// Package errors provides structured error handling for the engine.
package errors

import "google.golang.org/grpc/codes"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Invite errors
	CodeInviteNotFound        Code = "INVITE_NOT_FOUND"
	CodeInviteExpired         Code = "INVITE_EXPIRED"
	CodeInviteRevoked         Code = "INVITE_REVOKED"
	CodeInviteAlreadyRedeemed Code = "INVITE_ALREADY_REDEEMED"
	CodeInviteInvalidTarget   Code = "INVITE_INVALID_TARGET"
	CodeInviteCodeExhausted   Code = "INVITE_CODE_EXHAUSTED"

	// Unit/capacity errors
	CodeUnitFull     Code = "UNIT_FULL"
	CodeUnitNotFound Code = "UNIT_NOT_FOUND"
	CodeNoCapacity   Code = "NO_CAPACITY"

	// Membership errors
	CodeAlreadyMember Code = "ALREADY_MEMBER"
	CodeNotAMember    Code = "NOT_A_MEMBER"

	// Link grant errors
	CodeGrantInvalid  Code = "GRANT_INVALID"
	CodeGrantExpired  Code = "GRANT_EXPIRED"
	CodeGrantMismatch Code = "GRANT_MISMATCH"

	// Storage errors
	CodeNotFound  Code = "NOT_FOUND"
	CodeContended Code = "CONTENDED"
)

// GRPCCode maps domain codes to gRPC status codes.
func (c Code) GRPCCode() codes.Code {
	switch c {
	// InvalidArgument - validation failures, bad input
	case CodeInviteInvalidTarget,
		CodeGrantInvalid,
		CodeGrantMismatch:
		return codes.InvalidArgument

	// FailedPrecondition - state doesn't allow operation
	case CodeInviteExpired,
		CodeInviteRevoked,
		CodeInviteAlreadyRedeemed,
		CodeUnitFull,
		CodeNoCapacity,
		CodeAlreadyMember,
		CodeNotAMember,
		CodeGrantExpired:
		return codes.FailedPrecondition

	// NotFound - resource doesn't exist
	case CodeNotFound,
		CodeInviteNotFound,
		CodeUnitNotFound:
		return codes.NotFound

	// Aborted - transient contention, safe to retry
	case CodeContended:
		return codes.Aborted

	// ResourceExhausted - short code space saturated
	case CodeInviteCodeExhausted:
		return codes.ResourceExhausted

	default:
		return codes.Internal
	}
}
