package types

import (
	"errors"
	"fmt"
)

// Error kinds. All of them are terminal for the input that produced them:
// the owner has to sign a new, corrected message.
var (
	ErrInvalidDomain          = errors.New("invalid domain")
	ErrInvalidPermit          = errors.New("invalid permit message")
	ErrSigning                = errors.New("signing error")
	ErrInvalidSignature       = errors.New("invalid signature")
	ErrSignatureOwnerMismatch = errors.New("signature owner mismatch")
	ErrNonceMismatch          = errors.New("nonce mismatch")
	ErrExpiredPermit          = errors.New("expired permit")
)

// VerificationCheck names the verifier step that rejected a permit
type VerificationCheck string

const (
	CheckSignature VerificationCheck = "signature"
	CheckOwner     VerificationCheck = "owner"
	CheckNonce     VerificationCheck = "nonce"
	CheckDeadline  VerificationCheck = "deadline"
	CheckMessage   VerificationCheck = "message"
)

// VerificationError identifies which check failed so callers can tell a
// replay attempt from an expired permit from a wrong signer.
type VerificationError struct {
	Check  VerificationCheck
	Err    error
	Detail string
}

func (e *VerificationError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("%s check failed: %v", e.Check, e.Err)
	}
	return fmt.Sprintf("%s check failed: %v: %s", e.Check, e.Err, e.Detail)
}

func (e *VerificationError) Unwrap() error {
	return e.Err
}

// NewVerificationError wraps one of the sentinel kinds, deriving the check
// name from it.
func NewVerificationError(kind error, detail string) *VerificationError {
	return &VerificationError{
		Check:  CheckFor(kind),
		Err:    kind,
		Detail: detail,
	}
}

// CheckFor maps an error to the verification check it belongs to
func CheckFor(err error) VerificationCheck {
	switch {
	case errors.Is(err, ErrInvalidSignature):
		return CheckSignature
	case errors.Is(err, ErrSignatureOwnerMismatch):
		return CheckOwner
	case errors.Is(err, ErrNonceMismatch):
		return CheckNonce
	case errors.Is(err, ErrExpiredPermit):
		return CheckDeadline
	default:
		return CheckMessage
	}
}

// ErrorForCheck is the inverse of CheckFor, used when decoding errors that
// crossed a process boundary.
func ErrorForCheck(check VerificationCheck) error {
	switch check {
	case CheckSignature:
		return ErrInvalidSignature
	case CheckOwner:
		return ErrSignatureOwnerMismatch
	case CheckNonce:
		return ErrNonceMismatch
	case CheckDeadline:
		return ErrExpiredPermit
	default:
		return ErrInvalidPermit
	}
}
