package signup

import (
	"errors"
)

// Kind classifies a failed transition so the transport layer can map it to
// a status code and the client knows whether to fix input, restart, or wait.
type Kind string

const (
	// KindValidation is malformed input, reported field by field.
	KindValidation Kind = "validation_error"

	// KindPreconditionNotMet is a step-order violation. No state changed.
	KindPreconditionNotMet Kind = "precondition_not_met"

	// KindNotFound is an unknown or expired session.
	KindNotFound Kind = "not_found"

	// KindTooManyAttempts means the OTP attempt budget is spent; the caller
	// must request a fresh code.
	KindTooManyAttempts Kind = "too_many_attempts"

	// KindNoOtp means no code is outstanding for this sub-phase.
	KindNoOtp Kind = "no_otp"

	// KindOtpExpired means the outstanding code's TTL has passed.
	KindOtpExpired Kind = "otp_expired"

	// KindWrongOtp is a code mismatch; AttemptsLeft says how many tries remain.
	KindWrongOtp Kind = "wrong_otp"

	// KindRecordNotFound means no active identity record matches the identifier.
	KindRecordNotFound Kind = "record_not_found"

	// KindIdentityMismatch means the registry record disagrees with the
	// claims; Fields names exactly what differed.
	KindIdentityMismatch Kind = "identity_mismatch"

	// KindNotAllVerified means PIN setup was attempted before every
	// verification gate was passed.
	KindNotAllVerified Kind = "not_all_verified"
)

// Error is a failed transition outcome. Every failure is local to one
// transition; nothing here is fatal to the process.
type Error struct {
	Kind         Kind
	Message      string
	Fields       []string
	FieldErrors  map[string]string
	AttemptsLeft int
	ShouldResend bool
}

func (e *Error) Error() string {
	return e.Message
}

// IsKind reports whether err is a transition error of the given kind.
func IsKind(err error, kind Kind) bool {
	var sErr *Error
	if errors.As(err, &sErr) {
		return sErr.Kind == kind
	}
	return false
}

// AsError unwraps a transition error, or returns nil if err is not one.
func AsError(err error) *Error {
	var sErr *Error
	if errors.As(err, &sErr) {
		return sErr
	}
	return nil
}

func errValidation(fieldErrors map[string]string) *Error {
	return &Error{
		Kind:        KindValidation,
		Message:     "Validation failed",
		FieldErrors: fieldErrors,
	}
}

func errPrecondition(message string) *Error {
	return &Error{
		Kind:    KindPreconditionNotMet,
		Message: message,
	}
}

func errSessionNotFound() *Error {
	return &Error{
		Kind:    KindNotFound,
		Message: "Invalid or expired session",
	}
}

func errTooManyAttempts() *Error {
	return &Error{
		Kind:         KindTooManyAttempts,
		Message:      "Too many failed attempts. Please request a new code",
		ShouldResend: true,
	}
}

func errNoOtp() *Error {
	return &Error{
		Kind:         KindNoOtp,
		Message:      "No code found. Please request a new one",
		ShouldResend: true,
	}
}

func errOtpExpired() *Error {
	return &Error{
		Kind:         KindOtpExpired,
		Message:      "Code has expired. Please request a new one",
		ShouldResend: true,
	}
}

func errWrongOtp(attemptsLeft int) *Error {
	return &Error{
		Kind:         KindWrongOtp,
		Message:      "Invalid code. Please try again",
		AttemptsLeft: attemptsLeft,
	}
}

func errRecordNotFound(message string) *Error {
	return &Error{
		Kind:    KindRecordNotFound,
		Message: message,
	}
}

func errIdentityMismatch(fields []string) *Error {
	return &Error{
		Kind:    KindIdentityMismatch,
		Message: "Supplied details do not match the identity record",
		Fields:  fields,
	}
}

func errNotAllVerified() *Error {
	return &Error{
		Kind:    KindNotAllVerified,
		Message: "All identity verifications must be completed first",
	}
}
