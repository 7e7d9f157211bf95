// Package common defines shared constants and sentinel errors used across
// the gophauth server, transports and client. Callers should use errors.Is
// to match these values, or Kind to obtain a stable name.
package common

import "errors"

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrorInternal     = errors.New("internal error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorValidation   = errors.New("validation error")

	// Account lifecycle errors.
	ErrDuplicateAccount   = errors.New("account already exists")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountNotVerified = errors.New("account not verified, please verify your account")
	ErrAccountNotFound    = errors.New("account not found")

	// Verification code errors.
	ErrVerificationExpired = errors.New("verification code has expired")
	ErrCodeMismatch        = errors.New("invalid verification code")
	ErrAlreadyVerified     = errors.New("account already verified")

	// Token lifecycle errors.
	ErrMalformedToken      = errors.New("malformed token")
	ErrTokenExpired        = errors.New("token expired")
	ErrInvalidRefreshToken = errors.New("invalid refresh token")

	// Collaborator errors.
	ErrNotificationFailed = errors.New("failed to send verification code")
)

// kinds is ordered: the first sentinel matched by errors.Is wins, so more
// specific kinds must precede generic ones.
var kinds = []struct {
	err  error
	name string
}{
	{ErrDuplicateAccount, "DuplicateAccount"},
	{ErrInvalidCredentials, "InvalidCredentials"},
	{ErrAccountNotVerified, "AccountNotVerified"},
	{ErrAccountNotFound, "AccountNotFound"},
	{ErrVerificationExpired, "VerificationExpired"},
	{ErrCodeMismatch, "CodeMismatch"},
	{ErrAlreadyVerified, "AlreadyVerified"},
	{ErrMalformedToken, "MalformedToken"},
	{ErrTokenExpired, "TokenExpired"},
	{ErrInvalidRefreshToken, "InvalidRefreshToken"},
	{ErrNotificationFailed, "NotificationFailed"},
	{ErrorValidation, "Validation"},
	{ErrorUnauthorized, "Unauthorized"},
	{ErrorNotFound, "NotFound"},
}

// Kind returns the stable kind name of err. A nil error yields "" and an
// unrecognised error yields "Internal".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.name
		}
	}
	return "Internal"
}
