package models

import "time"

// TokenPurpose distinguishes the two bearer credentials of a session.
type TokenPurpose string

const (
	PurposeAccess  TokenPurpose = "ACCESS"
	PurposeRefresh TokenPurpose = "REFRESH"
)

func (p TokenPurpose) Valid() bool {
	return p == PurposeAccess || p == PurposeRefresh
}

// IssuedToken is one ledger row. Rows are never deleted; revocation only
// flips Revoked. TokenHash is the hex SHA-256 of the signed token string.
type IssuedToken struct {
	ID        string
	AccountID string
	Purpose   TokenPurpose
	TokenHash string
	Revoked   bool
	IssuedAt  time.Time
	RevokedAt *time.Time
}
