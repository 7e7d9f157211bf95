// Package models holds the persisted entities of the auth core and the
// enumerations they use.
package models

import "time"

// Role is the single authorization attribute carried by an account.
type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Account is the durable record of a user.
//
// VerificationCode and VerificationExpiresAt are both set or both nil, and
// both are nil once Enabled is true.
type Account struct {
	ID                    string
	Email                 string
	PasswordHash          string
	Role                  Role
	Enabled               bool
	VerificationCode      *string
	VerificationExpiresAt *time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// PendingVerification reports whether a verification code is outstanding.
func (a *Account) PendingVerification() bool {
	return a.VerificationCode != nil && a.VerificationExpiresAt != nil
}

// Clone returns a deep copy, so stores never share pointers with callers.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	if a.VerificationCode != nil {
		code := *a.VerificationCode
		c.VerificationCode = &code
	}
	if a.VerificationExpiresAt != nil {
		exp := *a.VerificationExpiresAt
		c.VerificationExpiresAt = &exp
	}
	return &c
}
