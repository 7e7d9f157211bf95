// Package auth holds the bearer-token codec and the password hashers.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/timex"
	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

// Claims carries the registered claims plus the account role and token
// purpose. Subject is the account id.
type Claims struct {
	jwt.RegisteredClaims
	Role    models.Role         `json:"role"`
	Purpose models.TokenPurpose `json:"purpose"`
}

// Codec signs and verifies HS256 tokens with a process-wide secret.
type Codec struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	clock      timex.Clock
}

func NewCodec(secret []byte, accessTTL, refreshTTL time.Duration, clock timex.Clock) (*Codec, error) {
	if len(secret) == 0 {
		return nil, errors.New("signing secret is empty")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("token ttl must be positive")
	}
	if accessTTL >= refreshTTL {
		return nil, fmt.Errorf("access ttl %s must be shorter than refresh ttl %s", accessTTL, refreshTTL)
	}
	if clock == nil {
		clock = timex.SystemClock{}
	}
	return &Codec{secret: secret, accessTTL: accessTTL, refreshTTL: refreshTTL, clock: clock}, nil
}

// TTLFor returns the configured lifetime of tokens of the given purpose.
func (c *Codec) TTLFor(purpose models.TokenPurpose) time.Duration {
	if purpose == models.PurposeRefresh {
		return c.refreshTTL
	}
	return c.accessTTL
}

func (c *Codec) Encode(subject string, role models.Role, purpose models.TokenPurpose, ttl time.Duration) (string, error) {
	now := c.clock.Now()

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        ulid.Make().String(),
		},
		Role:    role,
		Purpose: purpose,
	})

	tokenString, err := token.SignedString(c.secret)
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// Issue encodes a token with the lifetime TTLFor(purpose).
func (c *Codec) Issue(subject string, role models.Role, purpose models.TokenPurpose) (string, error) {
	return c.Encode(subject, role, purpose, c.TTLFor(purpose))
}

// Decode verifies the signature and expiry. It returns common.ErrTokenExpired
// for a well-signed token past its expiry and common.ErrMalformedToken for
// anything else it cannot trust.
func (c *Codec) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.clock.Now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrMalformedToken
	}

	if !token.Valid || claims.Subject == "" || !claims.Purpose.Valid() {
		return nil, common.ErrMalformedToken
	}

	return claims, nil
}
