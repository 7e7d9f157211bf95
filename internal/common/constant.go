// Package common contains shared constants and sentinel errors used across
// gophauth components.
package common

const (
	// AccessTokenHeaderName is the gRPC metadata key used to carry the
	// access token on outbound requests.
	AccessTokenHeaderName = "access_token"

	// RefreshTokenHeaderName is the gRPC metadata key carrying the refresh
	// token out-of-band, in both directions.
	RefreshTokenHeaderName = "refresh_token"

	// RefreshTokenMaxAgeHeaderName carries the refresh token lifetime in
	// seconds alongside RefreshTokenHeaderName.
	RefreshTokenMaxAgeHeaderName = "refresh_token_max_age"

	// RefreshTokenCookieName is the HTTP cookie holding the refresh token.
	RefreshTokenCookieName = "refreshToken"

	// AuthPathPrefix scopes the HTTP auth routes and the refresh cookie.
	AuthPathPrefix = "/api/v1/auth"
)
