// Package authv1 is the wire contract of the gophauth.v1.AuthService gRPC
// service: plain message structs carried by a JSON codec, the service
// descriptor, and a client.
package authv1

type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterResponse struct {
	AccountID string `json:"account_id"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SessionResponse answers Login and Verify. The refresh token is sent in the
// refresh_token response header, not in the body.
type SessionResponse struct {
	AccessToken string `json:"access_token"`
	Role        string `json:"role"`
	Email       string `json:"email"`
}

type VerifyRequest struct {
	AccountID string `json:"account_id"`
	Code      string `json:"code"`
}

type ResendVerificationRequest struct {
	AccountID string `json:"account_id"`
}

type RefreshTokenResponse struct {
	AccessToken string `json:"access_token"`
}

type AccountEnabledRequest struct {
	AccountID string `json:"account_id"`
}

type AccountEnabledResponse struct {
	Enabled bool `json:"enabled"`
}

type MeResponse struct {
	AccountID string `json:"account_id"`
	Role      string `json:"role"`
}

type Empty struct{}
