// Package client is a gRPC client for the gophauth AuthService. It keeps the
// current access and refresh tokens and transparently refreshes an expired
// access token once per call.
package client
