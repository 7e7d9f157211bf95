package client

import (
	"errors"
	"fmt"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	ErrUnavailable     = errors.New("server unavailable")
	ErrNoRefreshToken  = errors.New("no refresh token")
	ErrMissingResponse = errors.New("missing refresh token in response")
)

// RemoteError is a rejection reported by the server. Kind is the stable
// error kind, e.g. "InvalidCredentials".
type RemoteError struct {
	Code    codes.Code
	Kind    string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Kind == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// IsKind reports whether err is a RemoteError of the given kind.
func IsKind(err error, kind string) bool {
	var re *RemoteError
	return errors.As(err, &re) && re.Kind == kind
}

// splitKind parses the "Kind: message" form used by the server.
func splitKind(msg string) (kind, rest string) {
	k, r, ok := strings.Cut(msg, ": ")
	if !ok || k == "" || strings.ContainsAny(k, " \t") {
		return "", msg
	}
	return k, r
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	kind, msg := splitKind(st.Message())
	if kind == "" && (st.Code() == codes.Unavailable || st.Code() == codes.DeadlineExceeded) {
		return fmt.Errorf("%w: %s", ErrUnavailable, st.Message())
	}
	return &RemoteError{Code: st.Code(), Kind: kind, Message: msg}
}
