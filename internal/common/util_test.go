package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWipeByteArray_ZerosBuffer(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	for i, v := range buf {
		if v != 0 {
			t.Fatalf("expected buf[%d]==0, got %d", i, v)
		}
	}
}

func TestWipeByteArray_NilSafe(t *testing.T) {
	WipeByteArray(nil)
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
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
		{fmt.Errorf("wrapped: %w", ErrTokenExpired), "TokenExpired"},
		{fmt.Errorf("%w: email", ErrorValidation), "Validation"},
		{errors.New("boom"), "Internal"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err), "err=%v", tt.err)
	}
}
