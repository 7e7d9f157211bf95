package grpc

import (
	"github.com/dmitrijs2005/gophauth/internal/common"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var kindCodes = map[string]codes.Code{
	"DuplicateAccount":    codes.AlreadyExists,
	"InvalidCredentials":  codes.Unauthenticated,
	"MalformedToken":      codes.Unauthenticated,
	"TokenExpired":        codes.Unauthenticated,
	"InvalidRefreshToken": codes.Unauthenticated,
	"Unauthorized":        codes.Unauthenticated,
	"AccountNotVerified":  codes.FailedPrecondition,
	"AlreadyVerified":     codes.FailedPrecondition,
	"VerificationExpired": codes.FailedPrecondition,
	"CodeMismatch":        codes.InvalidArgument,
	"Validation":          codes.InvalidArgument,
	"AccountNotFound":     codes.NotFound,
	"NotFound":            codes.NotFound,
	"NotificationFailed":  codes.Unavailable,
}

// toStatus maps err to a status whose message starts with the stable kind,
// e.g. "TokenExpired: token expired". Internal details are not exposed.
func toStatus(err error) error {
	kind := common.Kind(err)
	code, ok := kindCodes[kind]
	if !ok {
		return status.Error(codes.Internal, "Internal: internal error")
	}
	return status.Error(code, kind+": "+err.Error())
}
