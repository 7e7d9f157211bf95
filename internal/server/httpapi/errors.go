package httpapi

import (
	"errors"
	"fmt"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/gofiber/fiber/v2"
)

var kindStatus = map[string]int{
	"DuplicateAccount":    fiber.StatusConflict,
	"InvalidCredentials":  fiber.StatusUnauthorized,
	"MalformedToken":      fiber.StatusUnauthorized,
	"TokenExpired":        fiber.StatusUnauthorized,
	"InvalidRefreshToken": fiber.StatusUnauthorized,
	"Unauthorized":        fiber.StatusUnauthorized,
	"AccountNotVerified":  fiber.StatusForbidden,
	"AccountNotFound":     fiber.StatusNotFound,
	"NotFound":            fiber.StatusNotFound,
	"VerificationExpired": fiber.StatusGone,
	"CodeMismatch":        fiber.StatusBadRequest,
	"AlreadyVerified":     fiber.StatusBadRequest,
	"Validation":          fiber.StatusBadRequest,
	"NotificationFailed":  fiber.StatusBadGateway,
}

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind"`
	AccountID string `json:"accountId,omitempty"`
}

// apiError carries the id of an account created before the failure.
type apiError struct {
	err       error
	accountID string
}

func (e *apiError) Error() string { return e.err.Error() }
func (e *apiError) Unwrap() error { return e.err }

func badBody(err error) error {
	return fmt.Errorf("%w: malformed request body: %v", common.ErrorValidation, err)
}

func errorHandler(logger logging.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			return c.Status(fe.Code).JSON(errorResponse{Error: fe.Message, Kind: "Request"})
		}

		resp := errorResponse{Kind: common.Kind(err), Error: err.Error()}
		var ae *apiError
		if errors.As(err, &ae) {
			resp.AccountID = ae.accountID
		}

		status, ok := kindStatus[resp.Kind]
		if !ok {
			logger.Error(c.UserContext(), "request failed", "path", c.Path(), "error", err)
			status = fiber.StatusInternalServerError
			resp.Error = "internal error"
		}
		return c.Status(status).JSON(resp)
	}
}
