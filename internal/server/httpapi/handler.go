package httpapi

import (
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/gofiber/fiber/v2"
)

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyRequest struct {
	Code string `json:"code"`
}

type registerResponse struct {
	AccountID string `json:"accountId"`
	Message   string `json:"message"`
}

type sessionResponse struct {
	AccessToken string `json:"accessToken"`
	Role        string `json:"role"`
	Email       string `json:"email"`
}

type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type handler struct {
	auth   Authenticator
	logger logging.Logger
}

func (h *handler) register(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(err)
	}

	res, err := h.auth.Register(c.UserContext(), req.Email, req.Password)
	if err != nil {
		if res != nil {
			return &apiError{err: err, accountID: res.AccountID}
		}
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(registerResponse{
		AccountID: res.AccountID,
		Message:   "Verification email has been sent!",
	})
}

func (h *handler) login(c *fiber.Ctx) error {
	var req credentialsRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(err)
	}

	sess, err := h.auth.Authenticate(c.UserContext(), req.Email, req.Password)
	if err != nil {
		return err
	}
	return h.session(c, sess)
}

func (h *handler) verify(c *fiber.Ctx) error {
	var req verifyRequest
	if err := c.BodyParser(&req); err != nil {
		return badBody(err)
	}

	sess, err := h.auth.Verify(c.UserContext(), c.Query("id"), req.Code)
	if err != nil {
		return err
	}
	return h.session(c, sess)
}

func (h *handler) resendVerification(c *fiber.Ctx) error {
	if err := h.auth.ResendVerification(c.UserContext(), c.Query("id")); err != nil {
		return err
	}
	return c.JSON(messageResponse{Message: "Verification code resent"})
}

func (h *handler) refreshToken(c *fiber.Ctx) error {
	token := c.Cookies(common.RefreshTokenCookieName)
	if token == "" {
		return common.ErrInvalidRefreshToken
	}

	access, err := h.auth.Refresh(c.UserContext(), token)
	if err != nil {
		return err
	}
	return c.JSON(refreshResponse{AccessToken: access})
}

func (h *handler) logout(c *fiber.Ctx) error {
	if token := c.Cookies(common.RefreshTokenCookieName); token != "" {
		h.auth.Logout(c.UserContext(), token)
	}

	c.Cookie(&fiber.Cookie{
		Name:     common.RefreshTokenCookieName,
		Value:    "",
		Path:     common.AuthPathPrefix,
		Expires:  time.Unix(0, 0),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handler) userEnabled(c *fiber.Ctx) error {
	return c.JSON(h.auth.IsAccountEnabled(c.UserContext(), c.Query("id")))
}

func (h *handler) session(c *fiber.Ctx, sess *services.Session) error {
	c.Cookie(&fiber.Cookie{
		Name:     common.RefreshTokenCookieName,
		Value:    sess.RefreshToken,
		Path:     common.AuthPathPrefix,
		MaxAge:   int(sess.RefreshTTL.Seconds()),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteStrictMode,
	})
	return c.JSON(sessionResponse{
		AccessToken: sess.AccessToken,
		Role:        string(sess.Role),
		Email:       sess.Email,
	})
}
