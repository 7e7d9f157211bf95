// Package httpapi serves the auth flows as JSON over HTTP under
// /api/v1/auth, keeping the refresh token in an HttpOnly cookie.
package httpapi

import (
	"context"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Authenticator is the slice of services.AuthService the HTTP layer uses.
type Authenticator interface {
	Register(ctx context.Context, email, password string) (*services.RegisterResult, error)
	Authenticate(ctx context.Context, email, password string) (*services.Session, error)
	Verify(ctx context.Context, accountID, code string) (*services.Session, error)
	ResendVerification(ctx context.Context, accountID string) error
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string)
	IsAccountEnabled(ctx context.Context, accountID string) bool
	RefreshTTL() time.Duration
}

type Server struct {
	address string
	app     *fiber.App
	logger  logging.Logger
}

// NewServer builds the fiber app. When gatherer is non-nil it is exposed
// on GET /metrics.
func NewServer(address string, l logging.Logger, a Authenticator, gatherer prometheus.Gatherer) *Server {
	logger := l.With("module", "http_server")

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(logger),
	})
	app.Use(recover.New())

	h := &handler{auth: a, logger: logger}
	r := app.Group(common.AuthPathPrefix)
	r.Post("/register", h.register)
	r.Post("/login", h.login)
	r.Post("/verify", h.verify)
	r.Post("/resendVerification", h.resendVerification)
	r.Get("/refresh-token", h.refreshToken)
	r.Post("/logout", h.logout)
	r.Get("/userEnabled", h.userEnabled)

	if gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return &Server{address: address, app: app, logger: logger}
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App { return s.app }

// Run listens until ctx is done, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info(ctx, "Starting HTTP server", "address", s.address)
		errCh <- s.app.Listen(s.address)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		s.logger.Info(ctx, "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.app.ShutdownWithContext(shutdownCtx)
	}
}
