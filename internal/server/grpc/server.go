// Package grpc exposes the auth flows as the gophauth.v1.AuthService gRPC
// service.
package grpc

import (
	"context"
	"net"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/api/authv1"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"google.golang.org/grpc"
)

// Authenticator is the slice of services.AuthService the transport uses.
type Authenticator interface {
	Register(ctx context.Context, email, password string) (*services.RegisterResult, error)
	Authenticate(ctx context.Context, email, password string) (*services.Session, error)
	Verify(ctx context.Context, accountID, code string) (*services.Session, error)
	ResendVerification(ctx context.Context, accountID string) error
	Refresh(ctx context.Context, refreshToken string) (string, error)
	Logout(ctx context.Context, refreshToken string)
	IsAccountEnabled(ctx context.Context, accountID string) bool
	AuthorizeAccess(ctx context.Context, accessToken string) (*auth.Claims, error)
	RefreshTTL() time.Duration
}

type GRPCServer struct {
	address string
	auth    Authenticator
	logger  logging.Logger
}

func NewGRPCServer(address string, l logging.Logger, a Authenticator) *GRPCServer {
	return &GRPCServer{
		address: address,
		auth:    a,
		logger:  l.With("module", "grpc_server"),
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	authv1.RegisterAuthServiceServer(srv, &handler{auth: s.auth, logger: s.logger})

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil {
		return err
	}
	return nil
}
