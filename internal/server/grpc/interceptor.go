package grpc

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/api/authv1"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/auth"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type ctxKey string

const claimsKey ctxKey = "claims"

var protectedMethods = map[string]bool{
	authv1.FullMethod(authv1.MethodMe): true,
}

func claimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*auth.Claims)
	return c, ok
}

func (s *GRPCServer) accessTokenInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	if !protectedMethods[info.FullMethod] {
		return handler(ctx, req)
	}

	accessToken := incomingHeader(ctx, common.AccessTokenHeaderName)
	if accessToken == "" {
		return nil, status.Error(codes.Unauthenticated, "missing token")
	}

	claims, err := s.auth.AuthorizeAccess(ctx, accessToken)
	if err != nil {
		if errors.Is(err, common.ErrTokenExpired) || errors.Is(err, common.ErrorUnauthorized) {
			return nil, toStatus(err)
		}
		s.logger.Error(ctx, "authorize access", "error", err)
		return nil, status.Error(codes.Internal, "Internal: internal error")
	}

	return handler(context.WithValue(ctx, claimsKey, claims), req)
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := handler(ctx, req)
	s.logger.Debug(ctx, "grpc call", "method", info.FullMethod, "code", status.Code(err).String(), "duration", time.Since(start))
	return resp, err
}
