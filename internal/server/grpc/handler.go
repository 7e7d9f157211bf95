package grpc

import (
	"context"
	"strconv"

	"github.com/dmitrijs2005/gophauth/internal/api/authv1"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Trailer carrying the id of an account whose registration mail failed.
const accountIDTrailerName = "account_id"

type handler struct {
	auth   Authenticator
	logger logging.Logger
}

func (h *handler) Register(ctx context.Context, req *authv1.RegisterRequest) (*authv1.RegisterResponse, error) {
	res, err := h.auth.Register(ctx, req.Email, req.Password)
	if err != nil {
		if res != nil {
			_ = grpc.SetTrailer(ctx, metadata.Pairs(accountIDTrailerName, res.AccountID))
		}
		return nil, toStatus(err)
	}
	return &authv1.RegisterResponse{AccountID: res.AccountID}, nil
}

func (h *handler) Login(ctx context.Context, req *authv1.LoginRequest) (*authv1.SessionResponse, error) {
	sess, err := h.auth.Authenticate(ctx, req.Email, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}
	return h.session(ctx, sess)
}

func (h *handler) Verify(ctx context.Context, req *authv1.VerifyRequest) (*authv1.SessionResponse, error) {
	sess, err := h.auth.Verify(ctx, req.AccountID, req.Code)
	if err != nil {
		return nil, toStatus(err)
	}
	return h.session(ctx, sess)
}

func (h *handler) ResendVerification(ctx context.Context, req *authv1.ResendVerificationRequest) (*authv1.Empty, error) {
	if err := h.auth.ResendVerification(ctx, req.AccountID); err != nil {
		return nil, toStatus(err)
	}
	return &authv1.Empty{}, nil
}

func (h *handler) RefreshToken(ctx context.Context, _ *authv1.Empty) (*authv1.RefreshTokenResponse, error) {
	token := incomingHeader(ctx, common.RefreshTokenHeaderName)
	if token == "" {
		return nil, status.Error(codes.Unauthenticated, "missing refresh token")
	}

	access, err := h.auth.Refresh(ctx, token)
	if err != nil {
		return nil, toStatus(err)
	}
	return &authv1.RefreshTokenResponse{AccessToken: access}, nil
}

func (h *handler) Logout(ctx context.Context, _ *authv1.Empty) (*authv1.Empty, error) {
	if token := incomingHeader(ctx, common.RefreshTokenHeaderName); token != "" {
		h.auth.Logout(ctx, token)
	}
	return &authv1.Empty{}, nil
}

func (h *handler) AccountEnabled(ctx context.Context, req *authv1.AccountEnabledRequest) (*authv1.AccountEnabledResponse, error) {
	return &authv1.AccountEnabledResponse{Enabled: h.auth.IsAccountEnabled(ctx, req.AccountID)}, nil
}

func (h *handler) Me(ctx context.Context, _ *authv1.Empty) (*authv1.MeResponse, error) {
	claims, ok := claimsFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}
	return &authv1.MeResponse{AccountID: claims.Subject, Role: string(claims.Role)}, nil
}

// session sends the refresh token out of band, in the response header.
func (h *handler) session(ctx context.Context, sess *services.Session) (*authv1.SessionResponse, error) {
	md := metadata.Pairs(
		common.RefreshTokenHeaderName, sess.RefreshToken,
		common.RefreshTokenMaxAgeHeaderName, strconv.Itoa(int(sess.RefreshTTL.Seconds())),
	)
	if err := grpc.SetHeader(ctx, md); err != nil {
		h.logger.Error(ctx, "set refresh token header", "error", err)
		return nil, status.Error(codes.Internal, "internal error")
	}
	return &authv1.SessionResponse{AccessToken: sess.AccessToken, Role: string(sess.Role), Email: sess.Email}, nil
}

func incomingHeader(ctx context.Context, name string) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(name); len(values) > 0 {
			return values[0]
		}
	}
	return ""
}
