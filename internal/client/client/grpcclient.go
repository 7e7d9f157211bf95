package client

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/api/authv1"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// Trailer set by the server when a registration mail failed.
const accountIDTrailerName = "account_id"

// Session is what a successful login or verification returns.
type Session struct {
	AccessToken  string
	RefreshToken string
	RefreshTTL   time.Duration
	Email        string
	Role         string
}

type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      *authv1.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func withRefreshToken(ctx context.Context, token string) context.Context {
	return metadata.AppendToOutgoingContext(ctx, common.RefreshTokenHeaderName, token)
}

// accessTokenInterceptor attaches the access token and, when the server
// reports it expired, refreshes it and retries once.
func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply any,
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if method == authv1.FullMethod(authv1.MethodRefreshToken) {
		return invoker(ctx, method, req, reply, cc, opts...)
	}

	access, refresh := s.Tokens()
	if access != "" {
		ctx = withAccessToken(ctx, access)
	}

	err := invoker(ctx, method, req, reply, cc, opts...)
	if err == nil || refresh == "" {
		return err
	}

	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Unauthenticated || !strings.HasPrefix(st.Message(), "TokenExpired") {
		return err
	}

	resp, rerr := s.client.RefreshToken(withRefreshToken(ctx, refresh))
	if rerr != nil {
		return err
	}
	s.SetTokens(resp.AccessToken, refresh)

	return invoker(withAccessToken(ctx, resp.AccessToken), method, req, reply, cc, opts...)
}

func NewGRPCClient(endpointURL string, opts ...grpc.DialOption) (*GRPCClient, error) {
	c := &GRPCClient{endpointURL: endpointURL}
	if err := c.InitGRPCClient(opts...); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient(opts ...grpc.DialOption) error {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}, opts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = authv1.NewClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	return s.conn.Close()
}

// SetTokens replaces the tokens used for subsequent calls.
func (s *GRPCClient) SetTokens(access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = access
	s.refreshToken = refresh
}

func (s *GRPCClient) Tokens() (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken, s.refreshToken
}

// Register creates an account. The account id is returned even when the
// server failed to mail the code, together with the error.
func (s *GRPCClient) Register(ctx context.Context, email, password string) (string, error) {
	var trailer metadata.MD
	resp, err := s.client.Register(ctx, &authv1.RegisterRequest{Email: email, Password: password}, grpc.Trailer(&trailer))
	if err != nil {
		if ids := trailer.Get(accountIDTrailerName); len(ids) > 0 {
			return ids[0], mapError(err)
		}
		return "", mapError(err)
	}
	return resp.AccountID, nil
}

func (s *GRPCClient) Login(ctx context.Context, email, password string) (*Session, error) {
	var header metadata.MD
	resp, err := s.client.Login(ctx, &authv1.LoginRequest{Email: email, Password: password}, grpc.Header(&header))
	if err != nil {
		return nil, mapError(err)
	}
	return s.session(resp, header)
}

func (s *GRPCClient) Verify(ctx context.Context, accountID, code string) (*Session, error) {
	var header metadata.MD
	resp, err := s.client.Verify(ctx, &authv1.VerifyRequest{AccountID: accountID, Code: code}, grpc.Header(&header))
	if err != nil {
		return nil, mapError(err)
	}
	return s.session(resp, header)
}

func (s *GRPCClient) ResendVerification(ctx context.Context, accountID string) error {
	_, err := s.client.ResendVerification(ctx, &authv1.ResendVerificationRequest{AccountID: accountID})
	return mapError(err)
}

// Refresh exchanges the stored refresh token for a new access token.
func (s *GRPCClient) Refresh(ctx context.Context) (string, error) {
	_, refresh := s.Tokens()
	if refresh == "" {
		return "", ErrNoRefreshToken
	}

	resp, err := s.client.RefreshToken(withRefreshToken(ctx, refresh))
	if err != nil {
		return "", mapError(err)
	}
	s.SetTokens(resp.AccessToken, refresh)
	return resp.AccessToken, nil
}

// Logout revokes the stored refresh token and forgets both tokens.
func (s *GRPCClient) Logout(ctx context.Context) error {
	_, refresh := s.Tokens()
	if refresh == "" {
		return ErrNoRefreshToken
	}

	if _, err := s.client.Logout(withRefreshToken(ctx, refresh)); err != nil {
		return mapError(err)
	}
	s.SetTokens("", "")
	return nil
}

func (s *GRPCClient) AccountEnabled(ctx context.Context, accountID string) (bool, error) {
	resp, err := s.client.AccountEnabled(ctx, &authv1.AccountEnabledRequest{AccountID: accountID})
	if err != nil {
		return false, mapError(err)
	}
	return resp.Enabled, nil
}

// Me returns the account id and role behind the stored access token.
func (s *GRPCClient) Me(ctx context.Context) (accountID, role string, err error) {
	resp, err := s.client.Me(ctx)
	if err != nil {
		return "", "", mapError(err)
	}
	return resp.AccountID, resp.Role, nil
}

func (s *GRPCClient) session(resp *authv1.SessionResponse, header metadata.MD) (*Session, error) {
	refresh := header.Get(common.RefreshTokenHeaderName)
	if len(refresh) == 0 || refresh[0] == "" {
		return nil, ErrMissingResponse
	}

	var ttl time.Duration
	if v := header.Get(common.RefreshTokenMaxAgeHeaderName); len(v) > 0 {
		if secs, err := strconv.Atoi(v[0]); err == nil {
			ttl = time.Duration(secs) * time.Second
		}
	}

	s.SetTokens(resp.AccessToken, refresh[0])
	return &Session{
		AccessToken:  resp.AccessToken,
		RefreshToken: refresh[0],
		RefreshTTL:   ttl,
		Email:        resp.Email,
		Role:         resp.Role,
	}, nil
}
