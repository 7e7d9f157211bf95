package authv1

import (
	"context"

	"google.golang.org/grpc"
)

const ServiceName = "gophauth.v1.AuthService"

const (
	MethodRegister           = "Register"
	MethodLogin              = "Login"
	MethodVerify             = "Verify"
	MethodResendVerification = "ResendVerification"
	MethodRefreshToken       = "RefreshToken"
	MethodLogout             = "Logout"
	MethodAccountEnabled     = "AccountEnabled"
	MethodMe                 = "Me"
)

// FullMethod returns the /service/method path of method.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// AuthServiceServer is implemented by the gRPC transport. RefreshToken and
// Logout read the refresh token from the refresh_token request header.
type AuthServiceServer interface {
	Register(context.Context, *RegisterRequest) (*RegisterResponse, error)
	Login(context.Context, *LoginRequest) (*SessionResponse, error)
	Verify(context.Context, *VerifyRequest) (*SessionResponse, error)
	ResendVerification(context.Context, *ResendVerificationRequest) (*Empty, error)
	RefreshToken(context.Context, *Empty) (*RefreshTokenResponse, error)
	Logout(context.Context, *Empty) (*Empty, error)
	AccountEnabled(context.Context, *AccountEnabledRequest) (*AccountEnabledResponse, error)
	Me(context.Context, *Empty) (*MeResponse, error)
}

func unary[Req, Resp any](method string, call func(AuthServiceServer, context.Context, *Req) (*Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AuthServiceServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(AuthServiceServer), ctx, req.(*Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodRegister, AuthServiceServer.Register),
		unary(MethodLogin, AuthServiceServer.Login),
		unary(MethodVerify, AuthServiceServer.Verify),
		unary(MethodResendVerification, AuthServiceServer.ResendVerification),
		unary(MethodRefreshToken, AuthServiceServer.RefreshToken),
		unary(MethodLogout, AuthServiceServer.Logout),
		unary(MethodAccountEnabled, AuthServiceServer.AccountEnabled),
		unary(MethodMe, AuthServiceServer.Me),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "gophauth/v1/auth",
}

func RegisterAuthServiceServer(s grpc.ServiceRegistrar, srv AuthServiceServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls AuthService over conn with the JSON codec.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func invoke[Resp any](ctx context.Context, c *Client, method string, in any, opts []grpc.CallOption) (*Resp, error) {
	out := new(Resp)
	opts = append([]grpc.CallOption{grpc.CallContentSubtype(CodecName)}, opts...)
	if err := c.conn.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Register(ctx context.Context, in *RegisterRequest, opts ...grpc.CallOption) (*RegisterResponse, error) {
	return invoke[RegisterResponse](ctx, c, MethodRegister, in, opts)
}

func (c *Client) Login(ctx context.Context, in *LoginRequest, opts ...grpc.CallOption) (*SessionResponse, error) {
	return invoke[SessionResponse](ctx, c, MethodLogin, in, opts)
}

func (c *Client) Verify(ctx context.Context, in *VerifyRequest, opts ...grpc.CallOption) (*SessionResponse, error) {
	return invoke[SessionResponse](ctx, c, MethodVerify, in, opts)
}

func (c *Client) ResendVerification(ctx context.Context, in *ResendVerificationRequest, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, MethodResendVerification, in, opts)
}

func (c *Client) RefreshToken(ctx context.Context, opts ...grpc.CallOption) (*RefreshTokenResponse, error) {
	return invoke[RefreshTokenResponse](ctx, c, MethodRefreshToken, &Empty{}, opts)
}

func (c *Client) Logout(ctx context.Context, opts ...grpc.CallOption) (*Empty, error) {
	return invoke[Empty](ctx, c, MethodLogout, &Empty{}, opts)
}

func (c *Client) AccountEnabled(ctx context.Context, in *AccountEnabledRequest, opts ...grpc.CallOption) (*AccountEnabledResponse, error) {
	return invoke[AccountEnabledResponse](ctx, c, MethodAccountEnabled, in, opts)
}

func (c *Client) Me(ctx context.Context, opts ...grpc.CallOption) (*MeResponse, error) {
	return invoke[MeResponse](ctx, c, MethodMe, &Empty{}, opts)
}
