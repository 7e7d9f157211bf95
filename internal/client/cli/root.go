// Package cli implements the gophauth command-line client on top of the
// gRPC AuthService.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/gophauth/internal/client/client"
	"github.com/dmitrijs2005/gophauth/internal/client/config"
	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/spf13/cobra"
)

var errPasswordRequired = errors.New("password must not be empty")

// AuthClient is what the commands need from the gRPC client.
type AuthClient interface {
	Register(ctx context.Context, email, password string) (string, error)
	Login(ctx context.Context, email, password string) (*client.Session, error)
	Verify(ctx context.Context, accountID, code string) (*client.Session, error)
	ResendVerification(ctx context.Context, accountID string) error
	Refresh(ctx context.Context) (string, error)
	Logout(ctx context.Context) error
	AccountEnabled(ctx context.Context, accountID string) (bool, error)
	Me(ctx context.Context) (accountID, role string, err error)
	SetTokens(access, refresh string)
	Close() error
}

// Dialer opens an AuthClient for a server address.
type Dialer func(addr string) (AuthClient, error)

// DialGRPC is the production Dialer.
func DialGRPC(addr string) (AuthClient, error) {
	return client.NewGRPCClient(addr)
}

type app struct {
	cfg  config.Config
	dial Dialer

	configFile   string
	address      string
	timeout      time.Duration
	accessToken  string
	refreshToken string

	client AuthClient
}

// NewRootCmd creates the root command of the gophauth CLI.
func NewRootCmd(dial Dialer) *cobra.Command {
	a := &app{dial: dial}
	a.cfg.LoadDefaults()

	cmd := &cobra.Command{
		Use:           "gophauth",
		Short:         "gophauth - account registration and token client",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.connect(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.client != nil {
				_ = a.client.Close()
			}
		},
	}

	f := cmd.PersistentFlags()
	f.StringVar(&a.configFile, "config", "", "JSON config file path")
	f.StringVarP(&a.address, "address", "a", a.cfg.ServerEndpointAddr, "address and port of the gRPC server")
	f.DurationVar(&a.timeout, "timeout", a.cfg.RequestTimeout, "per-request timeout")
	f.StringVar(&a.accessToken, "access-token", "", "access token for protected calls")
	f.StringVar(&a.refreshToken, "refresh-token", "", "refresh token for refresh and logout")

	cmd.AddCommand(
		a.newRegisterCmd(),
		a.newLoginCmd(),
		a.newVerifyCmd(),
		a.newResendCmd(),
		a.newRefreshCmd(),
		a.newLogoutCmd(),
		a.newEnabledCmd(),
		a.newMeCmd(),
	)

	return cmd
}

// connect resolves config (defaults, file, flags) and dials the server.
func (a *app) connect(cmd *cobra.Command) error {
	if a.configFile != "" {
		if err := a.cfg.LoadFile(a.configFile); err != nil {
			return err
		}
	}
	flags := cmd.Flags()
	if a.configFile == "" || flags.Changed("address") {
		a.cfg.ServerEndpointAddr = a.address
	}
	if a.configFile == "" || flags.Changed("timeout") {
		a.cfg.RequestTimeout = a.timeout
	}

	c, err := a.dial(a.cfg.ServerEndpointAddr)
	if err != nil {
		return err
	}
	c.SetTokens(a.accessToken, a.refreshToken)
	a.client = c
	return nil
}

func (a *app) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, a.cfg.RequestTimeout)
}

// credentials reads the email (flag or prompt) and the password (prompt).
func (a *app) credentials(cmd *cobra.Command, email string) (string, []byte, error) {
	if email == "" {
		var err error
		email, err = GetSimpleText(bufio.NewReader(cmd.InOrStdin()), "-Enter email", cmd.ErrOrStderr())
		if err != nil {
			return "", nil, err
		}
	}

	password, err := GetPassword(cmd.ErrOrStderr())
	if err != nil {
		return "", nil, err
	}
	if len(password) == 0 {
		return "", nil, errPasswordRequired
	}
	return email, password, nil
}

func printSession(cmd *cobra.Command, s *client.Session) {
	printf(cmd, "email:         %s\n", s.Email)
	printf(cmd, "role:          %s\n", s.Role)
	printf(cmd, "access token:  %s\n", s.AccessToken)
	printf(cmd, "refresh token: %s\n", s.RefreshToken)
	if s.RefreshTTL > 0 {
		printf(cmd, "refresh valid: %s\n", s.RefreshTTL)
	}
}

// printf writes to stdout; cobra's Printf goes to stderr.
func printf(cmd *cobra.Command, format string, args ...any) {
	fmt.Fprintf(cmd.OutOrStdout(), format, args...)
}

// wipe clears a password buffer.
func wipe(b []byte) { common.WipeByteArray(b) }
