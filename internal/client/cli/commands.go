package cli

import (
	"github.com/spf13/cobra"
)

func (a *app) newRegisterCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and mail a verification code",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, password, err := a.credentials(cmd, email)
			if err != nil {
				return err
			}
			defer wipe(password)

			ctx, cancel := a.context(cmd)
			defer cancel()

			id, err := a.client.Register(ctx, email, string(password))
			if id != "" {
				printf(cmd, "account id: %s\n", id)
			}
			if err != nil {
				return err
			}
			printf(cmd, "Verification email has been sent!\n")
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	return cmd
}

func (a *app) newLoginCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			email, password, err := a.credentials(cmd, email)
			if err != nil {
				return err
			}
			defer wipe(password)

			ctx, cancel := a.context(cmd)
			defer cancel()

			sess, err := a.client.Login(ctx, email, string(password))
			if err != nil {
				return err
			}
			printSession(cmd, sess)
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	return cmd
}

func (a *app) newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <account-id> <code>",
		Short: "Verify an account with the mailed code and log in",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			sess, err := a.client.Verify(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			printSession(cmd, sess)
			return nil
		},
	}
}

func (a *app) newResendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resend <account-id>",
		Short: "Mail a fresh verification code",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			if err := a.client.ResendVerification(ctx, args[0]); err != nil {
				return err
			}
			printf(cmd, "Verification code resent\n")
			return nil
		},
	}
}

func (a *app) newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Exchange --refresh-token for a new access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			access, err := a.client.Refresh(ctx)
			if err != nil {
				return err
			}
			printf(cmd, "access token: %s\n", access)
			return nil
		},
	}
}

func (a *app) newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke --refresh-token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			if err := a.client.Logout(ctx); err != nil {
				return err
			}
			printf(cmd, "Logged out\n")
			return nil
		},
	}
}

func (a *app) newEnabledCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enabled <account-id>",
		Short: "Report whether an account is verified",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			enabled, err := a.client.AccountEnabled(ctx, args[0])
			if err != nil {
				return err
			}
			printf(cmd, "%t\n", enabled)
			return nil
		},
	}
}

func (a *app) newMeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the account behind --access-token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.context(cmd)
			defer cancel()

			id, role, err := a.client.Me(ctx)
			if err != nil {
				return err
			}
			printf(cmd, "account id: %s\nrole:       %s\n", id, role)
			return nil
		},
	}
}
