package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"securechat/internal/domain"
)

func signupCmd() *cobra.Command {
	var username, displayName string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create a password account bound to this device's identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := passwordValue(cmd)
			if err != nil {
				return err
			}
			rec, err := appCtx.Session.Signup(cmd.Context(), domain.Credentials{
				Username:    domain.Username(username),
				Password:    pw,
				DisplayName: displayName,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Account created.\nIdentity:    %s\nFingerprint: %s\n", rec.IdentityID, rec.Fingerprint)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVar(&displayName, "display-name", "", "display name (defaults to username)")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func loginCmd() *cobra.Command {
	var username string
	var withIdentity, withBiometric bool
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in with a password, the device identity or biometrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			var (
				rec domain.SessionRecord
				err error
			)
			switch {
			case withIdentity && withBiometric:
				return errors.New("choose one of --identity and --biometric")
			case withIdentity:
				rec, err = appCtx.Session.LoginWithIdentity(ctx)
			case withBiometric:
				rec, err = appCtx.Session.LoginWithBiometric(ctx)
			default:
				if username == "" {
					return errors.New("--username is required for password login")
				}
				pw, perr := passwordValue(cmd)
				if perr != nil {
					return perr
				}
				rec, err = appCtx.Session.Login(ctx, domain.Credentials{Username: domain.Username(username), Password: pw})
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s).\n", rec.IdentityID, rec.AuthMode)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().BoolVar(&withIdentity, "identity", false, "log in with the device identity")
	cmd.Flags().BoolVar(&withBiometric, "biometric", false, "log in with the registered biometric credential")
	return cmd
}

func logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the session and purge its stored material",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := appCtx.Session.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}

func passwdCmd() *cobra.Command {
	var newPassword string
	cmd := &cobra.Command{
		Use:   "passwd",
		Short: "Change the account password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireSession(); err != nil {
				return err
			}
			old, err := passwordValue(cmd)
			if err != nil {
				return err
			}
			if newPassword == "" {
				if newPassword, err = prompt(cmd, "new password: "); err != nil {
					return err
				}
			}
			if err := appCtx.Session.ChangePassword(cmd.Context(), old, newPassword); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Password changed.")
			return nil
		},
	}
	cmd.Flags().StringVar(&newPassword, "new", "", "new password (prompted when omitted)")
	return cmd
}
