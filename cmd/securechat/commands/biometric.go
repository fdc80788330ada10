package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func biometricCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "biometric",
		Short: "Manage the biometric credential",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "register",
			Short: "Register a platform credential for the current identity",
			RunE: func(cmd *cobra.Command, args []string) error {
				subject, err := appCtx.Session.Subject()
				if err != nil {
					return err
				}
				cred, err := appCtx.Biometric.Register(cmd.Context(), subject)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Registered credential %x.\n", cred.CredentialID)
				return nil
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "Show whether a credential is registered",
			RunE: func(cmd *cobra.Command, args []string) error {
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Supported:  %t\n", appCtx.Biometric.IsSupported())
				cred, ok, err := appCtx.Biometric.Credential(cmd.Context())
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out, "Registered: no")
					return nil
				}
				fmt.Fprintf(out, "Registered: %s\nCredential: %x\nSignCount:  %d\n",
					time.Unix(cred.CreatedAt, 0).Format(time.RFC3339), cred.CredentialID, cred.SignCount)
				return nil
			},
		},
		&cobra.Command{
			Use:   "remove",
			Short: "Remove the registered credential",
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := appCtx.Biometric.Unregister(cmd.Context()); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Credential removed.")
				return nil
			},
		},
	)
	return cmd
}
