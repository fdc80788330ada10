package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"securechat/internal/domain"
)

func elevateCmd() *cobra.Command {
	var notify []string
	cmd := &cobra.Command{
		Use:       "elevate otp|biometric",
		Short:     "Switch to high security after a second factor",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"otp", "biometric"},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			subject, err := appCtx.Session.Subject()
			if err != nil {
				return err
			}

			var proof domain.FactorProof
			switch args[0] {
			case "otp":
				if _, err := appCtx.OTP.Issue(ctx, subject); err != nil {
					return err
				}
				code, err := prompt(cmd, "enter code: ")
				if err != nil {
					return err
				}
				if proof, err = appCtx.OTP.Verify(ctx, code); err != nil {
					return err
				}
			case "biometric":
				res, err := appCtx.Biometric.Assert(ctx)
				if err != nil {
					return err
				}
				proof = res.Proof
			default:
				return errors.New("method must be otp or biometric")
			}

			if err := appCtx.Session.Elevate(ctx, proof); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "High security enabled for %s.\n", appCtx.Config.Session.HighSecurityTTL)
			for _, peer := range notify {
				if err := appCtx.Messages.NotifyHighSecurity(ctx, domain.IdentityID(peer)); err != nil {
					return fmt.Errorf("notify %s: %w", peer, err)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&notify, "notify", nil, "peers to tell about the switch")
	return cmd
}

func downgradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "downgrade",
		Short: "Return to standard security",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := appCtx.Session.Downgrade(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Standard security.")
			return nil
		},
	}
}
