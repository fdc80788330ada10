package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"securechat/internal/domain"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the session state and security level",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			snap := appCtx.Session.Snapshot()
			fmt.Fprintf(out, "State:    %s\n", snap.State)
			rec, ok := appCtx.Session.Current()
			if !ok {
				return nil
			}
			fmt.Fprintf(out, "Identity: %s\n", rec.IdentityID)
			if rec.Username != "" {
				fmt.Fprintf(out, "Account:  %s\n", rec.Username)
			}
			fmt.Fprintf(out, "Auth:     %s\n", rec.AuthMode)
			fmt.Fprintf(out, "Since:    %s\n", time.UnixMilli(rec.LoggedInAt).Format(time.RFC3339))
			fmt.Fprintf(out, "Level:    %s\n", snap.Level())
			if snap.Level() == domain.LevelHigh {
				until := time.UnixMilli(rec.ElevatedAt).Add(appCtx.Config.Session.HighSecurityTTL)
				fmt.Fprintf(out, "Elevated: by %s until %s\n", rec.ElevatedBy, until.Format(time.Kitchen))
			}
			return nil
		},
	}
}

func fingerprintCmd() *cobra.Command {
	var words bool
	cmd := &cobra.Command{
		Use:   "fingerprint [peer]",
		Short: "Print the identity fingerprint, or the pinned fingerprint of a peer",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireSession(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				pin, ok, err := appCtx.Messages.Pin(cmd.Context(), domain.IdentityID(args[0]))
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("no pinned key for %s", args[0])
				}
				fmt.Fprintf(out, "Fingerprint: %s\nPinned:      %s\n", pin.Fingerprint,
					time.UnixMilli(pin.PinnedAt).Format(time.RFC3339))
				return nil
			}
			id, ok := appCtx.Keyring.Identity()
			if !ok {
				return domain.ErrNoIdentity
			}
			fmt.Fprintf(out, "Identity:    %s\nFingerprint: %s\n", id.ID, id.Fingerprint)
			if words {
				w, err := appCtx.Keyring.FingerprintWords(id.PublicKey)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Words:       %s\n", w)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&words, "words", false, "also print the fingerprint as words")
	return cmd
}
