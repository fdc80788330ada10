package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"securechat/internal/domain"
)

func publishCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "publish",
		Short: "Publish your identity public key to the relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := appCtx.Messages.PublishIdentity(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Published identity to relay.")
			return nil
		},
	}
}

func sendCmd() *cobra.Command {
	var ephemeral bool
	cmd := &cobra.Command{
		Use:   "send <peer> <message>",
		Short: "Encrypt and send a message to a peer",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := appCtx.Messages.Send(cmd.Context(), domain.IdentityID(args[0]), []byte(args[1]), ephemeral); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "sent")
			return nil
		},
	}
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "send as ephemeral (needs high security)")
	return cmd
}

func recvCmd() *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recv",
		Short: "Fetch and decrypt your queued messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			msgs, err := appCtx.Messages.Receive(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, m := range msgs {
				printMessage(cmd, m)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "max messages to fetch (0 = all)")
	return cmd
}

func historyCmd() *cobra.Command {
	var wipe bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show retained messages",
		RunE: func(cmd *cobra.Command, args []string) error {
			if wipe {
				if _, err := requireSession(); err != nil {
					return err
				}
				return appCtx.Messages.ClearHistory(cmd.Context())
			}
			msgs, err := appCtx.Messages.History(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range msgs {
				printMessage(cmd, m)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&wipe, "clear", false, "delete the retained history")
	return cmd
}

func forgetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "forget <peer>",
		Short: "Drop the pinned key of a peer so a new key is trusted",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := requireSession(); err != nil {
				return err
			}
			return appCtx.Messages.Forget(cmd.Context(), domain.IdentityID(args[0]))
		},
	}
}

func printMessage(cmd *cobra.Command, m domain.DecryptedMessage) {
	ts := time.UnixMilli(m.Timestamp).Format(time.Kitchen)
	switch {
	case m.Kind == domain.KindSecurityNotice:
		fmt.Fprintf(cmd.OutOrStdout(), "%s [%s] ** %s **\n", ts, m.From, m.Plaintext)
	case m.Ephemeral:
		fmt.Fprintf(cmd.OutOrStdout(), "%s [%s] (ephemeral) %s\n", ts, m.From, m.Plaintext)
	default:
		fmt.Fprintf(cmd.OutOrStdout(), "%s [%s] %s\n", ts, m.From, m.Plaintext)
	}
}
