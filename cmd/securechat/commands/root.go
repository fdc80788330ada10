package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"securechat/internal/app"
	"securechat/internal/domain"
)

var (
	home       string
	configPath string
	relayURL   string
	logLevel   string
	password   string

	appCtx *app.App
	stdin  *bufio.Reader
)

func Execute(ctx context.Context) error {
	root := &cobra.Command{
		Use:           "securechat",
		Short:         "Secure identity and end-to-end encrypted messaging",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".securechat")
			}
			cfg, err := app.LoadConfig(home, configPath)
			if err != nil {
				return err
			}
			if relayURL != "" {
				cfg.RelayURL = relayURL
			}
			if logLevel != "" {
				cfg.LogLevel = logLevel
			}

			stdin = bufio.NewReader(cmd.InOrStdin())
			log := app.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel)
			appCtx, err = app.New(cfg, log, app.Options{
				Out:      cmd.ErrOrStderr(),
				Presence: confirmPresence(cmd),
			})
			if err != nil {
				return err
			}
			if _, _, err := appCtx.Restore(cmd.Context()); err != nil {
				log.Warn().Err(err).Msg("could not restore session")
			}
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			if appCtx == nil {
				return nil
			}
			return appCtx.Close()
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "data dir (default ~/.securechat)")
	root.PersistentFlags().StringVar(&configPath, "config", "", "config file (default <home>/config.yaml)")
	root.PersistentFlags().StringVar(&relayURL, "relay", "", "relay base URL (e.g. http://127.0.0.1:8080)")
	root.PersistentFlags().StringVarP(&password, "password", "p", "", "account password (prompted when omitted)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "debug, info, warn or error")

	root.AddCommand(
		signupCmd(),
		loginCmd(),
		statusCmd(),
		fingerprintCmd(),
		elevateCmd(),
		downgradeCmd(),
		logoutCmd(),
		biometricCmd(),
		publishCmd(),
		sendCmd(),
		recvCmd(),
		historyCmd(),
		forgetCmd(),
		passwdCmd(),
	)

	err := root.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "error:", err)
		if appCtx != nil {
			_ = appCtx.Close()
		}
	}
	return err
}

// prompt writes label to stderr and reads one line from stdin.
func prompt(cmd *cobra.Command, label string) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), label)
	line, err := stdin.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// passwordValue returns -p or prompts for it.
func passwordValue(cmd *cobra.Command) (string, error) {
	if password != "" {
		return password, nil
	}
	return prompt(cmd, "password: ")
}

func confirmPresence(cmd *cobra.Command) func(context.Context, string) error {
	return func(ctx context.Context, msg string) error {
		answer, err := prompt(cmd, msg+" [Y/n] ")
		if err != nil {
			return err
		}
		if strings.HasPrefix(strings.ToLower(answer), "n") {
			return errors.New("declined")
		}
		return nil
	}
}

// requireSession returns the active session or ErrNotLoggedIn.
func requireSession() (domain.SessionRecord, error) {
	rec, ok := appCtx.Session.Current()
	if !ok {
		return domain.SessionRecord{}, fmt.Errorf("%w: run `securechat login` first", domain.ErrNotLoggedIn)
	}
	return rec, nil
}
