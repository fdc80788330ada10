package otp

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"securechat/internal/domain"
)

// WriterDelivery prints codes to w, typically stderr of the CLI.
type WriterDelivery struct {
	W io.Writer
}

func (d WriterDelivery) DeliverCode(_ context.Context, userID, code string, expiresAt time.Time) error {
	_, err := fmt.Fprintf(d.W, "one-time code for %s: %s (expires %s)\n",
		userID, code, expiresAt.Local().Format(time.Kitchen))
	return err
}

// LogDelivery writes codes to the log. Development only.
type LogDelivery struct {
	Log zerolog.Logger
}

func (d LogDelivery) DeliverCode(_ context.Context, userID, code string, expiresAt time.Time) error {
	d.Log.Warn().Str("user", userID).Str("code", code).Time("expires_at", expiresAt).
		Msg("one-time code (development delivery)")
	return nil
}

var (
	_ domain.CodeDelivery = WriterDelivery{}
	_ domain.CodeDelivery = LogDelivery{}
)
