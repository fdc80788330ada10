package interfaces

import (
	"context"
	"time"

	domaintypes "securechat/internal/domain/types"
)

// RelayClient is how we talk to the external messaging channel.
type RelayClient interface {
	PublishKey(ctx context.Context, record domaintypes.PublicKeyRecord) error
	FetchKey(ctx context.Context, id domaintypes.IdentityID) (domaintypes.PublicKeyRecord, error)

	SendDelivery(ctx context.Context, delivery domaintypes.Delivery) error
	FetchDeliveries(ctx context.Context, id domaintypes.IdentityID, limit int) ([]domaintypes.Delivery, error)
	AckDeliveries(ctx context.Context, id domaintypes.IdentityID, count int) error
}

// CodeDelivery sends one-time codes out of band (email, SMS, console).
type CodeDelivery interface {
	DeliverCode(ctx context.Context, userID string, code string, expiresAt time.Time) error
}
