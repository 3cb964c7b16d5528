package port

import "context"

// NotificationGateway delivers one-time passwords to account holders.
type NotificationGateway interface {
	SendOTP(ctx context.Context, email, code string) error
}
