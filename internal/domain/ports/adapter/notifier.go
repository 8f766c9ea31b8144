package adapter

import "context"

// AdminNotifier delivers human-readable alerts to the admin channel. Delivery
// is best effort: false means the alert was not delivered.
type AdminNotifier interface {
	SendAdminAlert(ctx context.Context, text string) bool
}
