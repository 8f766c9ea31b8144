package model

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

type NotificationType string

const (
	NotificationNewOrder       NotificationType = "new_order"
	NotificationPaymentSuccess NotificationType = "payment_success"
	NotificationOverduePayment NotificationType = "overdue_payment"
	NotificationRefund         NotificationType = "refund"
)

// AdminNotification is an entry in the admin dashboard feed. It is only ever
// mutated by marking it read.
type AdminNotification struct {
	ID        string
	Type      NotificationType
	Title     string
	Message   string
	Metadata  map[string]any
	IsRead    bool
	CreatedAt time.Time
}

// NewAdminNotification assigns a ULID so ids sort by creation time.
func NewAdminNotification(typ NotificationType, title, message string, meta map[string]any) *AdminNotification {
	now := time.Now()
	return &AdminNotification{
		ID:        ulid.MustNew(ulid.Timestamp(now), rand.Reader).String(),
		Type:      typ,
		Title:     title,
		Message:   message,
		Metadata:  meta,
		CreatedAt: now,
	}
}
