package domain

import "time"

// NotificationType enumerates the mutation kinds that produce a
// persisted notification.
type NotificationType string

const (
	NotificationAssigned NotificationType = "ASSIGNED"
	NotificationUpdated  NotificationType = "UPDATED"
	NotificationClosed   NotificationType = "CLOSED"
	NotificationReply    NotificationType = "REPLY"
)

// Notification is the durable record behind the in-app badge. It is
// created only by the fan-out pipeline and mutated only by its
// recipient marking it read.
type Notification struct {
	ID          string
	RecipientID string
	TicketID    string
	Type        NotificationType
	Message     string
	Seen        bool
	CreatedAt   time.Time
}
