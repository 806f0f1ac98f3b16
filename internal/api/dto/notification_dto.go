package dto

import (
	"time"

	"github.com/supportdesk/server/internal/domain"
)

// NotificationResponse is one in-app notification.
type NotificationResponse struct {
	ID        string                  `json:"id"`
	TicketID  string                  `json:"ticket_id"`
	Type      domain.NotificationType `json:"type"`
	Message   string                  `json:"message"`
	Seen      bool                    `json:"seen"`
	CreatedAt time.Time               `json:"created_at"`
}

// UnreadCountResponse carries the badge counter.
type UnreadCountResponse struct {
	Count int64 `json:"count"`
}
