package events

import (
	"time"

	"github.com/supportdesk/server/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketAssigned  EventType = "ticket_assigned"
	EventTicketClosed    EventType = "ticket_closed"
	EventTicketUpdated   EventType = "ticket_updated"
	EventTicketNoteAdded EventType = "ticket_note_added"
)

// TicketSnapshot carries the ticket fields the fan-out pipeline needs,
// captured at mutation time so handlers never re-read the ticket.
type TicketSnapshot struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	OwnerID    string  `json:"owner_id"`
	AssignedTo *string `json:"assigned_to,omitempty"`
}

// ShortID returns the display form of the ticket id.
func (s TicketSnapshot) ShortID() string {
	t := domain.Ticket{ID: s.ID}
	return t.ShortID()
}

// Event represents a completed ticket mutation emitted by services.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Ticket    TicketSnapshot `json:"ticket"`
	Actor     domain.Actor   `json:"actor"`
	ActorName string         `json:"actor_name"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   interface{}    `json:"payload"`
}

// NoteAddedPayload payload.
type NoteAddedPayload struct {
	Note domain.Note `json:"note"`
}

// AssignedPayload payload.
type AssignedPayload struct {
	AssigneeID   string `json:"assignee_id"`
	AssigneeName string `json:"assignee_name"`
}

// ClosedPayload payload.
type ClosedPayload struct{}

// UpdatedPayload payload.
type UpdatedPayload struct {
	Fields []string `json:"fields"`
}
