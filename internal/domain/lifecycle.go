package domain

import (
	"time"

	apperrors "github.com/supportdesk/server/pkg/util"
)

// Ticket lifecycle: new -> open -> closed. Closed is terminal.
// Assignment may happen while new or open; claiming moves new to open.
var allowedTransitions = map[TicketStatus][]TicketStatus{
	TicketStatusNew:    {TicketStatusOpen, TicketStatusClosed},
	TicketStatusOpen:   {TicketStatusClosed},
	TicketStatusClosed: {},
}

// CanTransition reports whether status may move from current to next.
func CanTransition(current, next TicketStatus) bool {
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

// Claim assigns the ticket to the acting staff member and opens it.
// Fails when the ticket is closed, already assigned, or the actor is
// not staff.
func Claim(ticket *Ticket, agent Actor) error {
	if !agent.Role.IsStaff() {
		return apperrors.NewForbidden("only staff can claim tickets")
	}
	if ticket.Status == TicketStatusClosed {
		return apperrors.NewInvalidTransition("ticket is closed", transitionDetails(ticket))
	}
	if ticket.AssignedTo != nil {
		return apperrors.NewInvalidTransition("ticket already assigned", transitionDetails(ticket))
	}
	agentID := agent.ID
	ticket.AssignedTo = &agentID
	ticket.Status = TicketStatusOpen
	return nil
}

// Close marks the ticket closed. A second close fails: closed is
// terminal and the transition is not idempotent.
func Close(ticket *Ticket) error {
	if ticket.Status == TicketStatusClosed {
		return apperrors.NewInvalidTransition("ticket is closed", transitionDetails(ticket))
	}
	now := time.Now()
	ticket.Status = TicketStatusClosed
	ticket.ClosedAt = &now
	return nil
}

// Reassign moves the ticket to another staff member. Unlike Claim it
// tolerates an existing assignee but still refuses closed tickets.
func Reassign(ticket *Ticket, assignee *User) error {
	if assignee == nil || !assignee.Role.IsStaff() {
		return apperrors.NewValidationError("assignee must be a staff member", nil)
	}
	if ticket.Status == TicketStatusClosed {
		return apperrors.NewInvalidTransition("ticket is closed", transitionDetails(ticket))
	}
	assigneeID := assignee.ID
	ticket.AssignedTo = &assigneeID
	if ticket.Status == TicketStatusNew {
		ticket.Status = TicketStatusOpen
	}
	return nil
}

// EnsureReplyable verifies a note may be appended. Replying never
// changes status or assignment.
func EnsureReplyable(ticket *Ticket) error {
	if ticket.Status == TicketStatusClosed {
		return apperrors.NewInvalidTransition("ticket is closed", transitionDetails(ticket))
	}
	return nil
}

func transitionDetails(ticket *Ticket) map[string]any {
	details := map[string]any{
		"ticket_id": ticket.ID,
		"status":    ticket.Status,
	}
	if ticket.AssignedTo != nil {
		details["assigned_to"] = *ticket.AssignedTo
	}
	return details
}
