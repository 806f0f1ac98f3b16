package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/supportdesk/server/internal/domain"
	"github.com/supportdesk/server/internal/events"
	"github.com/supportdesk/server/internal/repository"
	apperrors "github.com/supportdesk/server/pkg/util"
)

// TicketService coordinates ticket workflows: every mutation runs the
// authorization policy and the lifecycle rules synchronously, persists,
// and only then publishes an event for the notification fan-out.
type TicketService struct {
	tickets    repository.TicketRepository
	notes      repository.NoteRepository
	users      repository.UserRepository
	dispatcher events.Dispatcher
}

// TicketDependencies bundles repositories for ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	NoteRepo   repository.NoteRepository
	UserRepo   repository.UserRepository
	Dispatcher events.Dispatcher
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	return &TicketService{
		tickets:    deps.TicketRepo,
		notes:      deps.NoteRepo,
		users:      deps.UserRepo,
		dispatcher: deps.Dispatcher,
	}
}

// AttachmentInput references an already-uploaded file.
type AttachmentInput struct {
	StorageKey string
	FileName   string
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Product     domain.Product
	Title       string
	Description string
	Priority    domain.TicketPriority
	Tags        []string
	Attachments []AttachmentInput
}

// TicketPatch carries optional field updates. Status and AssignedTo
// changes are routed through the lifecycle rules, never applied raw.
type TicketPatch struct {
	Title       *string
	Description *string
	Product     *domain.Product
	Priority    *domain.TicketPriority
	Tags        *[]string
	Status      *domain.TicketStatus
	AssignedTo  *string
}

// CreateTicket creates a ticket owned by the caller. New tickets start
// unassigned in status new.
func (s *TicketService) CreateTicket(ctx context.Context, actor *domain.User, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	description := strings.TrimSpace(input.Description)
	if input.Product == "" || title == "" || description == "" {
		return nil, apperrors.NewValidationError("product, title and description required", nil)
	}
	if !domain.KnownProduct(input.Product) {
		return nil, apperrors.NewValidationError("unknown product", map[string]any{"product": input.Product})
	}
	priority := input.Priority
	if priority == "" {
		priority = domain.TicketPriorityMedium
	}
	if !domain.KnownPriority(priority) {
		return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": priority})
	}

	ticket := &domain.Ticket{
		OwnerID:     actor.ID,
		Product:     input.Product,
		Title:       title,
		Description: description,
		Status:      domain.TicketStatusNew,
		Priority:    priority,
		Tags:        input.Tags,
	}
	now := time.Now()
	for _, att := range input.Attachments {
		if att.StorageKey == "" {
			continue
		}
		ticket.Attachments = append(ticket.Attachments, domain.Attachment{
			StorageKey: att.StorageKey,
			FileName:   att.FileName,
			UploadedAt: now,
		})
	}

	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, apperrors.MapError(err)
	}
	return ticket, nil
}

// GetTicket fetches a ticket the caller may view.
func (s *TicketService) GetTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	return s.fetchAuthorized(ctx, actor, ticketID, domain.OpView)
}

// ListTickets returns the caller's own tickets, newest first.
func (s *TicketService) ListTickets(ctx context.Context, actor *domain.User, limit, offset int) ([]domain.Ticket, error) {
	tickets, err := s.tickets.ListByOwner(ctx, actor.ID, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ListAllTickets returns every ticket; staff only.
func (s *TicketService) ListAllTickets(ctx context.Context, actor *domain.User, limit, offset int) ([]domain.Ticket, error) {
	if !actor.Role.IsStaff() {
		return nil, apperrors.NewForbidden("staff role required")
	}
	tickets, err := s.tickets.ListAll(ctx, limit, offset)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return tickets, nil
}

// ClaimTicket assigns an unassigned ticket to the calling staff member
// and opens it. The precondition is re-checked by a conditional update
// at the store, so concurrent claims resolve to exactly one winner.
func (s *TicketService) ClaimTicket(ctx context.Context, actor *domain.User, ticketID string) (*domain.Ticket, error) {
	ticket, err := s.fetchAuthorized(ctx, actor, ticketID, domain.OpAssign)
	if err != nil {
		return nil, err
	}

	probe := *ticket
	if err := domain.Claim(&probe, actor.Actor()); err != nil {
		return nil, err
	}

	claimed, err := s.tickets.Claim(ctx, ticketID, actor.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// lost the race between fetch and update
			return nil, apperrors.NewInvalidTransition("ticket already assigned", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	claimed.Attachments = ticket.Attachments

	s.dispatcher.Publish(events.Event{
		Type:      events.EventTicketAssigned,
		Ticket:    snapshot(claimed),
		Actor:     actor.Actor(),
		ActorName: actor.Name,
		Payload: events.AssignedPayload{
			AssigneeID:   actor.ID,
			AssigneeName: actor.Name,
		},
	})
	return claimed, nil
}

// UpdateTicket applies a patch. Generic fields update freely; status
// may only move to closed and assignment goes through the reassign
// rules, so the named transitions cannot be bypassed.
func (s *TicketService) UpdateTicket(ctx context.Context, actor *domain.User, ticketID string, patch TicketPatch) (*domain.Ticket, error) {
	ticket, err := s.fetchAuthorized(ctx, actor, ticketID, domain.OpUpdate)
	if err != nil {
		return nil, err
	}

	var changed []string
	var assignedPayload *events.AssignedPayload

	if patch.AssignedTo != nil && (ticket.AssignedTo == nil || *ticket.AssignedTo != *patch.AssignedTo) {
		assignee, err := s.users.GetByID(ctx, *patch.AssignedTo)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewNotFound("assignee", map[string]any{"user_id": *patch.AssignedTo})
			}
			return nil, apperrors.MapError(err)
		}
		if err := domain.Reassign(ticket, assignee); err != nil {
			return nil, err
		}
		changed = append(changed, "assignedTo")
		assignedPayload = &events.AssignedPayload{AssigneeID: assignee.ID, AssigneeName: assignee.Name}
	}

	wantClose := false
	if patch.Status != nil {
		switch {
		case *patch.Status == domain.TicketStatusClosed:
			if ticket.Status == domain.TicketStatusClosed {
				return nil, apperrors.NewInvalidTransition("ticket is closed", map[string]any{"ticket_id": ticketID})
			}
			wantClose = true
		case *patch.Status != ticket.Status:
			return nil, apperrors.NewInvalidTransition("status can only be set to closed; claim opens a ticket", map[string]any{
				"status": *patch.Status,
			})
		}
	}

	if patch.Title != nil && strings.TrimSpace(*patch.Title) != "" {
		ticket.Title = strings.TrimSpace(*patch.Title)
		changed = append(changed, "title")
	}
	if patch.Description != nil && strings.TrimSpace(*patch.Description) != "" {
		ticket.Description = strings.TrimSpace(*patch.Description)
		changed = append(changed, "description")
	}
	if patch.Product != nil {
		if !domain.KnownProduct(*patch.Product) {
			return nil, apperrors.NewValidationError("unknown product", map[string]any{"product": *patch.Product})
		}
		ticket.Product = *patch.Product
		changed = append(changed, "product")
	}
	if patch.Priority != nil {
		if !domain.KnownPriority(*patch.Priority) {
			return nil, apperrors.NewValidationError("unknown priority", map[string]any{"priority": *patch.Priority})
		}
		ticket.Priority = *patch.Priority
		changed = append(changed, "priority")
	}
	if patch.Tags != nil {
		ticket.Tags = *patch.Tags
		changed = append(changed, "tags")
	}

	if len(changed) > 0 {
		if err := s.tickets.Update(ctx, ticket); err != nil {
			return nil, apperrors.MapError(err)
		}
	}

	if wantClose {
		closed, err := s.tickets.Close(ctx, ticketID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NewInvalidTransition("ticket is closed", map[string]any{"ticket_id": ticketID})
			}
			return nil, apperrors.MapError(err)
		}
		closed.Attachments = ticket.Attachments
		ticket = closed
	}

	if len(changed) == 0 && !wantClose {
		return ticket, nil
	}

	if len(changed) > 0 {
		s.dispatcher.Publish(events.Event{
			Type:      events.EventTicketUpdated,
			Ticket:    snapshot(ticket),
			Actor:     actor.Actor(),
			ActorName: actor.Name,
			Payload:   events.UpdatedPayload{Fields: changed},
		})
	}
	if assignedPayload != nil {
		s.dispatcher.Publish(events.Event{
			Type:      events.EventTicketAssigned,
			Ticket:    snapshot(ticket),
			Actor:     actor.Actor(),
			ActorName: actor.Name,
			Payload:   *assignedPayload,
		})
	}
	if wantClose {
		s.dispatcher.Publish(events.Event{
			Type:      events.EventTicketClosed,
			Ticket:    snapshot(ticket),
			Actor:     actor.Actor(),
			ActorName: actor.Name,
			Payload:   events.ClosedPayload{},
		})
	}
	return ticket, nil
}

// AddNote appends a reply to the ticket thread. Notes never change
// status or assignment.
func (s *TicketService) AddNote(ctx context.Context, actor *domain.User, ticketID, content string) (*domain.Note, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.NewValidationError("content required", nil)
	}

	ticket, err := s.fetchAuthorized(ctx, actor, ticketID, domain.OpReply)
	if err != nil {
		return nil, err
	}
	if err := domain.EnsureReplyable(ticket); err != nil {
		return nil, err
	}

	note := &domain.Note{
		TicketID:   ticket.ID,
		AuthorID:   actor.ID,
		AuthorName: actor.Name,
		AuthorRole: actor.Role,
		Content:    content,
	}
	if err := s.notes.Create(ctx, note); err != nil {
		return nil, apperrors.MapError(err)
	}

	s.dispatcher.Publish(events.Event{
		Type:      events.EventTicketNoteAdded,
		Ticket:    snapshot(ticket),
		Actor:     actor.Actor(),
		ActorName: actor.Name,
		Payload:   events.NoteAddedPayload{Note: *note},
	})
	return note, nil
}

// ListNotes returns the ticket thread oldest first.
func (s *TicketService) ListNotes(ctx context.Context, actor *domain.User, ticketID string) ([]domain.Note, error) {
	if _, err := s.fetchAuthorized(ctx, actor, ticketID, domain.OpView); err != nil {
		return nil, err
	}
	notes, err := s.notes.ListByTicket(ctx, ticketID)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return notes, nil
}

// DeleteTicket removes a ticket and its notes. Owner only, allowed in
// any status, no fan-out.
func (s *TicketService) DeleteTicket(ctx context.Context, actor *domain.User, ticketID string) error {
	if _, err := s.fetchAuthorized(ctx, actor, ticketID, domain.OpDelete); err != nil {
		return err
	}
	if err := s.tickets.Delete(ctx, ticketID); err != nil {
		return apperrors.MapError(err)
	}
	return nil
}

func (s *TicketService) fetchAuthorized(ctx context.Context, actor *domain.User, ticketID string, op domain.Operation) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("ticket", map[string]any{"ticket_id": ticketID})
		}
		return nil, apperrors.MapError(err)
	}
	if !domain.CanAccess(actor.Actor(), ticket, op) {
		return nil, apperrors.NewForbidden("access denied")
	}
	return ticket, nil
}

func snapshot(ticket *domain.Ticket) events.TicketSnapshot {
	return events.TicketSnapshot{
		ID:         ticket.ID,
		Title:      ticket.Title,
		OwnerID:    ticket.OwnerID,
		AssignedTo: ticket.AssignedTo,
	}
}
