package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/supportdesk/server/internal/domain"
	"github.com/supportdesk/server/internal/events"
	"github.com/supportdesk/server/internal/mailer"
	"github.com/supportdesk/server/internal/persistence"
	"github.com/supportdesk/server/internal/realtime"
	"github.com/supportdesk/server/internal/repository"
	"github.com/supportdesk/server/internal/worker"
	apperrors "github.com/supportdesk/server/pkg/util"
)

const (
	defaultNotificationLimit = 50
	unreadCountTTL           = time.Minute
)

// NotificationService is the single consumer of ticket events. For each
// event it computes at most one recipient and runs three independent
// effects: persist a notification record, push a realtime frame, send
// an email. Each effect is its own pool job, so one failing channel
// never blocks the others. Only the persist failure is an error; the
// push and the email are best-effort and log warnings.
//
// It also serves the notification read API.
type NotificationService struct {
	notifications repository.NotificationRepository
	users         repository.UserRepository
	broadcaster   realtime.Broadcaster
	mail          mailer.Mailer
	pool          *worker.Pool
	cache         *persistence.Redis
	logger        *zap.Logger
}

// NotificationDependencies bundles everything the fan-out touches.
type NotificationDependencies struct {
	NotificationRepo repository.NotificationRepository
	UserRepo         repository.UserRepository
	Broadcaster      realtime.Broadcaster
	Mailer           mailer.Mailer
	Pool             *worker.Pool
	Cache            *persistence.Redis
	Logger           *zap.Logger
}

// NewNotificationService constructs the service.
func NewNotificationService(deps NotificationDependencies) *NotificationService {
	return &NotificationService{
		notifications: deps.NotificationRepo,
		users:         deps.UserRepo,
		broadcaster:   deps.Broadcaster,
		mail:          deps.Mailer,
		pool:          deps.Pool,
		cache:         deps.Cache,
		logger:        deps.Logger,
	}
}

// RegisterHandlers subscribes the fan-out to every ticket event type.
func (s *NotificationService) RegisterHandlers(dispatcher events.Dispatcher) {
	dispatcher.Subscribe(events.EventTicketNoteAdded, s.handleNoteAdded)
	dispatcher.Subscribe(events.EventTicketAssigned, s.handleAssigned)
	dispatcher.Subscribe(events.EventTicketClosed, s.handleClosed)
	dispatcher.Subscribe(events.EventTicketUpdated, s.handleUpdated)
}

func (s *NotificationService) handleNoteAdded(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.NoteAddedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}

	s.broadcaster.EmitToTicket(event.Ticket.ID, "new_note", payload.Note)

	recipient := replyRecipient(event)
	if recipient == "" {
		return nil
	}
	message := fmt.Sprintf("New reply on ticket #%s from %s", event.Ticket.ShortID(), event.ActorName)
	s.fanOut(event, recipient, domain.NotificationReply, message, mailer.TemplateTicketReply,
		fmt.Sprintf("New Reply on Ticket #%s: %s", event.Ticket.ShortID(), event.Ticket.Title),
		mailer.TemplateData{
			TicketID:    event.Ticket.ShortID(),
			TicketTitle: event.Ticket.Title,
			Author:      event.ActorName,
			Body:        payload.Note.Content,
		})
	return nil
}

func (s *NotificationService) handleAssigned(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.AssignedPayload)
	if !ok {
		return fmt.Errorf("unexpected payload %T for %s", event.Payload, event.Type)
	}

	s.broadcaster.EmitToTicket(event.Ticket.ID, "ticket_updated", event.Ticket)

	// The assignee gets an email regardless; the owner gets the full
	// record, push and email, unless they assigned it to themselves.
	s.submit(event, "assignee_email", func(ctx context.Context) error {
		s.sendEmail(ctx, payload.AssigneeID, mailer.TemplateTicketAssigned,
			fmt.Sprintf("New Ticket Assigned: #%s", event.Ticket.ShortID()),
			mailer.TemplateData{
				TicketID:    event.Ticket.ShortID(),
				TicketTitle: event.Ticket.Title,
			})
		return nil
	})

	if event.Ticket.OwnerID == payload.AssigneeID {
		return nil
	}
	message := fmt.Sprintf("Ticket #%s claimed by %s", event.Ticket.ShortID(), payload.AssigneeName)
	s.fanOut(event, event.Ticket.OwnerID, domain.NotificationAssigned, message, mailer.TemplateTicketUpdated,
		fmt.Sprintf("Ticket #%s Claimed by Agent", event.Ticket.ShortID()),
		mailer.TemplateData{
			TicketID:    event.Ticket.ShortID(),
			TicketTitle: event.Ticket.Title,
			Body:        fmt.Sprintf("Your ticket has been claimed by %s.", payload.AssigneeName),
		})
	return nil
}

func (s *NotificationService) handleClosed(ctx context.Context, event events.Event) error {
	s.broadcaster.EmitToTicket(event.Ticket.ID, "ticket_updated", event.Ticket)

	if event.Ticket.OwnerID == event.Actor.ID {
		return nil
	}
	message := fmt.Sprintf("Ticket #%s has been closed", event.Ticket.ShortID())
	s.fanOut(event, event.Ticket.OwnerID, domain.NotificationClosed, message, mailer.TemplateTicketClosed,
		fmt.Sprintf("Ticket #%s Closed: %s", event.Ticket.ShortID(), event.Ticket.Title),
		mailer.TemplateData{
			TicketID:    event.Ticket.ShortID(),
			TicketTitle: event.Ticket.Title,
		})
	return nil
}

// handleUpdated covers generic field edits: viewers of the ticket get a
// realtime refresh but nobody is notified.
func (s *NotificationService) handleUpdated(ctx context.Context, event events.Event) error {
	s.broadcaster.EmitToTicket(event.Ticket.ID, "ticket_updated", event.Ticket)
	return nil
}

// replyRecipient resolves who a note notifies. A staff reply goes to
// the owner; the owner's own reply goes to the assignee when there is
// one; an owner reply on an unassigned ticket notifies nobody.
func replyRecipient(event events.Event) string {
	if event.Actor.ID == event.Ticket.OwnerID {
		if event.Ticket.AssignedTo != nil && *event.Ticket.AssignedTo != event.Actor.ID {
			return *event.Ticket.AssignedTo
		}
		return ""
	}
	if event.Actor.Role.IsStaff() {
		return event.Ticket.OwnerID
	}
	return ""
}

// fanOut runs the three effects for one recipient, each isolated in its
// own pool job.
func (s *NotificationService) fanOut(event events.Event, recipientID string, kind domain.NotificationType, message, templateName, subject string, data mailer.TemplateData) {
	s.submit(event, "persist", func(ctx context.Context) error {
		notification := &domain.Notification{
			RecipientID: recipientID,
			TicketID:    event.Ticket.ID,
			Type:        kind,
			Message:     message,
		}
		if err := s.notifications.Create(ctx, notification); err != nil {
			return fmt.Errorf("persist notification: %w", err)
		}
		s.cache.Delete(ctx, unreadCountKey(recipientID))
		return nil
	})

	s.submit(event, "push", func(ctx context.Context) error {
		s.broadcaster.EmitToUser(recipientID, "notification", map[string]any{
			"message":  message,
			"ticketId": event.Ticket.ID,
			"type":     kind,
		})
		return nil
	})

	s.submit(event, "email", func(ctx context.Context) error {
		s.sendEmail(ctx, recipientID, templateName, subject, data)
		return nil
	})
}

func (s *NotificationService) submit(event events.Event, effect string, job worker.Job) {
	if !s.pool.Submit(job) {
		s.logger.Error("notification effect dropped, queue full",
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("effect", effect))
	}
}

// sendEmail looks up the recipient address, renders the template and
// sends. Failures are warnings; email is best-effort.
func (s *NotificationService) sendEmail(ctx context.Context, userID, templateName, subject string, data mailer.TemplateData) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		s.logger.Warn("email recipient lookup failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	body, err := mailer.Render(templateName, data)
	if err != nil {
		s.logger.Warn("email template render failed", zap.String("template", templateName), zap.Error(err))
		return
	}
	if err := s.mail.Send(user.Email, subject, body); err != nil {
		s.logger.Warn("email send failed", zap.String("to", user.Email), zap.Error(err))
	}
}

// List returns the caller's notifications, newest first, capped at 50.
func (s *NotificationService) List(ctx context.Context, actor *domain.User, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > defaultNotificationLimit {
		limit = defaultNotificationLimit
	}
	notifications, err := s.notifications.ListByRecipient(ctx, actor.ID, limit)
	if err != nil {
		return nil, apperrors.MapError(err)
	}
	return notifications, nil
}

// UnreadCount returns the caller's unseen notification count, served
// from the cache when warm.
func (s *NotificationService) UnreadCount(ctx context.Context, actor *domain.User) (int64, error) {
	key := unreadCountKey(actor.ID)
	if count, ok := s.cache.GetInt64(ctx, key); ok {
		return count, nil
	}
	count, err := s.notifications.CountUnseen(ctx, actor.ID)
	if err != nil {
		return 0, apperrors.MapError(err)
	}
	s.cache.SetInt64(ctx, key, count, unreadCountTTL)
	return count, nil
}

// MarkRead marks one of the caller's notifications seen. Marking an
// already-seen notification succeeds without effect.
func (s *NotificationService) MarkRead(ctx context.Context, actor *domain.User, notificationID string) (*domain.Notification, error) {
	notification, err := s.notifications.GetByID(ctx, notificationID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewNotFound("notification", map[string]any{"notification_id": notificationID})
		}
		return nil, apperrors.MapError(err)
	}
	if notification.RecipientID != actor.ID {
		return nil, apperrors.NewForbidden("access denied")
	}
	if notification.Seen {
		return notification, nil
	}
	if err := s.notifications.MarkSeen(ctx, notificationID); err != nil {
		return nil, apperrors.MapError(err)
	}
	notification.Seen = true
	s.cache.Delete(ctx, unreadCountKey(actor.ID))
	return notification, nil
}

// MarkAllRead marks every notification of the caller seen.
func (s *NotificationService) MarkAllRead(ctx context.Context, actor *domain.User) error {
	if err := s.notifications.MarkAllSeen(ctx, actor.ID); err != nil {
		return apperrors.MapError(err)
	}
	s.cache.Delete(ctx, unreadCountKey(actor.ID))
	return nil
}

func unreadCountKey(userID string) string {
	return "notifications:unread:" + userID
}
