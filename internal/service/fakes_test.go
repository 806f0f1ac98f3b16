package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/supportdesk/server/internal/domain"
	"github.com/supportdesk/server/internal/events"
)

type fakeTicketRepo struct {
	mu      sync.Mutex
	seq     int
	tickets map[string]*domain.Ticket
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: make(map[string]*domain.Ticket)}
}

func (r *fakeTicketRepo) put(ticket *domain.Ticket) *domain.Ticket {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ticket.ID == "" {
		r.seq++
		ticket.ID = fmt.Sprintf("ticket-%06d", r.seq)
	}
	copied := cloneTicket(ticket)
	r.tickets[copied.ID] = copied
	return cloneTicket(copied)
}

func (r *fakeTicketRepo) Create(_ context.Context, ticket *domain.Ticket) error {
	now := time.Now()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	stored := r.put(ticket)
	*ticket = *stored
	return nil
}

func (r *fakeTicketRepo) Update(_ context.Context, ticket *domain.Ticket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tickets[ticket.ID]; !ok {
		return pgx.ErrNoRows
	}
	ticket.UpdatedAt = time.Now()
	r.tickets[ticket.ID] = cloneTicket(ticket)
	return nil
}

func (r *fakeTicketRepo) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return cloneTicket(ticket), nil
}

func (r *fakeTicketRepo) ListByOwner(_ context.Context, ownerID string, limit, offset int) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		if ticket.OwnerID == ownerID {
			out = append(out, *cloneTicket(ticket))
		}
	}
	return out, nil
}

func (r *fakeTicketRepo) ListAll(_ context.Context, limit, offset int) ([]domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Ticket
	for _, ticket := range r.tickets {
		out = append(out, *cloneTicket(ticket))
	}
	return out, nil
}

func (r *fakeTicketRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tickets, id)
	return nil
}

func (r *fakeTicketRepo) Claim(_ context.Context, ticketID, agentID string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok || ticket.AssignedTo != nil || ticket.Status == domain.TicketStatusClosed {
		return nil, pgx.ErrNoRows
	}
	assignee := agentID
	ticket.AssignedTo = &assignee
	ticket.Status = domain.TicketStatusOpen
	ticket.UpdatedAt = time.Now()
	return cloneTicket(ticket), nil
}

func (r *fakeTicketRepo) Close(_ context.Context, ticketID string) (*domain.Ticket, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ticket, ok := r.tickets[ticketID]
	if !ok || ticket.Status == domain.TicketStatusClosed {
		return nil, pgx.ErrNoRows
	}
	now := time.Now()
	ticket.Status = domain.TicketStatusClosed
	ticket.ClosedAt = &now
	ticket.UpdatedAt = now
	return cloneTicket(ticket), nil
}

func cloneTicket(ticket *domain.Ticket) *domain.Ticket {
	copied := *ticket
	if ticket.AssignedTo != nil {
		assignee := *ticket.AssignedTo
		copied.AssignedTo = &assignee
	}
	if ticket.ClosedAt != nil {
		closedAt := *ticket.ClosedAt
		copied.ClosedAt = &closedAt
	}
	copied.Tags = append([]string(nil), ticket.Tags...)
	copied.Attachments = append([]domain.Attachment(nil), ticket.Attachments...)
	return &copied
}

type fakeNoteRepo struct {
	mu    sync.Mutex
	seq   int
	notes []domain.Note
}

func (r *fakeNoteRepo) Create(_ context.Context, note *domain.Note) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	note.ID = fmt.Sprintf("note-%06d", r.seq)
	note.CreatedAt = time.Now()
	r.notes = append(r.notes, *note)
	return nil
}

func (r *fakeNoteRepo) ListByTicket(_ context.Context, ticketID string) ([]domain.Note, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Note
	for _, note := range r.notes {
		if note.TicketID == ticketID {
			out = append(out, note)
		}
	}
	return out, nil
}

type fakeUserRepo struct {
	mu    sync.Mutex
	seq   int
	users map[string]*domain.User
}

func newFakeUserRepo(users ...*domain.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: make(map[string]*domain.User)}
	for _, user := range users {
		repo.users[user.ID] = user
	}
	return repo
}

func (r *fakeUserRepo) Create(_ context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if user.ID == "" {
		user.ID = fmt.Sprintf("user-%06d", r.seq)
	}
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	copied := *user
	r.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, user := range r.users {
		if user.Email == email {
			copied := *user
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

type fakeNotificationRepo struct {
	mu            sync.Mutex
	seq           int
	notifications []domain.Notification
	createErr     error
}

func (r *fakeNotificationRepo) Create(_ context.Context, notification *domain.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.seq++
	notification.ID = fmt.Sprintf("notification-%06d", r.seq)
	notification.CreatedAt = time.Now()
	r.notifications = append(r.notifications, *notification)
	return nil
}

func (r *fakeNotificationRepo) GetByID(_ context.Context, id string) (*domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, notification := range r.notifications {
		if notification.ID == id {
			copied := notification
			return &copied, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (r *fakeNotificationRepo) ListByRecipient(_ context.Context, recipientID string, limit int) ([]domain.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Notification
	for i := len(r.notifications) - 1; i >= 0 && len(out) < limit; i-- {
		if r.notifications[i].RecipientID == recipientID {
			out = append(out, r.notifications[i])
		}
	}
	return out, nil
}

func (r *fakeNotificationRepo) CountUnseen(_ context.Context, recipientID string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var count int64
	for _, notification := range r.notifications {
		if notification.RecipientID == recipientID && !notification.Seen {
			count++
		}
	}
	return count, nil
}

func (r *fakeNotificationRepo) MarkSeen(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.notifications {
		if r.notifications[i].ID == id {
			r.notifications[i].Seen = true
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (r *fakeNotificationRepo) MarkAllSeen(_ context.Context, recipientID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.notifications {
		if r.notifications[i].RecipientID == recipientID {
			r.notifications[i].Seen = true
		}
	}
	return nil
}

func (r *fakeNotificationRepo) all() []domain.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Notification(nil), r.notifications...)
}

type emittedFrame struct {
	room    string
	event   string
	payload any
}

type fakeBroadcaster struct {
	mu     sync.Mutex
	frames []emittedFrame
}

func (b *fakeBroadcaster) EmitToTicket(ticketID, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, emittedFrame{room: "ticket:" + ticketID, event: event, payload: payload})
}

func (b *fakeBroadcaster) EmitToUser(userID, event string, payload any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, emittedFrame{room: "user:" + userID, event: event, payload: payload})
}

func (b *fakeBroadcaster) byEvent(event string) []emittedFrame {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []emittedFrame
	for _, frame := range b.frames {
		if frame.event == event {
			out = append(out, frame)
		}
	}
	return out
}

type sentMail struct {
	to      string
	subject string
	body    string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
}

func (m *fakeMailer) Send(to, subject, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: to, subject: subject, body: html})
	return nil
}

func (m *fakeMailer) all() []sentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMail(nil), m.sent...)
}

// recordingDispatcher captures published events without running any
// handlers, so ticket service tests can assert on what was emitted.
type recordingDispatcher struct {
	mu        sync.Mutex
	published []events.Event
}

func (d *recordingDispatcher) Publish(event events.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.published = append(d.published, event)
}

func (d *recordingDispatcher) Subscribe(events.EventType, events.EventHandler) {}

func (d *recordingDispatcher) events() []events.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]events.Event(nil), d.published...)
}
