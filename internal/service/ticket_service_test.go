package service

import (
	"context"
	"sync"
	"testing"

	"github.com/supportdesk/server/internal/domain"
	"github.com/supportdesk/server/internal/events"
	apperrors "github.com/supportdesk/server/pkg/util"
)

var (
	testCustomer = &domain.User{ID: "user-customer", Name: "Casey Customer", Email: "casey@example.com", Role: domain.RoleCustomer}
	testOther    = &domain.User{ID: "user-other", Name: "Olly Other", Email: "olly@example.com", Role: domain.RoleCustomer}
	testAgent    = &domain.User{ID: "user-agent", Name: "Alex Agent", Email: "alex@example.com", Role: domain.RoleAgent}
	testAdmin    = &domain.User{ID: "user-admin", Name: "Ada Admin", Email: "ada@example.com", Role: domain.RoleAdmin}
)

type ticketFixture struct {
	service    *TicketService
	tickets    *fakeTicketRepo
	notes      *fakeNoteRepo
	users      *fakeUserRepo
	dispatcher *recordingDispatcher
}

func newTicketFixture() *ticketFixture {
	tickets := newFakeTicketRepo()
	notes := &fakeNoteRepo{}
	users := newFakeUserRepo(testCustomer, testOther, testAgent, testAdmin)
	dispatcher := &recordingDispatcher{}
	service := NewTicketService(TicketDependencies{
		TicketRepo: tickets,
		NoteRepo:   notes,
		UserRepo:   users,
		Dispatcher: dispatcher,
	})
	return &ticketFixture{service: service, tickets: tickets, notes: notes, users: users, dispatcher: dispatcher}
}

func (f *ticketFixture) seedTicket(t *testing.T, owner *domain.User) *domain.Ticket {
	t.Helper()
	ticket, err := f.service.CreateTicket(context.Background(), owner, TicketCreateInput{
		Product:     domain.ProductIPhone,
		Title:       "Screen cracked",
		Description: "The screen cracked after the last update.",
	})
	if err != nil {
		t.Fatalf("seed ticket: %v", err)
	}
	return ticket
}

func TestCreateTicketDefaults(t *testing.T) {
	f := newTicketFixture()

	ticket, err := f.service.CreateTicket(context.Background(), testCustomer, TicketCreateInput{
		Product:     domain.ProductMacbookPro,
		Title:       "  Battery drain  ",
		Description: "Battery empties in an hour.",
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if ticket.Status != domain.TicketStatusNew {
		t.Fatalf("status = %s, want new", ticket.Status)
	}
	if ticket.AssignedTo != nil {
		t.Fatalf("new ticket must be unassigned")
	}
	if ticket.Priority != domain.TicketPriorityMedium {
		t.Fatalf("priority = %s, want medium default", ticket.Priority)
	}
	if ticket.Title != "Battery drain" {
		t.Fatalf("title = %q, want trimmed", ticket.Title)
	}
	if len(f.dispatcher.events()) != 0 {
		t.Fatalf("creation must not publish events")
	}
}

func TestCreateTicketValidation(t *testing.T) {
	f := newTicketFixture()

	cases := []TicketCreateInput{
		{Title: "missing product", Description: "x"},
		{Product: domain.ProductIPad, Description: "missing title"},
		{Product: domain.ProductIPad, Title: "missing description"},
		{Product: "Toaster", Title: "bad product", Description: "x"},
		{Product: domain.ProductIPad, Title: "bad priority", Description: "x", Priority: "urgent"},
	}
	for _, input := range cases {
		if _, err := f.service.CreateTicket(context.Background(), testCustomer, input); !apperrors.IsCode(err, "VALIDATION_FAILED") {
			t.Fatalf("input %+v: err = %v, want VALIDATION_FAILED", input, err)
		}
	}
}

func TestGetTicketAccess(t *testing.T) {
	f := newTicketFixture()
	ticket := f.seedTicket(t, testCustomer)

	if _, err := f.service.GetTicket(context.Background(), testCustomer, ticket.ID); err != nil {
		t.Fatalf("owner view: %v", err)
	}
	if _, err := f.service.GetTicket(context.Background(), testAgent, ticket.ID); err != nil {
		t.Fatalf("agent view: %v", err)
	}
	if _, err := f.service.GetTicket(context.Background(), testOther, ticket.ID); !apperrors.IsCode(err, "FORBIDDEN") {
		t.Fatalf("other customer view: err = %v, want FORBIDDEN", err)
	}
	if _, err := f.service.GetTicket(context.Background(), testAgent, "missing"); !apperrors.IsCode(err, "NOT_FOUND") {
		t.Fatalf("missing ticket: err = %v, want NOT_FOUND", err)
	}
}

func TestClaimTicket(t *testing.T) {
	f := newTicketFixture()
	ticket := f.seedTicket(t, testCustomer)

	claimed, err := f.service.ClaimTicket(context.Background(), testAgent, ticket.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed.Status != domain.TicketStatusOpen {
		t.Fatalf("status = %s, want open", claimed.Status)
	}
	if claimed.AssignedTo == nil || *claimed.AssignedTo != testAgent.ID {
		t.Fatalf("assignee = %v, want %s", claimed.AssignedTo, testAgent.ID)
	}

	published := f.dispatcher.events()
	if len(published) != 1 || published[0].Type != events.EventTicketAssigned {
		t.Fatalf("published = %+v, want single assigned event", published)
	}

	if _, err := f.service.ClaimTicket(context.Background(), testAdmin, ticket.ID); !apperrors.IsCode(err, "INVALID_TRANSITION") {
		t.Fatalf("second claim: err = %v, want INVALID_TRANSITION", err)
	}
}

func TestClaimTicketCustomerForbidden(t *testing.T) {
	f := newTicketFixture()
	ticket := f.seedTicket(t, testCustomer)

	if _, err := f.service.ClaimTicket(context.Background(), testCustomer, ticket.ID); !apperrors.IsCode(err, "FORBIDDEN") {
		t.Fatalf("owner claim: err = %v, want FORBIDDEN", err)
	}
}

func TestClaimTicketConcurrentOneWinner(t *testing.T) {
	f := newTicketFixture()
	ticket := f.seedTicket(t, testCustomer)

	agents := []*domain.User{testAgent, testAdmin}
	var wg sync.WaitGroup
	errs := make([]error, len(agents))
	for i, agent := range agents {
		wg.Add(1)
		go func(i int, agent *domain.User) {
			defer wg.Done()
			_, errs[i] = f.service.ClaimTicket(context.Background(), agent, ticket.ID)
		}(i, agent)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
		} else if !apperrors.IsCode(err, "INVALID_TRANSITION") {
			t.Fatalf("loser err = %v, want INVALID_TRANSITION", err)
		}
	}
	if wins != 1 {
		t.Fatalf("winners = %d, want exactly 1", wins)
	}

	stored, err := f.tickets.GetByID(context.Background(), ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.AssignedTo == nil {
		t.Fatalf("ticket left unassigned after race")
	}
}

func TestUpdateTicketGenericFields(t *testing.T) {
	f := newTicketFixture()
	ticket := f.seedTicket(t, testCustomer)

	title := "Screen cracked badly"
	priority := domain.TicketPriorityHigh
	updated, err := f.service.UpdateTicket(context.Background(), testCustomer, ticket.ID, TicketPatch{
		Title:    &title,
		Priority: &priority,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Title != title || updated.Priority != priority {
		t.Fatalf("patch not applied: %+v", updated)
	}
	if updated.Status != domain.TicketStatusNew {
		t.Fatalf("generic update must not change status, got %s", updated.Status)
	}

	published := f.dispatcher.events()
	if len(published) != 1 || published[0].Type != events.EventTicketUpdated {
		t.Fatalf("published = %+v, want single updated event", published)
	}
	payload := published[0].Payload.(events.UpdatedPayload)
	if len(payload.Fields) != 2 {
		t.Fatalf("fields = %v, want title and priority", payload.Fields)
	}
}

func TestUpdateTicketStatusOnlyClosedAllowed(t *testing.T) {
	f := newTicketFixture()
	ticket := f.seedTicket(t, testCustomer)

	open := domain.TicketStatusOpen
	if _, err := f.service.UpdateTicket(context.Background(), testCustomer, ticket.ID, TicketPatch{Status: &open}); !apperrors.IsCode(err, "INVALID_TRANSITION") {
		t.Fatalf("set open via update: err = %v, want INVALID_TRANSITION", err)
	}

	closed := domain.TicketStatusClosed
	updated, err := f.service.UpdateTicket(context.Background(), testCustomer, ticket.ID, TicketPatch{Status: &closed})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if updated.Status != domain.TicketStatusClosed || updated.ClosedAt == nil {
		t.Fatalf("close not applied: %+v", updated)
	}

	published := f.dispatcher.events()
	if len(published) != 1 || published[0].Type != events.EventTicketClosed {
		t.Fatalf("published = %+v, want single closed event", published)
	}

	if _, err := f.service.UpdateTicket(context.Background(), testCustomer, ticket.ID, TicketPatch{Status: &closed}); !apperrors.IsCode(err, "INVALID_TRANSITION") {
		t.Fatalf("second close: err = %v, want INVALID_TRANSITION", err)
	}
}

func TestUpdateTicketReassign(t *testing.T) {
	f := newTicketFixture()
	ticket := f.seedTicket(t, testCustomer)

	assignee := testAgent.ID
	updated, err := f.service.UpdateTicket(context.Background(), testAdmin, ticket.ID, TicketPatch{AssignedTo: &assignee})
	if err != nil {
		t.Fatalf("reassign: %v", err)
	}
	if updated.Status != domain.TicketStatusOpen {
		t.Fatalf("assignment must open a new ticket, got %s", updated.Status)
	}

	var sawAssigned bool
	for _, event := range f.dispatcher.events() {
		if event.Type == events.EventTicketAssigned {
			sawAssigned = true
			payload := event.Payload.(events.AssignedPayload)
			if payload.AssigneeID != testAgent.ID {
				t.Fatalf("assignee = %s, want %s", payload.AssigneeID, testAgent.ID)
			}
		}
	}
	if !sawAssigned {
		t.Fatalf("no assigned event published")
	}

	// assigning to a customer is rejected
	bad := testOther.ID
	if _, err := f.service.UpdateTicket(context.Background(), testAdmin, ticket.ID, TicketPatch{AssignedTo: &bad}); err == nil {
		t.Fatalf("assigning a customer must fail")
	}
}

func TestAddNote(t *testing.T) {
	f := newTicketFixture()
	ticket := f.seedTicket(t, testCustomer)

	note, err := f.service.AddNote(context.Background(), testAgent, ticket.ID, "Have you tried turning it off and on?")
	if err != nil {
		t.Fatalf("add note: %v", err)
	}
	if note.AuthorID != testAgent.ID || note.AuthorRole != domain.RoleAgent {
		t.Fatalf("note author = %+v", note)
	}

	stored, err := f.service.GetTicket(context.Background(), testCustomer, ticket.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.TicketStatusNew {
		t.Fatalf("note must not change status, got %s", stored.Status)
	}

	published := f.dispatcher.events()
	if len(published) != 1 || published[0].Type != events.EventTicketNoteAdded {
		t.Fatalf("published = %+v, want single note event", published)
	}

	if _, err := f.service.AddNote(context.Background(), testAgent, ticket.ID, "   "); !apperrors.IsCode(err, "VALIDATION_FAILED") {
		t.Fatalf("empty note: err = %v, want VALIDATION_FAILED", err)
	}
}

func TestAddNoteClosedTicket(t *testing.T) {
	f := newTicketFixture()
	ticket := f.seedTicket(t, testCustomer)
	if _, err := f.tickets.Close(context.Background(), ticket.ID); err != nil {
		t.Fatalf("close: %v", err)
	}

	if _, err := f.service.AddNote(context.Background(), testAgent, ticket.ID, "too late"); !apperrors.IsCode(err, "INVALID_TRANSITION") {
		t.Fatalf("note on closed: err = %v, want INVALID_TRANSITION", err)
	}
}

func TestDeleteTicketOwnerOnly(t *testing.T) {
	f := newTicketFixture()
	ticket := f.seedTicket(t, testCustomer)

	if err := f.service.DeleteTicket(context.Background(), testAdmin, ticket.ID); !apperrors.IsCode(err, "FORBIDDEN") {
		t.Fatalf("staff delete: err = %v, want FORBIDDEN", err)
	}
	if err := f.service.DeleteTicket(context.Background(), testCustomer, ticket.ID); err != nil {
		t.Fatalf("owner delete: %v", err)
	}
	if _, err := f.service.GetTicket(context.Background(), testCustomer, ticket.ID); !apperrors.IsCode(err, "NOT_FOUND") {
		t.Fatalf("after delete: err = %v, want NOT_FOUND", err)
	}
	if len(f.dispatcher.events()) != 0 {
		t.Fatalf("delete must not publish events")
	}
}

func TestListAllTicketsStaffOnly(t *testing.T) {
	f := newTicketFixture()
	f.seedTicket(t, testCustomer)
	f.seedTicket(t, testOther)

	all, err := f.service.ListAllTickets(context.Background(), testAgent, 0, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("len = %d, want 2", len(all))
	}

	if _, err := f.service.ListAllTickets(context.Background(), testCustomer, 0, 0); !apperrors.IsCode(err, "FORBIDDEN") {
		t.Fatalf("customer list all: err = %v, want FORBIDDEN", err)
	}
}
