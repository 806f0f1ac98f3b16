package dto

import (
	"time"

	"github.com/supportdesk/server/internal/domain"
)

// AttachmentPayload references an already-uploaded file.
type AttachmentPayload struct {
	StorageKey string `json:"storage_key"`
	FileName   string `json:"file_name"`
}

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Product     domain.Product        `json:"product"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Priority    domain.TicketPriority `json:"priority"`
	Tags        []string              `json:"tags"`
	Attachments []AttachmentPayload   `json:"attachments"`
}

// UpdateTicketRequest payload; omitted fields are untouched.
type UpdateTicketRequest struct {
	Title       *string                `json:"title"`
	Description *string                `json:"description"`
	Product     *domain.Product        `json:"product"`
	Priority    *domain.TicketPriority `json:"priority"`
	Tags        *[]string              `json:"tags"`
	Status      *domain.TicketStatus   `json:"status"`
	AssignedTo  *string                `json:"assigned_to"`
}

// CreateNoteRequest payload.
type CreateNoteRequest struct {
	Content string `json:"content"`
}

// AttachmentResponse metadata.
type AttachmentResponse struct {
	ID         string    `json:"id"`
	StorageKey string    `json:"storage_key"`
	FileName   string    `json:"file_name"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// TicketResponse is the full ticket representation.
type TicketResponse struct {
	ID          string                `json:"id"`
	ShortID     string                `json:"short_id"`
	OwnerID     string                `json:"owner_id"`
	AssignedTo  *string               `json:"assigned_to"`
	Product     domain.Product        `json:"product"`
	Title       string                `json:"title"`
	Description string                `json:"description"`
	Status      domain.TicketStatus   `json:"status"`
	Priority    domain.TicketPriority `json:"priority"`
	Tags        []string              `json:"tags"`
	Attachments []AttachmentResponse  `json:"attachments"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	ClosedAt    *time.Time            `json:"closed_at"`
}

// NoteResponse represents one thread entry.
type NoteResponse struct {
	ID         string      `json:"id"`
	TicketID   string      `json:"ticket_id"`
	AuthorID   string      `json:"author_id"`
	AuthorName string      `json:"author_name"`
	AuthorRole domain.Role `json:"author_role"`
	Content    string      `json:"content"`
	CreatedAt  time.Time   `json:"created_at"`
}
