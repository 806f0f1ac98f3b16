package domain

import "time"

// Note is a threaded reply on a ticket. Notes are append-only;
// they are never edited or deleted while the ticket exists.
type Note struct {
	ID         string
	TicketID   string
	AuthorID   string
	AuthorName string
	AuthorRole Role
	Content    string
	CreatedAt  time.Time
}
