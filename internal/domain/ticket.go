package domain

import "time"

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusNew    TicketStatus = "new"
	TicketStatusOpen   TicketStatus = "open"
	TicketStatusClosed TicketStatus = "closed"
)

// TicketPriority enumerates urgency levels.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "low"
	TicketPriorityMedium TicketPriority = "medium"
	TicketPriorityHigh   TicketPriority = "high"
)

// Product identifies the catalog item a ticket is about.
type Product string

const (
	ProductIPhone     Product = "iPhone"
	ProductMacbookPro Product = "Macbook Pro"
	ProductIMac       Product = "iMac"
	ProductIPad       Product = "iPad"
)

// KnownProduct reports whether the product belongs to the fixed catalog.
func KnownProduct(p Product) bool {
	switch p {
	case ProductIPhone, ProductMacbookPro, ProductIMac, ProductIPad:
		return true
	}
	return false
}

// KnownPriority reports whether the priority is a recognized level.
func KnownPriority(p TicketPriority) bool {
	switch p {
	case TicketPriorityLow, TicketPriorityMedium, TicketPriorityHigh:
		return true
	}
	return false
}

// Attachment references an uploaded file held in external storage.
// The service stores and echoes the reference, never the bytes.
type Attachment struct {
	ID         string
	TicketID   string
	StorageKey string
	FileName   string
	UploadedAt time.Time
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID          string
	OwnerID     string
	AssignedTo  *string
	Product     Product
	Title       string
	Description string
	Status      TicketStatus
	Priority    TicketPriority
	Tags        []string
	Attachments []Attachment
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ClosedAt    *time.Time
}

// ShortID returns the display form of a ticket id: the last six
// characters, uppercased.
func (t *Ticket) ShortID() string {
	id := t.ID
	if len(id) > 6 {
		id = id[len(id)-6:]
	}
	upper := []byte(id)
	for i, c := range upper {
		if c >= 'a' && c <= 'z' {
			upper[i] = c - ('a' - 'A')
		}
	}
	return string(upper)
}
