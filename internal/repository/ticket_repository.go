package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/supportdesk/server/internal/domain"
)

const ticketColumns = `id, owner_user_id, assignee_user_id, product, title, description,
               status, priority, tags, created_at, updated_at, closed_at`

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Ticket, error)
	ListAll(ctx context.Context, limit, offset int) ([]domain.Ticket, error)
	Delete(ctx context.Context, id string) error

	// Claim atomically assigns an unassigned, non-closed ticket and
	// opens it. Returns pgx.ErrNoRows when the precondition no longer
	// holds, so the losing side of a claim race surfaces cleanly.
	Claim(ctx context.Context, ticketID, agentID string) (*domain.Ticket, error)

	// Close atomically closes a non-closed ticket, with the same
	// conditional-update semantics as Claim.
	Close(ctx context.Context, ticketID string) (*domain.Ticket, error)
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (owner_user_id, assignee_user_id, product, title, description, status, priority, tags)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        RETURNING id, created_at, updated_at`
	if err := r.pool.QueryRow(ctx, query,
		ticket.OwnerID,
		ticket.AssignedTo,
		ticket.Product,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Tags,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt); err != nil {
		return err
	}

	for i := range ticket.Attachments {
		att := &ticket.Attachments[i]
		att.TicketID = ticket.ID
		const attQuery = `
            INSERT INTO ticket_attachments (ticket_id, storage_key, file_name, uploaded_at)
            VALUES ($1,$2,$3,$4)
            RETURNING id`
		if err := r.pool.QueryRow(ctx, attQuery,
			att.TicketID,
			att.StorageKey,
			att.FileName,
			att.UploadedAt,
		).Scan(&att.ID); err != nil {
			return err
		}
	}
	return nil
}

func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE tickets SET assignee_user_id=$1, product=$2, title=$3, description=$4,
            status=$5, priority=$6, tags=$7, closed_at=$8, updated_at=NOW()
        WHERE id=$9`
	cmd, err := r.pool.Exec(ctx, query,
		ticket.AssignedTo,
		ticket.Product,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.Tags,
		ticket.ClosedAt,
		ticket.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE id=$1`
	ticket, err := r.fetchSingle(ctx, query, id)
	if err != nil {
		return nil, err
	}
	attachments, err := r.listAttachments(ctx, ticket.ID)
	if err != nil {
		return nil, err
	}
	ticket.Attachments = attachments
	return ticket, nil
}

func (r *ticketRepository) ListByOwner(ctx context.Context, ownerID string, limit, offset int) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE owner_user_id=$1
        ORDER BY created_at DESC LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, ownerID, normalizeLimit(limit), normalizeOffset(offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListAll(ctx context.Context, limit, offset int) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
        ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, normalizeLimit(limit), normalizeOffset(offset))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	// notes and attachments cascade via FK
	cmd, err := r.pool.Exec(ctx, `DELETE FROM tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) Claim(ctx context.Context, ticketID, agentID string) (*domain.Ticket, error) {
	query := `
        UPDATE tickets SET assignee_user_id=$2, status='open', updated_at=NOW()
        WHERE id=$1 AND assignee_user_id IS NULL AND status <> 'closed'
        RETURNING ` + ticketColumns
	return r.fetchSingle(ctx, query, ticketID, agentID)
}

func (r *ticketRepository) Close(ctx context.Context, ticketID string) (*domain.Ticket, error) {
	query := `
        UPDATE tickets SET status='closed', closed_at=NOW(), updated_at=NOW()
        WHERE id=$1 AND status <> 'closed'
        RETURNING ` + ticketColumns
	return r.fetchSingle(ctx, query, ticketID)
}

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, args ...any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&ticket.ID,
		&ticket.OwnerID,
		&ticket.AssignedTo,
		&ticket.Product,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.Tags,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *ticketRepository) listAttachments(ctx context.Context, ticketID string) ([]domain.Attachment, error) {
	const query = `
        SELECT id, ticket_id, storage_key, file_name, uploaded_at
        FROM ticket_attachments WHERE ticket_id=$1 ORDER BY uploaded_at ASC`
	rows, err := r.pool.Query(ctx, query, ticketID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Attachment
	for rows.Next() {
		var att domain.Attachment
		if err := rows.Scan(
			&att.ID,
			&att.TicketID,
			&att.StorageKey,
			&att.FileName,
			&att.UploadedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, att)
	}
	return result, rows.Err()
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ID,
			&ticket.OwnerID,
			&ticket.AssignedTo,
			&ticket.Product,
			&ticket.Title,
			&ticket.Description,
			&ticket.Status,
			&ticket.Priority,
			&ticket.Tags,
			&ticket.CreatedAt,
			&ticket.UpdatedAt,
			&ticket.ClosedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	return limit
}

func normalizeOffset(offset int) int {
	if offset < 0 {
		return 0
	}
	return offset
}
