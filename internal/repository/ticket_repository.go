package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-service/internal/domain"
)

// TicketRepository encapsulates ticket persistence. Lookups of missing rows return pgx.ErrNoRows.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	Update(ctx context.Context, ticket *domain.Ticket) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context) ([]domain.Ticket, error)
	ListByOwner(ctx context.Context, ownerID string) ([]domain.Ticket, error)
}

type ticketRepository struct {
	pool DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(pool DBTX) TicketRepository {
	return &ticketRepository{pool: pool}
}

const ticketColumns = `id, user_id, status, name, email, phone, location, available_time,
               subject, description, created_at, updated_at`

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO support_tickets (id, user_id, status, name, email, phone, location, available_time, subject, description)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
        RETURNING created_at, updated_at`
	return r.pool.QueryRow(ctx, query,
		ticket.ID,
		ticket.OwnerID,
		int16(ticket.Status),
		ticket.Name,
		ticket.Email,
		ticket.Phone,
		ticket.Location,
		ticket.AvailableTime,
		ticket.Subject,
		ticket.Description,
	).Scan(&ticket.CreatedAt, &ticket.UpdatedAt)
}

// Update writes descriptive fields and status; id, owner and creation time are never touched.
func (r *ticketRepository) Update(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        UPDATE support_tickets SET status=$1, name=$2, email=$3, phone=$4, location=$5,
            available_time=$6, subject=$7, description=$8, updated_at=NOW()
        WHERE id=$9
        RETURNING updated_at`
	return r.pool.QueryRow(ctx, query,
		int16(ticket.Status),
		ticket.Name,
		ticket.Email,
		ticket.Phone,
		ticket.Location,
		ticket.AvailableTime,
		ticket.Subject,
		ticket.Description,
		ticket.ID,
	).Scan(&ticket.UpdatedAt)
}

func (r *ticketRepository) Delete(ctx context.Context, id string) error {
	cmd, err := r.pool.Exec(ctx, `DELETE FROM support_tickets WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM support_tickets WHERE id=$1`
	ticket, err := scanTicket(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM support_tickets ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) ListByOwner(ctx context.Context, ownerID string) ([]domain.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM support_tickets WHERE user_id=$1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket domain.Ticket
		status int16
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.OwnerID,
		&status,
		&ticket.Name,
		&ticket.Email,
		&ticket.Phone,
		&ticket.Location,
		&ticket.AvailableTime,
		&ticket.Subject,
		&ticket.Description,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
	); err != nil {
		return nil, err
	}
	ticket.Status = domain.TicketStatus(status)
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *ticket)
	}
	return result, rows.Err()
}
