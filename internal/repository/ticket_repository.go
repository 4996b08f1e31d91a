package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dx-community/modmail/internal/domain"
)

// ErrNotOpen is returned by compare-and-swap mutations that matched no open
// row, e.g. closing an already-closed ticket or claiming a claimed one.
var ErrNotOpen = errors.New("ticket is not open")

// TicketRepository encapsulates ticket persistence. Tickets are keyed by
// channel id and soft-deleted by flipping status to closed.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByChannel(ctx context.Context, channelID string) (*domain.Ticket, error)
	GetOpenByUser(ctx context.Context, userID string) (*domain.Ticket, error)
	ListOpen(ctx context.Context) ([]domain.Ticket, error)
	// Claim sets mod_id if the ticket is open and unclaimed; ErrNotOpen
	// signals a lost race or a closed ticket.
	Claim(ctx context.Context, channelID, modID, modUsername string) error
	// Transfer replaces mod_id on an open ticket.
	Transfer(ctx context.Context, channelID, modID, modUsername string) error
	// Close flips status to closed if and only if the row is still open.
	Close(ctx context.Context, channelID string, closedAt time.Time) error
	// CloseByUser closes any open ticket owned by userID.
	CloseByUser(ctx context.Context, userID string, closedAt time.Time) error
}

type ticketRepository struct {
	pool *pgxpool.Pool
}

// NewTicketRepository instantiates the repository.
func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &ticketRepository{pool: pool}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO active_tickets (channel_id, user_id, member_username, channel_name, category_id, ticket_type, mod_id, mod_username, status, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,NOW())
        RETURNING created_at`
	if ticket.Status == "" {
		ticket.Status = domain.TicketStatusOpen
	}
	return r.pool.QueryRow(ctx, query,
		ticket.ChannelID,
		ticket.UserID,
		ticket.Username,
		ticket.ChannelName,
		ticket.CategoryID,
		ticket.TicketType,
		ticket.ModID,
		ticket.ModUsername,
		ticket.Status,
	).Scan(&ticket.CreatedAt)
}

func (r *ticketRepository) GetByChannel(ctx context.Context, channelID string) (*domain.Ticket, error) {
	const query = selectTicket + ` WHERE channel_id=$1`
	return r.fetchSingle(ctx, query, channelID)
}

func (r *ticketRepository) GetOpenByUser(ctx context.Context, userID string) (*domain.Ticket, error) {
	const query = selectTicket + ` WHERE user_id=$1 AND status='open'`
	return r.fetchSingle(ctx, query, userID)
}

func (r *ticketRepository) ListOpen(ctx context.Context) ([]domain.Ticket, error) {
	const query = selectTicket + ` WHERE status='open' ORDER BY created_at`
	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

func (r *ticketRepository) Claim(ctx context.Context, channelID, modID, modUsername string) error {
	const query = `
        UPDATE active_tickets SET mod_id=$1, mod_username=$2
        WHERE channel_id=$3 AND status='open' AND mod_id IS NULL`
	cmd, err := r.pool.Exec(ctx, query, modID, modUsername, channelID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotOpen
	}
	return nil
}

func (r *ticketRepository) Transfer(ctx context.Context, channelID, modID, modUsername string) error {
	const query = `
        UPDATE active_tickets SET mod_id=$1, mod_username=$2
        WHERE channel_id=$3 AND status='open'`
	cmd, err := r.pool.Exec(ctx, query, modID, modUsername, channelID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotOpen
	}
	return nil
}

func (r *ticketRepository) Close(ctx context.Context, channelID string, closedAt time.Time) error {
	const query = `
        UPDATE active_tickets SET status='closed', closed_at=$1
        WHERE channel_id=$2 AND status='open'`
	cmd, err := r.pool.Exec(ctx, query, closedAt.UTC(), channelID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotOpen
	}
	return nil
}

func (r *ticketRepository) CloseByUser(ctx context.Context, userID string, closedAt time.Time) error {
	const query = `
        UPDATE active_tickets SET status='closed', closed_at=$1
        WHERE user_id=$2 AND status='open'`
	cmd, err := r.pool.Exec(ctx, query, closedAt.UTC(), userID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrNotOpen
	}
	return nil
}

const selectTicket = `
    SELECT channel_id, user_id, member_username, channel_name, category_id,
           ticket_type, mod_id, mod_username, status, created_at, closed_at
    FROM active_tickets`

func (r *ticketRepository) fetchSingle(ctx context.Context, query string, arg any) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := r.pool.QueryRow(ctx, query, arg).Scan(
		&ticket.ChannelID,
		&ticket.UserID,
		&ticket.Username,
		&ticket.ChannelName,
		&ticket.CategoryID,
		&ticket.TicketType,
		&ticket.ModID,
		&ticket.ModUsername,
		&ticket.Status,
		&ticket.CreatedAt,
		&ticket.ClosedAt,
	); err != nil {
		return nil, err
	}
	return &ticket, nil
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var result []domain.Ticket
	for rows.Next() {
		var ticket domain.Ticket
		if err := rows.Scan(
			&ticket.ChannelID,
			&ticket.UserID,
			&ticket.Username,
			&ticket.ChannelName,
			&ticket.CategoryID,
			&ticket.TicketType,
			&ticket.ModID,
			&ticket.ModUsername,
			&ticket.Status,
			&ticket.CreatedAt,
			&ticket.ClosedAt,
		); err != nil {
			return nil, err
		}
		result = append(result, ticket)
	}
	return result, rows.Err()
}
