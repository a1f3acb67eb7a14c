package repository

import (
	"context"
	"errors"
	"time"

	"campus-ticketing/internal/model"
	apperrors "campus-ticketing/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TicketRepository interface {
	// Create is idempotent per registration: it returns the existing ticket and false on a repeat.
	Create(ctx context.Context, ticket *model.Ticket) (*model.Ticket, bool, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Ticket, error)
	FindByNumber(ctx context.Context, number string) (*model.Ticket, error)
	FindByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*model.Ticket, error)
	List(ctx context.Context, filter model.TicketFilter) ([]*model.Ticket, int, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.TicketStatus, at time.Time) (*model.Ticket, error)
	// ExpireEnded moves valid tickets of events that ended before now to expired.
	ExpireEnded(ctx context.Context, now time.Time) (int64, error)
}

type TicketRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewTicketRepository(pool *pgxpool.Pool) TicketRepository {
	return &TicketRepositoryImpl{
		pool: pool,
	}
}

const ticketColumns = `id, user_id, event_id, registration_id, payment_id, ticket_number, type,
	price_minor, quantity, status, checked_in_at, purchased_at, cancelled_at, expired_at, updated_at`

func scanTicket(row pgx.Row) (*model.Ticket, error) {
	var (
		t          model.Ticket
		ticketType string
		status     string
	)
	err := row.Scan(
		&t.ID,
		&t.UserID,
		&t.EventID,
		&t.RegistrationID,
		&t.PaymentID,
		&t.TicketNumber,
		&ticketType,
		&t.Price,
		&t.Quantity,
		&status,
		&t.CheckedInAt,
		&t.PurchasedAt,
		&t.CancelledAt,
		&t.ExpiredAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.Type = model.TicketType(ticketType)
	t.Status = model.TicketStatus(status)
	return &t, nil
}

func (r *TicketRepositoryImpl) Create(ctx context.Context, ticket *model.Ticket) (*model.Ticket, bool, error) {
	query := `
		INSERT INTO tickets (
			id, user_id, event_id, registration_id, payment_id, ticket_number,
			type, price_minor, quantity, status, purchased_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		ON CONFLICT (registration_id) WHERE registration_id IS NOT NULL DO NOTHING
		RETURNING ` + ticketColumns

	created, err := scanTicket(r.pool.QueryRow(ctx, query,
		ticket.ID, ticket.UserID, ticket.EventID, ticket.RegistrationID, ticket.PaymentID,
		ticket.TicketNumber, string(ticket.Type), ticket.Price, ticket.Quantity,
		string(ticket.Status), ticket.PurchasedAt,
	))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows) && ticket.RegistrationID != nil:
			existing, findErr := r.FindByRegistrationID(ctx, *ticket.RegistrationID)
			if findErr != nil {
				return nil, false, findErr
			}
			return existing, false, nil
		case isUniqueViolation(err, "tickets_ticket_number_key"), isUniqueViolation(err, "tickets_pkey"):
			return nil, false, ErrDuplicateNumber
		case isForeignKeyViolation(err, "tickets_event_id_fkey"):
			return nil, false, apperrors.ErrEventNotFound
		case isForeignKeyViolation(err, "tickets_registration_id_fkey"):
			return nil, false, apperrors.ErrRegistrationNotFound
		case isForeignKeyViolation(err, "tickets_payment_id_fkey"):
			return nil, false, apperrors.ErrPaymentNotFound
		}
		return nil, false, err
	}
	return created, true, nil
}

func (r *TicketRepositoryImpl) findOne(ctx context.Context, where string, arg interface{}) (*model.Ticket, error) {
	t, err := scanTicket(r.pool.QueryRow(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE `+where, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrTicketNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *TicketRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	return r.findOne(ctx, "id = $1", id)
}

func (r *TicketRepositoryImpl) FindByNumber(ctx context.Context, number string) (*model.Ticket, error) {
	return r.findOne(ctx, "ticket_number = $1", number)
}

func (r *TicketRepositoryImpl) FindByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*model.Ticket, error) {
	return r.findOne(ctx, "registration_id = $1", registrationID)
}

func (r *TicketRepositoryImpl) List(ctx context.Context, filter model.TicketFilter) ([]*model.Ticket, int, error) {
	var where whereBuilder
	if filter.UserID != "" {
		where.add("user_id = $%d", filter.UserID)
	}
	if filter.EventID != nil {
		where.add("event_id = $%d", *filter.EventID)
	}
	if filter.Status != "" {
		where.add("status = $%d", string(filter.Status))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tickets`+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	suffix, args := where.page(filter.Limit(), filter.Offset())
	rows, err := r.pool.Query(ctx, `SELECT `+ticketColumns+` FROM tickets`+where.sql()+
		` ORDER BY purchased_at DESC, id`+suffix, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	tickets := make([]*model.Ticket, 0)
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return tickets, total, nil
}

func (r *TicketRepositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.TicketStatus, at time.Time) (*model.Ticket, error) {
	query := `
		UPDATE tickets
		SET status = $3::text,
			checked_in_at = CASE WHEN $3::text = 'used' THEN $4::timestamptz ELSE checked_in_at END,
			cancelled_at = CASE WHEN $3::text = 'cancelled' THEN $4::timestamptz ELSE cancelled_at END,
			expired_at = CASE WHEN $3::text = 'expired' THEN $4::timestamptz ELSE expired_at END,
			updated_at = $4::timestamptz
		WHERE id = $1 AND status = $2::text
		RETURNING ` + ticketColumns

	t, err := scanTicket(r.pool.QueryRow(ctx, query, id, string(from), string(to), at))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		current, findErr := r.FindByID(ctx, id)
		if findErr != nil {
			return nil, findErr
		}
		return current, ErrStaleStatus
	}
	return t, nil
}

func (r *TicketRepositoryImpl) ExpireEnded(ctx context.Context, now time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tickets t
		SET status = 'expired', expired_at = $1, updated_at = $1
		FROM events e
		WHERE t.event_id = e.id
			AND t.status = 'valid'
			AND e.ends_at IS NOT NULL
			AND e.ends_at < $1
	`, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
