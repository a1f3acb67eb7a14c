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

// EventRepository is the local catalog adapter. registered_count is only written by RegistrationRepository.
type EventRepository interface {
	Create(ctx context.Context, event *model.Event) (*model.Event, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error)
	List(ctx context.Context, page model.PageParams) ([]*model.Event, int, error)
}

type EventRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) EventRepository {
	return &EventRepositoryImpl{
		pool: pool,
	}
}

const eventColumns = `id, name, capacity, registered_count, is_paid, price_minor, currency,
	accepted_payment_methods, payment_deadline, starts_at, ends_at, created_at, updated_at`

func scanEvent(row pgx.Row) (*model.Event, error) {
	var (
		e        model.Event
		capacity *int32
		isPaid   bool
		price    int64
		currency string
		methods  []string
		deadline *time.Time
	)
	err := row.Scan(
		&e.ID,
		&e.Name,
		&capacity,
		&e.RegisteredCount,
		&isPaid,
		&price,
		&currency,
		&methods,
		&deadline,
		&e.StartsAt,
		&e.EndsAt,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if capacity != nil {
		c := int(*capacity)
		e.Capacity = &c
	}
	e.Pricing = model.FreePricing{}
	if isPaid {
		accepted := make([]model.PaymentMethod, 0, len(methods))
		for _, m := range methods {
			accepted = append(accepted, model.PaymentMethod(m))
		}
		e.Pricing = model.PaidPricing{
			Price:                  price,
			Currency:               currency,
			AcceptedPaymentMethods: accepted,
			PaymentDeadline:        deadline,
		}
	}
	return &e, nil
}

func (r *EventRepositoryImpl) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	var (
		isPaid   bool
		price    int64
		currency string
		methods  = []string{}
		deadline *time.Time
	)
	if paid, ok := event.Paid(); ok {
		isPaid = true
		price = paid.Price
		currency = paid.Currency
		deadline = paid.PaymentDeadline
		for _, m := range paid.AcceptedPaymentMethods {
			methods = append(methods, string(m))
		}
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	query := `
		INSERT INTO events (
			id, name, capacity, is_paid, price_minor, currency,
			accepted_payment_methods, payment_deadline, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING ` + eventColumns

	created, err := scanEvent(r.pool.QueryRow(ctx, query,
		event.ID, event.Name, event.Capacity, isPaid, price, currency,
		methods, deadline, event.StartsAt, event.EndsAt,
	))
	if err != nil {
		if isCheckViolation(err, "") {
			return nil, apperrors.ErrInvalidInput
		}
		return nil, err
	}
	return created, nil
}

func (r *EventRepositoryImpl) GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	event, err := scanEvent(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrEventNotFound
		}
		return nil, err
	}
	return event, nil
}

func (r *EventRepositoryImpl) List(ctx context.Context, page model.PageParams) ([]*model.Event, int, error) {
	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM events`).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT ` + eventColumns + ` FROM events
		ORDER BY starts_at ASC NULLS LAST, created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, page.Limit(), page.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	events := make([]*model.Event, 0)
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, 0, err
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	return events, total, nil
}
