package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campus-ticketing/internal/model"
	apperrors "campus-ticketing/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type RegistrationRepository interface {
	// CreateActive inserts the registration and takes a seat in one transaction.
	CreateActive(ctx context.Context, registration *model.Registration) (*model.Registration, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Registration, error)
	List(ctx context.Context, filter model.RegistrationFilter) ([]*model.Registration, int, error)
	// ListUnconfirmed pages registered rows still waiting for their ticket, oldest first.
	// A nil cursor starts from the beginning.
	ListUnconfirmed(ctx context.Context, after *model.UnconfirmedCursor, limit int) ([]*model.Registration, error)
	// Cancel moves registered -> cancelled and releases the seat in one transaction.
	Cancel(ctx context.Context, id uuid.UUID, at time.Time) (*model.Registration, error)
	// UpdateStatus is a compare-and-swap between two counted statuses.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.RegistrationStatus, at time.Time) (*model.Registration, error)
	MarkConfirmed(ctx context.Context, id uuid.UUID, at time.Time) (*model.Registration, error)
	SetFeedback(ctx context.Context, id uuid.UUID, feedback model.Feedback, at time.Time) (*model.Registration, error)
}

type RegistrationRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewRegistrationRepository(pool *pgxpool.Pool) RegistrationRepository {
	return &RegistrationRepositoryImpl{
		pool: pool,
	}
}

const registrationColumns = `id, event_id, user_id, status, registered_at, check_in_time,
	confirmed_at, cancelled_at, feedback_rating, feedback_comment, updated_at`

func scanRegistration(row pgx.Row) (*model.Registration, error) {
	var (
		reg     model.Registration
		status  string
		rating  *int16
		comment *string
	)
	err := row.Scan(
		&reg.ID,
		&reg.EventID,
		&reg.UserID,
		&status,
		&reg.RegisteredAt,
		&reg.CheckInTime,
		&reg.ConfirmedAt,
		&reg.CancelledAt,
		&rating,
		&comment,
		&reg.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	reg.Status = model.RegistrationStatus(status)
	if rating != nil {
		reg.Feedback = &model.Feedback{Rating: int(*rating)}
		if comment != nil {
			reg.Feedback.Comment = *comment
		}
	}
	return &reg, nil
}

func (r *RegistrationRepositoryImpl) CreateActive(ctx context.Context, registration *model.Registration) (*model.Registration, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	// The partial unique index is the arbiter: a concurrent insert for the same pair waits here and then does nothing.
	insert := `
		INSERT INTO registrations (id, event_id, user_id, status, registered_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (event_id, user_id) WHERE status <> 'cancelled' DO NOTHING
		RETURNING ` + registrationColumns

	created, err := scanRegistration(tx.QueryRow(ctx, insert,
		registration.ID, registration.EventID, registration.UserID,
		string(model.RegistrationStatusRegistered), registration.RegisteredAt,
	))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, fmt.Errorf("%w: user %s already holds an active registration for event %s",
				apperrors.ErrAlreadyRegistered, registration.UserID, registration.EventID)
		case isForeignKeyViolation(err, "registrations_event_id_fkey"):
			return nil, apperrors.ErrEventNotFound
		}
		return nil, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE events
		SET registered_count = registered_count + 1, updated_at = NOW()
		WHERE id = $1 AND (capacity IS NULL OR registered_count < capacity)
	`, registration.EventID)
	if err != nil {
		if isCheckViolation(err, "events_registered_within_capacity") {
			return nil, apperrors.ErrCapacityExceeded
		}
		return nil, err
	}
	if tag.RowsAffected() == 0 {
		return nil, fmt.Errorf("%w: event %s has no seats left", apperrors.ErrCapacityExceeded, registration.EventID)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return created, nil
}

func (r *RegistrationRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.Registration, error) {
	return findRegistration(ctx, r.pool, id)
}

type rowQuerier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func findRegistration(ctx context.Context, q rowQuerier, id uuid.UUID) (*model.Registration, error) {
	reg, err := scanRegistration(q.QueryRow(ctx, `SELECT `+registrationColumns+` FROM registrations WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrRegistrationNotFound
		}
		return nil, err
	}
	return reg, nil
}

func (r *RegistrationRepositoryImpl) List(ctx context.Context, filter model.RegistrationFilter) ([]*model.Registration, int, error) {
	var where whereBuilder
	if filter.EventID != nil {
		where.add("event_id = $%d", *filter.EventID)
	}
	if filter.UserID != "" {
		where.add("user_id = $%d", filter.UserID)
	}
	if filter.Status != "" {
		where.add("status = $%d", string(filter.Status))
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM registrations`+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	suffix, args := where.page(filter.Limit(), filter.Offset())
	query := `SELECT ` + registrationColumns + ` FROM registrations` + where.sql() +
		` ORDER BY registered_at DESC, id` + suffix

	registrations, err := r.queryRegistrations(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return registrations, total, nil
}

func (r *RegistrationRepositoryImpl) ListUnconfirmed(ctx context.Context, after *model.UnconfirmedCursor, limit int) ([]*model.Registration, error) {
	if after == nil {
		return r.queryRegistrations(ctx, `SELECT `+registrationColumns+` FROM registrations
			WHERE status = 'registered' AND confirmed_at IS NULL
			ORDER BY registered_at ASC, id ASC
			LIMIT $1`, limit)
	}
	return r.queryRegistrations(ctx, `SELECT `+registrationColumns+` FROM registrations
		WHERE status = 'registered' AND confirmed_at IS NULL
			AND (registered_at, id) > ($1, $2)
		ORDER BY registered_at ASC, id ASC
		LIMIT $3`, after.RegisteredAt, after.ID, limit)
}

func (r *RegistrationRepositoryImpl) queryRegistrations(ctx context.Context, query string, args ...interface{}) ([]*model.Registration, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	registrations := make([]*model.Registration, 0)
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, err
		}
		registrations = append(registrations, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return registrations, nil
}

func (r *RegistrationRepositoryImpl) Cancel(ctx context.Context, id uuid.UUID, at time.Time) (*model.Registration, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	cancelled, err := scanRegistration(tx.QueryRow(ctx, `
		UPDATE registrations
		SET status = 'cancelled', cancelled_at = $2, updated_at = $2
		WHERE id = $1 AND status = 'registered'
		RETURNING `+registrationColumns, id, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.stale(ctx, tx, id)
		}
		return nil, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE events
		SET registered_count = registered_count - 1, updated_at = NOW()
		WHERE id = $1 AND registered_count > 0
	`, cancelled.EventID); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return cancelled, nil
}

func (r *RegistrationRepositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.RegistrationStatus, at time.Time) (*model.Registration, error) {
	if !from.IsActive() || !to.IsActive() {
		return nil, fmt.Errorf("%w: cancellation goes through Cancel", apperrors.ErrInvalidTransition)
	}

	reg, err := scanRegistration(r.pool.QueryRow(ctx, `
		UPDATE registrations
		SET status = $3::text,
			check_in_time = CASE WHEN $3::text = 'attended' THEN $4::timestamptz ELSE check_in_time END,
			updated_at = $4::timestamptz
		WHERE id = $1 AND status = $2::text
		RETURNING `+registrationColumns, id, string(from), string(to), at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.stale(ctx, r.pool, id)
		}
		return nil, err
	}
	return reg, nil
}

func (r *RegistrationRepositoryImpl) MarkConfirmed(ctx context.Context, id uuid.UUID, at time.Time) (*model.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx, `
		UPDATE registrations
		SET confirmed_at = COALESCE(confirmed_at, $2), updated_at = $2
		WHERE id = $1
		RETURNING `+registrationColumns, id, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrRegistrationNotFound
		}
		return nil, err
	}
	return reg, nil
}

func (r *RegistrationRepositoryImpl) SetFeedback(ctx context.Context, id uuid.UUID, feedback model.Feedback, at time.Time) (*model.Registration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx, `
		UPDATE registrations
		SET feedback_rating = $2, feedback_comment = $3, updated_at = $4
		WHERE id = $1 AND status = 'attended'
		RETURNING `+registrationColumns, id, int16(feedback.Rating), feedback.Comment, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return r.stale(ctx, r.pool, id)
		}
		return nil, err
	}
	return reg, nil
}

// stale loads the current row after a compare-and-swap missed.
func (r *RegistrationRepositoryImpl) stale(ctx context.Context, q rowQuerier, id uuid.UUID) (*model.Registration, error) {
	current, err := findRegistration(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return current, ErrStaleStatus
}
