package repository

import (
	"context"
	"errors"
	"fmt"

	"campus-ticketing/internal/model"
	apperrors "campus-ticketing/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PaymentRepository interface {
	Create(ctx context.Context, payment *model.Payment) (*model.Payment, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	// FindLive returns the pending or completed payment for a target.
	FindLive(ctx context.Context, relatedTo model.RelatedType, relatedID string) (*model.Payment, error)
	List(ctx context.Context, filter model.PaymentFilter) ([]*model.Payment, int, error)
	// UpdateStatus is a compare-and-swap on status; the transition fields are written with it.
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.PaymentStatus, transition model.PaymentTransition) (*model.Payment, error)
}

type PaymentRepositoryImpl struct {
	pool *pgxpool.Pool
}

func NewPaymentRepository(pool *pgxpool.Pool) PaymentRepository {
	return &PaymentRepositoryImpl{
		pool: pool,
	}
}

const paymentColumns = `id, user_id, transaction_id, amount_minor, currency, payment_method, status,
	related_to, related_id, event_id, gateway_transaction_id, gateway_response, failure_reason,
	paid_at, refunded_at, created_at, updated_at`

func scanPayment(row pgx.Row) (*model.Payment, error) {
	var (
		p         model.Payment
		method    string
		status    string
		relatedTo string
		response  []byte
	)
	err := row.Scan(
		&p.ID,
		&p.UserID,
		&p.TransactionID,
		&p.Amount,
		&p.Currency,
		&method,
		&status,
		&relatedTo,
		&p.RelatedID,
		&p.EventID,
		&p.GatewayTransactionID,
		&response,
		&p.FailureReason,
		&p.PaidAt,
		&p.RefundedAt,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	p.Method = model.PaymentMethod(method)
	p.Status = model.PaymentStatus(status)
	p.RelatedTo = model.RelatedType(relatedTo)
	if len(response) > 0 {
		p.GatewayResponse = response
	}
	return &p, nil
}

func (r *PaymentRepositoryImpl) Create(ctx context.Context, payment *model.Payment) (*model.Payment, error) {
	query := `
		INSERT INTO payments (
			id, user_id, transaction_id, amount_minor, currency, payment_method, status,
			related_to, related_id, event_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $11)
		RETURNING ` + paymentColumns

	created, err := scanPayment(r.pool.QueryRow(ctx, query,
		payment.ID, payment.UserID, payment.TransactionID, payment.Amount, payment.Currency,
		string(payment.Method), string(payment.Status), string(payment.RelatedTo), payment.RelatedID,
		payment.EventID, payment.CreatedAt,
	))
	if err != nil {
		switch {
		case isUniqueViolation(err, "payments_live_related_key"):
			return nil, fmt.Errorf("%w: %s %s already has a pending or completed payment",
				apperrors.ErrPaymentAlreadyExists, payment.RelatedTo, payment.RelatedID)
		case isUniqueViolation(err, "payments_transaction_id_key"), isUniqueViolation(err, "payments_pkey"):
			return nil, ErrDuplicateNumber
		case isForeignKeyViolation(err, "payments_event_id_fkey"):
			return nil, apperrors.ErrEventNotFound
		}
		return nil, err
	}
	return created, nil
}

func (r *PaymentRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *PaymentRepositoryImpl) FindLive(ctx context.Context, relatedTo model.RelatedType, relatedID string) (*model.Payment, error) {
	p, err := scanPayment(r.pool.QueryRow(ctx, `
		SELECT `+paymentColumns+` FROM payments
		WHERE related_to = $1 AND related_id = $2 AND status IN ('pending', 'completed')
	`, string(relatedTo), relatedID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, err
	}
	return p, nil
}

func (r *PaymentRepositoryImpl) List(ctx context.Context, filter model.PaymentFilter) ([]*model.Payment, int, error) {
	var where whereBuilder
	if filter.UserID != "" {
		where.add("user_id = $%d", filter.UserID)
	}
	if filter.Status != "" {
		where.add("status = $%d", string(filter.Status))
	}
	if filter.RelatedTo != "" {
		where.add("related_to = $%d", string(filter.RelatedTo))
	}
	if filter.RelatedID != "" {
		where.add("related_id = $%d", filter.RelatedID)
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM payments`+where.sql(), where.args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	suffix, args := where.page(filter.Limit(), filter.Offset())
	rows, err := r.pool.Query(ctx, `SELECT `+paymentColumns+` FROM payments`+where.sql()+
		` ORDER BY created_at DESC, id`+suffix, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	payments := make([]*model.Payment, 0)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, 0, err
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

func (r *PaymentRepositoryImpl) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.PaymentStatus, transition model.PaymentTransition) (*model.Payment, error) {
	var response []byte
	if len(transition.GatewayResponse) > 0 {
		response = transition.GatewayResponse
	}

	query := `
		UPDATE payments
		SET status = $3::text,
			paid_at = CASE WHEN $3::text = 'completed' THEN $4::timestamptz ELSE paid_at END,
			refunded_at = CASE WHEN $3::text = 'refunded' THEN $4::timestamptz ELSE refunded_at END,
			gateway_transaction_id = COALESCE($5::text, gateway_transaction_id),
			gateway_response = COALESCE($6::jsonb, gateway_response),
			failure_reason = COALESCE($7::text, failure_reason),
			updated_at = $4::timestamptz
		WHERE id = $1 AND status = $2::text
		RETURNING ` + paymentColumns

	p, err := scanPayment(r.pool.QueryRow(ctx, query,
		id, string(from), string(to), transition.At,
		transition.GatewayTransactionID, response, transition.FailureReason,
	))
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
	return p, nil
}
