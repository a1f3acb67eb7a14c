package memory

import (
	"context"
	"fmt"

	"campus-ticketing/internal/model"
	"campus-ticketing/internal/repository"
	apperrors "campus-ticketing/pkg/app_errors"

	"github.com/google/uuid"
)

type PaymentRepository struct {
	store *Store
}

func (r *PaymentRepository) Create(ctx context.Context, payment *model.Payment) (*model.Payment, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("payments.create"); err != nil {
		return nil, err
	}

	if payment.EventID != nil {
		if _, ok := s.events[*payment.EventID]; !ok {
			return nil, apperrors.ErrEventNotFound
		}
	}
	for _, existing := range s.payments {
		if existing.TransactionID == payment.TransactionID {
			return nil, repository.ErrDuplicateNumber
		}
		if existing.RelatedTo == payment.RelatedTo && existing.RelatedID == payment.RelatedID && existing.Status.IsLive() {
			return nil, fmt.Errorf("%w: %s %s already has a pending or completed payment",
				apperrors.ErrPaymentAlreadyExists, payment.RelatedTo, payment.RelatedID)
		}
	}

	p := copyPayment(payment)
	p.UpdatedAt = p.CreatedAt
	s.payments[p.ID] = p
	if err := s.committed("payments.create"); err != nil {
		return nil, err
	}
	return copyPayment(p), nil
}

func (r *PaymentRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("payments.find"); err != nil {
		return nil, err
	}

	p, ok := s.payments[id]
	if !ok {
		return nil, apperrors.ErrPaymentNotFound
	}
	return copyPayment(p), nil
}

func (r *PaymentRepository) FindLive(ctx context.Context, relatedTo model.RelatedType, relatedID string) (*model.Payment, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("payments.find_live"); err != nil {
		return nil, err
	}

	for _, p := range s.payments {
		if p.RelatedTo == relatedTo && p.RelatedID == relatedID && p.Status.IsLive() {
			return copyPayment(p), nil
		}
	}
	return nil, apperrors.ErrPaymentNotFound
}

func (r *PaymentRepository) List(ctx context.Context, filter model.PaymentFilter) ([]*model.Payment, int, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("payments.list"); err != nil {
		return nil, 0, err
	}

	matched := make([]*model.Payment, 0)
	for _, p := range s.payments {
		if filter.UserID != "" && p.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.RelatedTo != "" && p.RelatedTo != filter.RelatedTo {
			continue
		}
		if filter.RelatedID != "" && p.RelatedID != filter.RelatedID {
			continue
		}
		matched = append(matched, copyPayment(p))
	}
	items, total := paginate(matched, filter.PageParams, func(a, b *model.Payment) bool {
		return a.CreatedAt.After(b.CreatedAt)
	})
	return items, total, nil
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.PaymentStatus, transition model.PaymentTransition) (*model.Payment, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("payments.update_status"); err != nil {
		return nil, err
	}

	p, ok := s.payments[id]
	if !ok {
		return nil, apperrors.ErrPaymentNotFound
	}
	if p.Status != from {
		return copyPayment(p), repository.ErrStaleStatus
	}

	at := transition.At
	p.Status = to
	switch to {
	case model.PaymentStatusCompleted:
		p.PaidAt = &at
	case model.PaymentStatusRefunded:
		p.RefundedAt = &at
	}
	if transition.GatewayTransactionID != nil {
		p.GatewayTransactionID = transition.GatewayTransactionID
	}
	if len(transition.GatewayResponse) > 0 {
		p.GatewayResponse = transition.GatewayResponse
	}
	if transition.FailureReason != nil {
		p.FailureReason = transition.FailureReason
	}
	p.UpdatedAt = at
	return copyPayment(p), nil
}
