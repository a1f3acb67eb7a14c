package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"campus-ticketing/internal/metrics"
	"campus-ticketing/internal/model"
	"campus-ticketing/internal/repository"
	apperrors "campus-ticketing/pkg/app_errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RefundHook runs after a payment has been refunded.
type RefundHook func(ctx context.Context, payment *model.Payment) error

type PaymentService interface {
	CreatePayment(ctx context.Context, in model.CreatePaymentInput) (*model.Payment, error)
	CompletePayment(ctx context.Context, id uuid.UUID, gatewayTransactionID string, gatewayResponse json.RawMessage) (*model.Payment, error)
	FailPayment(ctx context.Context, id uuid.UUID, reason string) (*model.Payment, error)
	RefundPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	Get(ctx context.Context, id uuid.UUID) (*model.Payment, error)
	FindLive(ctx context.Context, relatedTo model.RelatedType, relatedID string) (*model.Payment, error)
	List(ctx context.Context, filter model.PaymentFilter) (*model.Page[*model.Payment], error)
	OnRefund(hook RefundHook)
}

type PaymentServiceImpl struct {
	repo     repository.PaymentRepository
	targets  TargetResolver
	currency string
	ledger   ledgerRunner

	mu    sync.RWMutex
	hooks []RefundHook
}

func NewPaymentService(repo repository.PaymentRepository, targets TargetResolver, defaultCurrency string, opts LedgerOptions) PaymentService {
	return &PaymentServiceImpl{
		repo:     repo,
		targets:  targets,
		currency: defaultCurrency,
		ledger:   newLedgerRunner(opts, "payment_service"),
	}
}

func (s *PaymentServiceImpl) OnRefund(hook RefundHook) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks = append(s.hooks, hook)
}

func (s *PaymentServiceImpl) CreatePayment(ctx context.Context, in model.CreatePaymentInput) (*model.Payment, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	target, err := call(ctx, s.ledger, "payment.resolve_target", func(ctx context.Context) (*PaymentTarget, error) {
		return s.targets.ResolvePaymentTarget(ctx, in.RelatedTo, in.RelatedID)
	})
	if err != nil {
		return nil, err
	}
	currency, err := s.checkTarget(in, target, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	payment := &model.Payment{
		ID:        uuid.New(),
		UserID:    in.UserID,
		Amount:    in.Amount,
		Currency:  currency,
		Method:    in.Method,
		Status:    model.PaymentStatusPending,
		RelatedTo: in.RelatedTo,
		RelatedID: in.RelatedID,
		CreatedAt: time.Now().UTC(),
	}
	if target.Event != nil {
		payment.EventID = &target.Event.ID
	}

	for attempt := 1; ; attempt++ {
		payment.TransactionID = newTransactionID()
		created, err := call(ctx, s.ledger, "payment.create", func(ctx context.Context) (*model.Payment, error) {
			return s.repo.Create(ctx, payment)
		})
		if errors.Is(err, repository.ErrDuplicateNumber) || errors.Is(err, apperrors.ErrPaymentAlreadyExists) {
			// A retried attempt can collide with its own earlier commit.
			if own, findErr := s.repo.FindByID(ctx, payment.ID); findErr == nil {
				created, err = own, nil
			}
		}
		if errors.Is(err, repository.ErrDuplicateNumber) && attempt < maxNumberAttempts {
			continue
		}
		if errors.Is(err, repository.ErrDuplicateNumber) {
			return nil, fmt.Errorf("%w: could not allocate a transaction id", apperrors.ErrUnavailable)
		}
		metrics.PaymentTransitionsTotal.WithLabelValues(string(model.PaymentStatusPending), outcome(err)).Inc()
		if err != nil {
			return nil, err
		}

		s.ledger.log.Info("Payment created",
			zap.String("payment_id", created.ID.String()),
			zap.String("transaction_id", created.TransactionID),
			zap.String("related_to", string(created.RelatedTo)),
			zap.String("related_id", created.RelatedID))
		return created, nil
	}
}

// checkTarget applies the pricing rules of the target event and returns the payment currency.
func (s *PaymentServiceImpl) checkTarget(in model.CreatePaymentInput, target *PaymentTarget, now time.Time) (string, error) {
	if target.OwnerUserID != in.UserID {
		return "", fmt.Errorf("%w: payment target belongs to another user", apperrors.ErrForbidden)
	}
	if target.Event == nil {
		return "", fmt.Errorf("%w: payment target has no event", apperrors.ErrInvalidInput)
	}
	terms, ok := target.Event.Paid()
	if !ok {
		return "", fmt.Errorf("%w: event %s is free", apperrors.ErrInvalidPaymentMethod, target.Event.ID)
	}
	if !terms.Accepts(in.Method) {
		return "", fmt.Errorf("%w: %s is not accepted for event %s", apperrors.ErrInvalidPaymentMethod, in.Method, target.Event.ID)
	}
	if in.Amount != terms.Price {
		return "", fmt.Errorf("%w: expected %s, got %s", apperrors.ErrAmountMismatch,
			model.FormatAmount(terms.Price), model.FormatAmount(in.Amount))
	}
	if terms.DeadlinePassed(now) {
		return "", fmt.Errorf("%w: deadline was %s", apperrors.ErrPaymentDeadlinePassed, terms.PaymentDeadline.Format(time.RFC3339))
	}

	currency := terms.Currency
	if currency == "" {
		currency = s.currency
	}
	if in.Currency != "" && in.Currency != currency {
		return "", fmt.Errorf("%w: event is priced in %s", apperrors.ErrInvalidInput, currency)
	}
	return currency, nil
}

func (s *PaymentServiceImpl) CompletePayment(ctx context.Context, id uuid.UUID, gatewayTransactionID string, gatewayResponse json.RawMessage) (*model.Payment, error) {
	if gatewayTransactionID == "" {
		return nil, fmt.Errorf("%w: gateway transaction id is required", apperrors.ErrInvalidInput)
	}
	if len(gatewayResponse) > 0 && !json.Valid(gatewayResponse) {
		return nil, fmt.Errorf("%w: gateway response is not valid JSON", apperrors.ErrInvalidInput)
	}
	return s.transition(ctx, id, model.PaymentStatusPending, model.PaymentStatusCompleted, model.PaymentTransition{
		At:                   time.Now().UTC(),
		GatewayTransactionID: &gatewayTransactionID,
		GatewayResponse:      gatewayResponse,
	})
}

func (s *PaymentServiceImpl) FailPayment(ctx context.Context, id uuid.UUID, reason string) (*model.Payment, error) {
	var failure *string
	if reason != "" {
		failure = &reason
	}
	return s.transition(ctx, id, model.PaymentStatusPending, model.PaymentStatusFailed, model.PaymentTransition{
		At:            time.Now().UTC(),
		FailureReason: failure,
	})
}

func (s *PaymentServiceImpl) RefundPayment(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	refunded, err := s.transition(ctx, id, model.PaymentStatusCompleted, model.PaymentStatusRefunded, model.PaymentTransition{
		At: time.Now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	hooks := append([]RefundHook(nil), s.hooks...)
	s.mu.RUnlock()
	for _, hook := range hooks {
		if err := hook(ctx, refunded); err != nil {
			s.ledger.log.Error("Refund hook failed",
				zap.String("payment_id", refunded.ID.String()),
				zap.Error(err))
		}
	}
	return refunded, nil
}

func (s *PaymentServiceImpl) transition(ctx context.Context, id uuid.UUID, from, to model.PaymentStatus, t model.PaymentTransition) (*model.Payment, error) {
	updated, err := call(ctx, s.ledger, "payment.update_status", func(ctx context.Context) (*model.Payment, error) {
		return s.repo.UpdateStatus(ctx, id, from, to, t)
	})
	if isStale(err) {
		err = fmt.Errorf("%w: payment %s is %s, expected %s", apperrors.ErrInvalidTransition, id, updated.Status, from)
	}
	metrics.PaymentTransitionsTotal.WithLabelValues(string(to), outcome(err)).Inc()
	if err != nil {
		return nil, err
	}

	s.ledger.log.Info("Payment status changed",
		zap.String("payment_id", id.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return updated, nil
}

func (s *PaymentServiceImpl) Get(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	return call(ctx, s.ledger, "payment.find", func(ctx context.Context) (*model.Payment, error) {
		return s.repo.FindByID(ctx, id)
	})
}

func (s *PaymentServiceImpl) FindLive(ctx context.Context, relatedTo model.RelatedType, relatedID string) (*model.Payment, error) {
	return call(ctx, s.ledger, "payment.find_live", func(ctx context.Context) (*model.Payment, error) {
		return s.repo.FindLive(ctx, relatedTo, relatedID)
	})
}

func (s *PaymentServiceImpl) List(ctx context.Context, filter model.PaymentFilter) (*model.Page[*model.Payment], error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	var (
		items []*model.Payment
		total int
	)
	err := s.ledger.run(ctx, "payment.list", func(ctx context.Context) error {
		var err error
		items, total, err = s.repo.List(ctx, filter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return model.NewPage(items, total, filter.PageParams), nil
}
