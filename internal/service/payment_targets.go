package service

import (
	"context"
	"fmt"

	"campus-ticketing/internal/model"
	"campus-ticketing/internal/repository"
	apperrors "campus-ticketing/pkg/app_errors"

	"github.com/google/uuid"
)

// PaymentTarget is the thing a payment pays for, as seen by the payment rules.
type PaymentTarget struct {
	OwnerUserID string
	Event       *model.Event
}

type TargetResolver interface {
	ResolvePaymentTarget(ctx context.Context, relatedTo model.RelatedType, relatedID string) (*PaymentTarget, error)
}

type RegistrationTargetResolver struct {
	registrations repository.RegistrationRepository
	catalog       CatalogProvider
}

func NewRegistrationTargetResolver(registrations repository.RegistrationRepository, catalog CatalogProvider) *RegistrationTargetResolver {
	return &RegistrationTargetResolver{registrations: registrations, catalog: catalog}
}

func (r *RegistrationTargetResolver) ResolvePaymentTarget(ctx context.Context, relatedTo model.RelatedType, relatedID string) (*PaymentTarget, error) {
	if relatedTo != model.RelatedTypeRegistration {
		return nil, fmt.Errorf("%w: payments for %s targets are not supported", apperrors.ErrInvalidInput, relatedTo)
	}
	id, err := uuid.Parse(relatedID)
	if err != nil {
		return nil, fmt.Errorf("%w: related_id is not a registration id", apperrors.ErrInvalidInput)
	}

	registration, err := r.registrations.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if registration.Status != model.RegistrationStatusRegistered {
		return nil, fmt.Errorf("%w: registration is %s", apperrors.ErrInvalidTransition, registration.Status)
	}

	event, err := r.catalog.GetEvent(ctx, registration.EventID)
	if err != nil {
		return nil, err
	}
	return &PaymentTarget{OwnerUserID: registration.UserID, Event: event}, nil
}
