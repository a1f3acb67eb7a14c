package service

import (
	"context"
	"fmt"

	"campus-ticketing/internal/model"
	"campus-ticketing/internal/repository"
	apperrors "campus-ticketing/pkg/app_errors"

	"github.com/google/uuid"
)

// EventService is also the CatalogProvider used by the lifecycle, so catalog reads
// share the ledger retry policy.
type EventService interface {
	Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error)
	GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error)
	List(ctx context.Context, page model.PageParams) (*model.Page[*model.Event], error)
}

type EventServiceImpl struct {
	repo            repository.EventRepository
	catalog         CatalogProvider
	defaultCurrency string
	ledger          ledgerRunner
}

// NewEventService reads single events through catalog, which may be a cache in front of repo.
func NewEventService(repo repository.EventRepository, catalog CatalogProvider, defaultCurrency string, opts LedgerOptions) EventService {
	if catalog == nil {
		catalog = repo
	}
	return &EventServiceImpl{
		repo:            repo,
		catalog:         catalog,
		defaultCurrency: defaultCurrency,
		ledger:          newLedgerRunner(opts, "event_service"),
	}
}

func (s *EventServiceImpl) Create(ctx context.Context, req model.CreateEventRequest) (*model.Event, error) {
	event, err := req.ToEvent(s.defaultCurrency)
	if err != nil {
		return nil, err
	}
	return call(ctx, s.ledger, "event.create", func(ctx context.Context) (*model.Event, error) {
		return s.repo.Create(ctx, event)
	})
}

func (s *EventServiceImpl) GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	if id == uuid.Nil {
		return nil, fmt.Errorf("%w: event id is required", apperrors.ErrInvalidInput)
	}
	return call(ctx, s.ledger, "event.get", func(ctx context.Context) (*model.Event, error) {
		return s.catalog.GetEvent(ctx, id)
	})
}

func (s *EventServiceImpl) List(ctx context.Context, page model.PageParams) (*model.Page[*model.Event], error) {
	var (
		events []*model.Event
		total  int
	)
	err := s.ledger.run(ctx, "event.list", func(ctx context.Context) error {
		var err error
		events, total, err = s.repo.List(ctx, page)
		return err
	})
	if err != nil {
		return nil, err
	}
	return model.NewPage(events, total, page), nil
}
