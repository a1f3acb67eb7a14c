package memory

import (
	"context"
	"time"

	"campus-ticketing/internal/model"
	apperrors "campus-ticketing/pkg/app_errors"

	"github.com/google/uuid"
)

type EventRepository struct {
	store *Store
}

func (r *EventRepository) Create(ctx context.Context, event *model.Event) (*model.Event, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("events.create"); err != nil {
		return nil, err
	}

	e := copyEvent(event)
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Pricing == nil {
		e.Pricing = model.FreePricing{}
	}
	now := time.Now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	s.events[e.ID] = e
	return copyEvent(e), nil
}

func (r *EventRepository) GetEvent(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("events.get"); err != nil {
		return nil, err
	}

	e, ok := s.events[id]
	if !ok {
		return nil, apperrors.ErrEventNotFound
	}
	return copyEvent(e), nil
}

func (r *EventRepository) List(ctx context.Context, page model.PageParams) ([]*model.Event, int, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("events.list"); err != nil {
		return nil, 0, err
	}

	all := make([]*model.Event, 0, len(s.events))
	for _, e := range s.events {
		all = append(all, copyEvent(e))
	}
	items, total := paginate(all, page, func(a, b *model.Event) bool {
		return a.CreatedAt.After(b.CreatedAt)
	})
	return items, total, nil
}
