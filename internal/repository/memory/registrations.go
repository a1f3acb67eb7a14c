package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"time"

	"campus-ticketing/internal/model"
	"campus-ticketing/internal/repository"
	apperrors "campus-ticketing/pkg/app_errors"

	"github.com/google/uuid"
)

type RegistrationRepository struct {
	store *Store
}

func (r *RegistrationRepository) CreateActive(ctx context.Context, registration *model.Registration) (*model.Registration, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("registrations.create"); err != nil {
		return nil, err
	}

	event, ok := s.events[registration.EventID]
	if !ok {
		return nil, apperrors.ErrEventNotFound
	}
	for _, existing := range s.registrations {
		if existing.EventID == registration.EventID && existing.UserID == registration.UserID && existing.Status.IsActive() {
			return nil, fmt.Errorf("%w: user %s already holds an active registration for event %s",
				apperrors.ErrAlreadyRegistered, registration.UserID, registration.EventID)
		}
	}
	if event.Capacity != nil && event.RegisteredCount >= *event.Capacity {
		return nil, fmt.Errorf("%w: event %s has no seats left", apperrors.ErrCapacityExceeded, registration.EventID)
	}

	event.RegisteredCount++
	event.UpdatedAt = time.Now().UTC()

	reg := copyRegistration(registration)
	reg.Status = model.RegistrationStatusRegistered
	reg.UpdatedAt = reg.RegisteredAt
	s.registrations[reg.ID] = reg
	if err := s.committed("registrations.create"); err != nil {
		return nil, err
	}
	return copyRegistration(reg), nil
}

func (r *RegistrationRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Registration, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("registrations.find"); err != nil {
		return nil, err
	}

	reg, ok := s.registrations[id]
	if !ok {
		return nil, apperrors.ErrRegistrationNotFound
	}
	return copyRegistration(reg), nil
}

func (r *RegistrationRepository) List(ctx context.Context, filter model.RegistrationFilter) ([]*model.Registration, int, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("registrations.list"); err != nil {
		return nil, 0, err
	}

	matched := make([]*model.Registration, 0)
	for _, reg := range s.registrations {
		if filter.EventID != nil && reg.EventID != *filter.EventID {
			continue
		}
		if filter.UserID != "" && reg.UserID != filter.UserID {
			continue
		}
		if filter.Status != "" && reg.Status != filter.Status {
			continue
		}
		matched = append(matched, copyRegistration(reg))
	}
	items, total := paginate(matched, filter.PageParams, func(a, b *model.Registration) bool {
		if a.RegisteredAt.Equal(b.RegisteredAt) {
			return a.ID.String() < b.ID.String()
		}
		return a.RegisteredAt.After(b.RegisteredAt)
	})
	return items, total, nil
}

func (r *RegistrationRepository) ListUnconfirmed(ctx context.Context, after *model.UnconfirmedCursor, limit int) ([]*model.Registration, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("registrations.list_unconfirmed"); err != nil {
		return nil, err
	}

	matched := make([]*model.Registration, 0)
	for _, reg := range s.registrations {
		if reg.Status != model.RegistrationStatusRegistered || reg.ConfirmedAt != nil {
			continue
		}
		if after != nil && !keysetAfter(reg, after) {
			continue
		}
		matched = append(matched, copyRegistration(reg))
	}
	sort.Slice(matched, func(i, j int) bool {
		return keysetAfter(matched[j], matched[i].CursorAfter())
	})
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

// keysetAfter orders like Postgres row comparison on (registered_at, id); uuids compare bytewise.
func keysetAfter(reg *model.Registration, cursor *model.UnconfirmedCursor) bool {
	if !reg.RegisteredAt.Equal(cursor.RegisteredAt) {
		return reg.RegisteredAt.After(cursor.RegisteredAt)
	}
	return bytes.Compare(reg.ID[:], cursor.ID[:]) > 0
}

func (r *RegistrationRepository) Cancel(ctx context.Context, id uuid.UUID, at time.Time) (*model.Registration, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("registrations.cancel"); err != nil {
		return nil, err
	}

	reg, ok := s.registrations[id]
	if !ok {
		return nil, apperrors.ErrRegistrationNotFound
	}
	if reg.Status != model.RegistrationStatusRegistered {
		return copyRegistration(reg), repository.ErrStaleStatus
	}

	reg.Status = model.RegistrationStatusCancelled
	reg.CancelledAt = &at
	reg.UpdatedAt = at
	if event, ok := s.events[reg.EventID]; ok && event.RegisteredCount > 0 {
		event.RegisteredCount--
		event.UpdatedAt = at
	}
	return copyRegistration(reg), nil
}

func (r *RegistrationRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.RegistrationStatus, at time.Time) (*model.Registration, error) {
	if !from.IsActive() || !to.IsActive() {
		return nil, fmt.Errorf("%w: cancellation goes through Cancel", apperrors.ErrInvalidTransition)
	}

	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("registrations.update_status"); err != nil {
		return nil, err
	}

	reg, ok := s.registrations[id]
	if !ok {
		return nil, apperrors.ErrRegistrationNotFound
	}
	if reg.Status != from {
		return copyRegistration(reg), repository.ErrStaleStatus
	}

	reg.Status = to
	if to == model.RegistrationStatusAttended {
		reg.CheckInTime = &at
	}
	reg.UpdatedAt = at
	return copyRegistration(reg), nil
}

func (r *RegistrationRepository) MarkConfirmed(ctx context.Context, id uuid.UUID, at time.Time) (*model.Registration, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("registrations.mark_confirmed"); err != nil {
		return nil, err
	}

	reg, ok := s.registrations[id]
	if !ok {
		return nil, apperrors.ErrRegistrationNotFound
	}
	if reg.ConfirmedAt == nil {
		reg.ConfirmedAt = &at
	}
	reg.UpdatedAt = at
	return copyRegistration(reg), nil
}

func (r *RegistrationRepository) SetFeedback(ctx context.Context, id uuid.UUID, feedback model.Feedback, at time.Time) (*model.Registration, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("registrations.set_feedback"); err != nil {
		return nil, err
	}

	reg, ok := s.registrations[id]
	if !ok {
		return nil, apperrors.ErrRegistrationNotFound
	}
	if reg.Status != model.RegistrationStatusAttended {
		return copyRegistration(reg), repository.ErrStaleStatus
	}

	fb := feedback
	reg.Feedback = &fb
	reg.UpdatedAt = at
	return copyRegistration(reg), nil
}
