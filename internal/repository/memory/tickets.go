package memory

import (
	"context"
	"time"

	"campus-ticketing/internal/model"
	"campus-ticketing/internal/repository"
	apperrors "campus-ticketing/pkg/app_errors"

	"github.com/google/uuid"
)

type TicketRepository struct {
	store *Store
}

func (r *TicketRepository) Create(ctx context.Context, ticket *model.Ticket) (*model.Ticket, bool, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("tickets.create"); err != nil {
		return nil, false, err
	}

	if _, ok := s.events[ticket.EventID]; !ok {
		return nil, false, apperrors.ErrEventNotFound
	}
	if ticket.RegistrationID != nil {
		if _, ok := s.registrations[*ticket.RegistrationID]; !ok {
			return nil, false, apperrors.ErrRegistrationNotFound
		}
	}
	for _, existing := range s.tickets {
		if ticket.RegistrationID != nil && existing.RegistrationID != nil && *existing.RegistrationID == *ticket.RegistrationID {
			return copyTicket(existing), false, nil
		}
		if existing.TicketNumber == ticket.TicketNumber {
			return nil, false, repository.ErrDuplicateNumber
		}
	}

	t := copyTicket(ticket)
	t.UpdatedAt = t.PurchasedAt
	s.tickets[t.ID] = t
	if err := s.committed("tickets.create"); err != nil {
		return nil, false, err
	}
	return copyTicket(t), true, nil
}

func (r *TicketRepository) find(op string, match func(*model.Ticket) bool) (*model.Ticket, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(op); err != nil {
		return nil, err
	}

	for _, t := range s.tickets {
		if match(t) {
			return copyTicket(t), nil
		}
	}
	return nil, apperrors.ErrTicketNotFound
}

func (r *TicketRepository) FindByID(ctx context.Context, id uuid.UUID) (*model.Ticket, error) {
	return r.find("tickets.find", func(t *model.Ticket) bool { return t.ID == id })
}

func (r *TicketRepository) FindByNumber(ctx context.Context, number string) (*model.Ticket, error) {
	return r.find("tickets.find_by_number", func(t *model.Ticket) bool { return t.TicketNumber == number })
}

func (r *TicketRepository) FindByRegistrationID(ctx context.Context, registrationID uuid.UUID) (*model.Ticket, error) {
	return r.find("tickets.find_by_registration", func(t *model.Ticket) bool {
		return t.RegistrationID != nil && *t.RegistrationID == registrationID
	})
}

func (r *TicketRepository) List(ctx context.Context, filter model.TicketFilter) ([]*model.Ticket, int, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("tickets.list"); err != nil {
		return nil, 0, err
	}

	matched := make([]*model.Ticket, 0)
	for _, t := range s.tickets {
		if filter.UserID != "" && t.UserID != filter.UserID {
			continue
		}
		if filter.EventID != nil && t.EventID != *filter.EventID {
			continue
		}
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		matched = append(matched, copyTicket(t))
	}
	items, total := paginate(matched, filter.PageParams, func(a, b *model.Ticket) bool {
		return a.PurchasedAt.After(b.PurchasedAt)
	})
	return items, total, nil
}

func (r *TicketRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to model.TicketStatus, at time.Time) (*model.Ticket, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("tickets.update_status"); err != nil {
		return nil, err
	}

	t, ok := s.tickets[id]
	if !ok {
		return nil, apperrors.ErrTicketNotFound
	}
	if t.Status != from {
		return copyTicket(t), repository.ErrStaleStatus
	}

	t.Status = to
	switch to {
	case model.TicketStatusUsed:
		t.CheckedInAt = &at
	case model.TicketStatusCancelled:
		t.CancelledAt = &at
	case model.TicketStatusExpired:
		t.ExpiredAt = &at
	}
	t.UpdatedAt = at
	return copyTicket(t), nil
}

func (r *TicketRepository) ExpireEnded(ctx context.Context, now time.Time) (int64, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check("tickets.expire_ended"); err != nil {
		return 0, err
	}

	var n int64
	for _, t := range s.tickets {
		if t.Status != model.TicketStatusValid {
			continue
		}
		event, ok := s.events[t.EventID]
		if !ok || event.EndsAt == nil || !event.EndsAt.Before(now) {
			continue
		}
		at := now
		t.Status = model.TicketStatusExpired
		t.ExpiredAt = &at
		t.UpdatedAt = now
		n++
	}
	return n, nil
}
