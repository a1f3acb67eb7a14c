// Package memory is an in-process ledger with the same atomicity guarantees as the Postgres repositories.
// A single mutex serializes every operation, so each call is one atomic step.
package memory

import (
	"fmt"
	"sort"
	"sync"

	"campus-ticketing/internal/model"
	"campus-ticketing/internal/repository"

	"github.com/google/uuid"
)

// FaultFunc lets tests fail a named operation. A nil return lets the call through.
type FaultFunc func(op string) error

type Store struct {
	mu            sync.Mutex
	events        map[uuid.UUID]*model.Event
	registrations map[uuid.UUID]*model.Registration
	payments      map[uuid.UUID]*model.Payment
	tickets       map[uuid.UUID]*model.Ticket
	fault         FaultFunc
	lostReply     FaultFunc
}

func NewStore() *Store {
	return &Store{
		events:        make(map[uuid.UUID]*model.Event),
		registrations: make(map[uuid.UUID]*model.Registration),
		payments:      make(map[uuid.UUID]*model.Payment),
		tickets:       make(map[uuid.UUID]*model.Ticket),
	}
}

func (s *Store) SetFault(f FaultFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fault = f
}

// FailTimes makes the next n calls of op fail with repository.ErrStoreUnavailable.
func (s *Store) FailTimes(op string, n int) {
	remaining := n
	s.SetFault(func(name string) error {
		if name != op || remaining <= 0 {
			return nil
		}
		remaining--
		return fmt.Errorf("%s: %w", op, repository.ErrStoreUnavailable)
	})
}

// LoseReplies makes the next n calls of op apply their write and then fail with
// repository.ErrStoreUnavailable, like a commit whose acknowledgement never arrived.
func (s *Store) LoseReplies(op string, n int) {
	remaining := n
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lostReply = func(name string) error {
		if name != op || remaining <= 0 {
			return nil
		}
		remaining--
		return fmt.Errorf("%s: reply lost: %w", op, repository.ErrStoreUnavailable)
	}
}

// committed runs after a write has been applied. Must be called with mu held.
func (s *Store) committed(op string) error {
	if s.lostReply == nil {
		return nil
	}
	return s.lostReply(op)
}

// check must be called with mu held.
func (s *Store) check(op string) error {
	if s.fault == nil {
		return nil
	}
	return s.fault(op)
}

func (s *Store) Events() *EventRepository {
	return &EventRepository{store: s}
}

func (s *Store) Registrations() *RegistrationRepository {
	return &RegistrationRepository{store: s}
}

func (s *Store) Payments() *PaymentRepository {
	return &PaymentRepository{store: s}
}

func (s *Store) Tickets() *TicketRepository {
	return &TicketRepository{store: s}
}

// paginate sorts, counts and slices.
func paginate[T any](items []T, page model.PageParams, less func(a, b T) bool) ([]T, int) {
	sort.SliceStable(items, func(i, j int) bool { return less(items[i], items[j]) })
	total := len(items)
	offset := page.Offset()
	if offset >= total {
		return []T{}, total
	}
	end := offset + page.Limit()
	if end > total {
		end = total
	}
	return items[offset:end], total
}

func copyEvent(e *model.Event) *model.Event {
	c := *e
	return &c
}

func copyRegistration(r *model.Registration) *model.Registration {
	c := *r
	if r.Feedback != nil {
		fb := *r.Feedback
		c.Feedback = &fb
	}
	return &c
}

func copyPayment(p *model.Payment) *model.Payment {
	c := *p
	return &c
}

func copyTicket(t *model.Ticket) *model.Ticket {
	c := *t
	return &c
}

var (
	_ repository.EventRepository        = (*EventRepository)(nil)
	_ repository.RegistrationRepository = (*RegistrationRepository)(nil)
	_ repository.PaymentRepository      = (*PaymentRepository)(nil)
	_ repository.TicketRepository       = (*TicketRepository)(nil)
)
