package service_test

import (
	"context"
	"sync"
	"testing"

	"campus-ticketing/internal/model"
	apperrors "campus-ticketing/pkg/app_errors"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicketService_Issue(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.freeEvent(t, nil)

	_, err := f.tickets.Issue(ctx, model.IssueTicketInput{UserID: "u1", EventID: event.ID, Type: model.TicketTypeStandard, Quantity: 0})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.tickets.Issue(ctx, model.IssueTicketInput{UserID: "u1", EventID: event.ID, Type: model.TicketTypeStandard, Price: -1, Quantity: 1})
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)

	_, err = f.tickets.Issue(ctx, model.IssueTicketInput{UserID: "u1", EventID: uuid.New(), Type: model.TicketTypeStandard, Quantity: 1})
	assert.ErrorIs(t, err, apperrors.ErrEventNotFound)

	ticket, err := f.tickets.Issue(ctx, model.IssueTicketInput{UserID: "u1", EventID: event.ID, Type: model.TicketTypeVIP, Price: 120000, Quantity: 2})
	require.NoError(t, err)
	assert.Regexp(t, `^TKT-[0-9A-F]{12}$`, ticket.TicketNumber)
	assert.Equal(t, model.TicketStatusValid, ticket.Status)
	assert.Equal(t, 2, ticket.Quantity)
}

func TestTicketService_IssueForRegistrationIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.freeEvent(t, nil)
	reg, err := f.registrations.Register(ctx, event.ID, "u1")
	require.NoError(t, err)

	in := model.IssueTicketInput{UserID: "u1", EventID: event.ID, Type: model.TicketTypeFree, Quantity: 1, RegistrationID: &reg.ID}

	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids = map[uuid.UUID]bool{}
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ticket, err := f.tickets.Issue(ctx, in)
			if assert.NoError(t, err) {
				mu.Lock()
				ids[ticket.ID] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, ids, 1)
}

func TestTicketService_CheckInLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.freeEvent(t, nil)
	ticket, err := f.tickets.Issue(ctx, model.IssueTicketInput{UserID: "u1", EventID: event.ID, Type: model.TicketTypeFree, Quantity: 1})
	require.NoError(t, err)

	first, err := f.tickets.CheckIn(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, model.TicketStatusUsed, first.Ticket.Status)
	require.NotNil(t, first.Ticket.CheckedInAt)

	second, err := f.tickets.CheckInByNumber(ctx, ticket.TicketNumber)
	require.NoError(t, err)
	assert.True(t, second.AlreadyCheckedIn)

	_, err = f.tickets.Cancel(ctx, ticket.ID)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	cancelled, err := f.tickets.Issue(ctx, model.IssueTicketInput{UserID: "u1", EventID: event.ID, Type: model.TicketTypeFree, Quantity: 1})
	require.NoError(t, err)
	_, err = f.tickets.Cancel(ctx, cancelled.ID)
	require.NoError(t, err)
	_, err = f.tickets.CheckIn(ctx, cancelled.ID)
	assert.ErrorIs(t, err, apperrors.ErrTicketNotRedeemable)

	_, err = f.tickets.CheckInByNumber(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestTicketService_List(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.freeEvent(t, nil)
	for _, user := range []string{"u1", "u1", "u2"} {
		_, err := f.tickets.Issue(ctx, model.IssueTicketInput{UserID: user, EventID: event.ID, Type: model.TicketTypeStandard, Quantity: 1})
		require.NoError(t, err)
	}

	page, err := f.tickets.List(ctx, model.TicketFilter{UserID: "u1"})
	require.NoError(t, err)
	assert.Equal(t, 2, page.Total)

	page, err = f.tickets.List(ctx, model.TicketFilter{EventID: &event.ID, Status: model.TicketStatusValid})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
}

func TestTicketService_RecoversLostCommit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	event := f.freeEvent(t, nil)

	f.store.LoseReplies("tickets.create", 1)
	ticket, err := f.tickets.Issue(ctx, model.IssueTicketInput{UserID: "u1", EventID: event.ID, Type: model.TicketTypeStandard, Quantity: 1})
	require.NoError(t, err)

	page, err := f.tickets.List(ctx, model.TicketFilter{EventID: &event.ID})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
	assert.Equal(t, ticket.ID, page.Items[0].ID)
	assert.Equal(t, ticket.TicketNumber, page.Items[0].TicketNumber)
}
