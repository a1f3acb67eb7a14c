// Package mocks holds testify mocks of the service interfaces for handler tests.
package mocks

import "campus-ticketing/internal/service"

var (
	_ service.EventService        = (*EventServiceMock)(nil)
	_ service.RegistrationService = (*RegistrationServiceMock)(nil)
	_ service.PaymentService      = (*PaymentServiceMock)(nil)
	_ service.TicketService       = (*TicketServiceMock)(nil)
	_ service.LifecycleService    = (*LifecycleServiceMock)(nil)
)
