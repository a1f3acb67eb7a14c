package handler

import (
	"net/http"

	"campus-ticketing/internal/middleware"
	"campus-ticketing/internal/model"
	"campus-ticketing/internal/service"

	"github.com/gin-gonic/gin"
)

type TicketHandler struct {
	lifecycle service.LifecycleService
	tickets   service.TicketService
}

func NewTicketHandler(lifecycle service.LifecycleService, tickets service.TicketService) *TicketHandler {
	return &TicketHandler{lifecycle: lifecycle, tickets: tickets}
}

// RegisterRoutes expects an authenticated /api/v1 group.
func (h *TicketHandler) RegisterRoutes(router *gin.RouterGroup) {
	tickets := router.Group("tickets")
	{
		tickets.GET("", h.List)
		tickets.GET(":id", h.GetByTicketID)
		tickets.POST("scan", middleware.RequireOperator(), h.Scan)
		tickets.POST(":id/check-in", middleware.RequireOperator(), h.CheckIn)
		tickets.POST(":id/cancel", h.Cancel)
	}
}

func (h *TicketHandler) List(c *gin.Context) {
	identity, ok := currentUser(c)
	if !ok {
		return
	}
	var query model.ListTicketsQuery
	if err := BindQuery(c, &query); err != nil {
		return
	}
	eventID, ok := parseOptionalUUID(c, query.EventID, "event_id")
	if !ok {
		return
	}
	page, err := h.tickets.List(c.Request.Context(), model.TicketFilter{
		UserID:     scopeUserFilter(identity, query.UserID),
		EventID:    eventID,
		Status:     query.Status,
		PageParams: query.PageParams,
	})
	if err != nil {
		handleError(c, err, "ListTickets")
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *TicketHandler) GetByTicketID(c *gin.Context) {
	identity, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := bindID(c)
	if !ok {
		return
	}
	ticket, err := h.tickets.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "GetTicket")
		return
	}
	if !authorizeOwner(c, identity, ticket.UserID, "GetTicket") {
		return
	}
	c.JSON(http.StatusOK, ticket)
}

// CheckIn returns 200 for both the first scan and a repeat; the body says which.
func (h *TicketHandler) CheckIn(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}
	result, err := h.lifecycle.CheckInTicket(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "CheckInTicket")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *TicketHandler) Scan(c *gin.Context) {
	var req model.ScanTicketRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	result, err := h.lifecycle.ScanTicket(c.Request.Context(), req.TicketNumber)
	if err != nil {
		handleError(c, err, "ScanTicket")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *TicketHandler) Cancel(c *gin.Context) {
	identity, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := bindID(c)
	if !ok {
		return
	}
	ticket, err := h.lifecycle.CancelTicket(c.Request.Context(), identity, id)
	if err != nil {
		handleError(c, err, "CancelTicket")
		return
	}
	c.JSON(http.StatusOK, ticket)
}
