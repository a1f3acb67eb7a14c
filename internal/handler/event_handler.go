package handler

import (
	"net/http"

	"campus-ticketing/internal/middleware"
	"campus-ticketing/internal/model"
	"campus-ticketing/internal/service"

	"github.com/gin-gonic/gin"
)

type EventHandler struct {
	service service.EventService
}

func NewEventHandler(service service.EventService) *EventHandler {
	return &EventHandler{service: service}
}

// RegisterRoutes expects an authenticated /api/v1 group.
func (h *EventHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("events", h.List)
	router.GET("events/:id", h.GetByEventID)
	router.POST("events", middleware.RequireAdmin(), h.Create)
}

func (h *EventHandler) List(c *gin.Context) {
	var page model.PageParams
	if err := BindQuery(c, &page); err != nil {
		return
	}
	events, err := h.service.List(c.Request.Context(), page)
	if err != nil {
		handleError(c, err, "ListEvents")
		return
	}
	c.JSON(http.StatusOK, events)
}

func (h *EventHandler) GetByEventID(c *gin.Context) {
	eventID, ok := bindID(c)
	if !ok {
		return
	}
	event, err := h.service.GetEvent(c.Request.Context(), eventID)
	if err != nil {
		handleError(c, err, "GetEvent")
		return
	}
	c.JSON(http.StatusOK, event)
}

func (h *EventHandler) Create(c *gin.Context) {
	var req model.CreateEventRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	created, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		handleError(c, err, "CreateEvent")
		return
	}
	c.JSON(http.StatusCreated, created)
}
