package handler

import (
	"net/http"

	"campus-ticketing/internal/middleware"
	"campus-ticketing/internal/model"
	"campus-ticketing/internal/service"

	"github.com/gin-gonic/gin"
)

type RegistrationHandler struct {
	lifecycle     service.LifecycleService
	registrations service.RegistrationService
}

func NewRegistrationHandler(lifecycle service.LifecycleService, registrations service.RegistrationService) *RegistrationHandler {
	return &RegistrationHandler{lifecycle: lifecycle, registrations: registrations}
}

// RegisterRoutes expects an authenticated /api/v1 group. idempotent guards the create route and may be nil.
func (h *RegistrationHandler) RegisterRoutes(router *gin.RouterGroup, idempotent gin.HandlerFunc) {
	router.POST("events/:id/registrations", withOptional(idempotent, h.Register)...)

	regs := router.Group("registrations")
	{
		regs.GET("", h.List)
		regs.GET(":id", h.GetByID)
		regs.POST(":id/cancel", h.Cancel)
		regs.POST(":id/check-in", middleware.RequireOperator(), h.CheckIn)
		regs.POST(":id/no-show", middleware.RequireOperator(), h.MarkNoShow)
		regs.POST(":id/feedback", h.SubmitFeedback)
	}
}

func (h *RegistrationHandler) Register(c *gin.Context) {
	identity, ok := currentUser(c)
	if !ok {
		return
	}
	eventID, ok := bindID(c)
	if !ok {
		return
	}
	result, err := h.lifecycle.Register(c.Request.Context(), identity, eventID)
	if err != nil {
		handleError(c, err, "Register")
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *RegistrationHandler) List(c *gin.Context) {
	identity, ok := currentUser(c)
	if !ok {
		return
	}
	var query model.ListRegistrationsQuery
	if err := BindQuery(c, &query); err != nil {
		return
	}
	eventID, ok := parseOptionalUUID(c, query.EventID, "event_id")
	if !ok {
		return
	}

	page, err := h.registrations.List(c.Request.Context(), model.RegistrationFilter{
		EventID:    eventID,
		UserID:     scopeUserFilter(identity, query.UserID),
		Status:     query.Status,
		PageParams: query.PageParams,
	})
	if err != nil {
		handleError(c, err, "ListRegistrations")
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *RegistrationHandler) GetByID(c *gin.Context) {
	identity, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := bindID(c)
	if !ok {
		return
	}
	reg, err := h.registrations.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "GetRegistration")
		return
	}
	if !authorizeOwner(c, identity, reg.UserID, "GetRegistration") {
		return
	}
	c.JSON(http.StatusOK, reg)
}

func (h *RegistrationHandler) Cancel(c *gin.Context) {
	identity, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := bindID(c)
	if !ok {
		return
	}
	reg, err := h.lifecycle.CancelRegistration(c.Request.Context(), identity, id)
	if err != nil {
		handleError(c, err, "CancelRegistration")
		return
	}
	c.JSON(http.StatusOK, reg)
}

func (h *RegistrationHandler) CheckIn(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}
	reg, err := h.registrations.CheckIn(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "CheckInRegistration")
		return
	}
	c.JSON(http.StatusOK, reg)
}

func (h *RegistrationHandler) MarkNoShow(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}
	reg, err := h.registrations.MarkNoShow(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "MarkNoShow")
		return
	}
	c.JSON(http.StatusOK, reg)
}

func (h *RegistrationHandler) SubmitFeedback(c *gin.Context) {
	identity, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := bindID(c)
	if !ok {
		return
	}
	var req model.FeedbackRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	reg, err := h.registrations.SubmitFeedback(c.Request.Context(), id, identity, model.Feedback{Rating: req.Rating, Comment: req.Comment})
	if err != nil {
		handleError(c, err, "SubmitFeedback")
		return
	}
	c.JSON(http.StatusOK, reg)
}

func withOptional(mw gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	if mw == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{mw, h}
}
