package handler

import (
	"net/http"

	"campus-ticketing/internal/middleware"
	"campus-ticketing/internal/model"
	"campus-ticketing/internal/service"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	lifecycle service.LifecycleService
	payments  service.PaymentService
}

func NewPaymentHandler(lifecycle service.LifecycleService, payments service.PaymentService) *PaymentHandler {
	return &PaymentHandler{lifecycle: lifecycle, payments: payments}
}

// RegisterRoutes expects an authenticated /api/v1 group. idempotent guards the create route and may be nil.
func (h *PaymentHandler) RegisterRoutes(router *gin.RouterGroup, idempotent gin.HandlerFunc) {
	payments := router.Group("payments")
	{
		payments.POST("", withOptional(idempotent, h.Create)...)
		payments.GET("", h.List)
		payments.GET(":id", h.GetByID)
		payments.POST(":id/complete", middleware.RequireOperator(), h.Complete)
		payments.POST(":id/fail", middleware.RequireOperator(), h.Fail)
		payments.POST(":id/refund", middleware.RequireAdmin(), h.Refund)
	}
}

func (h *PaymentHandler) Create(c *gin.Context) {
	identity, ok := currentUser(c)
	if !ok {
		return
	}
	var req model.CreatePaymentRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	amount, err := model.ParseAmount(req.Amount)
	if err != nil {
		handleError(c, err, "CreatePayment")
		return
	}

	payment, err := h.lifecycle.CreatePayment(c.Request.Context(), identity, model.CreatePaymentInput{
		UserID:    identity.UserID,
		Amount:    amount,
		Currency:  req.Currency,
		Method:    req.Method,
		RelatedTo: req.RelatedTo,
		RelatedID: req.RelatedID,
	})
	if err != nil {
		handleError(c, err, "CreatePayment")
		return
	}
	c.JSON(http.StatusCreated, payment)
}

func (h *PaymentHandler) List(c *gin.Context) {
	identity, ok := currentUser(c)
	if !ok {
		return
	}
	var query model.ListPaymentsQuery
	if err := BindQuery(c, &query); err != nil {
		return
	}
	page, err := h.payments.List(c.Request.Context(), model.PaymentFilter{
		UserID:     scopeUserFilter(identity, query.UserID),
		Status:     query.Status,
		RelatedTo:  query.RelatedTo,
		RelatedID:  query.RelatedID,
		PageParams: query.PageParams,
	})
	if err != nil {
		handleError(c, err, "ListPayments")
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *PaymentHandler) GetByID(c *gin.Context) {
	identity, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := bindID(c)
	if !ok {
		return
	}
	payment, err := h.payments.Get(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "GetPayment")
		return
	}
	if !authorizeOwner(c, identity, payment.UserID, "GetPayment") {
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *PaymentHandler) Complete(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}
	var req model.CompletePaymentRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	result, err := h.lifecycle.CompletePayment(c.Request.Context(), id, req.GatewayTransactionID, req.GatewayResponse)
	if err != nil {
		handleError(c, err, "CompletePayment")
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *PaymentHandler) Fail(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}
	var req model.FailPaymentRequest
	if err := BindJson(c, &req); err != nil {
		return
	}
	payment, err := h.lifecycle.FailPayment(c.Request.Context(), id, req.Reason)
	if err != nil {
		handleError(c, err, "FailPayment")
		return
	}
	c.JSON(http.StatusOK, payment)
}

func (h *PaymentHandler) Refund(c *gin.Context) {
	id, ok := bindID(c)
	if !ok {
		return
	}
	payment, err := h.lifecycle.RefundPayment(c.Request.Context(), id)
	if err != nil {
		handleError(c, err, "RefundPayment")
		return
	}
	c.JSON(http.StatusOK, payment)
}
