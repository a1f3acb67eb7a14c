package handler

import (
	"errors"
	"net/http"

	"campus-ticketing/internal/middleware"
	"campus-ticketing/internal/model"
	apperrors "campus-ticketing/pkg/app_errors"
	"campus-ticketing/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

func BindJson(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindJSON(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return err
	}
	return nil
}

func BindQuery(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindQuery(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return err
	}
	return nil
}

func BindUri(c *gin.Context, obj interface{}) error {
	if err := c.ShouldBindUri(obj); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request format",
		})
		return err
	}
	return nil
}

type idUri struct {
	ID string `uri:"id" binding:"required,uuid"`
}

// bindID parses the :id path parameter.
func bindID(c *gin.Context) (uuid.UUID, bool) {
	var uri idUri
	if err := BindUri(c, &uri); err != nil {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(uri.ID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid id"})
		return uuid.Nil, false
	}
	return id, true
}

// parseOptionalUUID returns nil for an empty query value.
func parseOptionalUUID(c *gin.Context, raw, field string) (*uuid.UUID, bool) {
	if raw == "" {
		return nil, true
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid " + field})
		return nil, false
	}
	return &id, true
}

func currentUser(c *gin.Context) (model.Identity, bool) {
	identity, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	}
	return identity, ok
}

// scopeUserFilter pins students to their own records; operators may query any user.
func scopeUserFilter(identity model.Identity, requested string) string {
	if identity.IsOperator() {
		return requested
	}
	return identity.UserID
}

// authorizeOwner hides records of other users behind a 403.
func authorizeOwner(c *gin.Context, identity model.Identity, ownerID, operation string) bool {
	if identity.CanActOn(ownerID) {
		return true
	}
	handleError(c, apperrors.ErrForbidden, operation)
	return false
}

func handleError(c *gin.Context, err error, operation string) {
	log := logger.WithComponent("handler").With(zap.String("operation", operation), zap.Error(err))

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, apperrors.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, apperrors.ErrEventNotFound),
		errors.Is(err, apperrors.ErrRegistrationNotFound),
		errors.Is(err, apperrors.ErrPaymentNotFound),
		errors.Is(err, apperrors.ErrTicketNotFound):
		status = http.StatusNotFound
	case errors.Is(err, apperrors.ErrAlreadyRegistered),
		errors.Is(err, apperrors.ErrCapacityExceeded),
		errors.Is(err, apperrors.ErrInvalidTransition),
		errors.Is(err, apperrors.ErrPaymentAlreadyExists):
		status = http.StatusConflict
	case errors.Is(err, apperrors.ErrInvalidPaymentMethod),
		errors.Is(err, apperrors.ErrAmountMismatch),
		errors.Is(err, apperrors.ErrPaymentDeadlinePassed),
		errors.Is(err, apperrors.ErrTicketNotRedeemable):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, apperrors.ErrUnavailable):
		log.Error("Ledger unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Service temporarily unavailable, please retry"})
		return
	default:
		log.Error("Unexpected error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	log.Warn("Request rejected", zap.Int("status", status))
	c.JSON(status, gin.H{"error": err.Error()})
}
