package handler_test

import (
	"net/http"
	"testing"
	"time"

	"campus-ticketing/internal/handler"
	"campus-ticketing/internal/model"
	"campus-ticketing/internal/service/mocks"
	apperrors "campus-ticketing/pkg/app_errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func setupPaymentTestRouter(lifecycle *mocks.LifecycleServiceMock, payments *mocks.PaymentServiceMock, identity model.Identity) *gin.Engine {
	router, api := newTestAPI(identity)
	handler.NewPaymentHandler(lifecycle, payments).RegisterRoutes(api, nil)
	return router
}

func newPayment(userID string, status model.PaymentStatus) *model.Payment {
	return &model.Payment{
		ID:            uuid.New(),
		UserID:        userID,
		TransactionID: "TXN-0011223344556677",
		Amount:        50000,
		Currency:      "INR",
		Method:        model.PaymentMethodUPI,
		Status:        status,
		RelatedTo:     model.RelatedTypeRegistration,
		RelatedID:     uuid.NewString(),
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
}

func TestPaymentHandler_Create(t *testing.T) {
	relatedID := uuid.NewString()
	body := `{"amount":"500.00","payment_method":"upi","related_to":"registration","related_id":"` + relatedID + `"}`

	t.Run("Success - decimal amount becomes minor units", func(t *testing.T) {
		lifecycle := mocks.NewLifecycleServiceMock()
		router := setupPaymentTestRouter(lifecycle, mocks.NewPaymentServiceMock(), student)
		expected := model.CreatePaymentInput{
			UserID:    student.UserID,
			Amount:    50000,
			Method:    model.PaymentMethodUPI,
			RelatedTo: model.RelatedTypeRegistration,
			RelatedID: relatedID,
		}
		lifecycle.On("CreatePayment", mock.Anything, student, expected).
			Return(newPayment(student.UserID, model.PaymentStatusPending), nil).Once()

		w := serve(router, createRawJSONHTTPRequest(http.MethodPost, "/api/v1/payments", body))

		assert.Equal(t, http.StatusCreated, w.Code)
		lifecycle.AssertExpectations(t)
	})

	t.Run("Success - numeric amount", func(t *testing.T) {
		lifecycle := mocks.NewLifecycleServiceMock()
		router := setupPaymentTestRouter(lifecycle, mocks.NewPaymentServiceMock(), student)
		lifecycle.On("CreatePayment", mock.Anything, student, mock.MatchedBy(func(in model.CreatePaymentInput) bool {
			return in.Amount == 12345
		})).Return(newPayment(student.UserID, model.PaymentStatusPending), nil).Once()

		w := serve(router, createRawJSONHTTPRequest(http.MethodPost, "/api/v1/payments",
			`{"amount":123.45,"payment_method":"upi","related_to":"registration","related_id":"`+relatedID+`"}`))

		assert.Equal(t, http.StatusCreated, w.Code)
		lifecycle.AssertExpectations(t)
	})

	t.Run("Failed - three decimal places", func(t *testing.T) {
		lifecycle := mocks.NewLifecycleServiceMock()
		router := setupPaymentTestRouter(lifecycle, mocks.NewPaymentServiceMock(), student)

		w := serve(router, createRawJSONHTTPRequest(http.MethodPost, "/api/v1/payments",
			`{"amount":"500.005","payment_method":"upi","related_to":"registration","related_id":"`+relatedID+`"}`))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		lifecycle.AssertNotCalled(t, "CreatePayment", mock.Anything, mock.Anything, mock.Anything)
	})

	ruleCases := []struct {
		name   string
		err    error
		status int
	}{
		{"amount mismatch", apperrors.ErrAmountMismatch, http.StatusUnprocessableEntity},
		{"deadline passed", apperrors.ErrPaymentDeadlinePassed, http.StatusUnprocessableEntity},
		{"method not accepted", apperrors.ErrInvalidPaymentMethod, http.StatusUnprocessableEntity},
		{"live payment exists", apperrors.ErrPaymentAlreadyExists, http.StatusConflict},
		{"not the owner", apperrors.ErrForbidden, http.StatusForbidden},
	}
	for _, tc := range ruleCases {
		t.Run("Failed - "+tc.name, func(t *testing.T) {
			lifecycle := mocks.NewLifecycleServiceMock()
			router := setupPaymentTestRouter(lifecycle, mocks.NewPaymentServiceMock(), student)
			lifecycle.On("CreatePayment", mock.Anything, student, mock.Anything).Return(nil, tc.err).Once()

			w := serve(router, createRawJSONHTTPRequest(http.MethodPost, "/api/v1/payments", body))

			assert.Equal(t, tc.status, w.Code)
		})
	}
}

func TestPaymentHandler_Complete(t *testing.T) {
	payment := newPayment(student.UserID, model.PaymentStatusPending)
	url := "/api/v1/payments/" + payment.ID.String() + "/complete"
	req := map[string]interface{}{"gateway_transaction_id": "gw-1", "gateway_response": map[string]string{"code": "00"}}

	t.Run("Failed - student", func(t *testing.T) {
		lifecycle := mocks.NewLifecycleServiceMock()
		router := setupPaymentTestRouter(lifecycle, mocks.NewPaymentServiceMock(), student)

		w := serve(router, createJSONHTTPRequest(http.MethodPost, url, req))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Success - staff", func(t *testing.T) {
		lifecycle := mocks.NewLifecycleServiceMock()
		router := setupPaymentTestRouter(lifecycle, mocks.NewPaymentServiceMock(), staff)
		completed := *payment
		completed.Status = model.PaymentStatusCompleted
		lifecycle.On("CompletePayment", mock.Anything, payment.ID, "gw-1", mock.Anything).
			Return(&model.PaymentResult{Payment: &completed, Ticket: &model.Ticket{ID: uuid.New()}}, nil).Once()

		w := serve(router, createJSONHTTPRequest(http.MethodPost, url, req))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"ticket"`)
		lifecycle.AssertExpectations(t)
	})

	t.Run("Failed - second completion", func(t *testing.T) {
		lifecycle := mocks.NewLifecycleServiceMock()
		router := setupPaymentTestRouter(lifecycle, mocks.NewPaymentServiceMock(), staff)
		lifecycle.On("CompletePayment", mock.Anything, payment.ID, "gw-1", mock.Anything).
			Return(nil, apperrors.ErrInvalidTransition).Once()

		w := serve(router, createJSONHTTPRequest(http.MethodPost, url, req))

		assert.Equal(t, http.StatusConflict, w.Code)
	})

	t.Run("Failed - missing gateway id", func(t *testing.T) {
		lifecycle := mocks.NewLifecycleServiceMock()
		router := setupPaymentTestRouter(lifecycle, mocks.NewPaymentServiceMock(), staff)

		w := serve(router, createJSONHTTPRequest(http.MethodPost, url, map[string]string{}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestPaymentHandler_FailAndRefund(t *testing.T) {
	payment := newPayment(student.UserID, model.PaymentStatusCompleted)

	t.Run("Failed - fail without reason", func(t *testing.T) {
		router := setupPaymentTestRouter(mocks.NewLifecycleServiceMock(), mocks.NewPaymentServiceMock(), staff)

		w := serve(router, createJSONHTTPRequest(http.MethodPost, "/api/v1/payments/"+payment.ID.String()+"/fail", map[string]string{}))

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("Failed - staff cannot refund", func(t *testing.T) {
		router := setupPaymentTestRouter(mocks.NewLifecycleServiceMock(), mocks.NewPaymentServiceMock(), staff)

		w := serve(router, createJSONHTTPRequest(http.MethodPost, "/api/v1/payments/"+payment.ID.String()+"/refund", nil))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Success - admin refunds", func(t *testing.T) {
		lifecycle := mocks.NewLifecycleServiceMock()
		router := setupPaymentTestRouter(lifecycle, mocks.NewPaymentServiceMock(), admin)
		refunded := *payment
		refunded.Status = model.PaymentStatusRefunded
		lifecycle.On("RefundPayment", mock.Anything, payment.ID).Return(&refunded, nil).Once()

		w := serve(router, createJSONHTTPRequest(http.MethodPost, "/api/v1/payments/"+payment.ID.String()+"/refund", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		lifecycle.AssertExpectations(t)
	})
}

func TestPaymentHandler_GetAndList(t *testing.T) {
	payment := newPayment(other.UserID, model.PaymentStatusPending)

	t.Run("Failed - another student's payment", func(t *testing.T) {
		payments := mocks.NewPaymentServiceMock()
		router := setupPaymentTestRouter(mocks.NewLifecycleServiceMock(), payments, student)
		payments.On("Get", mock.Anything, payment.ID).Return(payment, nil).Once()

		w := serve(router, createJSONHTTPRequest(http.MethodGet, "/api/v1/payments/"+payment.ID.String(), nil))

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("Failed - not found", func(t *testing.T) {
		payments := mocks.NewPaymentServiceMock()
		router := setupPaymentTestRouter(mocks.NewLifecycleServiceMock(), payments, student)
		payments.On("Get", mock.Anything, payment.ID).Return(nil, apperrors.ErrPaymentNotFound).Once()

		w := serve(router, createJSONHTTPRequest(http.MethodGet, "/api/v1/payments/"+payment.ID.String(), nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("student list is scoped", func(t *testing.T) {
		payments := mocks.NewPaymentServiceMock()
		router := setupPaymentTestRouter(mocks.NewLifecycleServiceMock(), payments, student)
		payments.On("List", mock.Anything, mock.MatchedBy(func(f model.PaymentFilter) bool {
			return f.UserID == student.UserID && f.Status == model.PaymentStatusPending
		})).Return(model.NewPage[*model.Payment](nil, 0, model.PageParams{}), nil).Once()

		w := serve(router, createJSONHTTPRequest(http.MethodGet, "/api/v1/payments?status=pending&user_id="+other.UserID, nil))

		assert.Equal(t, http.StatusOK, w.Code)
		payments.AssertExpectations(t)
	})
}
