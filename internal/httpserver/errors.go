package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"tienda-orders/internal/domain"
	"tienda-orders/internal/idempotency"
)

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

var errorCodes = []struct {
	err    error
	status int
	code   string
}{
	{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
	{domain.ErrUserInvalid, http.StatusBadRequest, "user_invalid"},
	{domain.ErrProductInvalid, http.StatusBadRequest, "product_invalid"},
	{domain.ErrInsufficientStock, http.StatusBadRequest, "insufficient_stock"},
	{domain.ErrOrderNotFound, http.StatusNotFound, "order_not_found"},
	{domain.ErrNotFound, http.StatusNotFound, "not_found"},
	{domain.ErrInvalidStateTransition, http.StatusConflict, "invalid_state_transition"},
	{domain.ErrAlreadyExists, http.StatusConflict, "already_exists"},
	{idempotency.ErrInFlight, http.StatusConflict, "request_in_flight"},
	{domain.ErrPaymentInitiationFailed, http.StatusServiceUnavailable, "payment_initiation_failed"},
	{domain.ErrDependencyUnavailable, http.StatusServiceUnavailable, "dependency_unavailable"},
}

func writeError(c *gin.Context, err error) {
	for _, e := range errorCodes {
		if errors.Is(err, e.err) {
			c.JSON(e.status, errorResponse{Error: e.code, Reason: err.Error()})
			return
		}
	}
	_ = c.Error(err)
	c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal", Reason: "internal error"})
}

func badRequest(c *gin.Context, reason string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid_input", Reason: reason})
}
