package httpserver

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"tienda-orders/internal/domain"
	"tienda-orders/internal/idempotency"
	"tienda-orders/internal/service/checkout"
)

type orderHandlers struct {
	checkout checkoutService
	orders   orderService
}

type createOrderRequest struct {
	UserID          int64              `json:"userId"`
	Lines           []orderLineRequest `json:"lines"`
	ShippingAddress string             `json:"shippingAddress"`
	PaymentMethod   string             `json:"paymentMethod"`
	Note            string             `json:"note"`
}

type orderLineRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

type orderResponse struct {
	ID              int64               `json:"id"`
	UserID          int64               `json:"userId"`
	UserName        *string             `json:"userName"`
	UserEmail       *string             `json:"userEmail"`
	Status          domain.Status       `json:"status"`
	CreatedAt       time.Time           `json:"createdAt"`
	ProcessedAt     *time.Time          `json:"processedAt,omitempty"`
	ShippingAddress string              `json:"shippingAddress"`
	PaymentMethod   string              `json:"paymentMethod"`
	Note            string              `json:"note,omitempty"`
	Subtotal        int64               `json:"subtotal"`
	ShippingCost    int64               `json:"shippingCost"`
	Total           int64               `json:"total"`
	PaymentRef      string              `json:"paymentRef,omitempty"`
	AuthCode        string              `json:"authCode,omitempty"`
	Lines           []orderLineResponse `json:"lines"`
}

type orderLineResponse struct {
	ID          int64  `json:"id"`
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	UnitPrice   int64  `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
	LineTotal   int64  `json:"lineTotal"`
}

func toOrderResponse(o domain.Order) orderResponse {
	lines := make([]orderLineResponse, 0, len(o.Lines))
	for _, l := range o.Lines {
		lines = append(lines, orderLineResponse{
			ID:          l.ID,
			ProductID:   l.ProductID,
			ProductName: l.ProductName,
			UnitPrice:   l.UnitPrice,
			Quantity:    l.Quantity,
			LineTotal:   l.LineTotal(),
		})
	}
	return orderResponse{
		ID:              o.ID,
		UserID:          o.UserID,
		UserName:        o.UserName,
		UserEmail:       o.UserEmail,
		Status:          o.Status,
		CreatedAt:       o.CreatedAt,
		ProcessedAt:     o.ProcessedAt,
		ShippingAddress: o.ShippingAddress,
		PaymentMethod:   o.PaymentMethod,
		Note:            o.Note,
		Subtotal:        o.Subtotal,
		ShippingCost:    o.ShippingCost,
		Total:           o.Total,
		PaymentRef:      o.PaymentRef,
		AuthCode:        o.AuthCode,
		Lines:           lines,
	}
}

func toOrderList(orders []domain.Order) []orderResponse {
	out := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderResponse(o))
	}
	return out
}

func (h *orderHandlers) create(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "malformed order body: "+err.Error())
		return
	}
	in := checkout.CreateInput{
		UserID:          req.UserID,
		ShippingAddress: req.ShippingAddress,
		PaymentMethod:   req.PaymentMethod,
		Note:            req.Note,
		IdempotencyKey:  idempotency.Key(c.Request),
	}
	for _, l := range req.Lines {
		in.Lines = append(in.Lines, checkout.LineInput{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	order, err := h.checkout.CreateOrder(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toOrderResponse(*order))
}

func (h *orderHandlers) get(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	order, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(*order))
}

// list serves GET /orders?userId= and GET /orders?status=.
func (h *orderHandlers) list(c *gin.Context) {
	userParam := strings.TrimSpace(c.Query("userId"))
	statusParam := strings.TrimSpace(c.Query("status"))

	var (
		orders []domain.Order
		err    error
	)
	switch {
	case userParam != "":
		userID, convErr := strconv.ParseInt(userParam, 10, 64)
		if convErr != nil {
			badRequest(c, "userId must be an integer")
			return
		}
		orders, err = h.orders.ListByUser(c.Request.Context(), userID)
	case statusParam != "":
		orders, err = h.orders.ListByStatus(c.Request.Context(), domain.Status(statusParam))
	default:
		badRequest(c, "userId or status query parameter required")
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(orders), "results": toOrderList(orders)})
}

func (h *orderHandlers) cancel(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	order, err := h.orders.Cancel(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(*order))
}

func (h *orderHandlers) setStatus(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	var req statusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "status required")
		return
	}
	order, err := h.orders.SetStatus(c.Request.Context(), id, domain.Status(req.Status))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(*order))
}

func (h *orderHandlers) markPaid(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	order, err := h.orders.MarkPaid(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(*order))
}

func (h *orderHandlers) steps(c *gin.Context) {
	id, ok := orderID(c)
	if !ok {
		return
	}
	entries, err := h.orders.Journal(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": len(entries), "results": entries})
}

func orderID(c *gin.Context) (int64, bool) {
	return pathID(c, "id")
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}
