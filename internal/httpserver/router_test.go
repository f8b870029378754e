package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"tienda-orders/internal/domain"
	"tienda-orders/internal/idempotency"
	"tienda-orders/internal/metrics"
	"tienda-orders/internal/repository/journal"
	"tienda-orders/internal/service/checkout"
)

type stubCheckout struct {
	order  *domain.Order
	err    error
	lastIn checkout.CreateInput
	calls  int
}

func (s *stubCheckout) CreateOrder(_ context.Context, in checkout.CreateInput) (*domain.Order, error) {
	s.calls++
	s.lastIn = in
	return s.order, s.err
}

type stubOrders struct {
	order      *domain.Order
	list       []domain.Order
	err        error
	lastStatus domain.Status
	lastUser   int64
}

func (s *stubOrders) Get(_ context.Context, _ int64) (*domain.Order, error) {
	return s.order, s.err
}

func (s *stubOrders) ListByUser(_ context.Context, userID int64) ([]domain.Order, error) {
	s.lastUser = userID
	return s.list, s.err
}

func (s *stubOrders) ListByStatus(_ context.Context, status domain.Status) ([]domain.Order, error) {
	s.lastStatus = status
	return s.list, s.err
}

func (s *stubOrders) Cancel(_ context.Context, _ int64) (*domain.Order, error) {
	return s.order, s.err
}

func (s *stubOrders) SetStatus(_ context.Context, _ int64, status domain.Status) (*domain.Order, error) {
	s.lastStatus = status
	return s.order, s.err
}

func (s *stubOrders) MarkPaid(_ context.Context, _ int64) (*domain.Order, error) {
	return s.order, s.err
}

func (s *stubOrders) Journal(_ context.Context, id int64) ([]journal.Entry, error) {
	return []journal.Entry{{ID: 1, OrderID: &id, RequestID: "r", Step: journal.StepPersist, Status: journal.StatusDone}}, s.err
}

func sampleOrder(status domain.Status) *domain.Order {
	o := domain.NewOrder(1, "Av. Siempre Viva 742", "tarjeta", "", domain.ShippingPolicy{FreeThreshold: 50000, Fee: 3990})
	_ = o.AddLine(domain.ProductSnapshot{ID: 10, Name: "Polera", UnitPrice: 9990, Stock: 10, Active: true}, 2)
	o.ID = 42
	o.Status = status
	return o
}

func newTestRouter(co *stubCheckout, orders *stubOrders) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return buildRouter(nil, nil, Deps{Checkout: co, Orders: orders, Metrics: metrics.New("orders_test")})
}

func do(router http.Handler, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestCreateOrder_Created(t *testing.T) {
	co := &stubCheckout{order: sampleOrder(domain.StatusPaid)}
	router := newTestRouter(co, &stubOrders{})

	body := `{"userId":1,"lines":[{"productId":10,"quantity":2}],"shippingAddress":"Av. Siempre Viva 742","paymentMethod":"tarjeta"}`
	rec := do(router, http.MethodPost, "/orders", body, map[string]string{idempotency.Header: "abc"})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if co.lastIn.IdempotencyKey != "abc" || len(co.lastIn.Lines) != 1 || co.lastIn.Lines[0].Quantity != 2 {
		t.Fatalf("unexpected input %+v", co.lastIn)
	}
	var resp orderResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Status != domain.StatusPaid || resp.Total != 23970 || resp.Lines[0].LineTotal != 19980 {
		t.Fatalf("unexpected response %+v", resp)
	}
}

func TestCreateOrder_RejectedOrderIsStillCreated(t *testing.T) {
	co := &stubCheckout{order: sampleOrder(domain.StatusRejected)}
	router := newTestRouter(co, &stubOrders{})

	rec := do(router, http.MethodPost, "/orders", `{"userId":1,"lines":[{"productId":10,"quantity":2}],"shippingAddress":"x","paymentMethod":"tarjeta"}`, nil)
	if rec.Code != http.StatusCreated || !strings.Contains(rec.Body.String(), `"RECHAZADO"`) {
		t.Fatalf("expected 201 with RECHAZADO, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateOrder_ErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("%w: user 9 is unknown", domain.ErrUserInvalid), http.StatusBadRequest, "user_invalid"},
		{fmt.Errorf("%w: line 1", domain.ErrProductInvalid), http.StatusBadRequest, "product_invalid"},
		{fmt.Errorf("%w: line 2", domain.ErrInsufficientStock), http.StatusBadRequest, "insufficient_stock"},
		{domain.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
		{idempotency.ErrInFlight, http.StatusConflict, "request_in_flight"},
		{fmt.Errorf("%w: db", domain.ErrDependencyUnavailable), http.StatusServiceUnavailable, "dependency_unavailable"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal"},
	}
	for _, tc := range cases {
		router := newTestRouter(&stubCheckout{err: tc.err}, &stubOrders{})
		rec := do(router, http.MethodPost, "/orders", `{"userId":1}`, nil)
		if rec.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rec.Code)
		}
		var resp errorResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil || resp.Error != tc.code {
			t.Fatalf("%v: unexpected body %s", tc.err, rec.Body.String())
		}
	}
}

func TestCreateOrder_MalformedBody(t *testing.T) {
	co := &stubCheckout{}
	router := newTestRouter(co, &stubOrders{})
	rec := do(router, http.MethodPost, "/orders", `{"userId":`, nil)
	if rec.Code != http.StatusBadRequest || co.calls != 0 {
		t.Fatalf("expected 400 without calling checkout, got %d", rec.Code)
	}
}

func TestOrderRoutes(t *testing.T) {
	orders := &stubOrders{order: sampleOrder(domain.StatusCancelled), list: []domain.Order{*sampleOrder(domain.StatusPaid)}}
	router := newTestRouter(&stubCheckout{}, orders)

	if rec := do(router, http.MethodGet, "/orders/42", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("get: %d", rec.Code)
	}
	if rec := do(router, http.MethodGet, "/orders/abc", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("bad id: %d", rec.Code)
	}
	if rec := do(router, http.MethodPost, "/orders/42/cancel", "", nil); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "CANCELADO") {
		t.Fatalf("cancel: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(router, http.MethodPost, "/orders/42/paid", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("paid: %d", rec.Code)
	}
	if rec := do(router, http.MethodPut, "/orders/42/status", `{"status":"ENVIADO"}`, nil); rec.Code != http.StatusOK || orders.lastStatus != domain.StatusShipped {
		t.Fatalf("set status: %d %s", rec.Code, orders.lastStatus)
	}
	if rec := do(router, http.MethodPut, "/orders/42/status", `{}`, nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing status: %d", rec.Code)
	}
	if rec := do(router, http.MethodGet, "/orders/42/steps", "", nil); rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"persist"`) {
		t.Fatalf("steps: %d %s", rec.Code, rec.Body.String())
	}

	rec := do(router, http.MethodGet, "/orders?userId=7", "", nil)
	if rec.Code != http.StatusOK || orders.lastUser != 7 || !strings.Contains(rec.Body.String(), `"count":1`) {
		t.Fatalf("list by user: %d %s", rec.Code, rec.Body.String())
	}
	if rec := do(router, http.MethodGet, "/orders?status=PAGADO", "", nil); rec.Code != http.StatusOK || orders.lastStatus != domain.StatusPaid {
		t.Fatalf("list by status: %d", rec.Code)
	}
	if rec := do(router, http.MethodGet, "/orders", "", nil); rec.Code != http.StatusBadRequest {
		t.Fatalf("list without filter: %d", rec.Code)
	}
}

func TestOrderRoutes_ErrorMapping(t *testing.T) {
	router := newTestRouter(&stubCheckout{}, &stubOrders{err: fmt.Errorf("%w: PAGADO", domain.ErrInvalidStateTransition)})
	if rec := do(router, http.MethodPost, "/orders/42/cancel", "", nil); rec.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rec.Code)
	}

	router = newTestRouter(&stubCheckout{}, &stubOrders{err: domain.ErrOrderNotFound})
	if rec := do(router, http.MethodGet, "/orders/42", "", nil); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	router := newTestRouter(&stubCheckout{}, &stubOrders{})
	if rec := do(router, http.MethodGet, "/healthz", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
	if rec := do(router, http.MethodGet, "/readyz", "", nil); rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz without db: %d", rec.Code)
	}
	rec := do(router, http.MethodGet, "/metrics", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "tienda_orders_test_http_requests_total") {
		t.Fatalf("metrics: %d %s", rec.Code, rec.Body.String())
	}
}

func TestCORSPreflight(t *testing.T) {
	router := newTestRouter(&stubCheckout{}, &stubOrders{})
	rec := do(router, http.MethodOptions, "/orders", "", map[string]string{
		"Origin":                         "http://shop.example",
		"Access-Control-Request-Method":  http.MethodPost,
		"Access-Control-Request-Headers": idempotency.Header,
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Fatalf("unexpected allow origin %q", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}
