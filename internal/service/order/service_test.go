package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"tienda-orders/internal/directory"
	"tienda-orders/internal/domain"
	"tienda-orders/internal/messaging"
	"tienda-orders/internal/repository/journal"
	orderrepo "tienda-orders/internal/repository/order"
)

type stubOrders struct {
	orders      map[int64]*domain.Order
	casCalls    int
	setCalls    int
	updateCalls int
	// beforeUpdate runs ahead of the conditional payment write.
	beforeUpdate func()
}

func (s *stubOrders) GetByID(_ context.Context, id int64) (*domain.Order, error) {
	o, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	cp := *o
	cp.Lines = append([]domain.Line(nil), o.Lines...)
	return &cp, nil
}

func (s *stubOrders) ListByUser(_ context.Context, userID int64) ([]domain.Order, error) {
	var out []domain.Order
	for id := int64(len(s.orders)); id > 0; id-- {
		if o, ok := s.orders[id]; ok && o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *stubOrders) ListByStatus(_ context.Context, status domain.Status) ([]domain.Order, error) {
	var out []domain.Order
	for id := int64(len(s.orders)); id > 0; id-- {
		if o, ok := s.orders[id]; ok && o.Status == status {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (s *stubOrders) UpdatePayment(_ context.Context, id int64, in orderrepo.PaymentUpdate) (bool, error) {
	s.updateCalls++
	if s.beforeUpdate != nil {
		s.beforeUpdate()
	}
	o, ok := s.orders[id]
	if !ok || o.Status != in.From {
		return false, nil
	}
	o.Status = in.Status
	o.ProcessedAt = in.ProcessedAt
	return true, nil
}

func (s *stubOrders) SetStatus(_ context.Context, id int64, status domain.Status) error {
	s.setCalls++
	o, ok := s.orders[id]
	if !ok {
		return domain.ErrOrderNotFound
	}
	o.Status = status
	return nil
}

func (s *stubOrders) CompareAndSetStatus(_ context.Context, id int64, from, to domain.Status) (bool, error) {
	s.casCalls++
	o, ok := s.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

type stubUsers struct {
	down  bool
	calls int
}

func (s *stubUsers) Get(_ context.Context, id int64) directory.Result[domain.UserSnapshot] {
	s.calls++
	if s.down {
		return directory.Result[domain.UserSnapshot]{Value: domain.UserSnapshot{ID: id}, Outcome: directory.OutcomeUnavailable}
	}
	return directory.Result[domain.UserSnapshot]{Value: domain.UserSnapshot{ID: id, Name: "Ana", Email: "ana@example.com", Active: true}, Outcome: directory.OutcomeOK}
}

type stubStock struct {
	stock map[int64]int
	calls int
}

func (s *stubStock) AdjustStock(ctx context.Context, id int64, delta int) (directory.Result[domain.ProductSnapshot], error) {
	s.calls++
	if err := ctx.Err(); err != nil {
		return directory.Result[domain.ProductSnapshot]{}, err
	}
	s.stock[id] += delta
	return directory.Result[domain.ProductSnapshot]{Value: domain.ProductSnapshot{ID: id, Stock: s.stock[id], Active: true}, Outcome: directory.OutcomeOK}, nil
}

type stubJournal struct {
	entries []journal.Entry
}

func (j *stubJournal) Append(_ context.Context, e journal.Entry) error {
	j.entries = append(j.entries, e)
	return nil
}

func (j *stubJournal) ListByOrder(_ context.Context, orderID int64) ([]journal.Entry, error) {
	var out []journal.Entry
	for _, e := range j.entries {
		if e.OrderID != nil && *e.OrderID == orderID {
			out = append(out, e)
		}
	}
	return out, nil
}

type stubPublisher struct {
	events []messaging.OrderStatusChanged
}

func (p *stubPublisher) PublishEvent(_ context.Context, _ string, _ string, event any) error {
	if e, ok := event.(messaging.OrderStatusChanged); ok {
		p.events = append(p.events, e)
	}
	return nil
}

type fixture struct {
	orders    *stubOrders
	users     *stubUsers
	stock     *stubStock
	journal   *stubJournal
	publisher *stubPublisher
	svc       *Service
}

func newFixture() *fixture {
	f := &fixture{
		orders: &stubOrders{orders: map[int64]*domain.Order{
			1: {ID: 1, UserID: 7, Status: domain.StatusPending, Lines: []domain.Line{
				{ProductID: 10, Quantity: 2, UnitPrice: 9990},
				{ProductID: 11, Quantity: 1, UnitPrice: 4500},
			}},
			2: {ID: 2, UserID: 7, Status: domain.StatusPaid, Lines: []domain.Line{{ProductID: 10, Quantity: 1, UnitPrice: 9990}}},
			3: {ID: 3, UserID: 8, Status: domain.StatusRejected},
		}},
		users:     &stubUsers{},
		stock:     &stubStock{stock: map[int64]int{10: 8, 11: 4}},
		journal:   &stubJournal{},
		publisher: &stubPublisher{},
	}
	f.svc = New(Deps{
		Orders:    f.orders,
		Users:     f.users,
		Products:  f.stock,
		Journal:   f.journal,
		Publisher: f.publisher,
		Shipping:  domain.ShippingPolicy{FreeThreshold: 50000, Fee: 3990},
		Now:       func() time.Time { return time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC) },
	})
	return f
}

func TestCancelPendingReleasesStock(t *testing.T) {
	f := newFixture()

	o, err := f.svc.Cancel(context.Background(), 1)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if o.Status != domain.StatusCancelled || f.orders.orders[1].Status != domain.StatusCancelled {
		t.Fatalf("expected CANCELADO, got %s", o.Status)
	}
	if f.stock.stock[10] != 10 || f.stock.stock[11] != 5 {
		t.Fatalf("expected stock restored, got %v", f.stock.stock)
	}
	if len(f.publisher.events) != 1 || f.publisher.events[0].From != "PENDIENTE" || f.publisher.events[0].To != "CANCELADO" {
		t.Fatalf("unexpected events %+v", f.publisher.events)
	}
	entries, err := f.svc.Journal(context.Background(), 1)
	if err != nil || len(entries) != 3 {
		t.Fatalf("expected two releases and a cancel step, got %+v %v", entries, err)
	}
}

func TestCancelReleasesStockAfterCallerGoesAway(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := f.svc.Cancel(ctx, 1); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if f.stock.stock[10] != 10 || f.stock.stock[11] != 5 {
		t.Fatalf("expected every line released, got %v", f.stock.stock)
	}
}

func TestCancelNonPendingIsRejectedWithoutSideEffects(t *testing.T) {
	f := newFixture()

	for _, id := range []int64{2, 3} {
		before := f.orders.orders[id].Status
		if _, err := f.svc.Cancel(context.Background(), id); !errors.Is(err, domain.ErrInvalidStateTransition) {
			t.Fatalf("order %d: expected invalid transition, got %v", id, err)
		}
		if f.orders.orders[id].Status != before {
			t.Fatalf("order %d: status changed", id)
		}
	}
	if f.stock.calls != 0 || f.orders.casCalls != 0 {
		t.Fatalf("expected no stock or status writes, got stock=%d cas=%d", f.stock.calls, f.orders.casCalls)
	}
}

func TestCancelTwiceReleasesOnce(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Cancel(context.Background(), 1); err != nil {
		t.Fatalf("first cancel: %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), 1); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("second cancel: expected invalid transition, got %v", err)
	}
	if f.stock.calls != 2 {
		t.Fatalf("expected one release per line, got %d", f.stock.calls)
	}
}

func TestCancelMissingOrder(t *testing.T) {
	f := newFixture()
	if _, err := f.svc.Cancel(context.Background(), 99); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetStatusIsUnconditional(t *testing.T) {
	f := newFixture()

	o, err := f.svc.SetStatus(context.Background(), 3, "enviado")
	if err != nil {
		t.Fatalf("SetStatus: %v", err)
	}
	if o.Status != domain.StatusShipped || f.orders.orders[3].Status != domain.StatusShipped {
		t.Fatalf("expected ENVIADO, got %s", o.Status)
	}
	if f.stock.calls != 0 {
		t.Fatalf("SetStatus must not touch stock")
	}
	if _, err := f.svc.SetStatus(context.Background(), 3, "PERDIDO"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := f.svc.SetStatus(context.Background(), 99, domain.StatusShipped); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestMarkPaid(t *testing.T) {
	f := newFixture()

	o, err := f.svc.MarkPaid(context.Background(), 1)
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if o.Status != domain.StatusPaid || o.ProcessedAt == nil {
		t.Fatalf("expected paid with processedAt, got %+v", o)
	}

	again, err := f.svc.MarkPaid(context.Background(), 1)
	if err != nil || again.Status != domain.StatusPaid {
		t.Fatalf("second MarkPaid should be a no-op: %+v %v", again, err)
	}
	if f.orders.casCalls != 1 {
		t.Fatalf("expected a single status write, got %d", f.orders.casCalls)
	}

	if _, err := f.svc.MarkPaid(context.Background(), 3); !errors.Is(err, domain.ErrInvalidStateTransition) {
		t.Fatalf("expected invalid transition from RECHAZADO, got %v", err)
	}
}

func TestMarkPaidDoesNotRevertNewerStatus(t *testing.T) {
	f := newFixture()
	f.orders.beforeUpdate = func() { f.orders.orders[1].Status = domain.StatusShipped }

	o, err := f.svc.MarkPaid(context.Background(), 1)
	if err != nil {
		t.Fatalf("MarkPaid: %v", err)
	}
	if got := f.orders.orders[1].Status; got != domain.StatusShipped {
		t.Fatalf("processed_at stamp reverted the order to %s", got)
	}
	if o.ProcessedAt != nil {
		t.Fatalf("processedAt must stay unset when the stamp did not apply")
	}
}

func TestQueriesEnrichBestEffort(t *testing.T) {
	f := newFixture()

	o, err := f.svc.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if o.UserName == nil || *o.UserName != "Ana" {
		t.Fatalf("expected enrichment, got %+v", o)
	}

	list, err := f.svc.ListByUser(context.Background(), 7)
	if err != nil || len(list) != 2 || list[0].ID != 2 {
		t.Fatalf("ListByUser: %+v %v", list, err)
	}
	if f.users.calls != 2 {
		t.Fatalf("expected one user lookup per distinct user, got %d", f.users.calls)
	}

	f.users.down = true
	o, err = f.svc.Get(context.Background(), 1)
	if err != nil {
		t.Fatalf("enrichment failure must not fail the read: %v", err)
	}
	if o.UserName != nil || o.UserEmail != nil {
		t.Fatalf("expected null display fields, got %+v", o)
	}

	paid, err := f.svc.ListByStatus(context.Background(), domain.StatusPaid)
	if err != nil || len(paid) != 1 || paid[0].ID != 2 {
		t.Fatalf("ListByStatus: %+v %v", paid, err)
	}
	lower, err := f.svc.ListByStatus(context.Background(), "pagado")
	if err != nil || len(lower) != 1 || lower[0].ID != 2 {
		t.Fatalf("ListByStatus lowercase: %+v %v", lower, err)
	}
	if _, err := f.svc.ListByStatus(context.Background(), "NOPE"); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := f.svc.ListByUser(context.Background(), 0); !errors.Is(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
