package order

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"time"

	"github.com/google/uuid"

	"tienda-orders/internal/directory"
	"tienda-orders/internal/domain"
	"tienda-orders/internal/messaging"
	"tienda-orders/internal/metrics"
	"tienda-orders/internal/repository/journal"
	orderrepo "tienda-orders/internal/repository/order"
)

type orderStore interface {
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Order, error)
	ListByStatus(ctx context.Context, status domain.Status) ([]domain.Order, error)
	UpdatePayment(ctx context.Context, id int64, in orderrepo.PaymentUpdate) (bool, error)
	SetStatus(ctx context.Context, id int64, status domain.Status) error
	CompareAndSetStatus(ctx context.Context, id int64, from, to domain.Status) (bool, error)
}

type userDirectory interface {
	Get(ctx context.Context, id int64) directory.Result[domain.UserSnapshot]
}

type stockAdjuster interface {
	AdjustStock(ctx context.Context, id int64, delta int) (directory.Result[domain.ProductSnapshot], error)
}

type stepJournal interface {
	Append(ctx context.Context, e journal.Entry) error
	ListByOrder(ctx context.Context, orderID int64) ([]journal.Entry, error)
}

// Deps lists the collaborators of a Service. Journal, Publisher and Metrics
// are optional.
type Deps struct {
	Orders    orderStore
	Users     userDirectory
	Products  stockAdjuster
	Journal   stepJournal
	Publisher messaging.Publisher
	Metrics   *metrics.Metrics
	Shipping  domain.ShippingPolicy
	Logger    *log.Logger
	Now       func() time.Time
}

// Service serves order reads and the lifecycle transitions after checkout.
type Service struct {
	orders    orderStore
	users     userDirectory
	products  stockAdjuster
	journal   stepJournal
	publisher messaging.Publisher
	metrics   *metrics.Metrics
	shipping  domain.ShippingPolicy
	logger    *log.Logger
	now       func() time.Time
}

func New(d Deps) *Service {
	logger := d.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	publisher := d.Publisher
	if publisher == nil {
		publisher = messaging.Nop{}
	}
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		orders:    d.Orders,
		users:     d.Users,
		products:  d.Products,
		journal:   d.Journal,
		publisher: publisher,
		metrics:   d.Metrics,
		shipping:  d.Shipping,
		logger:    logger,
		now:       now,
	}
}

func (s *Service) Get(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.enrich(ctx, o)
	return o, nil
}

// ListByUser returns the user's orders, newest first.
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]domain.Order, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: userId must be positive", domain.ErrInvalidInput)
	}
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.enrichAll(ctx, orders)
	return orders, nil
}

func (s *Service) ListByStatus(ctx context.Context, status domain.Status) ([]domain.Order, error) {
	status, err := domain.ParseStatus(string(status))
	if err != nil {
		return nil, err
	}
	orders, err := s.orders.ListByStatus(ctx, status)
	if err != nil {
		return nil, err
	}
	s.enrichAll(ctx, orders)
	return orders, nil
}

// Cancel moves a PENDIENTE order to CANCELADO and gives its stock back.
// The status swap happens first and is conditional, so of two concurrent
// cancels only one releases stock.
func (s *Service) Cancel(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.CanTransition(o.Status, domain.StatusCancelled) {
		return nil, fmt.Errorf("%w: order %d is %s", domain.ErrInvalidStateTransition, id, o.Status)
	}

	swapped, err := s.orders.CompareAndSetStatus(ctx, id, o.Status, domain.StatusCancelled)
	if err != nil {
		return nil, fmt.Errorf("%w: cancel order %d: %v", domain.ErrDependencyUnavailable, id, err)
	}
	if !swapped {
		return nil, fmt.Errorf("%w: order %d changed status concurrently", domain.ErrInvalidStateTransition, id)
	}

	// The swap is committed; finish releasing even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	requestID := uuid.NewString()
	for _, l := range o.Lines {
		detail := fmt.Sprintf("product=%d qty=%d", l.ProductID, l.Quantity)
		res, err := s.products.AdjustStock(ctx, l.ProductID, l.Quantity)
		switch {
		case err != nil:
			s.logger.Printf("orders: cancel order_id=%d release %s failed: %v", id, detail, err)
			s.record(ctx, requestID, id, journal.StepReleaseStock, journal.StatusFailed, detail)
		case !res.OK():
			s.logger.Printf("orders: cancel order_id=%d release %s skipped (%s)", id, detail, res.Outcome)
			s.record(ctx, requestID, id, journal.StepReleaseStock, journal.StatusSkipped, detail)
		default:
			s.record(ctx, requestID, id, journal.StepReleaseStock, journal.StatusDone, detail)
		}
	}
	s.record(ctx, requestID, id, journal.StepCancel, journal.StatusDone, string(o.Status)+" -> "+string(domain.StatusCancelled))

	prev := o.Status
	o.Status = domain.StatusCancelled
	s.statusChanged(ctx, o, prev)
	s.enrich(ctx, o)
	return o, nil
}

// SetStatus is the administrative override used for fulfillment. It only
// requires a known status and never touches stock.
func (s *Service) SetStatus(ctx context.Context, id int64, status domain.Status) (*domain.Order, error) {
	status, err := domain.ParseStatus(string(status))
	if err != nil {
		return nil, err
	}
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.orders.SetStatus(ctx, id, status); err != nil {
		return nil, err
	}
	prev := o.Status
	o.Status = status
	if prev != status {
		s.statusChanged(ctx, o, prev)
	}
	s.enrich(ctx, o)
	return o, nil
}

// MarkPaid is the payment-completion callback. A second call on a paid order
// succeeds without changes.
func (s *Service) MarkPaid(ctx context.Context, id int64) (*domain.Order, error) {
	o, err := s.orders.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status == domain.StatusPaid {
		s.enrich(ctx, o)
		return o, nil
	}
	if !domain.CanTransition(o.Status, domain.StatusPaid) {
		return nil, fmt.Errorf("%w: order %d is %s", domain.ErrInvalidStateTransition, id, o.Status)
	}
	swapped, err := s.orders.CompareAndSetStatus(ctx, id, o.Status, domain.StatusPaid)
	if err != nil {
		return nil, fmt.Errorf("%w: mark order %d paid: %v", domain.ErrDependencyUnavailable, id, err)
	}
	if !swapped {
		return nil, fmt.Errorf("%w: order %d changed status concurrently", domain.ErrInvalidStateTransition, id)
	}

	processed := s.now().UTC()
	update := orderrepo.PaymentUpdate{
		From:        domain.StatusPaid,
		Status:      domain.StatusPaid,
		PaymentRef:  o.PaymentRef,
		AuthCode:    o.AuthCode,
		ProcessedAt: &processed,
	}
	switch applied, err := s.orders.UpdatePayment(ctx, id, update); {
	case err != nil:
		s.logger.Printf("orders: stamp processed_at order_id=%d: %v", id, err)
	case !applied:
		s.logger.Printf("orders: order_id=%d left PAGADO before processed_at was stamped", id)
	default:
		o.ProcessedAt = &processed
	}

	prev := o.Status
	o.Status = domain.StatusPaid
	s.record(ctx, uuid.NewString(), id, journal.StepPayment, journal.StatusDone, "marked paid")
	s.statusChanged(ctx, o, prev)
	s.enrich(ctx, o)
	return o, nil
}

// Journal returns the step trail recorded for an order.
func (s *Service) Journal(ctx context.Context, id int64) ([]journal.Entry, error) {
	if _, err := s.orders.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if s.journal == nil {
		return []journal.Entry{}, nil
	}
	return s.journal.ListByOrder(ctx, id)
}

func (s *Service) enrich(ctx context.Context, o *domain.Order) {
	o.WithShipping(s.shipping)
	if s.users == nil {
		return
	}
	if u := s.users.Get(ctx, o.UserID); u.OK() {
		o.Enrich(u.Value)
	}
}

// enrichAll looks each distinct user up once.
func (s *Service) enrichAll(ctx context.Context, orders []domain.Order) {
	cache := make(map[int64]directory.Result[domain.UserSnapshot])
	for i := range orders {
		orders[i].WithShipping(s.shipping)
		if s.users == nil {
			continue
		}
		uid := orders[i].UserID
		res, ok := cache[uid]
		if !ok {
			res = s.users.Get(ctx, uid)
			cache[uid] = res
		}
		if res.OK() {
			orders[i].Enrich(res.Value)
		}
	}
}

func (s *Service) statusChanged(ctx context.Context, o *domain.Order, from domain.Status) {
	s.metrics.ObserveStatusChange(o.Status.String())
	evt := messaging.OrderStatusChanged{
		OrderID:   o.ID,
		From:      from.String(),
		To:        o.Status.String(),
		ChangedAt: s.now().UTC(),
	}
	if err := s.publisher.PublishEvent(ctx, messaging.TopicOrderStatusChanged, strconv.FormatInt(o.ID, 10), evt); err != nil {
		s.logger.Printf("orders: publish %s order_id=%d: %v", messaging.TopicOrderStatusChanged, o.ID, err)
	}
}

func (s *Service) record(ctx context.Context, requestID string, orderID int64, step journal.Step, status journal.Status, detail string) {
	if s.journal == nil {
		return
	}
	err := s.journal.Append(ctx, journal.Entry{
		OrderID:   &orderID,
		RequestID: requestID,
		Step:      step,
		Status:    status,
		Detail:    detail,
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Printf("orders: journal %s/%s: %v", step, status, err)
	}
}
