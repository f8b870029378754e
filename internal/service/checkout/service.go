// Package checkout turns a cart-like request into a persisted, paid or
// rejected order.
//
// The flow validates everything before it mutates anything: user, then every
// product line, then stock. Only after validation passes is stock reserved
// (in request order), the order row written as PENDIENTE, and the payment
// gateway asked for a decision that moves the same row to PAGADO or
// RECHAZADO.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"tienda-orders/internal/directory"
	"tienda-orders/internal/domain"
	"tienda-orders/internal/idempotency"
	"tienda-orders/internal/messaging"
	"tienda-orders/internal/metrics"
	"tienda-orders/internal/repository/journal"
	orderrepo "tienda-orders/internal/repository/order"
	"tienda-orders/internal/telemetry"
)

const (
	lookupConcurrency = 4
	publishTimeout    = 5 * time.Second
)

type UserDirectory interface {
	Get(ctx context.Context, id int64) directory.Result[domain.UserSnapshot]
}

type ProductDirectory interface {
	Get(ctx context.Context, id int64) directory.Result[domain.ProductSnapshot]
	AdjustStock(ctx context.Context, id int64, delta int) (directory.Result[domain.ProductSnapshot], error)
}

type PaymentGateway interface {
	Initiate(ctx context.Context, req domain.PaymentRequest) directory.Result[domain.PaymentReceipt]
}

type OrderStore interface {
	Create(ctx context.Context, o *domain.Order) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	UpdatePayment(ctx context.Context, id int64, in orderrepo.PaymentUpdate) (bool, error)
}

type StepJournal interface {
	Append(ctx context.Context, e journal.Entry) error
}

// Deps lists the collaborators of a Service. Journal, Publisher, Idempotency
// and Metrics are optional.
type Deps struct {
	Users       UserDirectory
	Products    ProductDirectory
	Payments    PaymentGateway
	Orders      OrderStore
	Journal     StepJournal
	Publisher   messaging.Publisher
	Idempotency idempotency.Store
	Metrics     *metrics.Metrics
	Shipping    domain.ShippingPolicy
	// Timeout bounds one whole CreateOrder call. Zero disables it.
	Timeout time.Duration
	Logger  *log.Logger
	Now     func() time.Time
}

type Service struct {
	users     UserDirectory
	products  ProductDirectory
	payments  PaymentGateway
	orders    OrderStore
	journal   StepJournal
	publisher messaging.Publisher
	idem      idempotency.Store
	metrics   *metrics.Metrics
	shipping  domain.ShippingPolicy
	timeout   time.Duration
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
		users:     d.Users,
		products:  d.Products,
		payments:  d.Payments,
		orders:    d.Orders,
		journal:   d.Journal,
		publisher: publisher,
		idem:      d.Idempotency,
		metrics:   d.Metrics,
		shipping:  d.Shipping,
		timeout:   d.Timeout,
		logger:    logger,
		now:       now,
	}
}

type LineInput struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

type CreateInput struct {
	UserID          int64       `json:"userId"`
	Lines           []LineInput `json:"lines"`
	ShippingAddress string      `json:"shippingAddress"`
	PaymentMethod   string      `json:"paymentMethod"`
	Note            string      `json:"note,omitempty"`
	// IdempotencyKey comes from the request header, not the body.
	IdempotencyKey string `json:"-"`
}

func (in CreateInput) validate() error {
	if in.UserID <= 0 {
		return fmt.Errorf("%w: userId must be positive", domain.ErrInvalidInput)
	}
	if len(in.Lines) == 0 {
		return fmt.Errorf("%w: at least one line is required", domain.ErrInvalidInput)
	}
	for i, l := range in.Lines {
		if l.ProductID <= 0 {
			return fmt.Errorf("%w: line %d: productId must be positive", domain.ErrInvalidInput, i+1)
		}
		if l.Quantity < 1 {
			return fmt.Errorf("%w: line %d: quantity must be at least 1", domain.ErrInvalidInput, i+1)
		}
	}
	if strings.TrimSpace(in.ShippingAddress) == "" {
		return fmt.Errorf("%w: shippingAddress required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(in.PaymentMethod) == "" {
		return fmt.Errorf("%w: paymentMethod required", domain.ErrInvalidInput)
	}
	return nil
}

// CreateOrder runs the whole checkout. A declined or unreachable payment is
// not an error: the returned order carries status RECHAZADO.
func (s *Service) CreateOrder(ctx context.Context, in CreateInput) (*domain.Order, error) {
	ctx, span := telemetry.Tracer().Start(ctx, "checkout.CreateOrder")
	defer span.End()
	span.SetAttributes(attribute.Int64("user.id", in.UserID), attribute.Int("order.lines", len(in.Lines)))

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" && s.idem != nil {
		existingID, owned, err := s.idem.Reserve(ctx, key)
		switch {
		case errors.Is(err, idempotency.ErrInFlight):
			s.metrics.ObserveCheckout(resultLabel(err))
			return nil, err
		case err != nil:
			s.logger.Printf("checkout: idempotency store unavailable, continuing without key: %v", err)
			key = ""
		case !owned:
			s.logger.Printf("checkout: replaying order_id=%d for idempotency key", existingID)
			return s.replay(ctx, existingID)
		}
	} else {
		key = ""
	}

	order, err := s.run(ctx, uuid.NewString(), in)

	if key != "" {
		detached := context.WithoutCancel(ctx)
		if err != nil {
			if relErr := s.idem.Release(detached, key); relErr != nil {
				s.logger.Printf("checkout: release idempotency key: %v", relErr)
			}
		} else if cErr := s.idem.Complete(detached, key, order.ID); cErr != nil {
			s.logger.Printf("checkout: complete idempotency key order_id=%d: %v", order.ID, cErr)
		}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.metrics.ObserveCheckout(resultLabel(err))
		return nil, err
	}
	span.SetAttributes(attribute.Int64("order.id", order.ID), attribute.String("order.status", order.Status.String()))
	s.metrics.ObserveCheckout(strings.ToLower(order.Status.String()))
	return order, nil
}

func (s *Service) run(ctx context.Context, requestID string, in CreateInput) (*domain.Order, error) {
	if err := in.validate(); err != nil {
		s.record(ctx, requestID, nil, journal.StepValidate, journal.StatusFailed, err.Error())
		return nil, err
	}

	user := s.users.Get(ctx, in.UserID)
	if !user.OK() || !user.Value.Active {
		err := fmt.Errorf("%w: user %d is %s", domain.ErrUserInvalid, in.UserID, outcomeState(user))
		s.logger.Printf("checkout: request=%s rejected: %v", requestID, err)
		s.record(ctx, requestID, nil, journal.StepValidate, journal.StatusFailed, err.Error())
		return nil, err
	}

	snapshots := s.lookupProducts(ctx, in.Lines)
	if err := checkLines(in.Lines, snapshots); err != nil {
		s.logger.Printf("checkout: request=%s rejected: %v", requestID, err)
		s.record(ctx, requestID, nil, journal.StepValidate, journal.StatusFailed, err.Error())
		return nil, err
	}

	order := domain.NewOrder(in.UserID, strings.TrimSpace(in.ShippingAddress), strings.TrimSpace(in.PaymentMethod), in.Note, s.shipping)
	for _, l := range in.Lines {
		if err := order.AddLine(snapshots[l.ProductID].Value, l.Quantity); err != nil {
			return nil, err
		}
	}
	s.record(ctx, requestID, nil, journal.StepValidate, journal.StatusDone, fmt.Sprintf("lines=%d total=%d", len(order.Lines), order.Total))

	reserved, err := s.reserve(ctx, requestID, in.Lines)
	if err != nil {
		return nil, err
	}

	if err := s.orders.Create(ctx, order); err != nil {
		s.logger.Printf("checkout: request=%s persist failed: %v", requestID, err)
		s.record(ctx, requestID, nil, journal.StepPersist, journal.StatusFailed, err.Error())
		s.release(context.WithoutCancel(ctx), requestID, nil, reserved)
		return nil, fmt.Errorf("%w: persist order: %v", domain.ErrDependencyUnavailable, err)
	}
	orderID := order.ID
	s.record(ctx, requestID, &orderID, journal.StepPersist, journal.StatusDone, string(domain.StatusPending))

	// From here on the row exists; finish writing it even if the deadline
	// fires during the payment call.
	detached := context.WithoutCancel(ctx)

	payment := s.payments.Initiate(ctx, domain.PaymentRequest{
		OrderID: order.ID,
		UserID:  order.UserID,
		Amount:  order.Total,
		Method:  order.PaymentMethod,
	})
	receipt := payment.Value
	if !payment.OK() {
		payErr := fmt.Errorf("%w: order %d: %v", domain.ErrPaymentInitiationFailed, order.ID, payment.Err)
		s.logger.Printf("checkout: request=%s %v; order will be rejected", requestID, payErr)
		s.record(detached, requestID, &orderID, journal.StepPayment, journal.StatusFailed, payErr.Error())
		receipt.Accepted = false
		if receipt.Reason == "" {
			receipt.Reason = payErr.Error()
		}
	} else {
		detail := "accepted"
		if !receipt.Accepted {
			detail = "declined: " + receipt.Reason
		}
		s.record(detached, requestID, &orderID, journal.StepPayment, journal.StatusDone, detail)
	}

	if err := order.ApplyPayment(receipt, s.now()); err != nil {
		return nil, err
	}
	update := orderrepo.PaymentUpdate{
		From:        domain.StatusPending,
		Status:      order.Status,
		PaymentRef:  order.PaymentRef,
		AuthCode:    order.AuthCode,
		ProcessedAt: order.ProcessedAt,
	}
	applied, err := s.orders.UpdatePayment(detached, order.ID, update)
	if err != nil {
		s.record(detached, requestID, &orderID, journal.StepFinalize, journal.StatusFailed, err.Error())
		return nil, fmt.Errorf("%w: record payment for order %d: %v", domain.ErrDependencyUnavailable, order.ID, err)
	}
	if !applied {
		// A cancel or status override won the row during the payment call.
		stored, err := s.orders.GetByID(detached, order.ID)
		if err != nil {
			s.record(detached, requestID, &orderID, journal.StepFinalize, journal.StatusFailed, err.Error())
			return nil, fmt.Errorf("%w: reload order %d: %v", domain.ErrDependencyUnavailable, order.ID, err)
		}
		s.logger.Printf("checkout: request=%s order_id=%d moved to %s during payment; %s not applied", requestID, order.ID, stored.Status, order.Status)
		s.record(detached, requestID, &orderID, journal.StepFinalize, journal.StatusSkipped, fmt.Sprintf("stored=%s payment=%s", stored.Status, order.Status))
		stored.WithShipping(s.shipping)
		stored.Enrich(user.Value)
		s.publishCreated(detached, stored)
		return stored, nil
	}
	s.record(detached, requestID, &orderID, journal.StepFinalize, journal.StatusDone, string(order.Status))

	order.Enrich(user.Value)
	s.publishCreated(detached, order)
	s.metrics.ObserveStatusChange(order.Status.String())
	s.logger.Printf("checkout: request=%s order_id=%d status=%s total=%d", requestID, order.ID, order.Status, order.Total)
	return order, nil
}

// lookupProducts fetches each distinct product once, concurrently.
func (s *Service) lookupProducts(ctx context.Context, lines []LineInput) map[int64]directory.Result[domain.ProductSnapshot] {
	ids := make([]int64, 0, len(lines))
	seen := make(map[int64]bool, len(lines))
	for _, l := range lines {
		if !seen[l.ProductID] {
			seen[l.ProductID] = true
			ids = append(ids, l.ProductID)
		}
	}

	results := make([]directory.Result[domain.ProductSnapshot], len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(lookupConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			results[i] = s.products.Get(gctx, id)
			return nil
		})
	}
	_ = g.Wait()

	byID := make(map[int64]directory.Result[domain.ProductSnapshot], len(ids))
	for i, id := range ids {
		byID[id] = results[i]
	}
	return byID
}

// checkLines walks the request in order so the first bad line is the one
// reported. Quantities of repeated product ids are summed for the stock check.
func checkLines(lines []LineInput, snapshots map[int64]directory.Result[domain.ProductSnapshot]) error {
	wanted := make(map[int64]int, len(lines))
	for _, l := range lines {
		wanted[l.ProductID] += l.Quantity
	}
	for i, l := range lines {
		res := snapshots[l.ProductID]
		if !res.OK() || !res.Value.Active {
			return fmt.Errorf("%w: line %d: product %d is %s", domain.ErrProductInvalid, i+1, l.ProductID, outcomeState(res))
		}
		if res.Value.Stock < wanted[l.ProductID] {
			return fmt.Errorf("%w: line %d: product %d has %d, requested %d", domain.ErrInsufficientStock, i+1, l.ProductID, res.Value.Stock, wanted[l.ProductID])
		}
	}
	return nil
}

type reservation struct {
	productID int64
	quantity  int
}

// reserve decrements stock line by line. An unreachable products service is
// logged and skipped. A refused decrement undoes the earlier reservations.
func (s *Service) reserve(ctx context.Context, requestID string, lines []LineInput) ([]reservation, error) {
	reserved := make([]reservation, 0, len(lines))
	for _, l := range lines {
		res, err := s.products.AdjustStock(ctx, l.ProductID, -l.Quantity)
		if err != nil {
			s.logger.Printf("checkout: request=%s reserve product=%d qty=%d refused: %v", requestID, l.ProductID, l.Quantity, err)
			s.record(ctx, requestID, nil, journal.StepReserveStock, journal.StatusFailed, err.Error())
			s.release(context.WithoutCancel(ctx), requestID, nil, reserved)
			if errors.Is(err, domain.ErrInsufficientStock) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: reserve stock: %v", domain.ErrDependencyUnavailable, err)
		}
		detail := fmt.Sprintf("product=%d qty=%d", l.ProductID, l.Quantity)
		if !res.OK() {
			s.logger.Printf("checkout: request=%s WARN stock for product=%d not reserved (%s), continuing", requestID, l.ProductID, res.Outcome)
			s.record(ctx, requestID, nil, journal.StepReserveStock, journal.StatusSkipped, detail+" "+res.Outcome.String())
			continue
		}
		reserved = append(reserved, reservation{productID: l.ProductID, quantity: l.Quantity})
		s.record(ctx, requestID, nil, journal.StepReserveStock, journal.StatusDone, detail)
	}
	return reserved, nil
}

// release gives back reservations in reverse order.
func (s *Service) release(ctx context.Context, requestID string, orderID *int64, reserved []reservation) {
	for i := len(reserved) - 1; i >= 0; i-- {
		r := reserved[i]
		detail := fmt.Sprintf("product=%d qty=%d", r.productID, r.quantity)
		res, err := s.products.AdjustStock(ctx, r.productID, r.quantity)
		switch {
		case err != nil:
			s.logger.Printf("checkout: request=%s release %s failed: %v", requestID, detail, err)
			s.record(ctx, requestID, orderID, journal.StepReleaseStock, journal.StatusFailed, detail)
		case !res.OK():
			s.record(ctx, requestID, orderID, journal.StepReleaseStock, journal.StatusSkipped, detail+" "+res.Outcome.String())
		default:
			s.record(ctx, requestID, orderID, journal.StepReleaseStock, journal.StatusDone, detail)
		}
	}
}

func (s *Service) replay(ctx context.Context, orderID int64) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	order.WithShipping(s.shipping)
	if u := s.users.Get(ctx, order.UserID); u.OK() {
		order.Enrich(u.Value)
	}
	s.metrics.ObserveCheckout("replayed")
	return order, nil
}

func (s *Service) publishCreated(ctx context.Context, o *domain.Order) {
	evt := messaging.OrderCreated{
		OrderID:   o.ID,
		UserID:    o.UserID,
		Status:    o.Status.String(),
		Total:     o.Total,
		Lines:     len(o.Lines),
		CreatedAt: o.CreatedAt,
	}
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := s.publisher.PublishEvent(ctx, messaging.TopicOrderCreated, strconv.FormatInt(o.ID, 10), evt); err != nil {
		s.logger.Printf("checkout: publish %s order_id=%d: %v", messaging.TopicOrderCreated, o.ID, err)
	}
}

func (s *Service) record(ctx context.Context, requestID string, orderID *int64, step journal.Step, status journal.Status, detail string) {
	if s.journal == nil {
		return
	}
	err := s.journal.Append(ctx, journal.Entry{
		OrderID:   orderID,
		RequestID: requestID,
		Step:      step,
		Status:    status,
		Detail:    detail,
	})
	if err != nil {
		s.logger.Printf("checkout: journal %s/%s: %v", step, status, err)
	}
}

func outcomeState[T any](r directory.Result[T]) string {
	switch r.Outcome {
	case directory.OutcomeNotFound:
		return "unknown"
	case directory.OutcomeUnavailable:
		return "unavailable"
	default:
		return "inactive"
	}
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrUserInvalid):
		return "user_invalid"
	case errors.Is(err, domain.ErrProductInvalid):
		return "product_invalid"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, idempotency.ErrInFlight):
		return "in_flight"
	default:
		return "error"
	}
}
