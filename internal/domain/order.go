package domain

import (
	"fmt"
	"time"
)

// ShippingPolicy decides the shipping fee from the order subtotal.
type ShippingPolicy struct {
	// FreeThreshold is exclusive: only subtotals strictly above it ship free.
	FreeThreshold int64
	Fee           int64
}

// CostFor returns the shipping cost for subtotal.
func (p ShippingPolicy) CostFor(subtotal int64) int64 {
	if subtotal > p.FreeThreshold {
		return 0
	}
	return p.Fee
}

type Order struct {
	ID              int64      `json:"id"`
	UserID          int64      `json:"userId"`
	Status          Status     `json:"status"`
	CreatedAt       time.Time  `json:"createdAt"`
	ProcessedAt     *time.Time `json:"processedAt,omitempty"`
	ShippingAddress string     `json:"shippingAddress"`
	PaymentMethod   string     `json:"paymentMethod"`
	Note            string     `json:"note,omitempty"`
	Subtotal        int64      `json:"subtotal"`
	ShippingCost    int64      `json:"shippingCost"`
	Total           int64      `json:"total"`
	PaymentRef      string     `json:"paymentRef,omitempty"`
	AuthCode        string     `json:"authCode,omitempty"`
	Lines           []Line     `json:"lines"`

	// Display fields filled from a live user snapshot on read, never stored.
	UserName  *string `json:"userName"`
	UserEmail *string `json:"userEmail"`

	shipping ShippingPolicy
}

type Line struct {
	ID          int64  `json:"id"`
	OrderID     int64  `json:"orderId"`
	ProductID   int64  `json:"productId"`
	ProductName string `json:"productName"`
	UnitPrice   int64  `json:"unitPrice"`
	Quantity    int    `json:"quantity"`
}

// LineTotal is unitPrice × quantity.
func (l Line) LineTotal() int64 {
	return l.UnitPrice * int64(l.Quantity)
}

// NewOrder starts an empty PENDIENTE order.
func NewOrder(userID int64, shippingAddress, paymentMethod, note string, shipping ShippingPolicy) *Order {
	o := &Order{
		UserID:          userID,
		Status:          StatusPending,
		ShippingAddress: shippingAddress,
		PaymentMethod:   paymentMethod,
		Note:            note,
		shipping:        shipping,
	}
	o.RecomputeTotals()
	return o
}

// WithShipping attaches the policy used to recompute totals on orders loaded
// from storage.
func (o *Order) WithShipping(p ShippingPolicy) *Order {
	o.shipping = p
	return o
}

// AddLine appends a line priced from the snapshot and recomputes totals.
func (o *Order) AddLine(p ProductSnapshot, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("%w: quantity must be at least 1", ErrInvalidInput)
	}
	if !p.Active {
		return fmt.Errorf("%w: product %d is inactive", ErrProductInvalid, p.ID)
	}
	o.Lines = append(o.Lines, Line{
		OrderID:     o.ID,
		ProductID:   p.ID,
		ProductName: p.Name,
		UnitPrice:   p.UnitPrice,
		Quantity:    quantity,
	})
	o.RecomputeTotals()
	return nil
}

// RecomputeTotals derives subtotal, shipping and total from the current lines.
func (o *Order) RecomputeTotals() {
	var subtotal int64
	for _, l := range o.Lines {
		subtotal += l.LineTotal()
	}
	o.Subtotal = subtotal
	o.ShippingCost = o.shipping.CostFor(subtotal)
	o.Total = o.Subtotal + o.ShippingCost
}

// CheckTotals verifies the stored totals still match the line set.
func (o *Order) CheckTotals() error {
	var subtotal int64
	for _, l := range o.Lines {
		subtotal += l.LineTotal()
	}
	if subtotal != o.Subtotal || o.Total != o.Subtotal+o.ShippingCost {
		return fmt.Errorf("order %d totals out of sync: subtotal=%d lines=%d shipping=%d total=%d",
			o.ID, o.Subtotal, subtotal, o.ShippingCost, o.Total)
	}
	return nil
}

// TransitionTo moves the order along the lifecycle table.
func (o *Order) TransitionTo(target Status) error {
	if !CanTransition(o.Status, target) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidStateTransition, o.Status, target)
	}
	o.Status = target
	return nil
}

// ApplyPayment folds a gateway receipt into the order status.
func (o *Order) ApplyPayment(r PaymentReceipt, now time.Time) error {
	target := StatusRejected
	if r.Accepted {
		target = StatusPaid
	}
	if err := o.TransitionTo(target); err != nil {
		return err
	}
	o.PaymentRef = r.TransactionRef
	o.AuthCode = r.AuthCode
	if r.Accepted {
		processed := now.UTC()
		o.ProcessedAt = &processed
	}
	return nil
}

// Enrich copies display fields from a user snapshot.
func (o *Order) Enrich(u UserSnapshot) {
	name, email := u.Name, u.Email
	o.UserName = &name
	o.UserEmail = &email
}
