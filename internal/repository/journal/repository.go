// Package journal stores the append-only trail of checkout and lifecycle
// steps. Each row records one step outcome; rows are never updated.
package journal

import (
	"context"
	"time"
)

type Step string

const (
	StepValidate     Step = "validate"
	StepReserveStock Step = "reserve_stock"
	StepReleaseStock Step = "release_stock"
	StepPersist      Step = "persist"
	StepPayment      Step = "payment"
	StepFinalize     Step = "finalize"
	StepCancel       Step = "cancel"
)

type Status string

const (
	StatusDone    Status = "DONE"
	StatusFailed  Status = "FAILED"
	StatusSkipped Status = "SKIPPED"
)

type Entry struct {
	ID        int64     `json:"id"`
	OrderID   *int64    `json:"orderId,omitempty"`
	RequestID string    `json:"requestId"`
	Step      Step      `json:"step"`
	Status    Status    `json:"status"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

type Repository interface {
	Append(ctx context.Context, e Entry) error
	ListByOrder(ctx context.Context, orderID int64) ([]Entry, error)
}
