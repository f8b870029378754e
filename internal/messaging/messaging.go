package messaging

import (
	"context"
	"time"
)

const (
	TopicOrderCreated       = "orders.created"
	TopicOrderStatusChanged = "orders.status_changed"
)

// Publisher defines an interface for publishing events to a message broker.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, key string, event any) error
}

type OrderCreated struct {
	OrderID   int64     `json:"orderId"`
	UserID    int64     `json:"userId"`
	Status    string    `json:"status"`
	Total     int64     `json:"total"`
	Lines     int       `json:"lines"`
	CreatedAt time.Time `json:"createdAt"`
}

type OrderStatusChanged struct {
	OrderID   int64     `json:"orderId"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	ChangedAt time.Time `json:"changedAt"`
}

// Nop discards every event; used when no broker is configured.
type Nop struct{}

func (Nop) PublishEvent(context.Context, string, string, any) error { return nil }
