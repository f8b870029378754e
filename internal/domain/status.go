package domain

import (
	"fmt"
	"slices"
	"strings"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusPending   Status = "PENDIENTE"
	StatusPaid      Status = "PAGADO"
	StatusCompleted Status = "COMPLETADO"
	StatusRejected  Status = "RECHAZADO"
	StatusCancelled Status = "CANCELADO"
	StatusShipped   Status = "ENVIADO"
	StatusDelivered Status = "ENTREGADO"
)

var allStatuses = []Status{
	StatusPending,
	StatusPaid,
	StatusCompleted,
	StatusRejected,
	StatusCancelled,
	StatusShipped,
	StatusDelivered,
}

// transitions lists every move the lifecycle allows. Statuses without an
// entry are terminal.
var transitions = map[Status][]Status{
	StatusPending:   {StatusPaid, StatusRejected, StatusCancelled},
	StatusPaid:      {StatusShipped, StatusCompleted},
	StatusShipped:   {StatusDelivered},
	StatusDelivered: {StatusCompleted},
}

// ParseStatus accepts a status name in any case.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	if !slices.Contains(allStatuses, s) {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, raw)
	}
	return s, nil
}

// CanTransition reports whether the table allows moving from current to target.
func CanTransition(current, target Status) bool {
	return slices.Contains(transitions[current], target)
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) String() string {
	return string(s)
}
