package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness constraint was hit.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput is returned for malformed checkout or status requests.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUserInvalid covers unknown, inactive and unreachable users alike.
	ErrUserInvalid = errors.New("user invalid")
	// ErrProductInvalid covers unknown, inactive and unreachable products alike.
	ErrProductInvalid = errors.New("product invalid")
	// ErrInsufficientStock is returned when a line asks for more than is available.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrPaymentInitiationFailed wraps a payment gateway that could not be reached.
	ErrPaymentInitiationFailed = errors.New("payment initiation failed")
	// ErrInvalidStateTransition is returned when the status table forbids a move.
	ErrInvalidStateTransition = errors.New("invalid state transition")
	// ErrOrderNotFound indicates the order id does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrDependencyUnavailable surfaces failures that have no fallback, e.g. storage.
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)
