package directory

// Outcome tags how a remote lookup resolved.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeNotFound
	// OutcomeUnavailable means the dependency could not be reached; Value
	// then holds the client's fallback stub.
	OutcomeUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeUnavailable:
		return "unavailable"
	default:
		return "unknown"
	}
}

// Result is either a fetched snapshot, a not-found answer, or the fallback
// substituted for an unreachable dependency. Err carries the transport error
// for logging only.
type Result[T any] struct {
	Value   T
	Outcome Outcome
	Err     error
}

func (r Result[T]) OK() bool {
	return r.Outcome == OutcomeOK
}

func ok[T any](v T) Result[T] {
	return Result[T]{Value: v, Outcome: OutcomeOK}
}

func notFound[T any](fallback T) Result[T] {
	return Result[T]{Value: fallback, Outcome: OutcomeNotFound}
}

func unavailable[T any](fallback T, err error) Result[T] {
	return Result[T]{Value: fallback, Outcome: OutcomeUnavailable, Err: err}
}
