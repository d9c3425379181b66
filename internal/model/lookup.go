package model

// LookupStatus is the outcome class of a single extractor call.
type LookupStatus string

const (
	LookupFound  LookupStatus = "found"
	LookupEmpty  LookupStatus = "empty"
	LookupFailed LookupStatus = "failed"
)

// Lookup is the typed result of a network-backed extraction. Extractors
// never return errors: a failure is carried in Err with Status failed and
// a zero Value, so callers can treat it as "no data" without suppressing
// anything.
type Lookup[T any] struct {
	Value  T
	Status LookupStatus
	Err    error
}

// Found wraps a successful lookup.
func Found[T any](v T) Lookup[T] {
	return Lookup[T]{Value: v, Status: LookupFound}
}

// Empty marks a lookup that completed but found nothing.
func Empty[T any]() Lookup[T] {
	var zero T
	return Lookup[T]{Value: zero, Status: LookupEmpty}
}

// Failed marks a lookup that could not complete.
func Failed[T any](err error) Lookup[T] {
	var zero T
	return Lookup[T]{Value: zero, Status: LookupFailed, Err: err}
}

// OK reports whether the lookup produced a value.
func (l Lookup[T]) OK() bool {
	return l.Status == LookupFound
}
