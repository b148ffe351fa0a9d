package engine

import (
	"context"
	"errors"

	"github.com/scrypster/warmconnector/internal/storage"
)

// ErrorKind classifies a collaborator failure.
type ErrorKind int

// Error kinds.
const (
	KindNone ErrorKind = iota
	KindNotFound
	KindStoreFailure
	KindEnrichmentFailure
	KindInvalidRequest
)

// String returns the kind's log-friendly name.
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindNotFound:
		return "not_found"
	case KindStoreFailure:
		return "store_failure"
	case KindEnrichmentFailure:
		return "enrichment_failure"
	case KindInvalidRequest:
		return "invalid_request"
	}
	return "unknown"
}

// Result carries a collaborator's value or its classified failure.
type Result[T any] struct {
	Value T
	Kind  ErrorKind
	Err   error
}

// Ok wraps a successful value.
func Ok[T any](v T) Result[T] {
	return Result[T]{Value: v}
}

// Fail wraps a classified failure.
func Fail[T any](kind ErrorKind, err error) Result[T] {
	return Result[T]{Kind: kind, Err: err}
}

// OK reports whether the call succeeded.
func (r Result[T]) OK() bool {
	return r.Kind == KindNone
}

// classifyStoreError maps store errors onto ErrorKind.
func classifyStoreError(err error) ErrorKind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, storage.ErrNotFound):
		return KindNotFound
	case errors.Is(err, storage.ErrInvalidInput):
		return KindInvalidRequest
	default:
		return KindStoreFailure
	}
}

// fromStore wraps a store call's return values.
func fromStore[T any](v T, err error) Result[T] {
	if err != nil {
		return Fail[T](classifyStoreError(err), err)
	}
	return Ok(v)
}

// fromCollaborator wraps an optional collaborator's return values. Any
// failure, including a timeout, is an enrichment failure.
func fromCollaborator[T any](v T, err error) Result[T] {
	if err != nil {
		return Fail[T](KindEnrichmentFailure, err)
	}
	return Ok(v)
}

// isCancellation reports whether err came from the caller giving up.
func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
