package search

import (
	"fmt"
	"sort"
	"strings"

	fuseerrors "github.com/searchworks/partfuse/internal/errors"
)

// RetrievalErrorKind classifies a failed retrieval call.
type RetrievalErrorKind string

const (
	// RetrievalTimeout marks a call that exceeded its per-strategy timeout.
	RetrievalTimeout RetrievalErrorKind = "timeout"
	// RetrievalBackendUnavailable marks a backend that could not be reached
	// or refused the call.
	RetrievalBackendUnavailable RetrievalErrorKind = "backend_unavailable"
	// RetrievalInvalidQuery marks a query the backend rejected.
	RetrievalInvalidQuery RetrievalErrorKind = "invalid_query"
)

// RetrievalError is a failure of one strategy's retrieval call.
// It is recovered locally: the orchestrator drops the strategy from fusion
// and marks the response degraded.
type RetrievalError struct {
	Strategy Strategy
	Kind     RetrievalErrorKind
	Cause    error
}

// Error implements the error interface.
func (e *RetrievalError) Error() string {
	return fmt.Sprintf("%s retrieval failed (%s): %v", e.Strategy, e.Kind, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *RetrievalError) Unwrap() error {
	return e.Cause
}

// Code maps the error kind onto a structured error code.
func (e *RetrievalError) Code() string {
	switch e.Kind {
	case RetrievalTimeout:
		return fuseerrors.ErrCodeBackendTimeout
	case RetrievalInvalidQuery:
		return fuseerrors.ErrCodeInvalidQuery
	default:
		return fuseerrors.ErrCodeBackendUnavailable
	}
}

// NewRetrievalError builds a RetrievalError for the given strategy.
func NewRetrievalError(strategy Strategy, kind RetrievalErrorKind, cause error) *RetrievalError {
	return &RetrievalError{Strategy: strategy, Kind: kind, Cause: cause}
}

// AllStrategiesFailedError is returned when every attempted strategy failed
// and no fused result can be produced.
type AllStrategiesFailedError struct {
	// Failures maps each attempted strategy to its failure.
	Failures map[Strategy]error
}

// Error implements the error interface. Strategies are listed in sorted
// order so the message is deterministic.
func (e *AllStrategiesFailedError) Error() string {
	names := make([]string, 0, len(e.Failures))
	for s := range e.Failures {
		names = append(names, string(s))
	}
	sort.Strings(names)

	var sb strings.Builder
	sb.WriteString("all retrieval strategies failed: ")
	for i, name := range names {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(fmt.Sprintf("%s: %v", name, e.Failures[Strategy(name)]))
	}
	return sb.String()
}

// ToFuseError converts the aggregate into a structured error for the API
// boundary, naming failed strategies without leaking backend details.
func (e *AllStrategiesFailedError) ToFuseError() *fuseerrors.FuseError {
	fe := fuseerrors.New(fuseerrors.ErrCodeAllStrategiesFailed,
		"all retrieval strategies failed", e)
	for s, err := range e.Failures {
		kind := "error"
		if re, ok := err.(*RetrievalError); ok {
			kind = string(re.Kind)
		}
		fe = fe.WithDetail(string(s), kind)
	}
	return fe.WithSuggestion("Check index backend availability and retry")
}

// FusionInputError marks a malformed per-strategy result list handed to the
// fusion engine. It is logged and the offending strategy dropped; it never
// aborts the request.
type FusionInputError struct {
	Strategy Strategy
	Reason   string
}

// Error implements the error interface.
func (e *FusionInputError) Error() string {
	return fmt.Sprintf("invalid %s fusion input: %s", e.Strategy, e.Reason)
}
