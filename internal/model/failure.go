package model

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a fetch attempt failed.
type FailureKind int

const (
	// FailureTimeout means the fetch did not complete before its deadline.
	FailureTimeout FailureKind = iota + 1

	// FailureConnection covers transport-level errors: refused connections,
	// DNS failures, resets and malformed responses.
	FailureConnection

	// FailureProxy means the SOCKS proxy could not be reached or refused the request.
	FailureProxy
)

// String returns a short label used in logs and metric labels.
func (k FailureKind) String() string {
	switch k {
	case FailureTimeout:
		return "timeout"
	case FailureConnection:
		return "connection"
	case FailureProxy:
		return "proxy"
	default:
		return "unknown"
	}
}

// FetchFailure is the typed error returned for a failed fetch attempt.
// It is terminal for that URL in the current session; nothing retries it.
type FetchFailure struct {
	// URL is the target that failed.
	URL URL

	// Kind classifies the failure.
	Kind FailureKind

	// Err is the underlying diagnostic, may be nil.
	Err error
}

// Error implements the error interface.
func (f *FetchFailure) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("fetch %s: %s", f.URL, f.Kind)
	}
	return fmt.Sprintf("fetch %s: %s: %v", f.URL, f.Kind, f.Err)
}

// Unwrap returns the underlying error.
func (f *FetchFailure) Unwrap() error {
	return f.Err
}

// AsFetchFailure extracts a *FetchFailure from err.
func AsFetchFailure(err error) (*FetchFailure, bool) {
	var f *FetchFailure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
