// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies pipeline errors into a stable taxonomy shared by the
// queue, workers, processors, stores and the template registry. Workers
// use it to decide whether a failed item is worth retrying.
type Kind string

// The full taxonomy. String values are part of the persisted error text
// (queue items keep them across retries), so they must stay stable.
const (
	// ConfigInvalid - monitor configuration failed validation. Fatal at startup.
	ConfigInvalid Kind = "ConfigInvalid"

	// QueueFull - add on a queue already at max_size. Producer may back off.
	QueueFull Kind = "QueueFull"

	// FileNotFound - worker could not open the item's file. Not retried.
	FileNotFound Kind = "FileNotFound"

	// UnknownTask - processor does not recognise the requested task. Not retried.
	UnknownTask Kind = "UnknownTask"

	// InvalidInput - empty or malformed content where text is required. Not retried.
	InvalidInput Kind = "InvalidInput"

	// Timeout - processor call exceeded its wall-clock bound. Retryable.
	Timeout Kind = "Timeout"

	// ProviderTransport - network error talking to an LLM or embedder. Retryable.
	ProviderTransport Kind = "ProviderTransport"

	// AuthFailure - backend rejected the credentials. Not retried.
	AuthFailure Kind = "AuthFailure"

	// RateLimited - backend signalled slow-down. Retryable with backoff.
	RateLimited Kind = "RateLimited"

	// NoProviderAvailable - no embedding provider is usable (local down, no remote key).
	NoProviderAvailable Kind = "NoProviderAvailable"

	// EmbeddingFailure - the provider produced no vector. Caller may retry.
	EmbeddingFailure Kind = "EmbeddingFailure"

	// DimensionMismatch - vector length differs from the collection's locked
	// dimension. Data-shape error, never retried.
	DimensionMismatch Kind = "DimensionMismatch"

	// StorageIO - vector store disk error. Retryable.
	StorageIO Kind = "StorageIO"

	// Cancelled - item cancelled explicitly. Terminal, never retried.
	Cancelled Kind = "Cancelled"

	// NotFound - requested record does not exist in the store or registry.
	NotFound Kind = "NotFound"

	// MissingVariable - template render missing a required variable.
	MissingVariable Kind = "MissingVariable"

	// UnknownPlaceholder - template contains a placeholder with no declared variable.
	UnknownPlaceholder Kind = "UnknownPlaceholder"
)

// Error is a taxonomy-tagged error. It wraps an optional cause and renders
// as "Kind: message[: cause]" so queue items preserve the kind in their
// stored error text.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds a taxonomy error from a format string.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error. A nil err
// yields a plain taxonomy error so call sites do not need to branch.
func Wrap(kind Kind, msg string, err error) *Error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf walks the error chain and returns the kind of the outermost
// taxonomy error, or the empty Kind when none is present.
func KindOf(err error) Kind {
	var te *Error
	if stderrors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind anywhere in its chain.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Retryable reports whether a failed queue item carrying this error should
// be retried. Only transient conditions qualify; data-shape and auth errors
// fail permanently regardless of the item's remaining retry budget.
func Retryable(err error) bool {
	switch KindOf(err) {
	case Timeout, ProviderTransport, RateLimited, StorageIO:
		return true
	default:
		return false
	}
}
