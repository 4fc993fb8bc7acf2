// Package storage provides shared helpers for durable store backends:
// the Error type surfaced when a backend exhausts its retries, and a
// bounded retry loop with exponential backoff used at the level of
// individual store operations.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	defaultAttempts = 3
	defaultBackoff  = 100 * time.Millisecond
)

// Error wraps a backend failure that survived the retry budget.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// RetryConfig bounds the retry loop.
type RetryConfig struct {
	// Attempts is the total number of tries, including the first.
	Attempts int

	// Backoff is the sleep before the second attempt; it doubles per retry.
	Backoff time.Duration
}

// permanentError marks a failure Retry must not repeat or wrap.
type permanentError struct {
	err error
}

func (e permanentError) Error() string {
	return e.err.Error()
}

func (e permanentError) Unwrap() error {
	return e.err
}

// Permanent marks err as a definitive answer rather than a transient fault:
// Retry stops immediately and returns the original error unwrapped, so
// domain errors like not-found keep their type through a retried operation.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return permanentError{err: err}
}

// Retry runs fn up to cfg.Attempts times with exponential backoff between
// tries. Context errors and errors marked Permanent stop the loop
// immediately; retry exhaustion is surfaced as *Error. Validation-style
// failures should not be routed through Retry - it is intended for transient
// backend faults only.
func Retry(ctx context.Context, cfg RetryConfig, op string, fn func() error) error {
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}

	backoff := cfg.Backoff
	if backoff <= 0 {
		backoff = defaultBackoff
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}

		if lastErr = fn(); lastErr == nil {
			return nil
		}

		var perm permanentError
		if errors.As(lastErr, &perm) {
			return perm.err
		}

		if errors.Is(lastErr, context.Canceled) || errors.Is(lastErr, context.DeadlineExceeded) {
			return lastErr
		}
	}

	return &Error{Op: op, Err: lastErr}
}
