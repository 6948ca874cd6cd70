// Copyright (c) JerryScript Project. All rights reserved.
// Licensed under the MIT License.

// Package resiliency collects small retry and panic-recovery helpers
// shared by the transport dialers and the command-line entry point.
package resiliency

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-logr/logr"
)

// RetryGet calls factory with exponential backoff until it succeeds or
// ctx is done. The backoff's own max-elapsed-time (if any) applies on
// top of ctx's deadline.
func RetryGet[T any](ctx context.Context, factory func() (T, error)) (T, error) {
	var lastAttemptErr error

	retval, err := backoff.RetryNotifyWithData(
		factory,
		backoff.WithContext(backoff.NewExponentialBackOff(), ctx),
		func(err error, d time.Duration) {
			lastAttemptErr = err
		},
	)

	switch {
	case err != nil && errors.Is(err, context.DeadlineExceeded):
		return *new(T), errors.Join(lastAttemptErr, err)
	case err != nil:
		return *new(T), err
	default:
		return retval, nil
	}
}

// MakePanicError logs a recovered panic value with its call stack and
// returns it as a permanent (non-retryable) error for the caller to
// act on.
func MakePanicError(panicVal any, log logr.Logger) error {
	if panicVal == nil {
		return nil
	}

	panicErr, isError := panicVal.(error)
	if !isError {
		panicErr = fmt.Errorf("%v", panicVal)
	}
	var permanent *backoff.PermanentError
	if !errors.As(panicErr, &permanent) {
		panicErr = backoff.Permanent(panicErr)
	}

	log.Error(panicErr, "a goroutine ended prematurely due to panic", "stack", string(debug.Stack()))
	return panicErr
}
