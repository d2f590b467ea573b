// Package fallback runs priority-ordered alternatives and keeps the first one that succeeds. Frame
// capture strategies and speech channels are both expressed as ordered steps consumed by First.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrExhausted is returned by First when no step produced a result.
var ErrExhausted = errors.New("every fallback step failed")

// Step is one alternative of a fallback chain. Try reports failure by returning a non-nil error; the
// value it returns alongside an error is ignored.
type Step[T any] struct {
	Name string
	Try  func(ctx context.Context) (T, error)
}

// First runs the steps strictly in order and returns the value and name of the first step that succeeds.
// Steps with a nil Try are skipped, which lets callers disable an alternative without reshaping the chain.
// When every step fails the returned error wraps ErrExhausted and joins the failures of the individual
// steps. A canceled context stops the chain before the next step starts.
func First[T any](ctx context.Context, logger *slog.Logger, steps ...Step[T]) (T, string, error) {
	var zero T
	var errs []error

	for _, step := range steps {
		if step.Try == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		v, err := step.Try(ctx)
		if err == nil {
			return v, step.Name, nil
		}

		logger.Debug("Fallback step failed",
			slog.String("step", step.Name),
			slog.String("err", err.Error()))
		errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
	}

	if len(errs) == 0 {
		return zero, "", ErrExhausted
	}
	return zero, "", fmt.Errorf("%w: %w", ErrExhausted, errors.Join(errs...))
}
