package bot

import (
	"context"

	"emperror.dev/errors"
)

// Race starts every wait and returns the result of whichever settles first,
// successful or not. The others are cancelled and their results discarded.
// Waits must return promptly once their context is done, Race only returns
// after all of them have.
func Race[T any](ctx context.Context, waits ...func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if len(waits) == 0 {
		return zero, errors.NewPlain("nothing to race")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type result struct {
		v   T
		err error
	}

	results := make(chan result, len(waits))
	for _, w := range waits {
		go func(w func(ctx context.Context) (T, error)) {
			v, err := w(ctx)
			results <- result{v: v, err: err}
		}(w)
	}

	first := <-results
	cancel()

	// a loser still registered as a waiter could swallow the next prompt's answer
	for i := 1; i < len(waits); i++ {
		<-results
	}

	return first.v, first.err
}
