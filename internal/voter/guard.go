package voter

import (
	"context"
	"fmt"
	"time"

	"github.com/sourcegraph/conc/panics"

	"github.com/rally-hq/rally/internal/errors"
	"github.com/rally-hq/rally/internal/logging"
	"github.com/rally-hq/rally/internal/vote"
)

// Guard bounds every attempt of the wrapped Voter by a timeout and makes
// sure the caller only ever sees transient vote failures.
type Guard struct {
	next    vote.Voter
	timeout time.Duration
	logger  *logging.Logger
}

// NewGuard wraps next. A timeout <= 0 disables the deadline.
func NewGuard(next vote.Voter, timeout time.Duration, logger *logging.Logger) *Guard {
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Guard{next: next, timeout: timeout, logger: logger}
}

type outcome struct {
	res vote.Result
	err error
}

// Attempt runs one attempt of the wrapped Voter. A voter that ignores its
// context is abandoned once the deadline passes; its result is discarded.
func (g *Guard) Attempt(ctx context.Context) (vote.Result, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	done := make(chan outcome, 1)
	go func() {
		var o outcome
		var pc panics.Catcher
		pc.Try(func() {
			o.res, o.err = g.next.Attempt(ctx)
		})
		if r := pc.Recovered(); r != nil {
			g.logger.Error("voter panicked", "panic", fmt.Sprint(r.Value), "stack", string(r.Stack))
			o = outcome{err: errors.NewVoteError(fmt.Sprintf("panic: %v", r.Value), errors.ErrVoterPanic)}
		}
		done <- o
	}()

	select {
	case o := <-done:
		if o.err != nil {
			return vote.Result{}, g.classify(ctx, o.err)
		}
		if err := o.res.Validate(); err != nil {
			return vote.Result{}, err
		}
		return o.res, nil
	case <-ctx.Done():
		return vote.Result{}, g.classify(ctx, ctx.Err())
	}
}

func (g *Guard) classify(ctx context.Context, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return errors.NewVoteError(fmt.Sprintf("no result after %s", g.timeout), errors.ErrVoteTimeout)
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return errors.NewVoteError("attempt canceled", errors.ErrCanceled)
	}
	var ve *errors.VoteError
	if errors.As(err, &ve) {
		return err
	}
	return errors.NewVoteError("attempt failed", err)
}
