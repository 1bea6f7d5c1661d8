package launch

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"

	"github.com/TopTalent-23/bundler-bot-backend/pkg/config"
	"github.com/TopTalent-23/bundler-bot-backend/pkg/types"
)

// RetryPolicy bounds how a failed phase is retried. MaxAttempts of zero retries until
// the context ends.
type RetryPolicy struct {
	MaxAttempts    uint
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// RetryPolicyFromConfig converts the configured policy.
func RetryPolicyFromConfig(c config.RetryPolicyConfig) RetryPolicy {
	p := RetryPolicy{InitialBackoff: c.InitialBackoff, MaxBackoff: c.MaxBackoff}
	if c.MaxAttempts > 0 {
		p.MaxAttempts = uint(c.MaxAttempts)
	}
	return p
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = 500 * time.Millisecond
	}
	if p.MaxBackoff <= 0 {
		p.MaxBackoff = 10 * time.Second
	}
	return p
}

// retry runs fn under p. Errors that no retry can fix stop it at once.
func retry[T any](ctx context.Context, p RetryPolicy, log zerolog.Logger, phase string, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.withDefaults()
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = p.InitialBackoff
	expo.MaxInterval = p.MaxBackoff

	opts := []backoff.RetryOption{
		backoff.WithBackOff(expo),
		backoff.WithMaxElapsedTime(0),
		backoff.WithNotify(func(err error, next time.Duration) {
			log.Warn().Err(err).Str("phase", phase).Dur("retry_in", next).Msg("launch phase failed")
		}),
	}
	if p.MaxAttempts > 0 {
		opts = append(opts, backoff.WithMaxTries(p.MaxAttempts))
	}

	return backoff.Retry(ctx, func() (T, error) {
		v, err := fn(ctx)
		if err != nil && permanent(ctx, err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, opts...)
}

// permanent reports errors no retry can fix. A deadline inside one attempt, such as a
// lookup table that has not activated yet, is retried while ctx is still live.
func permanent(ctx context.Context, err error) bool {
	if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return !types.IsRetryableError(err)
}
