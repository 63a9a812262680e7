package llm

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/felixgeelhaar/genpod/internal/errors"
)

// RetryPolicy bounds retries of transient failures.
type RetryPolicy struct {
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	// OnRetry is called before each wait. Optional.
	OnRetry func(err error, wait time.Duration)
}

// DefaultRetryPolicy returns three retries starting at one second.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:     3,
		InitialBackoff: time.Second,
		MaxBackoff:     30 * time.Second,
	}
}

// Retry runs op until it succeeds, returns a permanent error, or the policy is
// exhausted. Only errors for which IsTransient is true are retried.
func Retry[T any](ctx context.Context, policy RetryPolicy, op func(context.Context) (T, error)) (T, error) {
	b := backoff.NewExponentialBackOff()
	if policy.InitialBackoff > 0 {
		b.InitialInterval = policy.InitialBackoff
	}
	if policy.MaxBackoff > 0 {
		b.MaxInterval = policy.MaxBackoff
	}

	opts := []backoff.RetryOption{
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(max(policy.MaxRetries, 0)) + 1),
		backoff.WithMaxElapsedTime(0),
	}
	if policy.OnRetry != nil {
		opts = append(opts, backoff.WithNotify(policy.OnRetry))
	}

	return backoff.Retry(ctx, func() (T, error) {
		out, err := op(ctx)
		if err == nil {
			return out, nil
		}
		if !IsTransient(err) {
			return out, backoff.Permanent(err)
		}
		return out, err
	}, opts...)
}

// IsTransient reports whether err is worth retrying: retryable API statuses and
// transport failures are, cancellation and coded configuration errors are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		return apiErr.Retryable()
	}
	if _, ok := errors.As(err); ok {
		return false
	}
	return true
}

type retryingClient struct {
	Client
	policy RetryPolicy
}

// WithRetry wraps c so every Generate call runs under policy.
func WithRetry(c Client, policy RetryPolicy) Client {
	return &retryingClient{Client: c, policy: policy}
}

func (r *retryingClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	resp, err := Retry(ctx, r.policy, func(ctx context.Context) (*Response, error) {
		return r.Client.Generate(ctx, req)
	})
	if err != nil {
		return nil, classify(r.Client.Name(), err)
	}
	return resp, nil
}

// classify turns provider failures into coded errors for the CLI.
func classify(provider string, err error) error {
	if _, ok := errors.As(err); ok {
		return err
	}
	var apiErr *APIError
	if stderrors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
			return errors.Wrap(errors.ErrCodeLLMAuth, provider+" rejected the API key", err)
		case apiErr.StatusCode == 429:
			return errors.Wrap(errors.ErrCodeLLMRateLimit, provider+" rate limit exceeded", err).
				WithSuggestion("Raise llm.max_backoff or lower request concurrency")
		}
	}
	if stderrors.Is(err, context.Canceled) {
		return err
	}
	return errors.Wrap(errors.ErrCodeLLMAPI, provider+" call failed", err)
}
