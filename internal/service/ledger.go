package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"campus-ticketing/config"
	"campus-ticketing/internal/metrics"
	"campus-ticketing/internal/repository"
	apperrors "campus-ticketing/pkg/app_errors"
	"campus-ticketing/pkg/logger"
	"campus-ticketing/pkg/retry"

	"go.uber.org/zap"
)

// LedgerOptions bounds every store call made by a service.
type LedgerOptions struct {
	Timeout time.Duration
	Retry   *retry.Config
}

func LedgerOptionsFromConfig(cfg config.LedgerConfig) LedgerOptions {
	return LedgerOptions{
		Timeout: cfg.Timeout,
		Retry: &retry.Config{
			MaxRetries:      cfg.MaxRetries,
			InitialInterval: cfg.RetryInitial,
			MaxInterval:     cfg.RetryMax,
			Multiplier:      2.0,
			JitterFactor:    0.1,
		},
	}
}

type ledgerRunner struct {
	retrier *retry.Retrier
	timeout time.Duration
	log     *zap.Logger
}

func newLedgerRunner(opts LedgerOptions, component string) ledgerRunner {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return ledgerRunner{
		retrier: retry.New(opts.Retry),
		timeout: timeout,
		log:     logger.WithComponent(component),
	}
}

// run executes fn with a per-attempt timeout, retrying only transient store failures.
// Exhausted retries and cancelled callers surface as apperrors.ErrUnavailable.
func (l ledgerRunner) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	result := l.retrier.DoWithCallback(ctx, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, l.timeout)
		defer cancel()

		err := fn(attemptCtx)
		if err == nil || repository.IsTransient(err) {
			return err
		}
		return retry.Permanent(err)
	}, func(attempt int, err error, next time.Duration) {
		metrics.LedgerRetriesTotal.WithLabelValues(op).Inc()
		l.log.Warn("Transient ledger failure, retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", next),
			zap.Error(err))
	})

	err := result.Err
	switch {
	case err == nil:
		return nil
	case errors.Is(err, retry.ErrMaxRetriesExceeded), errors.Is(err, retry.ErrContextCanceled), ctx.Err() != nil:
		metrics.LedgerUnavailableTotal.WithLabelValues(op).Inc()
		l.log.Error("Ledger unavailable",
			zap.String("operation", op),
			zap.Int("attempts", result.Attempts),
			zap.Error(result.LastError))
		return fmt.Errorf("%w: %s: %v", apperrors.ErrUnavailable, op, result.LastError)
	default:
		return err
	}
}

// call is run for operations that return a value. The value is kept even when fn
// fails so callers can inspect the current row behind repository.ErrStaleStatus.
func call[T any](ctx context.Context, l ledgerRunner, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := l.run(ctx, op, func(ctx context.Context) error {
		v, err := fn(ctx)
		out = v
		return err
	})
	return out, err
}

func isStale(err error) bool {
	return errors.Is(err, repository.ErrStaleStatus)
}
