package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

var (
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
	ErrContextCanceled    = errors.New("context canceled during retry")
)

// Config controls the backoff schedule.
type Config struct {
	// MaxRetries is the number of retries after the first attempt (0 = single attempt).
	MaxRetries      int
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	// JitterFactor in [0,1], e.g. 0.1 means +/-10%.
	JitterFactor float64
}

// DefaultConfig is tuned for storage calls: 50ms, 100ms, 200ms.
func DefaultConfig() *Config {
	return &Config{
		MaxRetries:      3,
		InitialInterval: 50 * time.Millisecond,
		MaxInterval:     time.Second,
		Multiplier:      2.0,
		JitterFactor:    0.1,
	}
}

type Operation func(ctx context.Context) error

// PermanentError stops the retry loop immediately.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &PermanentError{Err: err}
}

type Result struct {
	Err       error
	Attempts  int
	LastError error
}

type Retrier struct {
	config *Config
}

func New(config *Config) *Retrier {
	if config == nil {
		config = DefaultConfig()
	}
	cfg := *config
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 50 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = time.Second
	}
	if cfg.Multiplier <= 0 {
		cfg.Multiplier = 2.0
	}
	if cfg.JitterFactor < 0 {
		cfg.JitterFactor = 0
	}
	if cfg.JitterFactor > 1 {
		cfg.JitterFactor = 1
	}
	return &Retrier{config: &cfg}
}

// RetryCallback runs before each wait.
type RetryCallback func(attempt int, err error, next time.Duration)

func (r *Retrier) Do(ctx context.Context, op Operation) *Result {
	return r.DoWithCallback(ctx, op, nil)
}

func (r *Retrier) DoWithCallback(ctx context.Context, op Operation, callback RetryCallback) *Result {
	result := &Result{}

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		result.Attempts = attempt + 1

		if err := ctx.Err(); err != nil {
			result.Err = ErrContextCanceled
			if result.LastError == nil {
				result.LastError = err
			}
			return result
		}

		err := op(ctx)
		if err == nil {
			result.Err = nil
			result.LastError = nil
			return result
		}
		result.LastError = err

		var permanent *PermanentError
		if errors.As(err, &permanent) {
			result.Err = permanent.Err
			return result
		}

		if attempt == r.config.MaxRetries {
			break
		}

		wait := r.Interval(attempt)
		if callback != nil {
			callback(attempt+1, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			result.Err = ErrContextCanceled
			return result
		case <-timer.C:
		}
	}

	result.Err = ErrMaxRetriesExceeded
	return result
}

// Interval returns the wait before retry number attempt+1.
func (r *Retrier) Interval(attempt int) time.Duration {
	interval := float64(r.config.InitialInterval) * math.Pow(r.config.Multiplier, float64(attempt))
	if interval > float64(r.config.MaxInterval) {
		interval = float64(r.config.MaxInterval)
	}
	if r.config.JitterFactor > 0 {
		delta := interval * r.config.JitterFactor
		interval += delta * (2*rand.Float64() - 1)
	}
	if interval < 0 {
		interval = 0
	}
	return time.Duration(interval)
}

func (r *Retrier) MaxRetries() int {
	return r.config.MaxRetries
}
