// Package resilient executes database operations against a serverless
// Postgres that suspends itself when idle. Failures that look like a
// sleeping or unreachable database are retried after a wake-up probe;
// anything else fails immediately.
package resilient

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
)

// ErrDatabaseIdle is the terminal error when retries were exhausted
// against a database that still looks suspended.
var ErrDatabaseIdle = errors.New("database idle, please retry")

// ErrUnableToConnect is the terminal error when retries were exhausted
// against a database that never accepted a connection.
var ErrUnableToConnect = errors.New("unable to connect")

// transientMarkers are matched case-insensitively against error text to
// decide whether a failure is worth retrying.
var transientMarkers = []string{"timeout", "connection", "econnrefused", "idle", "sleeping"}

// idleMarkers identify the subset of transient failures caused by a
// suspended database rather than a network fault.
var idleMarkers = []string{"idle", "sleeping"}

const wakeAttempts = 2

// Options configures an Executor. Zero fields fall back to defaults.
type Options struct {
	// MaxRetries bounds the number of attempts per operation.
	MaxRetries int
	// RetryDelay is the fixed pause between attempts.
	RetryDelay time.Duration
	// Timeout bounds each individual attempt. The attempt and the
	// timeout race; a result arriving after the timeout is discarded.
	Timeout time.Duration
	// Wake probes the database to nudge a suspended instance awake.
	// Optional; invoked before every retry, up to wakeAttempts times.
	Wake func(ctx context.Context) error
	// Sleep is swappable for deterministic tests.
	Sleep func(time.Duration)
	// Logger receives raw driver errors. Callers of Do never see them.
	Logger *log.Logger
}

// Executor retries transient database failures with a fixed delay and a
// wake-up probe between attempts. Safe for concurrent use; retries of a
// single operation are always sequential.
type Executor struct {
	maxRetries int
	retryDelay time.Duration
	timeout    time.Duration
	wake       func(ctx context.Context) error
	sleep      func(time.Duration)
	logger     *log.Logger
}

// New builds an Executor, filling in defaults for unset options.
func New(opts Options) *Executor {
	ex := &Executor{
		maxRetries: opts.MaxRetries,
		retryDelay: opts.RetryDelay,
		timeout:    opts.Timeout,
		wake:       opts.Wake,
		sleep:      opts.Sleep,
		logger:     opts.Logger,
	}
	if ex.maxRetries <= 0 {
		ex.maxRetries = 3
	}
	if ex.retryDelay <= 0 {
		ex.retryDelay = 2500 * time.Millisecond
	}
	if ex.timeout <= 0 {
		ex.timeout = 30 * time.Second
	}
	if ex.sleep == nil {
		ex.sleep = time.Sleep
	}
	if ex.logger == nil {
		ex.logger = log.Default()
	}
	return ex
}

// Do runs op under the executor's retry policy and returns its result.
// name labels the operation in logs and terminal error messages.
func Do[T any](ctx context.Context, ex *Executor, name string, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error

	for attempt := 1; attempt <= ex.maxRetries; attempt++ {
		val, err := runOnce(ctx, ex, op)
		if err == nil {
			return val, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, fmt.Errorf("%s: %w", name, ctx.Err())
		}
		if !isTransient(err) {
			ex.logger.Printf("resilient: %s failed (fatal): %v", name, err)
			return zero, fmt.Errorf("%s failed: %w", name, err)
		}

		ex.logger.Printf("resilient: %s attempt %d/%d failed (transient): %v", name, attempt, ex.maxRetries, err)
		if attempt == ex.maxRetries {
			break
		}
		ex.wakeUp(ctx)
		ex.sleep(ex.retryDelay)
	}

	ex.logger.Printf("resilient: %s gave up after %d attempts: %v", name, ex.maxRetries, lastErr)
	category := ErrUnableToConnect
	if isIdle(lastErr) {
		category = ErrDatabaseIdle
	}
	return zero, fmt.Errorf("%s: %w (gave up after %d attempts)", name, category, ex.maxRetries)
}

// runOnce races one attempt of op against the per-attempt timeout.
// The timeout is authoritative: a result that arrives later is dropped.
func runOnce[T any](ctx context.Context, ex *Executor, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	attemptCtx, cancel := context.WithTimeout(ctx, ex.timeout)
	defer cancel()

	type outcome struct {
		val T
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		val, err := op(attemptCtx)
		done <- outcome{val: val, err: err}
	}()

	select {
	case out := <-done:
		return out.val, out.err
	case <-attemptCtx.Done():
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		return zero, fmt.Errorf("operation timeout after %s", ex.timeout)
	}
}

// wakeUp probes the database before a retry, tolerating probe failures.
func (ex *Executor) wakeUp(ctx context.Context) {
	if ex.wake == nil {
		return
	}
	for i := 1; i <= wakeAttempts; i++ {
		err := ex.wake(ctx)
		if err == nil {
			ex.logger.Printf("resilient: wake-up probe %d succeeded", i)
			return
		}
		ex.logger.Printf("resilient: wake-up probe %d failed: %v", i, err)
		if i < wakeAttempts {
			ex.sleep(ex.retryDelay / 2)
		}
	}
}

func isTransient(err error) bool {
	return matchesAny(err, transientMarkers)
}

func isIdle(err error) bool {
	return matchesAny(err, idleMarkers)
}

func matchesAny(err error, markers []string) bool {
	if err == nil {
		return false
	}
	text := strings.ToLower(err.Error())
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}
