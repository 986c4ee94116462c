// Package poller implements the caller side of payment verification: a
// bounded retry loop around the verify endpoint.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"time"
)

const (
	DefaultMaxAttempts    = 3
	DefaultAttemptTimeout = 15 * time.Second
)

type Kind string

const (
	KindNotFound Kind = "not_found"
	KindTimeout  Kind = "timeout"
	KindUpstream Kind = "upstream"
	KindGeneric  Kind = "generic"
)

// Outcome is a successful verification.
type Outcome struct {
	Reference string
	Signature string
}

// Verifier performs a single verification attempt.
type Verifier interface {
	Verify(ctx context.Context, reference string) (*Outcome, error)
}

// StatusError is a non-success answer from the verify endpoint.
type StatusError struct {
	Kind       Kind
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return fmt.Sprintf("HTTP error %d", e.StatusCode)
}

// PollError is returned once every attempt has failed.
type PollError struct {
	Kind     Kind
	Attempts int
	Err      error
}

func (e *PollError) Error() string {
	return fmt.Sprintf("verification failed after %d attempts (%s): %v", e.Attempts, e.Kind, e.Err)
}

func (e *PollError) Unwrap() error { return e.Err }

// Message is the text shown to a person waiting on the payment.
func (e *PollError) Message() string {
	switch e.Kind {
	case KindNotFound:
		return "Transaction not found yet. It may still be processing - please wait a few moments and try again."
	case KindTimeout:
		return "Network timeout - please check your connection and try again."
	case KindUpstream:
		return "Network issue - please try again later."
	default:
		return "Verification failed: " + e.Err.Error()
	}
}

type Poller struct {
	Verifier       Verifier
	MaxAttempts    int
	AttemptTimeout time.Duration
	// Backoff returns the pause after a failed attempt (1-based).
	Backoff func(attempt int) time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

func New(v Verifier) *Poller {
	return &Poller{
		Verifier:       v,
		MaxAttempts:    DefaultMaxAttempts,
		AttemptTimeout: DefaultAttemptTimeout,
		Backoff:        LinearBackoff(2 * time.Second),
	}
}

// LinearBackoff waits attempt*step between attempts.
func LinearBackoff(step time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return time.Duration(attempt) * step
	}
}

// Poll calls the verifier until it reports success or the attempts run out.
// Every failure kind is retried; the returned *PollError carries the kind of
// the last failure.
func (p *Poller) Poll(ctx context.Context, reference string) (*Outcome, error) {
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	sleep := p.sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	var lastKind Kind
	attempt := 1
	for ; attempt <= maxAttempts; attempt++ {
		out, err := p.attempt(ctx, reference)
		if err == nil {
			slog.Info("payment verified", "reference", reference, "attempt", attempt)
			return out, nil
		}

		lastErr, lastKind = err, Classify(err)
		slog.Debug("verification attempt failed",
			"reference", reference,
			"attempt", attempt,
			"kind", string(lastKind),
			"error", err,
		)

		if attempt == maxAttempts {
			break
		}
		if p.Backoff != nil {
			if err := sleep(ctx, p.Backoff(attempt)); err != nil {
				return nil, &PollError{Kind: KindTimeout, Attempts: attempt, Err: err}
			}
		}
	}

	return nil, &PollError{Kind: lastKind, Attempts: attempt, Err: lastErr}
}

func (p *Poller) attempt(ctx context.Context, reference string) (*Outcome, error) {
	if p.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.AttemptTimeout)
		defer cancel()
	}
	return p.Verifier.Verify(ctx, reference)
}

// Classify maps an attempt error to a failure kind.
func Classify(err error) Kind {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return KindTimeout
		}
		return KindUpstream
	}
	return KindGeneric
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
