// Package remote defines how workers reach the matrix and household servers:
// endpoints, the error taxonomy of a remote call and the bounded retry loop
// every client call runs through.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

var (
	// ErrTransient marks failures worth retrying, such as a refused
	// connection while a server starts.
	ErrTransient = errors.New("transient remote failure")
	// ErrPermanent marks failures retrying cannot fix: a bad endpoint, an
	// unknown procedure, a codec mismatch or an error raised by the server.
	ErrPermanent = errors.New("permanent remote failure")
	// ErrRetryExhausted is returned once every attempt failed transiently.
	ErrRetryExhausted = errors.New("remote retry budget exhausted")
)

// IsFatal reports whether err ends the caller's run.
func IsFatal(err error) bool {
	return errors.Is(err, ErrPermanent) || errors.Is(err, ErrRetryExhausted)
}

// Endpoint is the address of one remote service.
type Endpoint struct {
	Address string `json:"address" yaml:"address"`
	Port    int    `json:"port" yaml:"port"`
	Service string `json:"service" yaml:"service"`
}

func (e Endpoint) Validate() error {
	if e.Address == "" {
		return fmt.Errorf("%w: endpoint %q has no address", ErrPermanent, e.Service)
	}
	if e.Port <= 0 || e.Port > 65535 {
		return fmt.Errorf("%w: endpoint %q port %d", ErrPermanent, e.Service, e.Port)
	}
	return nil
}

// HostPort returns address:port.
func (e Endpoint) HostPort() string {
	return net.JoinHostPort(e.Address, strconv.Itoa(e.Port))
}

// URL returns the cleartext base URL of the endpoint.
func (e Endpoint) URL() string { return "http://" + e.HostPort() }

func (e Endpoint) String() string { return e.Service + "@" + e.HostPort() }

// Locator hands out the endpoints a worker talks to.
type Locator struct {
	Matrix    Endpoint `json:"matrix" yaml:"matrix"`
	Household Endpoint `json:"household" yaml:"household"`
}

// Policy bounds the retry loop.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
	// OnRetry is called after each failed attempt that will be retried.
	OnRetry func(attempt int, err error)
}

// DefaultPolicy retries 100 times one second apart.
func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 100, Backoff: time.Second}
}

// Invoke runs call until it succeeds, fails with an error not marked
// ErrTransient, or has failed MaxAttempts times. The context is checked
// between attempts only. Unmarked errors are reported as ErrPermanent.
func Invoke[T any](ctx context.Context, p Policy, call func(ctx context.Context) (T, error)) (T, error) {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	var (
		out      T
		attempts int
		last     error
	)
	op := func() error {
		attempts++
		v, err := call(ctx)
		if err == nil {
			out = v
			return nil
		}
		last = err
		if !errors.Is(err, ErrTransient) {
			return backoff.Permanent(err)
		}
		if attempts < p.MaxAttempts && p.OnRetry != nil {
			p.OnRetry(attempts, err)
		}
		return err
	}
	b := backoff.WithContext(backoff.WithMaxRetries(backoff.NewConstantBackOff(p.Backoff), uint64(p.MaxAttempts-1)), ctx)
	err := backoff.Retry(op, b)
	if err == nil {
		return out, nil
	}
	var zero T
	switch {
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return zero, fmt.Errorf("remote call abandoned after %d attempts: %w", attempts, err)
	case last == nil:
		return zero, fmt.Errorf("%w: %v", ErrRetryExhausted, err)
	case !errors.Is(last, ErrTransient):
		if errors.Is(last, ErrPermanent) {
			return zero, last
		}
		return zero, fmt.Errorf("%w: %w", ErrPermanent, last)
	default:
		return zero, fmt.Errorf("%w after %d attempts: %w", ErrRetryExhausted, attempts, last)
	}
}

// Transient marks err as retryable.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

// Permanent marks err as not retryable.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrPermanent, err)
}
