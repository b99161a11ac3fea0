// Package middleware decorates a model.Client: request logging, panic
// recovery and rate limiting, composed in a chain.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"time"

	genuierrors "github.com/sweetpotato0/genui/errors"
	"github.com/sweetpotato0/genui/model"
	"golang.org/x/time/rate"
)

// ErrRateLimitExceeded indicates the limiter could not admit the request
// before the caller's deadline.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// Middleware wraps a model client.
type Middleware interface {
	// Name returns the name of the middleware for logging and debugging
	Name() string
	// Wrap returns a client that runs the middleware around next.
	Wrap(next model.Client) model.Client
}

// Chain represents a sequence of middleware. The first one added is the
// outermost.
type Chain struct {
	middlewares []Middleware
}

// NewChain creates a new middleware chain
func NewChain(middlewares ...Middleware) *Chain {
	return &Chain{middlewares: middlewares}
}

// Add appends a middleware to the chain
func (c *Chain) Add(m Middleware) *Chain {
	c.middlewares = append(c.middlewares, m)
	return c
}

// Names lists the middleware in execution order.
func (c *Chain) Names() []string {
	names := make([]string, len(c.middlewares))
	for i, m := range c.middlewares {
		names[i] = m.Name()
	}
	return names
}

// Then wraps client with every middleware of the chain.
func (c *Chain) Then(client model.Client) model.Client {
	for i := len(c.middlewares) - 1; i >= 0; i-- {
		client = c.middlewares[i].Wrap(client)
	}
	return client
}

// RequestLogger logs each model request and how its stream ended.
type RequestLogger struct {
	logger *slog.Logger
}

// NewRequestLogger creates a request logging middleware
func NewRequestLogger(logger *slog.Logger) *RequestLogger {
	return &RequestLogger{logger: logger}
}

func (m *RequestLogger) Name() string {
	return "RequestLogger"
}

func (m *RequestLogger) Wrap(next model.Client) model.Client {
	return model.ClientFunc(func(ctx context.Context, req model.Request) iter.Seq[model.Event] {
		return func(yield func(model.Event) bool) {
			start := time.Now()
			m.logger.Debug("model request",
				"messages", len(req.Messages),
				"capabilities", len(req.Capabilities))

			events := 0
			outcome := "abandoned"
			defer func() {
				m.logger.Info("model response",
					"outcome", outcome,
					"events", events,
					"duration", time.Since(start))
			}()

			for ev := range next.Stream(ctx, req) {
				events++
				if model.IsTerminal(ev) {
					outcome = describe(ev)
				}
				if !yield(ev) {
					return
				}
			}
			if outcome == "abandoned" {
				outcome = "no_terminal"
			}
		}
	})
}

func describe(ev model.Event) string {
	switch e := ev.(type) {
	case model.TextDelta:
		return "text"
	case model.CapabilityCall:
		return "capability:" + e.Name
	case model.StreamError:
		return "error: " + fmt.Sprint(e.Err)
	default:
		return fmt.Sprintf("%T", ev)
	}
}

// Recoverer turns a panic inside the wrapped client into a StreamError.
// Panics raised by the consumer's loop body are not intercepted.
type Recoverer struct{}

// NewRecoverer creates a panic recovery middleware
func NewRecoverer() *Recoverer {
	return &Recoverer{}
}

func (m *Recoverer) Name() string {
	return "Recoverer"
}

func (m *Recoverer) Wrap(next model.Client) model.Client {
	return model.ClientFunc(func(ctx context.Context, req model.Request) iter.Seq[model.Event] {
		return func(yield func(model.Event) bool) {
			inBody := false
			stopped := false
			defer func() {
				if stopped {
					return
				}
				r := recover()
				if r == nil {
					return
				}
				if inBody {
					panic(r)
				}
				yield(model.StreamError{Err: &genuierrors.ModelUnavailableError{
					Op:  "stream",
					Err: fmt.Errorf("client panic: %v", r),
				}})
			}()

			for ev := range next.Stream(ctx, req) {
				inBody = true
				ok := yield(ev)
				inBody = false
				if !ok {
					stopped = true
					return
				}
			}
		}
	})
}

// RateLimiter delays requests to stay under a request rate.
type RateLimiter struct {
	limiter *rate.Limiter
}

// NewRateLimiter admits perMinute requests per minute with the given burst.
// A non-positive rate disables limiting.
func NewRateLimiter(perMinute float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(perMinute / 60)
	}
	return &RateLimiter{limiter: rate.NewLimiter(limit, burst)}
}

func (m *RateLimiter) Name() string {
	return "RateLimiter"
}

func (m *RateLimiter) Wrap(next model.Client) model.Client {
	return model.ClientFunc(func(ctx context.Context, req model.Request) iter.Seq[model.Event] {
		return func(yield func(model.Event) bool) {
			if err := m.limiter.Wait(ctx); err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					yield(model.StreamError{Err: ctxErr})
					return
				}
				yield(model.StreamError{Err: &genuierrors.ModelUnavailableError{
					Op:  "rate_limit",
					Err: fmt.Errorf("%w: %v", ErrRateLimitExceeded, err),
				}})
				return
			}
			for ev := range next.Stream(ctx, req) {
				if !yield(ev) {
					return
				}
			}
		}
	})
}
