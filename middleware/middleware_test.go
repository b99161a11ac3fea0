package middleware

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"log/slog"
	"strings"
	"testing"
	"time"

	genuierrors "github.com/sweetpotato0/genui/errors"
	"github.com/sweetpotato0/genui/message"
	"github.com/sweetpotato0/genui/model"
	"github.com/sweetpotato0/genui/model/modeltest"
)

func request() model.Request {
	return model.Request{Messages: []*message.Message{message.NewMessage(message.RoleUser, "hi")}}
}

func collect(c model.Client, ctx context.Context) []model.Event {
	var out []model.Event
	for ev := range c.Stream(ctx, request()) {
		out = append(out, ev)
	}
	return out
}

// TestMiddleware records the order in which wrapped clients are entered.
type TestMiddleware struct {
	name  string
	order *[]string
}

func (m *TestMiddleware) Name() string { return m.name }

func (m *TestMiddleware) Wrap(next model.Client) model.Client {
	return model.ClientFunc(func(ctx context.Context, req model.Request) iter.Seq[model.Event] {
		*m.order = append(*m.order, m.name)
		return next.Stream(ctx, req)
	})
}

func TestChain(t *testing.T) {
	t.Run("empty chain returns the client", func(t *testing.T) {
		script := modeltest.New(modeltest.Text("ok"))
		events := collect(NewChain().Then(script), context.Background())
		if len(events) != 2 {
			t.Fatalf("expected 2 events, got %d", len(events))
		}
	})

	t.Run("middleware runs in order", func(t *testing.T) {
		var order []string
		chain := NewChain(&TestMiddleware{name: "m1", order: &order}).
			Add(&TestMiddleware{name: "m2", order: &order})

		collect(chain.Then(modeltest.New(modeltest.Text("ok"))), context.Background())

		if strings.Join(order, ",") != "m1,m2" {
			t.Errorf("unexpected order %v", order)
		}
		if strings.Join(chain.Names(), ",") != "m1,m2" {
			t.Errorf("unexpected names %v", chain.Names())
		}
	})
}

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	client := NewRequestLogger(logger).Wrap(modeltest.New(modeltest.Call("setDevice", "c1", `{}`)))
	events := collect(client, context.Background())
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}

	out := buf.String()
	for _, want := range []string{"model request", "messages=1", "outcome=capability:setDevice", "events=1"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q does not contain %q", out, want)
		}
	}
}

func TestRequestLoggerEarlyStop(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	client := NewRequestLogger(logger).Wrap(modeltest.New(modeltest.Text("a", "b", "c")))
	for range client.Stream(context.Background(), request()) {
		break
	}
	if !strings.Contains(buf.String(), "outcome=abandoned") {
		t.Errorf("unexpected log %q", buf.String())
	}
}

func TestRecoverer(t *testing.T) {
	panicky := model.ClientFunc(func(ctx context.Context, req model.Request) iter.Seq[model.Event] {
		return func(yield func(model.Event) bool) {
			if !yield(model.TextDelta{ContentSoFar: "h"}) {
				return
			}
			panic("boom")
		}
	})

	events := collect(NewRecoverer().Wrap(panicky), context.Background())
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	se, ok := events[1].(model.StreamError)
	if !ok {
		t.Fatalf("expected StreamError, got %T", events[1])
	}
	if !errors.Is(se.Err, genuierrors.ErrModelUnavailable) || !strings.Contains(se.Err.Error(), "boom") {
		t.Errorf("unexpected error %v", se.Err)
	}
}

func TestRecovererDoesNotSwallowConsumerPanics(t *testing.T) {
	client := NewRecoverer().Wrap(modeltest.New(modeltest.Text("a", "b")))

	defer func() {
		if r := recover(); r != "consumer" {
			t.Errorf("expected consumer panic, got %v", r)
		}
	}()
	for range client.Stream(context.Background(), request()) {
		panic("consumer")
	}
}

func TestRateLimiter(t *testing.T) {
	// One request per hour: the first is admitted by the burst, the second
	// cannot be admitted before the deadline.
	limiter := NewRateLimiter(1.0/60, 1)
	client := limiter.Wrap(modeltest.New(modeltest.Text("ok")))

	if events := collect(client, context.Background()); len(events) != 2 {
		t.Fatalf("expected first request to pass, got %v", events)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	events := collect(client, ctx)
	if len(events) != 1 {
		t.Fatalf("expected a single error event, got %v", events)
	}
	se := events[0].(model.StreamError)
	if !errors.Is(se.Err, ErrRateLimitExceeded) {
		t.Errorf("expected rate limit error, got %v", se.Err)
	}
	if !genuierrors.IsRecoverable(se.Err) {
		t.Error("rate limit errors should be recoverable")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	client := NewRateLimiter(0, 0).Wrap(modeltest.New(modeltest.Text("ok")))
	for i := 0; i < 5; i++ {
		if events := collect(client, context.Background()); len(events) != 2 {
			t.Fatalf("request %d: got %v", i, events)
		}
	}
}
