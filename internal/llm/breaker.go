package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures the circuit breaker around stream opening.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32 `yaml:"max_failures"`
	// Timeout is how long the circuit stays open before a probe is allowed.
	Timeout time.Duration `yaml:"timeout"`
	// Interval clears failure counts while closed. 0 keeps them until the circuit opens.
	Interval time.Duration `yaml:"interval"`
}

// BreakerClient fails fast while the wrapped provider keeps failing to open
// streams. Errors after a stream is open do not count against the provider.
// It never retries a call.
type BreakerClient struct {
	inner   Client
	breaker *gobreaker.CircuitBreaker[StreamReader]
}

var _ Client = (*BreakerClient)(nil)

func NewBreakerClient(inner Client, cfg BreakerConfig, log *slog.Logger) *BreakerClient {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[StreamReader](gobreaker.Settings{
		Name:        "llm:" + inner.Provider(),
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if log != nil {
				log.Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
			}
		},
		IsSuccessful: func(err error) bool {
			// A caller giving up says nothing about provider health.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &BreakerClient{inner: inner, breaker: cb}
}

func (b *BreakerClient) ChatStream(ctx context.Context, req *ChatRequest) (StreamReader, error) {
	stream, err := b.breaker.Execute(func() (StreamReader, error) {
		return b.inner.ChatStream(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("provider %q circuit open: %w", b.inner.Provider(), err)
		}
		return nil, err
	}
	return stream, nil
}

func (b *BreakerClient) Provider() string { return b.inner.Provider() }

func (b *BreakerClient) Model() string { return b.inner.Model() }

// State returns the current breaker state for monitoring.
func (b *BreakerClient) State() gobreaker.State {
	return b.breaker.State()
}
