package llm

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/testforge/smartfill/internal/domain"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 3
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures the circuit breaker around a provider.
type BreakerConfig struct {
	MaxFailures uint32
	Timeout     time.Duration
	Interval    time.Duration
	MaxRequests uint32
}

// NewBreaker creates a breaker that opens after MaxFailures consecutive failures.
func NewBreaker(provider domain.ModelProvider, cfg BreakerConfig, logger *zap.Logger) *gobreaker.CircuitBreaker[*RemoteResponse] {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = defaultCBMaxFailures
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultCBTimeout
	}
	if cfg.Interval == 0 {
		cfg.Interval = defaultCBInterval
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return gobreaker.NewCircuitBreaker[*RemoteResponse](gobreaker.Settings{
		Name:        "provider:" + string(provider),
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// caller cancellation says nothing about provider health
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
}

// BreakerProvider routes calls through a circuit breaker so a failing
// provider fails fast instead of waiting out its timeout on every request.
type BreakerProvider struct {
	inner   Provider
	breaker *gobreaker.CircuitBreaker[*RemoteResponse]
}

// WithBreaker wraps inner.
func WithBreaker(inner Provider, cb *gobreaker.CircuitBreaker[*RemoteResponse]) *BreakerProvider {
	return &BreakerProvider{inner: inner, breaker: cb}
}

// Name implements Provider.
func (p *BreakerProvider) Name() domain.ModelProvider { return p.inner.Name() }

// Generate implements Provider.
func (p *BreakerProvider) Generate(ctx context.Context, prompt Prompt) (*RemoteResponse, error) {
	resp, err := p.breaker.Execute(func() (*RemoteResponse, error) {
		return p.inner.Generate(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, domain.ErrProviderUnavailable(p.inner.Name(), err)
		}
		return nil, err
	}
	return resp, nil
}

// State returns the current breaker state.
func (p *BreakerProvider) State() gobreaker.State {
	return p.breaker.State()
}
