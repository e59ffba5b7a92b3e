package llm

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/testforge/smartfill/internal/config"
	"github.com/testforge/smartfill/internal/domain"
)

// Observer is told about every remote call.
type Observer func(provider domain.ModelProvider, err error, latency time.Duration)

// FactoryConfig holds what the factory needs to build clients.
type FactoryConfig struct {
	Defaults       map[domain.ModelProvider]Config
	BreakerEnabled bool
	Breaker        BreakerConfig
	HTTPClient     *http.Client
}

// FactoryConfigFrom maps application config onto the factory.
func FactoryConfigFrom(cfg *config.Config) FactoryConfig {
	p := cfg.Providers
	base := func(url, model string) Config {
		return Config{
			BaseURL:          url,
			Model:            model,
			MaxTokens:        p.MaxOutputTokens,
			Temperature:      p.Temperature,
			Timeout:          p.Timeout,
			RateLimitRPM:     p.RateLimitRPM,
			AnthropicVersion: p.AnthropicVersion,
		}
	}
	return FactoryConfig{
		Defaults: map[domain.ModelProvider]Config{
			domain.ProviderGemini: base(p.GeminiBaseURL, p.GeminiModel),
			domain.ProviderOpenAI: base(p.OpenAIBaseURL, p.OpenAIModel),
			domain.ProviderClaude: base(p.ClaudeBaseURL, p.ClaudeModel),
		},
		BreakerEnabled: cfg.Breaker.Enabled,
		Breaker: BreakerConfig{
			MaxFailures: cfg.Breaker.FailureThreshold,
			Timeout:     cfg.Breaker.OpenTimeout,
			Interval:    cfg.Breaker.Interval,
			MaxRequests: cfg.Breaker.HalfOpenRequests,
		},
	}
}

// Factory builds providers from the user's settings. Clients are reused
// per provider, model and key so their rate limiters persist across calls.
type Factory struct {
	config   FactoryConfig
	cache    *ResponseCache
	observer Observer
	logger   *zap.Logger

	mu       sync.Mutex
	clients  map[string]Provider
	breakers map[domain.ModelProvider]*gobreaker.CircuitBreaker[*RemoteResponse]
}

// NewFactory creates a provider factory.
func NewFactory(config FactoryConfig, logger *zap.Logger) *Factory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Factory{
		config:   config,
		logger:   logger,
		clients:  make(map[string]Provider),
		breakers: make(map[domain.ModelProvider]*gobreaker.CircuitBreaker[*RemoteResponse]),
	}
}

// SetCache enables response caching.
func (f *Factory) SetCache(cache *ResponseCache) {
	f.cache = cache
}

// SetObserver installs a hook called after each remote call.
func (f *Factory) SetObserver(obs Observer) {
	f.observer = obs
}

// For returns the provider selected by settings.
func (f *Factory) For(settings domain.Settings) (Provider, error) {
	if !settings.ModelProvider.IsRemote() {
		return nil, domain.ErrUnsupportedProvider(string(settings.ModelProvider))
	}
	if settings.APIKey == "" {
		return nil, domain.ErrAPIKeyMissing(settings.ModelProvider)
	}

	cfg, ok := f.config.Defaults[settings.ModelProvider]
	if !ok {
		cfg = DefaultConfig(settings.ModelProvider)
	}
	cfg.APIKey = settings.APIKey
	if settings.Model != "" {
		cfg.Model = settings.Model
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = f.config.HTTPClient
	}

	key := Scope(settings.ModelProvider, cfg.Model, cfg.APIKey)

	f.mu.Lock()
	defer f.mu.Unlock()

	if p, ok := f.clients[key]; ok {
		return p, nil
	}

	client, err := New(settings.ModelProvider, cfg)
	if err != nil {
		return nil, err
	}

	var p Provider = &observedProvider{inner: client, observer: f.observe}
	if f.config.BreakerEnabled {
		cb, ok := f.breakers[settings.ModelProvider]
		if !ok {
			cb = NewBreaker(settings.ModelProvider, f.config.Breaker, f.logger)
			f.breakers[settings.ModelProvider] = cb
		}
		p = WithBreaker(p, cb)
	}
	if f.cache != nil {
		p = WithCache(p, f.cache, key)
	}

	f.clients[key] = p
	return p, nil
}

func (f *Factory) observe(provider domain.ModelProvider, err error, latency time.Duration) {
	if err != nil {
		f.logger.Warn("model request failed",
			zap.String("provider", string(provider)),
			zap.String("code", domain.GetErrorCode(err)),
			zap.Duration("latency", latency),
		)
	} else {
		f.logger.Debug("model request completed",
			zap.String("provider", string(provider)),
			zap.Duration("latency", latency),
		)
	}
	if f.observer != nil {
		f.observer(provider, err, latency)
	}
}

type observedProvider struct {
	inner    Provider
	observer Observer
}

func (p *observedProvider) Name() domain.ModelProvider { return p.inner.Name() }

func (p *observedProvider) Generate(ctx context.Context, prompt Prompt) (*RemoteResponse, error) {
	start := time.Now()
	resp, err := p.inner.Generate(ctx, prompt)
	p.observer(p.inner.Name(), err, time.Since(start))
	return resp, err
}
