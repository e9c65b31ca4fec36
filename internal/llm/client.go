package llm

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/cache"
	"github.com/ppiankov/veracity/internal/worker"
)

// Client is the inference entry point used by the analyzer. It throttles
// calls on the shared limiter and memoises non-empty answers.
type Client struct {
	provider Provider
	limiter  *worker.Limiter
	cache    cache.Cache
	ttl      time.Duration
	logger   *zap.Logger
	scope    string
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithLimiter throttles calls under worker.KeyInference
func WithLimiter(l *worker.Limiter) ClientOption {
	return func(c *Client) { c.limiter = l }
}

// WithCache memoises answers for ttl. scope separates entries of different
// models on the same provider.
func WithCache(ch cache.Cache, ttl time.Duration, scope string) ClientOption {
	return func(c *Client) {
		c.cache = ch
		c.ttl = ttl
		c.scope = scope
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient wraps a provider
func NewClient(p Provider, opts ...ClientOption) *Client {
	c := &Client{
		provider: p,
		cache:    cache.Nop{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the wrapped provider's name
func (c *Client) Name() string {
	return c.provider.Name()
}

// Complete returns the provider's answer for prompt
func (c *Client) Complete(ctx context.Context, prompt string) (string, error) {
	key := cache.Key("inference", c.provider.Name(), c.scope, prompt)
	if b, ok := c.cache.Get(key); ok {
		c.logger.Debug("inference cache hit", zap.String("provider", c.provider.Name()))
		return string(b), nil
	}

	if err := c.limiter.Wait(ctx, worker.KeyInference); err != nil {
		return "", err
	}

	start := time.Now()
	out, err := c.provider.Complete(ctx, prompt)
	if err != nil {
		c.logger.Debug("inference failed",
			zap.String("provider", c.provider.Name()),
			zap.Duration("took", time.Since(start)),
			zap.Error(err))
		return "", err
	}

	c.logger.Debug("inference completed",
		zap.String("provider", c.provider.Name()),
		zap.Int("chars", len(out)),
		zap.Duration("took", time.Since(start)))

	// malformed responses are not cached
	if out != "" {
		if err := c.cache.Set(key, []byte(out), c.ttl); err != nil {
			c.logger.Warn("inference cache write failed", zap.Error(err))
		}
	}
	return out, nil
}
