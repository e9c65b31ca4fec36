// Package harvest supplies the raw public statements of a subject. Three
// sources are available: a YAML fixture, plain web pages, and a rendered
// social profile driven through a headless browser.
package harvest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/util"
	"github.com/ppiankov/veracity/internal/worker"
)

// Harvester returns the items a subject published inside window
type Harvester interface {
	Fetch(ctx context.Context, subjectID string, window model.TimeRange) ([]model.RawItem, error)
}

type options struct {
	client    *http.Client
	userAgent string
	limiter   *worker.Limiter
	robots    *util.RobotsChecker
	logger    *zap.Logger
	now       func() time.Time
}

// Option configures a harvester
type Option func(*options)

// WithHTTPClient sets the client used by the web source
func WithHTTPClient(c *http.Client, userAgent string) Option {
	return func(o *options) {
		o.client = c
		o.userAgent = userAgent
	}
}

// WithLimiter throttles page fetches per host
func WithLimiter(l *worker.Limiter) Option {
	return func(o *options) { o.limiter = l }
}

// WithRobots consults robots.txt before fetching pages
func WithRobots(rc *util.RobotsChecker) Option {
	return func(o *options) { o.robots = rc }
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithClock overrides the clock used for time-window cutoffs
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.client == nil {
		o.client = &http.Client{Timeout: 30 * time.Second}
	}
	return o
}

// New builds the harvester named by cfg.Source
func New(cfg model.HarvestConfig, opts ...Option) (Harvester, error) {
	switch cfg.Source {
	case "fixture", "":
		return NewFixture(cfg.FixturePath, opts...)
	case "web":
		return NewWeb(cfg.Pages, opts...), nil
	case "browser":
		return NewBrowser(cfg, opts...), nil
	default:
		return nil, fmt.Errorf("unsupported harvest source: %s", cfg.Source)
	}
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", model.ErrHarvestUnavailable, err)
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
