// Package evidence queries the literature index for citations that bear on
// an extracted statement.
package evidence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/cache"
	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/util"
	"github.com/ppiankov/veracity/internal/worker"
)

// Searcher issues one GET per search against the Evidence Index. It never
// retries; callers own the retry policy.
type Searcher struct {
	baseURL    string
	httpClient *http.Client
	userAgent  string
	maxBody    int64
	limiter    *worker.Limiter
	robots     *util.RobotsChecker
	cache      cache.Cache
	ttl        time.Duration
	logger     *zap.Logger
}

// Option configures a Searcher
type Option func(*Searcher)

// WithLimiter throttles searches under worker.KeyEvidence
func WithLimiter(l *worker.Limiter) Option {
	return func(s *Searcher) { s.limiter = l }
}

// WithRobots consults robots.txt before every search
func WithRobots(rc *util.RobotsChecker) Option {
	return func(s *Searcher) { s.robots = rc }
}

// WithCache memoises parsed citations per query
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(s *Searcher) {
		s.cache = c
		s.ttl = ttl
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(s *Searcher) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewSearcher creates a searcher for the configured index
func NewSearcher(cfg model.EvidenceConfig, client *http.Client, userAgent string, opts ...Option) *Searcher {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 2_000_000
	}

	s := &Searcher{
		baseURL:    cfg.BaseURL,
		httpClient: client,
		userAgent:  userAgent,
		maxBody:    maxBody,
		cache:      cache.Nop{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BuildQuery appends the OR-joined, quoted sources to the statement.
// No sources means no source constraint.
func BuildQuery(statement string, sources []string) string {
	quoted := make([]string, 0, len(sources))
	for _, src := range sources {
		src = strings.TrimSpace(src)
		if src == "" {
			continue
		}
		quoted = append(quoted, strconv.Quote(src))
	}

	if len(quoted) == 0 {
		return strings.TrimSpace(statement)
	}
	return strings.TrimSpace(statement) + " " + strings.Join(quoted, " OR ")
}

// Search returns the citations the index lists for statement. Failures wrap
// model.ErrEvidenceUnavailable.
func (s *Searcher) Search(ctx context.Context, statement string, sources []string) ([]model.Citation, error) {
	query := BuildQuery(statement, sources)
	key := cache.Key("evidence", s.baseURL, query)

	if b, ok := s.cache.Get(key); ok {
		var cached []model.Citation
		if err := json.Unmarshal(b, &cached); err == nil {
			s.logger.Debug("evidence cache hit", zap.String("query", query))
			return cached, nil
		}
	}

	searchURL, err := s.searchURL(query)
	if err != nil {
		return nil, unavailable(err)
	}

	var delay time.Duration
	if s.robots != nil {
		allowed, crawlDelay, err := s.robots.CanFetch(ctx, searchURL)
		if err != nil {
			return nil, unavailable(err)
		}
		if !allowed {
			return nil, unavailable(fmt.Errorf("disallowed by robots.txt: %s", searchURL))
		}
		delay = crawlDelay
	}

	if err := s.limiter.WaitWithDelay(ctx, worker.KeyEvidence, delay); err != nil {
		return nil, err
	}

	citations, err := s.fetch(ctx, searchURL)
	if err != nil {
		s.logger.Debug("evidence search failed", zap.String("query", query), zap.Error(err))
		return nil, err
	}

	s.logger.Debug("evidence search completed", zap.String("query", query), zap.Int("citations", len(citations)))

	// An empty page is often an interstitial; leave it uncached.
	if len(citations) == 0 {
		return citations, nil
	}
	if b, err := json.Marshal(citations); err == nil {
		if err := s.cache.Set(key, b, s.ttl); err != nil {
			s.logger.Warn("evidence cache write failed", zap.Error(err))
		}
	}
	return citations, nil
}

func (s *Searcher) searchURL(query string) (string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base URL: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (s *Searcher) fetch(ctx context.Context, searchURL string) ([]model.Citation, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, unavailable(fmt.Errorf("create request: %w", err))
	}
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, unavailable(fmt.Errorf("execute request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, unavailable(fmt.Errorf("HTTP %d from %s", resp.StatusCode, req.URL.Host))
	}

	citations, err := ParseResults(io.LimitReader(resp.Body, s.maxBody))
	if err != nil {
		return nil, unavailable(err)
	}
	return citations, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %w", model.ErrEvidenceUnavailable, err)
}
