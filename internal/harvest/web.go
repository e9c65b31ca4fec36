package harvest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"

	"github.com/ppiankov/veracity/internal/model"
	"github.com/ppiankov/veracity/internal/util"
	"github.com/ppiankov/veracity/internal/worker"
)

const maxPageBytes = 5_000_000

// Web harvests statements from a subject's configured pages. The readable
// body of each page is split into sentences and each sentence becomes one
// item.
type Web struct {
	pages      map[string][]string
	httpClient *http.Client
	userAgent  string
	limiter    *worker.Limiter
	robots     *util.RobotsChecker
	logger     *zap.Logger
	now        func() time.Time
}

// NewWeb creates a web harvester over pages (subject -> page URLs)
func NewWeb(pages map[string][]string, opts ...Option) *Web {
	o := buildOptions(opts)

	client := *o.client
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		if len(via) >= 3 {
			return fmt.Errorf("stopped after 3 redirects")
		}
		return nil
	}

	return &Web{
		pages:      pages,
		httpClient: &client,
		userAgent:  o.userAgent,
		limiter:    o.limiter,
		robots:     o.robots,
		logger:     o.logger,
		now:        o.now,
	}
}

type page struct {
	text      string
	byline    string
	excerpt   string
	image     string
	published string
}

// Fetch harvests every configured page of subjectID in order. A failing page
// is skipped; the fetch fails only when no page could be read.
func (w *Web) Fetch(ctx context.Context, subjectID string, window model.TimeRange) ([]model.RawItem, error) {
	urls := w.pages[subjectID]
	if len(urls) == 0 {
		return nil, unavailable(fmt.Errorf("no pages configured for subject %q", subjectID))
	}

	var (
		items   []model.RawItem
		seen    = make(map[string]bool)
		lastErr error
		read    int
	)

	for _, rawURL := range urls {
		p, err := w.fetchPage(ctx, rawURL)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			w.logger.Warn("page harvest failed", zap.String("url", rawURL), zap.Error(err))
			lastErr = err
			continue
		}
		read++

		for _, sentence := range splitSentences(p.text) {
			key := strings.ToLower(sentence)
			if seen[key] {
				continue
			}
			seen[key] = true

			items = append(items, model.RawItem{
				Content:        sentence,
				Author:         orDefault(p.byline, subjectID),
				Timestamp:      orDefault(p.published, model.NoDate),
				Bio:            orDefault(p.excerpt, model.NoBio),
				ProfileImage:   orDefault(p.image, model.NoProfileImage),
				FollowersCount: model.NoFollowersCount,
			})
		}
	}

	if read == 0 {
		return nil, unavailable(lastErr)
	}
	return FilterWindow(items, window, w.now()), nil
}

func (w *Web) fetchPage(ctx context.Context, rawURL string) (*page, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid URL: %s", rawURL)
	}

	var delay time.Duration
	if w.robots != nil {
		allowed, crawlDelay, err := w.robots.CanFetch(ctx, rawURL)
		if err != nil {
			return nil, err
		}
		if !allowed {
			return nil, fmt.Errorf("disallowed by robots.txt: %s", rawURL)
		}
		delay = crawlDelay
	}

	key, err := worker.HostKey(rawURL)
	if err != nil {
		return nil, err
	}
	if err := w.limiter.WaitWithDelay(ctx, key, delay); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if w.userAgent != "" {
		req.Header.Set("User-Agent", w.userAgent)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status: %d %s", resp.StatusCode, resp.Status)
	}

	article, err := readability.FromReader(io.LimitReader(resp.Body, maxPageBytes), resp.Request.URL)
	if err != nil {
		return nil, fmt.Errorf("extract readable content: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return nil, errors.New("page has no readable text")
	}

	p := &page{
		text:    text,
		byline:  strings.TrimSpace(article.Byline),
		excerpt: strings.TrimSpace(article.Excerpt),
		image:   strings.TrimSpace(article.Image),
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if ts, err := http.ParseTime(lm); err == nil {
			p.published = ts.UTC().Format(time.RFC3339)
		}
	}
	return p, nil
}

// splitSentences breaks text on terminal punctuation followed by
// whitespace. Fragments shorter than 30 or longer than 500 bytes are
// dropped.
func splitSentences(text string) []string {
	text = strings.Join(strings.Fields(text), " ")

	var sentences []string
	var current strings.Builder

	keep := func() {
		sentence := strings.TrimSpace(current.String())
		if len(sentence) >= 30 && len(sentence) <= 500 {
			sentences = append(sentences, sentence)
		}
		current.Reset()
	}

	for i, r := range text {
		current.WriteRune(r)
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		next := i + utf8.RuneLen(r)
		if next < len(text) && text[next] == ' ' {
			keep()
		}
	}
	if current.Len() > 0 {
		keep()
	}

	return sentences
}
