package harvest

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/ppiankov/veracity/internal/model"
)

const (
	scrollPause     = 750 * time.Millisecond
	postWaitTimeout = 20 * time.Second
)

var (
	selPost      = cascadia.MustCompile("article")
	selPostText  = cascadia.MustCompile("div[lang]")
	selPostName  = cascadia.MustCompile("span")
	selPostTime  = cascadia.MustCompile("time")
	selAvatar    = cascadia.MustCompile(`img[src*="profile"]`)
	selFollowers = cascadia.MustCompile(`a[href*="followers"] span`)
	selBio       = cascadia.MustCompile(`div[data-testid="UserDescription"]`)
)

// Browser renders a social profile in Chrome, scrolls to load older posts
// and scrapes the rendered document.
type Browser struct {
	profileURL  string
	headless    bool
	controlURL  string
	scrollLimit int
	userAgent   string
	logger      *zap.Logger
	now         func() time.Time
}

// NewBrowser creates a browser harvester. cfg.ProfileURL is a format string
// taking the subject id. When cfg.ControlURL is set an already running
// browser is used instead of launching one.
func NewBrowser(cfg model.HarvestConfig, opts ...Option) *Browser {
	o := buildOptions(opts)
	profileURL := cfg.ProfileURL
	if profileURL == "" {
		profileURL = "https://x.com/%s"
	}
	return &Browser{
		profileURL:  profileURL,
		headless:    cfg.Headless,
		controlURL:  cfg.ControlURL,
		scrollLimit: cfg.ScrollLimit,
		userAgent:   o.userAgent,
		logger:      o.logger,
		now:         o.now,
	}
}

// Fetch renders the subject's profile and returns its posts inside window
func (b *Browser) Fetch(ctx context.Context, subjectID string, window model.TimeRange) ([]model.RawItem, error) {
	target := fmt.Sprintf(b.profileURL, subjectID)

	doc, err := b.render(ctx, target)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, unavailable(fmt.Errorf("render %s: %w", target, err))
	}

	items, err := ParseProfile(strings.NewReader(doc))
	if err != nil {
		return nil, unavailable(err)
	}

	kept := FilterWindow(items, window, b.now())
	b.logger.Debug("profile harvested",
		zap.String("subject", subjectID),
		zap.Int("posts", len(items)),
		zap.Int("in_window", len(kept)))
	return kept, nil
}

func (b *Browser) render(ctx context.Context, target string) (string, error) {
	controlURL := b.controlURL
	if controlURL == "" {
		l := launcher.New().Context(ctx).Headless(b.headless)
		defer func() {
			l.Kill()
			l.Cleanup()
		}()

		u, err := l.Launch()
		if err != nil {
			return "", fmt.Errorf("launch browser: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return "", fmt.Errorf("connect browser: %w", err)
	}
	defer func() { _ = browser.Close() }()

	page, err := browser.Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("open page: %w", err)
	}
	if b.userAgent != "" {
		if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: b.userAgent}); err != nil {
			return "", fmt.Errorf("set user agent: %w", err)
		}
	}
	if err := page.Navigate(target); err != nil {
		return "", fmt.Errorf("navigate: %w", err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load: %w", err)
	}

	if err := b.scroll(ctx, page); err != nil {
		return "", err
	}

	if _, err := page.Timeout(postWaitTimeout).Element("article"); err != nil {
		return "", fmt.Errorf("no posts rendered: %w", err)
	}

	return page.HTML()
}

// scroll loads older posts until the page stops growing or the limit is hit
func (b *Browser) scroll(ctx context.Context, page *rod.Page) error {
	last, err := scrollHeight(page)
	if err != nil {
		return err
	}

	for i := 0; i < b.scrollLimit; i++ {
		if _, err := page.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`); err != nil {
			return fmt.Errorf("scroll: %w", err)
		}

		t := time.NewTimer(scrollPause)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}

		height, err := scrollHeight(page)
		if err != nil {
			return err
		}
		if height == last {
			break
		}
		last = height
	}
	return nil
}

func scrollHeight(page *rod.Page) (int, error) {
	res, err := page.Eval(`() => document.body.scrollHeight`)
	if err != nil {
		return 0, fmt.Errorf("read scroll height: %w", err)
	}
	return res.Value.Int(), nil
}

// ParseProfile extracts posts from a rendered profile document. Profile
// fields are read once and copied onto every post; missing ones get the
// model placeholders. Posts without text or author are skipped.
func ParseProfile(r io.Reader) ([]model.RawItem, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse HTML: %w", err)
	}

	avatar := orDefault(attr(cascadia.Query(doc, selAvatar), "src"), model.NoProfileImage)
	followers := orDefault(nodeText(cascadia.Query(doc, selFollowers)), model.NoFollowersCount)
	bio := orDefault(nodeText(cascadia.Query(doc, selBio)), model.NoBio)

	var items []model.RawItem
	for _, post := range cascadia.QueryAll(doc, selPost) {
		content := nodeText(cascadia.Query(post, selPostText))
		author := nodeText(cascadia.Query(post, selPostName))
		if content == "" || author == "" {
			continue
		}

		items = append(items, model.RawItem{
			Content:        content,
			Author:         author,
			Timestamp:      orDefault(attr(cascadia.Query(post, selPostTime), "datetime"), model.NoDate),
			Bio:            bio,
			ProfileImage:   avatar,
			FollowersCount: followers,
		})
	}
	return items, nil
}

func nodeText(n *html.Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(strings.Fields(sb.String()), " ")
}

func attr(n *html.Node, key string) string {
	if n == nil {
		return ""
	}
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}
