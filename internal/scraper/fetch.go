package scraper

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"feedsync/internal/domain"

	"github.com/chromedp/chromedp"
	"github.com/gocolly/colly/v2"
)

const maxBodySize = 5 << 20

// Fetcher retrieves one document. Failures wrap domain.ErrTransport.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

type FetchFunc func(ctx context.Context, url string) ([]byte, error)

func (f FetchFunc) Fetch(ctx context.Context, url string) ([]byte, error) { return f(ctx, url) }

func browserHeaders(userAgent string) map[string]string {
	return map[string]string{
		"User-Agent":      userAgent,
		"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
		"Accept-Language": "en-US,en;q=0.9",
		"Cache-Control":   "no-cache",
	}
}

// throttledFetcher waits on the throttle before delegating, so no fetch can
// bypass the politeness delay.
type throttledFetcher struct {
	next     Fetcher
	throttle *Throttle
}

func Throttled(next Fetcher, t *Throttle) Fetcher {
	return &throttledFetcher{next: next, throttle: t}
}

func (f *throttledFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := f.throttle.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrTransport, url, err)
	}
	return f.next.Fetch(ctx, url)
}

// contextTransport binds every request made by a collector to ctx.
type contextTransport struct {
	base http.RoundTripper
	ctx  context.Context
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.ctx.Err(); err != nil {
		return nil, err
	}
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

// CollyFetcher fetches HTML pages with browser-like headers.
type CollyFetcher struct {
	userAgent string
	timeout   time.Duration
	transport http.RoundTripper
}

func NewCollyFetcher(userAgent string, timeout time.Duration) *CollyFetcher {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CollyFetcher{userAgent: userAgent, timeout: timeout, transport: http.DefaultTransport}
}

func (f *CollyFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrTransport, url, err)
	}

	c := colly.NewCollector(colly.UserAgent(f.userAgent), colly.IgnoreRobotsTxt())
	c.MaxBodySize = maxBodySize
	c.SetRequestTimeout(f.timeout)
	c.WithTransport(&contextTransport{base: f.transport, ctx: ctx})

	var (
		body   []byte
		reqErr error
	)
	c.OnRequest(func(r *colly.Request) {
		for k, v := range browserHeaders(f.userAgent) {
			r.Headers.Set(k, v)
		}
	})
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			reqErr = fmt.Errorf("status %d", r.StatusCode)
			return
		}
		reqErr = err
	})

	if err := c.Visit(url); err != nil && reqErr == nil {
		reqErr = err
	}
	c.Wait()
	if reqErr != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrTransport, url, reqErr)
	}
	return body, nil
}

// HTTPFetcher is a plain GET client with retries, used for feeds and JSON.
// Every attempt, retries included, waits on the throttle first.
type HTTPFetcher struct {
	client    *http.Client
	userAgent string
	attempts  int
	backoff   time.Duration
	throttle  *Throttle
}

func NewHTTPFetcher(userAgent string, timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = 25 * time.Second
	}
	return &HTTPFetcher{
		client:    &http.Client{Timeout: timeout},
		userAgent: userAgent,
		attempts:  3,
		backoff:   300 * time.Millisecond,
	}
}

// WithThrottle sets the delay taken before each outbound attempt.
func (f *HTTPFetcher) WithThrottle(t *Throttle) *HTTPFetcher {
	f.throttle = t
	return f
}

type statusError struct {
	code int
}

func (e *statusError) Error() string { return fmt.Sprintf("status %d", e.code) }

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	attempts := f.attempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := f.throttle.Wait(ctx); err != nil {
			lastErr = err
			break
		}
		body, err := f.get(ctx, url)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		// Client errors will not improve on retry.
		var se *statusError
		if errors.As(err, &se) && se.code >= 400 && se.code < 500 && se.code != http.StatusTooManyRequests {
			break
		}
		if i < attempts-1 {
			if err := sleepContext(ctx, time.Duration(i+1)*f.backoff); err != nil {
				lastErr = err
				break
			}
		}
	}
	return nil, fmt.Errorf("%w: %s: %w", domain.ErrTransport, url, lastErr)
}

func (f *HTTPFetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range browserHeaders(f.userAgent) {
		req.Header.Set(k, v)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &statusError{code: resp.StatusCode}
	}
	return readAllLimit(resp.Body, maxBodySize)
}

// HeadlessFetcher renders the page in headless Chrome and returns the DOM.
type HeadlessFetcher struct {
	userAgent string
	timeout   time.Duration
	settle    time.Duration
}

func NewHeadlessFetcher(userAgent string, timeout time.Duration) *HeadlessFetcher {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	return &HeadlessFetcher{userAgent: userAgent, timeout: timeout, settle: 1500 * time.Millisecond}
}

func (f *HeadlessFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx,
		append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", true),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.UserAgent(f.userAgent),
		)...,
	)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	reqCtx, reqCancel := context.WithTimeout(browserCtx, f.timeout)
	defer reqCancel()

	var html string
	err := chromedp.Run(reqCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(f.settle),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: headless: %w", domain.ErrTransport, url, err)
	}
	if strings.TrimSpace(html) == "" {
		return nil, fmt.Errorf("%w: %s: headless: empty document", domain.ErrTransport, url)
	}
	return []byte(html), nil
}

// fallbackFetcher tries primary, then secondary when primary fails or returns
// nothing.
type fallbackFetcher struct {
	primary   Fetcher
	secondary Fetcher
}

func (f *fallbackFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	body, err := f.primary.Fetch(ctx, url)
	if err == nil && len(strings.TrimSpace(string(body))) > 0 {
		return body, nil
	}
	if ctx.Err() != nil || f.secondary == nil {
		if err == nil {
			err = fmt.Errorf("%w: %s: empty body", domain.ErrTransport, url)
		}
		return nil, err
	}
	return f.secondary.Fetch(ctx, url)
}
