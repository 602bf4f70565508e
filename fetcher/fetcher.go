// Package fetcher provides HTTP fetching with optional browser rendering fallback.
package fetcher

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"
)

// Result contains the fetched page and metadata.
type Result struct {
	Status      int
	HTML        string
	FinalURL    string // URL after following redirects
	UsedBrowser bool
	FetchTime   time.Duration
}

// Options configures the fetcher behavior.
type Options struct {
	UserAgent      string
	TimeoutSeconds int
	ChromePath     string // Path to Chrome binary (empty = auto-detect)

	// HostRPS bounds requests per second against a single forum host, so
	// a busy channel cannot hammer the source site. Zero disables limiting.
	HostRPS float64
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		UserAgent:      "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		TimeoutSeconds: 30,
		HostRPS:        1,
	}
}

// Fetcher retrieves forum pages. A single Fetcher is shared by all
// previews and carries the per-host rate limiters.
type Fetcher struct {
	opts     Options
	client   *http.Client
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// New creates a Fetcher with the given options. Zero fields fall back to
// defaults.
func New(opts Options) *Fetcher {
	def := DefaultOptions()
	if opts.UserAgent == "" {
		opts.UserAgent = def.UserAgent
	}
	if opts.TimeoutSeconds <= 0 {
		opts.TimeoutSeconds = def.TimeoutSeconds
	}
	return &Fetcher{
		opts: opts,
		client: &http.Client{
			Timeout: time.Duration(opts.TimeoutSeconds) * time.Second,
		},
		limiters: make(map[string]*rate.Limiter),
	}
}

// Timeout returns the configured per-request bound.
func (f *Fetcher) Timeout() time.Duration {
	return time.Duration(f.opts.TimeoutSeconds) * time.Second
}

func (f *Fetcher) limiter(host string) *rate.Limiter {
	f.mu.Lock()
	defer f.mu.Unlock()
	l, ok := f.limiters[host]
	if !ok {
		l = rate.NewLimiter(rate.Limit(f.opts.HostRPS), 1)
		f.limiters[host] = l
	}
	return l
}

func (f *Fetcher) wait(ctx context.Context, rawURL string) error {
	if f.opts.HostRPS <= 0 {
		return nil
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil // let the request itself surface the bad URL
	}
	return f.limiter(u.Host).Wait(ctx)
}

// Simple fetches a URL using standard HTTP (fast, low bandwidth).
func (f *Fetcher) Simple(ctx context.Context, targetURL string) (*Result, error) {
	start := time.Now()

	if err := f.wait(ctx, targetURL); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "GET", targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", f.opts.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", targetURL, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	return &Result{
		Status:      resp.StatusCode,
		HTML:        string(body),
		FinalURL:    resp.Request.URL.String(),
		UsedBrowser: false,
		FetchTime:   time.Since(start),
	}, nil
}

// stealthScript contains JavaScript to mask automation detection.
// Based on puppeteer-extra-plugin-stealth techniques.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', {
    get: () => undefined,
});
window.chrome = {
    runtime: {},
    loadTimes: function() {},
    csi: function() {},
    app: {},
};
Object.defineProperty(navigator, 'languages', {
    get: () => ['en-US', 'en'],
});
`

// WithBrowser fetches a URL using headless Chrome to execute JavaScript.
// Slower than Simple, but gets past anti-bot interstitials some forums
// put in front of plain HTTP clients.
func (f *Fetcher) WithBrowser(ctx context.Context, targetURL string) (*Result, error) {
	start := time.Now()

	if err := f.wait(ctx, targetURL); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-service-autorun", true),
		chromedp.Flag("password-store", "basic"),
		chromedp.Flag("use-mock-keychain", true),
		chromedp.Flag("headless", "new"),
		chromedp.UserAgent(f.opts.UserAgent),
		chromedp.WindowSize(1920, 1080),
	}
	if f.opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(f.opts.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer allocCancel()

	// Browser fetches need more headroom than plain HTTP.
	timeout := f.Timeout()
	if timeout < 45*time.Second {
		timeout = 45 * time.Second
	}
	bctx, cancel := context.WithTimeout(allocCtx, timeout)
	defer cancel()

	bctx, cancel = chromedp.NewContext(bctx)
	defer cancel()

	var html string
	var finalURL string
	err := chromedp.Run(bctx,
		chromedp.ActionFunc(func(ctx context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(ctx)
			return err
		}),
		network.SetExtraHTTPHeaders(network.Headers(map[string]interface{}{
			"Accept":          "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
			"Accept-Language": "en-US,en;q=0.9",
		})),
		chromedp.Navigate(targetURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var title string
			if err := chromedp.Title(&title).Do(ctx); err != nil {
				return nil
			}
			// Cloudflare challenge needs time to resolve itself.
			if title == "Just a moment..." {
				return chromedp.Sleep(5 * time.Second).Do(ctx)
			}
			return nil
		}),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		chromedp.Location(&finalURL),
	)
	if err != nil {
		return nil, fmt.Errorf("browser fetch: %w", err)
	}

	return &Result{
		Status:      http.StatusOK,
		HTML:        html,
		FinalURL:    finalURL,
		UsedBrowser: true,
		FetchTime:   time.Since(start),
	}, nil
}

// IsBlockedResponse checks if the HTML indicates a blocked/challenged page.
func IsBlockedResponse(html string) (bool, string) {
	if strings.Contains(html, "Just a moment...") {
		return true, "Cloudflare challenge"
	}
	if strings.Contains(html, "Checking your browser") {
		return true, "Cloudflare challenge"
	}
	if strings.Contains(html, "cf-browser-verification") {
		return true, "Cloudflare challenge"
	}
	if strings.Contains(html, "captcha-delivery.com") || strings.Contains(html, "DataDome") {
		return true, "DataDome bot protection"
	}
	if strings.Contains(html, "perimeterx") || strings.Contains(html, "px-captcha") {
		return true, "PerimeterX bot protection"
	}
	return false, ""
}

// Smart fetches a URL using the best available method: plain HTTP first,
// falling back to the browser when the response looks like a bot wall.
func (f *Fetcher) Smart(ctx context.Context, targetURL string) (*Result, error) {
	result, err := f.Simple(ctx, targetURL)
	if err == nil && result.Status == http.StatusOK {
		if blocked, _ := IsBlockedResponse(result.HTML); !blocked {
			return result, nil
		}
	}
	if err == nil && result.Status != http.StatusOK {
		// Non-200 is terminal for the preview pipeline; a browser
		// retry only helps when the block is a JS challenge.
		if blocked, _ := IsBlockedResponse(result.HTML); !blocked {
			return result, nil
		}
	}

	result, err = f.WithBrowser(ctx, targetURL)
	if err != nil {
		return nil, err
	}
	if blocked, reason := IsBlockedResponse(result.HTML); blocked {
		return result, fmt.Errorf("blocked: %s", reason)
	}
	return result, nil
}
