package flashscore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/chromedp"
	"github.com/sirupsen/logrus"
)

const (
	// UserAgent for the headless browser
	UserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/126.0.0.0 Safari/537.36"

	// MinRequestInterval spaces page loads to avoid rate limiting
	MinRequestInterval = 2 * time.Second

	// showMoreSelector is the "Show more matches" link on fixture pages
	showMoreSelector = "a.wclButtonLink"

	maxShowMoreClicks = 10
	settleDelay       = 2 * time.Second
	clickDelay        = 2 * time.Second
	pageTimeout       = 60 * time.Second

	// PageBudget is the worst case for one page: rate limit, settle and
	// every "show more" click, plus slack for navigation
	PageBudget = MinRequestInterval + settleDelay + maxShowMoreClicks*clickDelay + 10*time.Second
)

// Renderer returns the fully rendered HTML of a page
type Renderer interface {
	Render(ctx context.Context, url string) (string, error)
}

// ChromeRenderer renders pages in headless Chrome
type ChromeRenderer struct {
	mu          sync.Mutex
	lastRequest time.Time
	interval    time.Duration
	timezone    string

	allocCtx context.Context
	cancel   context.CancelFunc
	logger   *logrus.Logger
}

// NewChromeRenderer starts a browser allocator; pages render in timezone
// (an IANA name) so fixture times come out in local time.
func NewChromeRenderer(timezone string, logger *logrus.Logger) *ChromeRenderer {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.WindowSize(1920, 1080),
		chromedp.UserAgent(UserAgent),
	)

	allocCtx, cancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &ChromeRenderer{
		interval: MinRequestInterval,
		timezone: timezone,
		allocCtx: allocCtx,
		cancel:   cancel,
		logger:   logger,
	}
}

// Close releases the browser
func (c *ChromeRenderer) Close() {
	if c.cancel != nil {
		c.cancel()
	}
}

// Render implements Renderer
func (c *ChromeRenderer) Render(ctx context.Context, url string) (string, error) {
	if err := c.wait(ctx); err != nil {
		return "", err
	}

	browserCtx, cancel := chromedp.NewContext(c.allocCtx)
	defer cancel()

	browserCtx, cancel = context.WithTimeout(browserCtx, pageTimeout)
	defer cancel()

	// stop rendering when the caller gives up
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	actions := []chromedp.Action{}
	if c.timezone != "" {
		actions = append(actions, emulation.SetTimezoneOverride(c.timezone))
	}
	actions = append(actions,
		chromedp.Navigate(url),
		chromedp.WaitVisible(`body`, chromedp.ByQuery),
		chromedp.Sleep(settleDelay),
	)
	if err := chromedp.Run(browserCtx, actions...); err != nil {
		return "", fmt.Errorf("chromedp error: %w", err)
	}

	for i := 0; i < maxShowMoreClicks; i++ {
		var clicked bool
		err := chromedp.Run(browserCtx,
			chromedp.Evaluate(fmt.Sprintf(`(() => { const b = document.querySelector(%q); if (!b) return false; b.click(); return true; })()`, showMoreSelector), &clicked),
		)
		if err != nil || !clicked {
			break
		}
		c.logger.WithField("url", url).Debug("flashscore: loading more matches")
		if err := chromedp.Run(browserCtx, chromedp.Sleep(clickDelay)); err != nil {
			break
		}
	}

	var htmlContent string
	if err := chromedp.Run(browserCtx, chromedp.OuterHTML(`html`, &htmlContent, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("chromedp error: %w", err)
	}
	if htmlContent == "" {
		return "", fmt.Errorf("empty HTML content returned")
	}
	return htmlContent, nil
}

// wait enforces the minimum interval between page loads
func (c *ChromeRenderer) wait(ctx context.Context) error {
	c.mu.Lock()
	next := c.lastRequest.Add(c.interval)
	now := time.Now()
	if next.Before(now) {
		next = now
	}
	c.lastRequest = next
	c.mu.Unlock()

	delay := time.Until(next)
	if delay <= 0 {
		return nil
	}
	c.logger.WithField("wait", delay.Round(time.Millisecond)).Debug("flashscore: rate limiting")
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
