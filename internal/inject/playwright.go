package inject

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/testforge/smartfill/internal/config"
	"github.com/testforge/smartfill/internal/domain"
)

const (
	kindScript      = `el => [el.tagName.toLowerCase(), (el.type || '').toLowerCase()]`
	clearScript     = `el => { el.focus(); el.value = ''; }`
	setValueScript  = `(el, v) => { el.value = v; }`
	highlightScript = `(el, ms) => {
		const original = el.style.cssText;
		el.style.transition = 'all 0.3s ease';
		el.style.backgroundColor = '#e6ffed';
		el.style.borderColor = '#48bb78';
		el.style.boxShadow = '0 0 0 3px rgba(72, 187, 120, 0.1)';
		setTimeout(() => { el.style.cssText = original; }, ms);
	}`
)

// Browser drives a headless Chromium through Playwright. It implements
// Injector and PageSource.
type Browser struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	cfg     config.BrowserConfig
	opts    Options
	logger  *zap.Logger

	// one page at a time; typing is paced and pages are short-lived
	mu sync.Mutex
}

// NewBrowser starts Playwright and launches Chromium.
func NewBrowser(cfg config.BrowserConfig, opts Options, logger *zap.Logger) (*Browser, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("starting playwright: %w", err)
	}

	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(cfg.Headless),
	})
	if err != nil {
		pw.Stop()
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	return &Browser{
		pw:      pw,
		browser: browser,
		cfg:     cfg,
		opts:    opts,
		logger:  logger,
	}, nil
}

// Close cleans up browser resources
func (b *Browser) Close() error {
	if b.browser != nil {
		b.browser.Close()
	}
	if b.pw != nil {
		return b.pw.Stop()
	}
	return nil
}

// open navigates a fresh context to pageURL. The returned func closes both.
func (b *Browser) open(pageURL string) (playwright.Page, func(), error) {
	browserCtx, err := b.browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{Width: 1280, Height: 900},
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating browser context: %w", err)
	}

	page, err := browserCtx.NewPage()
	if err != nil {
		browserCtx.Close()
		return nil, nil, fmt.Errorf("creating page: %w", err)
	}
	closeAll := func() {
		page.Close()
		browserCtx.Close()
	}

	if _, err := page.Goto(pageURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(b.cfg.NavigationTimeout.Milliseconds())),
	}); err != nil {
		closeAll()
		return nil, nil, fmt.Errorf("navigating to %s: %w", pageURL, err)
	}
	return page, closeAll, nil
}

// Fetch renders pageURL and returns its markup.
func (b *Browser) Fetch(ctx context.Context, pageURL string) (Snapshot, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Snapshot{}, err
	}

	page, closePage, err := b.open(pageURL)
	if err != nil {
		return Snapshot{}, err
	}
	defer closePage()

	content, err := page.Content()
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading page content: %w", err)
	}
	title, err := page.Title()
	if err != nil {
		return Snapshot{}, fmt.Errorf("reading page title: %w", err)
	}

	return Snapshot{URL: page.URL(), Title: title, HTML: content}, nil
}

// Fill navigates to pageURL in a fresh context and writes fillMap into it.
// The context is closed on return, so the values only live for the run; the
// report is what the caller keeps.
func (b *Browser) Fill(ctx context.Context, pageURL string, fillMap domain.FillMap) (domain.FillReport, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	page, closePage, err := b.open(pageURL)
	if err != nil {
		return domain.FillReport{}, domain.ErrInjection(err)
	}
	defer closePage()

	return FillTarget(ctx, &pageTarget{page: page}, fillMap, b.opts, b.logger), nil
}

// pageTarget adapts a Playwright page to Target.
type pageTarget struct {
	page playwright.Page
}

func (p *pageTarget) locate(selector string) playwright.Locator {
	return p.page.Locator(selector).First()
}

func (p *pageTarget) Exists(selector string) (bool, error) {
	n, err := p.page.Locator(selector).Count()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (p *pageTarget) Kind(selector string) (string, string, error) {
	v, err := p.locate(selector).Evaluate(kindScript, nil)
	if err != nil {
		return "", "", err
	}
	pair, ok := v.([]interface{})
	if !ok || len(pair) != 2 {
		return "", "", fmt.Errorf("unexpected element kind %v", v)
	}
	tag, _ := pair[0].(string)
	typ, _ := pair[1].(string)
	return tag, typ, nil
}

func (p *pageTarget) Clear(selector string) error {
	_, err := p.locate(selector).Evaluate(clearScript, nil)
	return err
}

func (p *pageTarget) TypeText(selector, text string, delay time.Duration) error {
	return p.locate(selector).PressSequentially(text, playwright.LocatorPressSequentiallyOptions{
		Delay: playwright.Float(float64(delay.Milliseconds())),
	})
}

func (p *pageTarget) SetValue(selector, value string) error {
	_, err := p.locate(selector).Evaluate(setValueScript, value)
	return err
}

func (p *pageTarget) Dispatch(selector, event string) error {
	return p.locate(selector).DispatchEvent(event, map[string]interface{}{"bubbles": true})
}

func (p *pageTarget) Highlight(selector string, d time.Duration) error {
	_, err := p.locate(selector).Evaluate(highlightScript, d.Milliseconds())
	return err
}
