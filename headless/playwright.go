package headless

import (
	"path/filepath"
	"regexp"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"
)

// LaunchOptions locate the extension and the persistent profile.
type LaunchOptions struct {
	ExtensionsDir string // Directory holding one unpacked directory per extension
	UserDataDir   string // Persistent Chromium profile with the imported wallet
	Headless      bool
}

// DefaultLaunchOptions returns the directories used when none are configured.
func DefaultLaunchOptions() LaunchOptions {
	return LaunchOptions{
		ExtensionsDir: "extensions",
		UserDataDir:   "user-data",
		Headless:      true,
	}
}

// Launch starts Chromium with the extension loaded in a persistent context.
func Launch(extension Extension, opts LaunchOptions) (Session, error) {
	dir, err := filepath.Abs(filepath.Join(opts.ExtensionsDir, extension.Dir))
	if err != nil {
		return nil, errors.Wrap(err, "resolving extension directory")
	}

	args := []string{
		"--disable-extensions-except=" + dir,
		"--load-extension=" + dir,
		"--disable-dev-shm-usage",
		"--disable-gpu",
		"--disable-software-rasterizer",
		"--allow-read-clipboard",
		"--allow-write-clipboard",
		"--lang=en-US",
	}

	zap.L().Info("starting browser",
		zap.String("extension", extension.Name),
		zap.String("user_data", opts.UserDataDir),
		zap.Strings("args", args))

	pw, err := playwright.Run()
	if err != nil {
		return nil, errors.Wrap(err, "starting playwright")
	}

	bctx, err := pw.Chromium.LaunchPersistentContext(opts.UserDataDir, playwright.BrowserTypeLaunchPersistentContextOptions{
		Channel:           playwright.String("chromium"),
		Headless:          playwright.Bool(opts.Headless),
		Args:              args,
		IgnoreDefaultArgs: []string{"--disable-extensions"},
		Env:               map[string]string{"LANGUAGE": "en_US"},
		Permissions:       []string{"clipboard-read", "clipboard-write"},
	})
	if err != nil {
		_ = pw.Stop()
		return nil, errors.Wrap(err, "launching persistent context")
	}

	zap.L().Info("browser launched with persistent context")

	return &pwSession{pw: pw, bctx: bctx}, nil
}

type pwSession struct {
	pw   *playwright.Playwright
	bctx playwright.BrowserContext
}

func (s *pwSession) Pages() []Page {
	pages := s.bctx.Pages()
	out := make([]Page, 0, len(pages))
	for _, p := range pages {
		out = append(out, &pwPage{page: p})
	}
	return out
}

func (s *pwSession) NewPage() (Page, error) {
	p, err := s.bctx.NewPage()
	if err != nil {
		return nil, errors.Wrap(err, "opening page")
	}
	return &pwPage{page: p}, nil
}

func (s *pwSession) ServiceWorkerURLs() []string {
	workers := s.bctx.ServiceWorkers()
	urls := make([]string, 0, len(workers))
	for _, w := range workers {
		urls = append(urls, w.URL())
	}
	return urls
}

func (s *pwSession) Close() error {
	err := s.bctx.Close()
	if stopErr := s.pw.Stop(); stopErr != nil {
		err = errors.CombineErrors(err, stopErr)
	}
	return err
}

type pwPage struct {
	page playwright.Page
}

func (p *pwPage) URL() string {
	return p.page.URL()
}

func (p *pwPage) Goto(url string) error {
	_, err := p.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
	})
	return errors.Wrapf(err, "navigating to %s", url)
}

func (p *pwPage) WaitForLoad(state LoadState) error {
	ls := playwright.LoadStateDomcontentloaded
	if state == LoadNetworkIdle {
		ls = playwright.LoadStateNetworkidle
	}
	return p.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{State: ls})
}

func (p *pwPage) BringToFront() error {
	return p.page.BringToFront()
}

func (p *pwPage) ByTestID(id string) Locator {
	return &pwLocator{loc: p.page.GetByTestId(id)}
}

func (p *pwPage) ByRole(role, name string) Locator {
	var opts playwright.PageGetByRoleOptions
	if name != "" {
		opts.Name = name
	}
	return &pwLocator{loc: p.page.GetByRole(playwright.AriaRole(role), opts)}
}

func (p *pwPage) ByLabel(text string) Locator {
	return &pwLocator{loc: p.page.GetByLabel(text)}
}

func (p *pwPage) ByPlaceholder(text string) Locator {
	return &pwLocator{loc: p.page.GetByPlaceholder(text)}
}

func (p *pwPage) Locator(selector string) Locator {
	return &pwLocator{loc: p.page.Locator(selector)}
}

func (p *pwPage) Close() error {
	return p.page.Close()
}

func (p *pwPage) IsClosed() bool {
	return p.page.IsClosed()
}

type pwLocator struct {
	loc playwright.Locator
}

func (l *pwLocator) Click() error {
	return l.loc.Click()
}

func (l *pwLocator) Fill(value string) error {
	return l.loc.Fill(value)
}

func (l *pwLocator) IsVisible() (bool, error) {
	return l.loc.IsVisible()
}

func (l *pwLocator) IsEnabled() (bool, error) {
	return l.loc.IsEnabled()
}

func (l *pwLocator) WaitVisible(timeout time.Duration) error {
	return l.loc.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: playwright.Float(float64(timeout.Milliseconds())),
	})
}

func (l *pwLocator) Filter(text string, exact bool) Locator {
	var hasText interface{} = text
	if exact {
		hasText = regexp.MustCompile("^" + regexp.QuoteMeta(text) + "$")
	}
	return &pwLocator{loc: l.loc.Filter(playwright.LocatorFilterOptions{HasText: hasText})}
}

func (l *pwLocator) ByRole(role, name string) Locator {
	var opts playwright.LocatorGetByRoleOptions
	if name != "" {
		opts.Name = name
	}
	return &pwLocator{loc: l.loc.GetByRole(playwright.AriaRole(role), opts)}
}
