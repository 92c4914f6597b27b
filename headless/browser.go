package headless

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"

	"flow-latency-benchmark/util"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// DefaultPassword unlocks the wallet extension when no password is configured.
const DefaultPassword = "123456"

var (
	ErrNoExtension      = errors.New("extension not loaded")
	ErrNoPage           = errors.New("no current page")
	ErrWalletNotCreated = errors.New("wallet extension has no unlockable wallet")
	ErrNoApprovalPage   = errors.New("approval page not found")
	ErrApprovalRejected = errors.New("website reported a failed request")
)

// Extension describes a wallet extension and how to unlock it.
type Extension struct {
	Name         string // Name used in configurations
	ID           string // Extension id expected when none is reported
	Dir          string // Unpacked extension, relative to the extensions directory
	Home         string // Page opened to unlock the wallet
	WalletOption string // Test id of the wallet in the connect dialog of dapps
}

var Extensions = map[string]Extension{
	"metamask": {
		Name:         "metamask",
		ID:           "mnpjmeobhidmnodbplgdkpoolebhegfj",
		Dir:          "metamask",
		Home:         "home.html",
		WalletOption: "rk-wallet-option-io.metamask",
	},
	"flowwallet": {
		Name:         "flowwallet",
		ID:           "hpclkefagolihohboafpheddmmgdffjm",
		Dir:          "flow-wallet",
		Home:         "index.html",
		WalletOption: "rk-wallet-option-com.flowfoundation.wallet",
	},
}

// LookupExtension returns the extension registered under name.
func LookupExtension(name string) (Extension, error) {
	ext, ok := Extensions[name]
	if !ok {
		return Extension{}, errors.Newf("unknown extension %q", name)
	}
	return ext, nil
}

// Timing holds the waits of the browser.
type Timing struct {
	Poll      time.Duration // Between two looks for a page or an element
	Settle    time.Duration // After a page loaded, before reading it
	ForceOpen time.Duration // Before opening the approval page ourselves
	Approval  time.Duration // Before giving up on the approval page
	Element   time.Duration // Before giving up on an element
}

var DefaultTiming = Timing{
	Poll:      200 * time.Millisecond,
	Settle:    time.Second,
	ForceOpen: 15 * time.Second,
	Approval:  60 * time.Second,
	Element:   30 * time.Second,
}

// approvalButtons are the confirm buttons of the approval pages of the
// supported extensions, by test id then by role name.
var approvalButtons = struct {
	testIDs []string
	names   []string
}{
	testIDs: []string{
		"confirmation-submit-button",
		"confirm-btn",
		"confirm-footer-button",
		"confirm-button",
	},
	names: []string{"Connect", "Approve"},
}

// ApprovalOptions customise WaitForApproval. FailCheck is evaluated while the
// approval page is awaited; when it reports true the wait stops with
// FailMessage.
type ApprovalOptions struct {
	FailCheck   func() (bool, error)
	FailMessage string
}

// Browser is a session with a wallet extension, tracking the page actions
// currently work on.
type Browser struct {
	session   Session
	extension Extension
	password  string
	timing    Timing

	mu   sync.Mutex
	id   string
	page Page
}

// BrowserOption customises a browser.
type BrowserOption func(*Browser)

// WithTiming overrides the waits of the browser.
func WithTiming(t Timing) BrowserOption {
	return func(b *Browser) {
		b.timing = t
	}
}

// NewBrowser wraps a session in which extension is loaded.
func NewBrowser(session Session, extension Extension, password string, opts ...BrowserOption) *Browser {
	if password == "" {
		password = DefaultPassword
	}

	b := &Browser{
		session:   session,
		extension: extension,
		password:  password,
		timing:    DefaultTiming,
		id:        extension.ID,
	}
	for _, opt := range opts {
		opt(b)
	}

	return b
}

func (b *Browser) Extension() Extension {
	return b.extension
}

// ExtensionID is the id reported by the extension worker once loaded.
func (b *Browser) ExtensionID() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.id
}

func (b *Browser) extensionURL(path string) string {
	return "chrome-extension://" + b.ExtensionID() + "/" + path
}

func (b *Browser) notificationURL() string {
	return b.extensionURL("notification.html")
}

// EnsureExtensionLoaded waits for the service worker of the extension and
// records the id it runs under.
func (b *Browser) EnsureExtensionLoaded(ctx context.Context) error {
	var worker string

	err := util.Poll(ctx, b.timing.Poll, b.timing.Element, func(context.Context) error {
		for _, u := range b.session.ServiceWorkerURLs() {
			if strings.HasPrefix(u, "chrome-extension://") {
				worker = u
				return nil
			}
		}
		return util.ErrNotReady
	})
	if err != nil {
		return errors.Wrapf(ErrNoExtension, "%s: %v", b.extension.Name, err)
	}

	id := strings.SplitN(strings.TrimPrefix(worker, "chrome-extension://"), "/", 2)[0]
	if id != b.extension.ID {
		zap.L().Warn("extension runs under an unexpected id",
			zap.String("extension", b.extension.Name),
			zap.String("expected", b.extension.ID),
			zap.String("id", id))
	}

	b.mu.Lock()
	b.id = id
	b.mu.Unlock()

	zap.L().Info("extension loaded",
		zap.String("extension", b.extension.Name),
		zap.String("worker", worker))

	return nil
}

// Activate unlocks the wallet of the extension.
func (b *Browser) Activate(ctx context.Context) error {
	switch b.extension.Name {
	case "metamask":
		return b.activateMetaMask(ctx)
	case "flowwallet":
		return b.activateFlowWallet(ctx)
	default:
		return errors.Newf("no activation for extension %q", b.extension.Name)
	}
}

func (b *Browser) activateMetaMask(ctx context.Context) error {
	page := b.FindPage(b.extensionURL(""))
	if page == nil {
		p, err := b.session.NewPage()
		if err != nil {
			return err
		}
		page = p
	}

	if !strings.HasPrefix(page.URL(), b.extensionURL("")) {
		if err := page.Goto(b.extensionURL(b.extension.Home)); err != nil {
			return err
		}
	}

	if err := b.focus(page); err != nil {
		return err
	}
	if err := sleep(ctx, b.timing.Settle); err != nil {
		return err
	}

	unlock := page.ByTestID("unlock-password")
	visible, err := unlock.IsVisible()
	if err != nil {
		return err
	}
	if !visible {
		return errors.Wrap(ErrWalletNotCreated, "metamask shows no unlock form")
	}

	if err := unlock.Fill(b.password); err != nil {
		return errors.Wrap(err, "filling metamask password")
	}
	if err := page.ByTestID("unlock-submit").Click(); err != nil {
		return errors.Wrap(err, "unlocking metamask")
	}

	zap.L().Info("metamask unlocked")

	return nil
}

func (b *Browser) activateFlowWallet(ctx context.Context) error {
	var page Page
	if pages := b.session.Pages(); len(pages) > 0 {
		page = pages[len(pages)-1]
	} else {
		p, err := b.session.NewPage()
		if err != nil {
			return err
		}
		page = p
	}

	if err := page.Goto(b.extensionURL(b.extension.Home) + "#/unlock"); err != nil {
		return err
	}
	if err := b.focus(page); err != nil {
		return err
	}
	if err := sleep(ctx, b.timing.Settle); err != nil {
		return err
	}

	filled := false
	for _, field := range []Locator{page.ByLabel("Password"), page.ByPlaceholder("Enter your password")} {
		visible, err := field.IsVisible()
		if err != nil {
			return err
		}
		if !visible {
			continue
		}
		if err := field.Fill(b.password); err != nil {
			return errors.Wrap(err, "filling flow wallet password")
		}
		filled = true
	}
	if !filled {
		return errors.Wrap(ErrWalletNotCreated, "flow wallet shows no password field")
	}

	unlock := page.ByRole("button", "Unlock Wallet")
	err := util.Poll(ctx, b.timing.Poll, b.timing.Element, func(context.Context) error {
		enabled, err := unlock.IsEnabled()
		if err != nil {
			return err
		}
		if !enabled {
			return util.ErrNotReady
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "waiting for the unlock button")
	}

	if err := unlock.Click(); err != nil {
		return errors.Wrap(err, "unlocking flow wallet")
	}

	zap.L().Info("flow wallet unlocked")

	return nil
}

func (b *Browser) focus(page Page) error {
	if err := page.WaitForLoad(LoadDOMContent); err != nil {
		return err
	}

	b.mu.Lock()
	b.page = page
	b.mu.Unlock()

	return page.BringToFront()
}

// OpenPage opens rawURL in a new page which becomes the current one.
func (b *Browser) OpenPage(rawURL string) (Page, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return nil, errors.Newf("invalid url %q", rawURL)
	}

	page, err := b.session.NewPage()
	if err != nil {
		return nil, err
	}
	if err := page.Goto(u.String()); err != nil {
		return nil, err
	}
	if err := b.focus(page); err != nil {
		return nil, err
	}

	zap.L().Debug("page opened", zap.String("url", u.String()))

	return page, nil
}

// SetPage navigates the current page to rawURL unless it is already there.
func (b *Browser) SetPage(rawURL string) (Page, error) {
	b.mu.Lock()
	page := b.page
	b.mu.Unlock()

	if page == nil {
		p, err := b.session.NewPage()
		if err != nil {
			return nil, err
		}
		page = p
	}

	if strings.Contains(page.URL(), rawURL) {
		return page, nil
	}

	if err := page.Goto(rawURL); err != nil {
		return nil, err
	}
	if err := b.focus(page); err != nil {
		return nil, err
	}

	zap.L().Debug("page navigated", zap.String("url", rawURL))

	return page, nil
}

// CurrentPage returns the page actions currently work on.
func (b *Browser) CurrentPage() (Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.page == nil {
		return nil, ErrNoPage
	}
	return b.page, nil
}

// FindPage returns the first open page whose url contains fragment.
func (b *Browser) FindPage(fragment string) Page {
	for _, p := range b.session.Pages() {
		if strings.Contains(p.URL(), fragment) {
			return p
		}
	}
	return nil
}

func (b *Browser) pageURLs() []string {
	var urls []string
	for _, p := range b.session.Pages() {
		urls = append(urls, p.URL())
	}
	return urls
}

// WaitForApproval waits for the approval page of the extension and confirms
// the request it shows. The page is opened directly when the extension does
// not open it in time.
func (b *Browser) WaitForApproval(ctx context.Context, opts ApprovalOptions) error {
	start := time.Now()
	ticker := time.NewTicker(b.timing.Poll)
	defer ticker.Stop()

	var page Page
	for page == nil {
		if page = b.FindPage(b.notificationURL()); page != nil {
			break
		}

		if opts.FailCheck != nil {
			failed, err := opts.FailCheck()
			if err != nil {
				return err
			}
			if failed {
				msg := opts.FailMessage
				if msg == "" {
					msg = "approval aborted"
				}
				return errors.Wrap(ErrApprovalRejected, msg)
			}
		}

		elapsed := time.Since(start)
		if elapsed > b.timing.Approval {
			return errors.Wrapf(ErrNoApprovalPage, "open pages: %s", strings.Join(b.pageURLs(), ", "))
		}
		if elapsed > b.timing.ForceOpen {
			zap.L().Warn("no approval page, opening it",
				zap.Duration("elapsed", elapsed))
			p, err := b.session.NewPage()
			if err != nil {
				return err
			}
			if err := p.Goto(b.notificationURL()); err != nil {
				return err
			}
			page = p
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}

	if err := page.WaitForLoad(LoadDOMContent); err != nil {
		return err
	}
	if err := sleep(ctx, b.timing.Settle); err != nil {
		return err
	}

	candidates := make([]Locator, 0, len(approvalButtons.testIDs)+len(approvalButtons.names))
	for _, id := range approvalButtons.testIDs {
		candidates = append(candidates, page.ByTestID(id))
	}
	for _, name := range approvalButtons.names {
		candidates = append(candidates, page.ByRole("button", name))
	}

	err := util.Poll(ctx, b.timing.Poll, b.timing.Element, func(context.Context) error {
		for _, c := range candidates {
			visible, err := c.IsVisible()
			if err != nil || !visible {
				continue
			}
			return c.Click()
		}
		return util.ErrNotReady
	})
	if err != nil {
		return errors.Wrap(err, "confirming on the approval page")
	}

	zap.L().Debug("request approved", zap.Duration("elapsed", time.Since(start)))

	if err := sleep(ctx, b.timing.Settle/2); err != nil {
		return err
	}
	if !page.IsClosed() {
		return page.Close()
	}

	return nil
}

// Close closes the session and every page.
func (b *Browser) Close() error {
	b.mu.Lock()
	b.page = nil
	b.mu.Unlock()

	zap.L().Info("closing browser")

	return b.session.Close()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
