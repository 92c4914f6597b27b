package headless

import (
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

const (
	swapButtonKey = "css:div|is:Swap>role:button:"
	closeKey      = "css:button|is:Close"
	revertedKey   = "css:p|has:reverted with the following reason"
	completedKey  = "css:p|is:Transaction completed"
	approvingKey  = "css:p|has:Approving"
)

var testTiming = Timing{
	Poll:      5 * time.Millisecond,
	Settle:    5 * time.Millisecond,
	ForceOpen: 200 * time.Millisecond,
	Approval:  time.Second,
	Element:   300 * time.Millisecond,
}

var testSiteTiming = SiteTiming{
	SwapVisible: 200 * time.Millisecond,
	SwapEnabled: 500 * time.Millisecond,
	SwapPoll:    5 * time.Millisecond,
	Completed:   500 * time.Millisecond,
}

// fakeSession keeps pages in memory. A route is applied to a page each time
// it navigates to a url containing the route key.
type fakeSession struct {
	mu      sync.Mutex
	pages   []*fakePage
	workers []string
	routes  map[string]func(*fakePage)
	closed  bool
}

func newFakeSession(workers ...string) *fakeSession {
	return &fakeSession{
		workers: workers,
		routes:  make(map[string]func(*fakePage)),
	}
}

func (s *fakeSession) route(fragment string, fn func(*fakePage)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[fragment] = fn
}

func (s *fakeSession) addPage(url string) *fakePage {
	p := &fakePage{
		s:        s,
		visible:  make(map[string]bool),
		disabled: make(map[string]int),
		fills:    make(map[string]string),
		onClick:  make(map[string]func()),
	}

	s.mu.Lock()
	s.pages = append(s.pages, p)
	s.mu.Unlock()

	if url != "" {
		_ = p.Goto(url)
	}
	return p
}

func (s *fakeSession) allPages() []*fakePage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*fakePage(nil), s.pages...)
}

func (s *fakeSession) Pages() []Page {
	var out []Page
	for _, p := range s.allPages() {
		if !p.IsClosed() {
			out = append(out, p)
		}
	}
	return out
}

func (s *fakeSession) NewPage() (Page, error) {
	return s.addPage(""), nil
}

func (s *fakeSession) ServiceWorkerURLs() []string {
	return s.workers
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

type fakePage struct {
	s *fakeSession

	mu       sync.Mutex
	url      string
	visible  map[string]bool
	disabled map[string]int // IsEnabled calls still answering false
	fills    map[string]string
	clicks   []string
	onClick  map[string]func()
	closed   bool
}

func (p *fakePage) show(keys ...string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, k := range keys {
		p.visible[k] = true
	}
}

func (p *fakePage) disable(key string, checks int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.disabled[key] = checks
}

func (p *fakePage) on(key string, fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onClick[key] = fn
}

func (p *fakePage) clicked() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.clicks...)
}

func (p *fakePage) filled(key string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fills[key]
}

func (p *fakePage) URL() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.url
}

func (p *fakePage) Goto(url string) error {
	p.mu.Lock()
	p.url = url
	p.mu.Unlock()

	p.s.mu.Lock()
	var routes []func(*fakePage)
	for fragment, fn := range p.s.routes {
		if strings.Contains(url, fragment) {
			routes = append(routes, fn)
		}
	}
	p.s.mu.Unlock()

	for _, fn := range routes {
		fn(p)
	}
	return nil
}

func (p *fakePage) WaitForLoad(LoadState) error { return nil }
func (p *fakePage) BringToFront() error         { return nil }

func (p *fakePage) ByTestID(id string) Locator {
	return &fakeLocator{page: p, key: "testid:" + id}
}

func (p *fakePage) ByRole(role, name string) Locator {
	return &fakeLocator{page: p, key: "role:" + role + ":" + name}
}

func (p *fakePage) ByLabel(text string) Locator {
	return &fakeLocator{page: p, key: "label:" + text}
}

func (p *fakePage) ByPlaceholder(text string) Locator {
	return &fakeLocator{page: p, key: "placeholder:" + text}
}

func (p *fakePage) Locator(selector string) Locator {
	return &fakeLocator{page: p, key: "css:" + selector}
}

func (p *fakePage) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

func (p *fakePage) IsClosed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

type fakeLocator struct {
	page *fakePage
	key  string
}

func (l *fakeLocator) Click() error {
	p := l.page
	p.mu.Lock()
	if !p.visible[l.key] {
		p.mu.Unlock()
		return errors.Newf("%s is not visible", l.key)
	}
	p.clicks = append(p.clicks, l.key)
	hook := p.onClick[l.key]
	p.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (l *fakeLocator) Fill(value string) error {
	p := l.page
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.visible[l.key] {
		return errors.Newf("%s is not visible", l.key)
	}
	p.fills[l.key] = value
	return nil
}

func (l *fakeLocator) IsVisible() (bool, error) {
	p := l.page
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.visible[l.key] && !p.closed, nil
}

func (l *fakeLocator) IsEnabled() (bool, error) {
	p := l.page
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.disabled[l.key] > 0 {
		p.disabled[l.key]--
		return false, nil
	}
	return true, nil
}

func (l *fakeLocator) WaitVisible(timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		if ok, _ := l.IsVisible(); ok {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Newf("%s not visible after %v", l.key, timeout)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func (l *fakeLocator) Filter(text string, exact bool) Locator {
	if exact {
		return &fakeLocator{page: l.page, key: l.key + "|is:" + text}
	}
	return &fakeLocator{page: l.page, key: l.key + "|has:" + text}
}

func (l *fakeLocator) ByRole(role, name string) Locator {
	return &fakeLocator{page: l.page, key: l.key + ">role:" + role + ":" + name}
}
