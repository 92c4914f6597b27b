// Package headless drives a Chromium browser carrying a wallet extension and
// measures dapp interactions through it.
package headless

import (
	"time"
)

// LoadState is a page lifecycle state to wait for.
type LoadState string

const (
	LoadDOMContent  LoadState = "domcontentloaded"
	LoadNetworkIdle LoadState = "networkidle"
)

// Locator designates zero or more elements of a page. Resolution happens when
// an action is performed.
type Locator interface {
	Click() error
	Fill(value string) error
	IsVisible() (bool, error)
	IsEnabled() (bool, error)
	WaitVisible(timeout time.Duration) error
	// Filter narrows to elements containing text, or whose text is exactly
	// text when exact is set.
	Filter(text string, exact bool) Locator
	// ByRole narrows to descendants with an ARIA role and, when name is not
	// empty, an accessible name.
	ByRole(role, name string) Locator
}

// Page is one tab of the browser.
type Page interface {
	URL() string
	Goto(url string) error
	WaitForLoad(state LoadState) error
	BringToFront() error
	ByTestID(id string) Locator
	ByRole(role, name string) Locator
	ByLabel(text string) Locator
	ByPlaceholder(text string) Locator
	Locator(selector string) Locator
	Close() error
	IsClosed() bool
}

// Session is a browser context with its pages and extension workers.
type Session interface {
	Pages() []Page
	NewPage() (Page, error)
	ServiceWorkerURLs() []string
	Close() error
}
