package headless

import (
	"context"
	"strings"
	"time"

	"flow-latency-benchmark/util"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Token is a Flow EVM token tradable on KittyPunch.
type Token string

const (
	TokenFLOW Token = "FLOW"
	TokenUSDF Token = "USDF"
)

var tokenAddresses = map[Token]string{
	TokenFLOW: "0x0000000000000000000000000000000000000000",
	TokenUSDF: "0x2aabea2058b5ac2d339b163c6ab6f2b6d53aabed",
}

// KittyPunchSwapURL is the swap page of the KittyPunch dex.
const KittyPunchSwapURL = "https://swap.kittypunch.xyz/swap"

const revertedMessage = "Transaction request reverted or failed, the website shows an error"

// SwapURL returns the swap page preselecting the pair.
func SwapURL(from, to Token) (string, error) {
	if from == to {
		return "", errors.Newf("cannot swap %s for itself", from)
	}

	fromAddr, ok := tokenAddresses[from]
	if !ok {
		return "", errors.Newf("unknown token %s", from)
	}
	toAddr, ok := tokenAddresses[to]
	if !ok {
		return "", errors.Newf("unknown token %s", to)
	}

	return KittyPunchSwapURL + "?tokens=" + fromAddr + "-" + toAddr, nil
}

// SiteTiming holds the waits on the KittyPunch pages.
type SiteTiming struct {
	SwapVisible time.Duration
	SwapEnabled time.Duration
	SwapPoll    time.Duration
	Completed   time.Duration
}

var DefaultSiteTiming = SiteTiming{
	SwapVisible: 10 * time.Second,
	SwapEnabled: 60 * time.Second,
	SwapPoll:    100 * time.Millisecond,
	Completed:   60 * time.Second,
}

// KittyPunch drives the swap pages of the KittyPunch dex.
type KittyPunch struct {
	browser *Browser
	timing  SiteTiming
}

func NewKittyPunch(browser *Browser, timing SiteTiming) *KittyPunch {
	return &KittyPunch{browser: browser, timing: timing}
}

func (k *KittyPunch) Browser() *Browser {
	return k.browser
}

// OpenSwapPage opens the swap page of the pair in a new page.
func (k *KittyPunch) OpenSwapPage(from, to Token) error {
	u, err := SwapURL(from, to)
	if err != nil {
		return err
	}
	_, err = k.browser.OpenPage(u)
	return err
}

// ConnectWallet connects the extension to the dex unless it already is.
func (k *KittyPunch) ConnectWallet(ctx context.Context) error {
	page, err := k.browser.CurrentPage()
	if err != nil {
		return err
	}
	if err := sleep(ctx, k.browser.timing.Settle); err != nil {
		return err
	}

	connect := page.ByRole("button", "Connect Wallet")
	visible, err := connect.IsVisible()
	if err != nil {
		return err
	}
	if !visible {
		zap.L().Debug("wallet already connected to kittypunch")
		return nil
	}

	if err := connect.Click(); err != nil {
		return errors.Wrap(err, "opening the wallet dialog")
	}
	if err := page.ByTestID(k.browser.extension.WalletOption).Click(); err != nil {
		return errors.Wrapf(err, "choosing %s", k.browser.extension.Name)
	}

	return k.browser.WaitForApproval(ctx, ApprovalOptions{})
}

// Swap fills the amount with one of the amount shortcuts of the page and
// clicks the swap button once it is enabled.
func (k *KittyPunch) Swap(ctx context.Context, from, to Token, amountButton string) error {
	u, err := SwapURL(from, to)
	if err != nil {
		return err
	}

	page, err := k.browser.SetPage(u)
	if err != nil {
		return err
	}
	if err := page.WaitForLoad(LoadNetworkIdle); err != nil {
		return err
	}

	zap.L().Debug("choosing swap amount", zap.String("button", amountButton))

	if err := page.ByRole("button", amountButton).Click(); err != nil {
		return errors.Wrapf(err, "clicking amount %s", amountButton)
	}

	swap := page.Locator("div").Filter("Swap", true).ByRole("button", "")
	if err := swap.WaitVisible(k.timing.SwapVisible); err != nil {
		return errors.Wrap(err, "waiting for the swap button")
	}

	err = util.Poll(ctx, k.timing.SwapPoll, k.timing.SwapEnabled, func(context.Context) error {
		enabled, err := swap.IsEnabled()
		if err != nil {
			return err
		}
		if !enabled {
			return util.ErrNotReady
		}
		return nil
	})
	if err != nil {
		return errors.Wrap(err, "swap button never enabled")
	}

	return swap.Click()
}

// TransactionFailed reports whether the page shows a reverted transaction.
func (k *KittyPunch) TransactionFailed() (bool, error) {
	page, err := k.browser.CurrentPage()
	if err != nil {
		return false, err
	}

	closing, err := page.Locator("button").Filter("Close", true).IsVisible()
	if err != nil || !closing {
		return false, err
	}

	return page.Locator("p").Filter("reverted with the following reason", false).IsVisible()
}

// ApprovingTokens reports whether the dex asks for a token allowance first.
func (k *KittyPunch) ApprovingTokens() (bool, error) {
	page, err := k.browser.CurrentPage()
	if err != nil {
		return false, err
	}
	return page.Locator("p").Filter("Approving", false).IsVisible()
}

// SignTransaction approves the swap in the extension. A token allowance
// asked for first is approved too.
func (k *KittyPunch) SignTransaction(ctx context.Context) error {
	opts := ApprovalOptions{
		FailCheck:   k.TransactionFailed,
		FailMessage: revertedMessage,
	}

	if err := k.browser.WaitForApproval(ctx, opts); err != nil {
		return err
	}

	approving, err := k.ApprovingTokens()
	if err != nil {
		return err
	}
	if approving {
		zap.L().Info("token allowance approved, approving the swap")
		return k.browser.WaitForApproval(ctx, opts)
	}

	return nil
}

// WaitForCompleted waits until the page reports the swap completed.
func (k *KittyPunch) WaitForCompleted(context.Context) error {
	page, err := k.browser.CurrentPage()
	if err != nil {
		return err
	}

	done := page.Locator("p").Filter("Transaction completed", true)
	if err := done.WaitVisible(k.timing.Completed); err != nil {
		return errors.Wrap(err, "waiting for the swap to complete")
	}

	zap.L().Debug("swap completed")

	return nil
}

// swapName is the action name of a swap, e.g. SwapFlowToUsdf.
func swapName(from, to Token) string {
	title := func(t Token) string {
		s := strings.ToLower(string(t))
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	}
	return "Swap" + title(from) + "To" + title(to)
}
