package headless

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSwapURL(t *testing.T) {
	t.Parallel()

	for _, tt := range []struct {
		from, to Token
		want     string
		wantErr  bool
	}{
		{
			from: TokenFLOW,
			to:   TokenUSDF,
			want: "https://swap.kittypunch.xyz/swap?tokens=0x0000000000000000000000000000000000000000-0x2aabea2058b5ac2d339b163c6ab6f2b6d53aabed",
		},
		{
			from: TokenUSDF,
			to:   TokenFLOW,
			want: "https://swap.kittypunch.xyz/swap?tokens=0x2aabea2058b5ac2d339b163c6ab6f2b6d53aabed-0x0000000000000000000000000000000000000000",
		},
		{from: TokenFLOW, to: TokenFLOW, wantErr: true},
		{from: "WETH", to: TokenFLOW, wantErr: true},
	} {
		got, err := SwapURL(tt.from, tt.to)
		if tt.wantErr {
			require.Error(t, err, "%s-%s", tt.from, tt.to)
			continue
		}
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}

func TestSwapName(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "SwapFlowToUsdf", swapName(TokenFLOW, TokenUSDF))
	assert.Equal(t, "SwapUsdfToFlow", swapName(TokenUSDF, TokenFLOW))
}

func TestSwapWaitsForEnabledButton(t *testing.T) {
	t.Parallel()
	b, s := newTestBrowser(t, "metamask")
	s.route("kittypunch.xyz/swap", func(p *fakePage) {
		p.show("role:button:Max", swapButtonKey)
		p.disable(swapButtonKey, 4)
	})
	k := NewKittyPunch(b, testSiteTiming)

	require.NoError(t, k.Swap(context.Background(), TokenUSDF, TokenFLOW, "Max"))

	page, err := b.CurrentPage()
	require.NoError(t, err)
	assert.Equal(t, []string{"role:button:Max", swapButtonKey}, page.(*fakePage).clicked())
}

func TestSwapButtonNeverEnabled(t *testing.T) {
	t.Parallel()
	b, s := newTestBrowser(t, "metamask")
	s.route("kittypunch.xyz/swap", func(p *fakePage) {
		p.show("role:button:50%", swapButtonKey)
		p.disable(swapButtonKey, 1<<20)
	})
	k := NewKittyPunch(b, testSiteTiming)

	err := k.Swap(context.Background(), TokenFLOW, TokenUSDF, "50%")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "swap button never enabled")
}

func TestConnectWalletSkipsWhenConnected(t *testing.T) {
	t.Parallel()
	b, s := newTestBrowser(t, "metamask")
	k := NewKittyPunch(b, testSiteTiming)

	require.NoError(t, k.OpenSwapPage(TokenFLOW, TokenUSDF))
	require.NoError(t, k.ConnectWallet(context.Background()))

	pages := s.allPages()
	require.Len(t, pages, 1)
	assert.Empty(t, pages[0].clicked())
}

func TestTransactionFailed(t *testing.T) {
	t.Parallel()
	b, _ := newTestBrowser(t, "metamask")
	k := NewKittyPunch(b, testSiteTiming)

	_, err := k.TransactionFailed()
	require.ErrorIs(t, err, ErrNoPage)

	page, err := b.OpenPage("https://swap.kittypunch.xyz/swap")
	require.NoError(t, err)

	page.(*fakePage).show(closeKey)
	failed, err := k.TransactionFailed()
	require.NoError(t, err)
	assert.False(t, failed)

	page.(*fakePage).show(revertedKey)
	failed, err = k.TransactionFailed()
	require.NoError(t, err)
	assert.True(t, failed)

	err = k.SignTransaction(context.Background())
	require.ErrorIs(t, err, ErrApprovalRejected)
}

func TestSignTransactionApprovesAllowanceFirst(t *testing.T) {
	t.Parallel()
	b, s := newTestBrowser(t, "metamask")
	k := NewKittyPunch(b, testSiteTiming)

	page, err := b.OpenPage("https://swap.kittypunch.xyz/swap")
	require.NoError(t, err)
	swapPage := page.(*fakePage)
	swapPage.show(approvingKey)

	approvals := 0
	s.route("/notification.html", func(p *fakePage) {
		p.show("testid:confirmation-submit-button")
		p.on("testid:confirmation-submit-button", func() {
			approvals++
			_ = p.Close()
			if approvals == 1 {
				s.addPage(b.notificationURL())
			}
		})
	})
	s.addPage(b.notificationURL())

	require.NoError(t, k.SignTransaction(context.Background()))
	assert.Equal(t, 2, approvals)
}
