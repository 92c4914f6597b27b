package scenarios

import (
	"context"

	"flow-latency-benchmark/core"
	"flow-latency-benchmark/headless"

	"github.com/cockroachdb/errors"
)

// SwapFlowToUsdfActions swaps half of the FLOW balance for USDF.
func SwapFlowToUsdfActions() []core.Action[*headless.Workflow] {
	return []core.Action[*headless.Workflow]{
		headless.InitSwapAction(0),
		headless.SwapAction(1, headless.TokenFLOW, headless.TokenUSDF, "50%"),
		headless.SignAction(2),
		headless.WaitForCompletedAction(3),
	}
}

// SwapUsdfToFlowActions swaps the whole USDF balance back to FLOW.
func SwapUsdfToFlowActions() []core.Action[*headless.Workflow] {
	return []core.Action[*headless.Workflow]{
		headless.InitSwapAction(0),
		headless.SwapAction(1, headless.TokenUSDF, headless.TokenFLOW, "Max"),
		headless.SignAction(2),
		headless.WaitForCompletedAction(3),
	}
}

// FlowWalletSwapActions swaps FLOW for USDF through the Flow Wallet. Every
// action keeps the batch ceiling, as the MetaMask swaps do.
func FlowWalletSwapActions() []core.Action[*headless.Workflow] {
	return SwapFlowToUsdfActions()
}

func buildKittyPunch(extension string, actions func() []core.Action[*headless.Workflow]) Builder {
	return func(ctx context.Context, env *Environment) (Scenario, error) {
		ext, err := headless.LookupExtension(extension)
		if err != nil {
			return nil, err
		}

		session, err := headless.Launch(ext, env.Launch)
		if err != nil {
			return nil, err
		}

		browser := headless.NewBrowser(session, ext, env.Password)

		s, err := newKittyPunchScenario(ctx, browser, actions(), env.batchOptions())
		if err != nil {
			return nil, errors.CombineErrors(err, browser.Close())
		}
		return s, nil
	}
}

func newKittyPunchScenario(ctx context.Context, browser *headless.Browser, actions []core.Action[*headless.Workflow], opts []core.BatchOption) (Scenario, error) {
	if err := browser.EnsureExtensionLoaded(ctx); err != nil {
		return nil, err
	}
	if err := browser.Activate(ctx); err != nil {
		return nil, err
	}

	w := &headless.Workflow{
		Browser:    browser,
		KittyPunch: headless.NewKittyPunch(browser, headless.DefaultSiteTiming),
	}

	c, err := headless.NewContext(w)
	if err != nil {
		return nil, err
	}

	return newBatchScenario(c, actions, opts, browser.Close)
}
