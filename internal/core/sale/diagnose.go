package sale

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/LeJamon/goPresale/internal/core/access"
	"github.com/LeJamon/goPresale/internal/core/types"
)

// Check is one purchase precondition.
type Check struct {
	Name   string `json:"name"`
	OK     bool   `json:"ok"`
	Detail string `json:"detail,omitempty"`
}

// Diagnosis explains whether a purchase would settle right now.
type Diagnosis struct {
	Request    BuyRequest    `json:"request"`
	USDValue   types.USD     `json:"usd_value"`
	BaseTokens *types.Amount `json:"base_tokens,omitempty"`
	Checks     []Check       `json:"checks"`
	OK         bool          `json:"ok"`
}

type checklist struct {
	mu     sync.Mutex
	checks []Check
}

func (c *checklist) add(name string, ok bool, format string, args ...interface{}) {
	c.mu.Lock()
	c.checks = append(c.checks, Check{Name: name, OK: ok, Detail: fmt.Sprintf(format, args...)})
	c.mu.Unlock()
}

// checkOrder is the order checks are reported in, following the settlement
// pipeline.
var checkOrder = func() map[string]int {
	names := []string{"initialized", "round", "phase", "not_paused", "round_active", "asset", "eligible"}
	for _, ledger := range access.RoundLedgers {
		names = append(names, "capability_"+string(ledger))
	}
	names = append(names, "capabilities", "balance", "allowance", "price", "hard_cap", "rate_limit")
	order := make(map[string]int, len(names))
	for i, name := range names {
		order[name] = i
	}
	return order
}()

// sorted returns the checks in pipeline order regardless of which
// goroutine finished first.
func (c *checklist) sorted() []Check {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := append([]Check(nil), c.checks...)
	sort.SliceStable(out, func(i, j int) bool {
		return checkOrder[out[i].Name] < checkOrder[out[j].Name]
	})
	return out
}

// Diagnose evaluates every purchase precondition without writing anything.
// Lookups that fail are reported as failed checks, not as errors.
func (e *Engine) Diagnose(ctx context.Context, req BuyRequest) (*Diagnosis, error) {
	d := &Diagnosis{Request: req}
	cl := &checklist{}

	state, err := e.System(ctx)
	if err != nil {
		cl.add("initialized", false, "%v", err)
		d.Checks = cl.sorted()
		return d, nil
	}
	cl.add("initialized", true, "authority %s", state.Authority.Hex())

	row, err := e.Store.Rounds().Get(ctx, req.Round)
	if err != nil {
		cl.add("round", false, "%v", err)
		d.Checks = cl.sorted()
		return d, nil
	}
	round := e.cacheRound(row)
	now := e.Now()
	cl.add("round", true, "%s at %s", row.Name, row.Address.Hex())
	phase := round.config.PhaseAt(now)
	cl.add("phase", phase == PhaseActive, "%s", phase)
	cl.add("not_paused", !row.Paused, "paused=%t", row.Paused)
	cl.add("round_active", round.config.IsActive, "is_active=%t", round.config.IsActive)

	asset, assetErr := e.lookupAsset(req.Asset)
	if assetErr != nil {
		cl.add("asset", false, "%v", assetErr)
	} else {
		cl.add("asset", true, "%s", asset.Symbol)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		ok, err := e.Eligibility.IsApproved(gctx, req.Buyer)
		switch {
		case err != nil:
			cl.add("eligible", false, "lookup failed: %v", err)
		default:
			cl.add("eligible", ok, "approved=%t", ok)
		}
		return nil
	})

	g.Go(func() error {
		status, err := access.Status(gctx, e.Store, row.Address)
		if err != nil {
			cl.add("capabilities", false, "%v", err)
			return nil
		}
		for _, ledger := range access.RoundLedgers {
			cl.add("capability_"+string(ledger), status[ledger], "granted=%t", status[ledger])
		}
		return nil
	})

	g.Go(func() error {
		bal, err := e.Book.BalanceOf(gctx, e.Store, req.Asset, req.Buyer)
		if err != nil {
			cl.add("balance", false, "%v", err)
			return nil
		}
		ok := req.Amount != nil && !bal.Lt(req.Amount)
		cl.add("balance", ok, "holds %s", bal.Dec())
		if req.Asset == types.ZeroAddress {
			return nil
		}
		allowance, err := e.Book.Allowance(gctx, e.Store, req.Asset, req.Buyer, row.Address)
		if err != nil {
			cl.add("allowance", false, "%v", err)
			return nil
		}
		ok = req.Amount != nil && !allowance.Lt(req.Amount)
		cl.add("allowance", ok, "round %s may pull %s", row.Address.Hex(), allowance.Dec())
		return nil
	})

	if assetErr == nil && req.Amount != nil {
		g.Go(func() error {
			usd, err := e.Prices.ToUSD(gctx, row.Oracle, asset, req.Amount)
			if err != nil {
				cl.add("price", false, "%v", err)
				return nil
			}
			d.USDValue = usd
			d.BaseTokens = BaseTokens(usd, round.config.TokenPriceUSD)
			cl.add("price", !d.BaseTokens.IsZero(), "%s buys %s tokens", usd,
				types.FormatUnits(d.BaseTokens, types.TokenDecimals))

			remaining := types.USD(0)
			if row.HardCapUSD > row.TotalRaisedUSD {
				remaining = row.HardCapUSD - row.TotalRaisedUSD
			}
			cl.add("hard_cap", usd <= remaining, "%s of %s remaining", remaining, row.HardCapUSD)

			if err := e.Limiter.Check(gctx, e.Store, req.Buyer, usd); err != nil {
				cl.add("rate_limit", false, "%v", err)
			} else {
				cl.add("rate_limit", true, "within limits")
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	d.Checks = cl.sorted()
	d.OK = true
	for _, c := range d.Checks {
		d.OK = d.OK && c.OK
	}
	return d, nil
}

// Check returns the named check.
func (d *Diagnosis) Check(name string) (Check, bool) {
	for _, c := range d.Checks {
		if c.Name == name {
			return c, true
		}
	}
	return Check{}, false
}
