package rates

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"solpay_gateway/internal/domain"
)

const (
	DefaultURL      = "https://api.coingecko.com/api/v3/simple/price?ids=solana,tether,usd-coin&vs_currencies=usd"
	DefaultInterval = 5 * time.Minute

	fallbackMessage = "Using fallback rates"

	// Converted amounts are rounded like the checkout page always did.
	settlementPlaces = 6
)

var ErrUnsupportedCurrency = errors.New("unsupported currency")

// Feed is a read-through cache of exchange rates refreshed on a fixed
// interval. A failed refresh keeps the previous values and marks the snapshot
// with an error instead of failing.
type Feed struct {
	url    string
	client *http.Client
	now    func() time.Time

	mu      sync.RWMutex
	current domain.Rates
}

func NewFeed(url string, client *http.Client) *Feed {
	if url == "" {
		url = DefaultURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Feed{
		url:     url,
		client:  client,
		now:     time.Now,
		current: domain.DefaultRates(),
	}
}

// Current returns the latest snapshot.
func (f *Feed) Current() domain.Rates {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Refresh fetches new prices and returns the resulting snapshot.
func (f *Feed) Refresh(ctx context.Context) domain.Rates {
	prices, err := f.fetch(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()

	next := f.current
	next.LastUpdated = f.now().UTC()
	if err != nil {
		slog.Warn("rate feed refresh failed", "error", err)
		next.Error = fallbackMessage
		f.current = next
		return next
	}

	defaults := domain.DefaultRates()
	next.SOL = pick(prices, "solana", defaults.SOL)
	next.USDC = pick(prices, "usd-coin", defaults.USDC)
	next.USDT = pick(prices, "tether", defaults.USDT)
	next.KES = defaults.KES
	next.USD = defaults.USD
	next.Error = ""
	f.current = next
	return next
}

// Start refreshes once, then on every interval until ctx is done.
func (f *Feed) Start(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultInterval
	}

	f.Refresh(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			f.Refresh(ctx)
		}
	}
}

// ToSettlement converts amount in currency to SOL using the current snapshot.
func (f *Feed) ToSettlement(amount decimal.Decimal, currency domain.Currency) (decimal.Decimal, error) {
	return Convert(f.Current(), amount, currency)
}

// Convert expresses amount in SOL. Crypto rates are USD prices; KES is
// shillings per dollar.
func Convert(r domain.Rates, amount decimal.Decimal, currency domain.Currency) (decimal.Decimal, error) {
	var usd decimal.Decimal
	switch currency {
	case domain.CurrencySOL, "":
		return amount, nil
	case domain.CurrencyUSDC:
		usd = amount.Mul(r.USDC)
	case domain.CurrencyUSDT:
		usd = amount.Mul(r.USDT)
	case domain.CurrencyUSD:
		usd = amount.Mul(r.USD)
	case domain.CurrencyKES:
		if !r.KES.IsPositive() {
			return decimal.Zero, fmt.Errorf("no KES rate")
		}
		usd = amount.Div(r.KES)
	default:
		return decimal.Zero, fmt.Errorf("%w: %s", ErrUnsupportedCurrency, currency)
	}

	if !r.SOL.IsPositive() {
		return decimal.Zero, fmt.Errorf("no SOL rate")
	}
	return usd.DivRound(r.SOL, settlementPlaces+2).Round(settlementPlaces), nil
}

type priceResponse map[string]map[string]decimal.Decimal

func (f *Feed) fetch(ctx context.Context) (priceResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	res, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("price api returned %s", res.Status)
	}

	var out priceResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode price api response: %w", err)
	}
	return out, nil
}

func pick(p priceResponse, id string, def decimal.Decimal) decimal.Decimal {
	if v, ok := p[id]["usd"]; ok && v.IsPositive() {
		return v
	}
	return def
}
