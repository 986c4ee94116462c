package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Rates holds USD prices for the crypto assets and units-per-USD for the fiat
// currencies. USD is always 1.
type Rates struct {
	SOL         decimal.Decimal
	USDC        decimal.Decimal
	USDT        decimal.Decimal
	KES         decimal.Decimal
	USD         decimal.Decimal
	LastUpdated time.Time
	Error       string
}

func DefaultRates() Rates {
	return Rates{
		SOL:  decimal.NewFromInt(150),
		USDC: decimal.NewFromInt(1),
		USDT: decimal.NewFromInt(1),
		KES:  decimal.NewFromInt(150),
		USD:  decimal.NewFromInt(1),
	}
}
