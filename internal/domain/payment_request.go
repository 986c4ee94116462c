package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type Currency string

const (
	CurrencySOL  Currency = "SOL"
	CurrencyUSDC Currency = "USDC"
	CurrencyUSDT Currency = "USDT"
	CurrencyKES  Currency = "KES"
	CurrencyUSD  Currency = "USD"
)

// SettlementCurrency is the unit every stored amount is expressed in.
const SettlementCurrency = CurrencySOL

func (c Currency) Valid() bool {
	switch c {
	case CurrencySOL, CurrencyUSDC, CurrencyUSDT, CurrencyKES, CurrencyUSD:
		return true
	}
	return false
}

// PendingPaymentRequest is a created but not yet verified transfer request.
// Amount is in SOL; Currency and DisplayAmount keep what the payer typed.
type PendingPaymentRequest struct {
	Reference     string
	Recipient     string
	Amount        decimal.Decimal
	Currency      Currency
	DisplayAmount decimal.Decimal
	Label         string
	Message       string
	Memo          string
	CreatedAt     time.Time
}

// Equal compares two requests field by field, using exact decimal equality
// for the amounts.
func (p PendingPaymentRequest) Equal(o PendingPaymentRequest) bool {
	return p.Reference == o.Reference &&
		p.Recipient == o.Recipient &&
		p.Amount.Equal(o.Amount) &&
		p.Currency == o.Currency &&
		p.DisplayAmount.Equal(o.DisplayAmount) &&
		p.Label == o.Label &&
		p.Message == o.Message &&
		p.Memo == o.Memo &&
		p.CreatedAt.Equal(o.CreatedAt)
}

var (
	ErrRequestNotFound  = errors.New("payment request not found")
	ErrTransferNotFound = errors.New("transaction not found on chain")
	ErrTransferMismatch = errors.New("transaction does not match payment request")
	ErrUpstream         = errors.New("upstream rpc error")
)
