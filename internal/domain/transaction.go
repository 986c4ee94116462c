package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type TxStatus string

const (
	StatusPending  TxStatus = "PENDING"
	StatusVerified TxStatus = "VERIFIED"
	StatusFailed   TxStatus = "FAILED"
)

type PaymentMethod string

const (
	MethodMpesa  PaymentMethod = "mpesa"
	MethodSolana PaymentMethod = "solana"
)

func (m PaymentMethod) Valid() bool {
	return m == MethodMpesa || m == MethodSolana
}

// Transaction is a ledger row. ReferenceNo and Signature are only set for
// Solana Pay requests that settled on chain.
type Transaction struct {
	ID          string
	ReferenceNo string
	Amount      decimal.Decimal
	Currency    string
	Payer       string
	Payee       string
	Method      PaymentMethod
	Status      TxStatus
	Signature   string
	CreatedAt   time.Time
	SettledAt   *time.Time
}
