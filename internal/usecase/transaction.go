package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"solpay_gateway/internal/domain"
)

var ErrInvalidMethod = errors.New("invalid payment method")

type TxUsecase struct {
	ledger Ledger
}

func NewTxUsecase(l Ledger) *TxUsecase {
	return &TxUsecase{ledger: l}
}

type InitiateInput struct {
	Amount   decimal.Decimal
	Currency string
	Payer    string
	Payee    string
	Method   domain.PaymentMethod
}

// Initiate records a pending payment for a later M-Pesa or Solana settlement.
func (u *TxUsecase) Initiate(ctx context.Context, in InitiateInput) (*domain.Transaction, error) {
	if !in.Method.Valid() {
		return nil, ErrInvalidMethod
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be > 0")
	}

	tx := &domain.Transaction{
		Amount:   in.Amount,
		Currency: in.Currency,
		Payer:    in.Payer,
		Payee:    in.Payee,
		Method:   in.Method,
		Status:   domain.StatusPending,
	}
	if err := u.ledger.InsertTransaction(ctx, tx); err != nil {
		return nil, err
	}
	return tx, nil
}
