package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	solana "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"

	"solpay_gateway/internal/chain"
	"solpay_gateway/internal/domain"
	"solpay_gateway/internal/repository"
)

var ErrInvalidReference = errors.New("invalid reference")

// Chain finds and checks Solana Pay transfers on chain.
type Chain interface {
	FindReference(ctx context.Context, ref solana.PublicKey) (solana.Signature, error)
	ValidateTransfer(ctx context.Context, sig solana.Signature, want chain.TransferRequest) error
}

// Ledger records settled payments.
type Ledger interface {
	InsertTransaction(ctx context.Context, t *domain.Transaction) error
}

// Converter turns a display amount into the settlement unit.
type Converter interface {
	ToSettlement(amount decimal.Decimal, currency domain.Currency) (decimal.Decimal, error)
}

type PaymentUsecase struct {
	store  *repository.MemoryStore
	chain  Chain
	ledger Ledger
	rates  Converter
	reqLog *repository.RequestLog

	newReference func() (solana.PublicKey, error)
	now          func() time.Time
}

// NewPaymentUsecase wires the request lifecycle. ledger, rates and reqLog may
// be nil: settlements are then not recorded, only SOL amounts are accepted,
// and created requests are not logged.
func NewPaymentUsecase(store *repository.MemoryStore, c Chain, ledger Ledger, rates Converter, reqLog *repository.RequestLog) *PaymentUsecase {
	return &PaymentUsecase{
		store:        store,
		chain:        c,
		ledger:       ledger,
		rates:        rates,
		reqLog:       reqLog,
		newReference: chain.NewReference,
		now:          time.Now,
	}
}

type CreateInput struct {
	Recipient string
	Amount    decimal.Decimal
	Currency  domain.Currency
	Label     string
	Message   string
	Memo      string
}

type CreateResult struct {
	URL     string
	Request domain.PendingPaymentRequest
}

// CreateRequest stores a new pending request and returns its Solana Pay URL.
func (u *PaymentUsecase) CreateRequest(ctx context.Context, in CreateInput) (*CreateResult, error) {
	recipient, err := chain.ParsePublicKey(in.Recipient)
	if err != nil {
		return nil, err
	}

	currency := in.Currency
	if currency == "" {
		currency = domain.SettlementCurrency
	}

	amount := in.Amount
	if currency != domain.SettlementCurrency {
		if u.rates == nil {
			return nil, fmt.Errorf("currency %s: no rate feed configured", currency)
		}
		amount, err = u.rates.ToSettlement(in.Amount, currency)
		if err != nil {
			return nil, err
		}
	}
	if err := chain.ValidateAmount(amount); err != nil {
		return nil, err
	}

	ref, err := u.newReference()
	if err != nil {
		return nil, err
	}

	req := domain.PendingPaymentRequest{
		Reference:     ref.String(),
		Recipient:     recipient.String(),
		Amount:        amount,
		Currency:      currency,
		DisplayAmount: in.Amount,
		Label:         in.Label,
		Message:       in.Message,
		Memo:          in.Memo,
		CreatedAt:     u.now().UTC(),
	}
	u.store.Put(req)

	url, err := chain.EncodeTransferURL(chain.TransferRequest{
		Recipient: recipient,
		Amount:    amount,
		Reference: ref,
		Label:     in.Label,
		Message:   in.Message,
		Memo:      in.Memo,
	})
	if err != nil {
		u.store.Delete(req.Reference)
		return nil, fmt.Errorf("encode payment url: %w", err)
	}

	if err := u.reqLog.Append(req); err != nil {
		slog.Warn("request log write failed", "reference", req.Reference, "error", err)
	}

	slog.Info("payment request created",
		"reference", req.Reference,
		"recipient", req.Recipient,
		"amount", req.Amount.String(),
		"currency", string(currency),
	)

	return &CreateResult{URL: url, Request: req}, nil
}

type VerifyResult struct {
	Signature string
	Request   domain.PendingPaymentRequest
}

// Verify checks the chain for the transfer tagged with ref. The pending entry
// is removed only when a matching transfer is found; every other outcome
// leaves it in place so the caller can retry.
func (u *PaymentUsecase) Verify(ctx context.Context, ref string) (*VerifyResult, error) {
	refKey, err := chain.ParsePublicKey(ref)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReference, err)
	}

	req, ok := u.store.Get(ref)
	if !ok {
		return nil, domain.ErrRequestNotFound
	}

	recipient, err := chain.ParsePublicKey(req.Recipient)
	if err != nil {
		return nil, err
	}

	sig, err := u.chain.FindReference(ctx, refKey)
	if err != nil {
		return nil, err
	}

	err = u.chain.ValidateTransfer(ctx, sig, chain.TransferRequest{
		Recipient: recipient,
		Amount:    req.Amount,
		Reference: refKey,
	})
	if err != nil {
		if errors.Is(err, domain.ErrTransferMismatch) {
			slog.Warn("transfer does not match payment request",
				"reference", ref,
				"signature", sig.String(),
				"error", err,
			)
		}
		return nil, err
	}

	if !u.store.CompareAndDelete(req) {
		return nil, domain.ErrRequestNotFound
	}

	slog.Info("payment verified", "reference", ref, "signature", sig.String())
	u.recordSettlement(ctx, req, sig)

	return &VerifyResult{Signature: sig.String(), Request: req}, nil
}

func (u *PaymentUsecase) recordSettlement(ctx context.Context, req domain.PendingPaymentRequest, sig solana.Signature) {
	if u.ledger == nil {
		return
	}

	settled := u.now().UTC()
	err := u.ledger.InsertTransaction(ctx, &domain.Transaction{
		ReferenceNo: req.Reference,
		Amount:      req.Amount,
		Currency:    string(domain.SettlementCurrency),
		Payee:       req.Recipient,
		Method:      domain.MethodSolana,
		Status:      domain.StatusVerified,
		Signature:   sig.String(),
		SettledAt:   &settled,
	})
	if err != nil {
		slog.Error("record settlement failed", "reference", req.Reference, "error", err)
	}
}
