package chain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	solana "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

const (
	urlScheme = "solana"

	// SOL has nine decimal places; anything finer cannot be transferred.
	lamportDecimals = 9
)

var (
	ErrInvalidAmount = errors.New("amount must be a positive number with at most 9 decimal places")
	ErrInvalidURL    = errors.New("invalid solana pay url")
)

// TransferRequest is the content of a Solana Pay transfer request URL for a
// native SOL transfer.
type TransferRequest struct {
	Recipient solana.PublicKey
	Amount    decimal.Decimal
	Reference solana.PublicKey
	Label     string
	Message   string
	Memo      string
}

// EncodeTransferURL renders r as solana:<recipient>?amount=&reference=&label=&message=&memo=.
// Parameter order follows the Solana Pay reference encoder; empty optional
// parameters are left out.
func EncodeTransferURL(r TransferRequest) (string, error) {
	if r.Recipient.IsZero() {
		return "", fmt.Errorf("%w: missing recipient", ErrInvalidURL)
	}
	if err := ValidateAmount(r.Amount); err != nil {
		return "", err
	}

	var params []string
	add := func(k, v string) {
		if v == "" {
			return
		}
		params = append(params, k+"="+url.QueryEscape(v))
	}

	add("amount", r.Amount.String())
	if !r.Reference.IsZero() {
		add("reference", r.Reference.String())
	}
	add("label", r.Label)
	add("message", r.Message)
	add("memo", r.Memo)

	var b strings.Builder
	b.WriteString(urlScheme)
	b.WriteByte(':')
	b.WriteString(r.Recipient.String())
	if len(params) > 0 {
		b.WriteByte('?')
		b.WriteString(strings.Join(params, "&"))
	}
	return b.String(), nil
}

// ParseTransferURL is the inverse of EncodeTransferURL.
func ParseTransferURL(raw string) (TransferRequest, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return TransferRequest{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != urlScheme || u.Opaque == "" {
		return TransferRequest{}, fmt.Errorf("%w: %s", ErrInvalidURL, raw)
	}

	var r TransferRequest
	r.Recipient, err = ParsePublicKey(u.Opaque)
	if err != nil {
		return TransferRequest{}, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	q := u.Query()
	if v := q.Get("amount"); v != "" {
		r.Amount, err = decimal.NewFromString(v)
		if err != nil {
			return TransferRequest{}, fmt.Errorf("%w: amount: %v", ErrInvalidURL, err)
		}
		if err := ValidateAmount(r.Amount); err != nil {
			return TransferRequest{}, err
		}
	}
	if v := q.Get("reference"); v != "" {
		r.Reference, err = ParsePublicKey(v)
		if err != nil {
			return TransferRequest{}, fmt.Errorf("%w: reference: %v", ErrInvalidURL, err)
		}
	}
	r.Label = q.Get("label")
	r.Message = q.Get("message")
	r.Memo = q.Get("memo")
	return r, nil
}

// ValidateAmount checks that amount is positive and representable in lamports.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Shift(lamportDecimals).IsInteger() {
		return ErrInvalidAmount
	}
	return nil
}

// ToLamports converts a SOL amount to lamports. The amount must already have
// passed ValidateAmount.
func ToLamports(amount decimal.Decimal) int64 {
	return amount.Shift(lamportDecimals).IntPart()
}
