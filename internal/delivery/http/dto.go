package httpd

import (
	"bytes"
	"encoding/json"
	"reflect"
	"time"
)

// Amount is a decimal amount as sent by the client. It accepts a JSON string
// or a JSON number and keeps the exact text so no precision goes through a
// float.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		*a = Amount(data)
		return nil
	}
	return &json.UnmarshalTypeError{Value: jsonKind(data[0]), Type: reflect.TypeOf(*a)}
}

func jsonKind(b byte) string {
	switch b {
	case '{':
		return "object"
	case '[':
		return "array"
	case 't', 'f':
		return "bool"
	}
	return "value"
}

type CreatePaymentReq struct {
	Recipient string `json:"recipient" validate:"required,solpubkey"`
	Amount    Amount `json:"amount" validate:"required,posdecimal"`
	Label     string `json:"label" validate:"required"`
	Message   string `json:"message" validate:"required"`
	Memo      string `json:"memo" validate:"required"`
	Currency  string `json:"currency" validate:"omitempty,oneof=SOL USDC USDT KES USD"`
}

type CreatePaymentResp struct {
	URL       string `json:"url"`
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
}

type VerifyResp struct {
	Status    string `json:"status"`
	Message   string `json:"message,omitempty"`
	Signature string `json:"signature,omitempty"`
	RPCError  string `json:"rpcError,omitempty"`
}

// RatesResp is display-only. Settlement conversion reads the decimal rates
// from the feed directly, never these floats.
type RatesResp struct {
	SOL         float64 `json:"SOL"`
	USDC        float64 `json:"USDC"`
	USDT        float64 `json:"USDT"`
	KES         float64 `json:"KES"`
	USD         float64 `json:"USD"`
	LastUpdated string  `json:"lastUpdated"`
	Error       string  `json:"error,omitempty"`
}

type InitiatePaymentReq struct {
	Amount   Amount `json:"amount" validate:"required,posdecimal"`
	Currency string `json:"currency" validate:"required"`
	Payer    string `json:"payer"`
	Payee    string `json:"payee"`
	Method   string `json:"method" validate:"required"`
}

type InitiatePaymentResp struct {
	Message     string `json:"message"`
	Transaction TxItem `json:"transaction"`
}

type TxItem struct {
	ID          string     `json:"id"`
	ReferenceNo string     `json:"referenceNo,omitempty"`
	Amount      string     `json:"amount"`
	Currency    string     `json:"currency"`
	Payer       string     `json:"payer"`
	Payee       string     `json:"payee"`
	Method      string     `json:"method"`
	Status      string     `json:"status"`
	Signature   string     `json:"signature,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	SettledAt   *time.Time `json:"settledAt,omitempty"`
}
