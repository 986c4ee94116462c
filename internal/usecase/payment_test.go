package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	solana "github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solpay_gateway/internal/chain"
	"solpay_gateway/internal/domain"
	"solpay_gateway/internal/rates"
	"solpay_gateway/internal/repository"
)

const testRecipient = "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin"

// fakeChain reports whatever findFn/validateFn return.
type fakeChain struct {
	findFn     func(solana.PublicKey) (solana.Signature, error)
	validateFn func(solana.Signature, chain.TransferRequest) error
}

func (f *fakeChain) FindReference(_ context.Context, ref solana.PublicKey) (solana.Signature, error) {
	return f.findFn(ref)
}

func (f *fakeChain) ValidateTransfer(_ context.Context, sig solana.Signature, want chain.TransferRequest) error {
	return f.validateFn(sig, want)
}

func notOnChain() *fakeChain {
	return &fakeChain{
		findFn: func(solana.PublicKey) (solana.Signature, error) {
			return solana.Signature{}, domain.ErrTransferNotFound
		},
	}
}

// paidChain finds a transaction that moved exactly paid SOL.
func paidChain(paid decimal.Decimal) *fakeChain {
	return &fakeChain{
		findFn: func(solana.PublicKey) (solana.Signature, error) {
			return solana.Signature{7}, nil
		},
		validateFn: func(_ solana.Signature, want chain.TransferRequest) error {
			if !want.Amount.Equal(paid) {
				return fmt.Errorf("%w: amount", domain.ErrTransferMismatch)
			}
			return nil
		},
	}
}

type fakeLedger struct {
	mu  sync.Mutex
	txs []domain.Transaction
	err error
}

func (l *fakeLedger) InsertTransaction(_ context.Context, t *domain.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	l.txs = append(l.txs, *t)
	return nil
}

func validInput() CreateInput {
	return CreateInput{
		Recipient: testRecipient,
		Amount:    decimal.RequireFromString("0.0001"),
		Label:     "Shop",
		Message:   "Thanks",
		Memo:      "order-1",
	}
}

func TestCreateRequest(t *testing.T) {
	store := repository.NewMemoryStore(0)
	uc := NewPaymentUsecase(store, notOnChain(), nil, nil, nil)

	res, err := uc.CreateRequest(context.Background(), validInput())
	require.NoError(t, err)

	assert.NotEmpty(t, res.Request.Reference)
	assert.Contains(t, res.URL, "solana:"+testRecipient+"?amount=0.0001&reference="+res.Request.Reference)

	stored, ok := store.Get(res.Request.Reference)
	require.True(t, ok)
	assert.True(t, stored.Amount.Equal(decimal.RequireFromString("0.0001")))
	assert.Equal(t, domain.CurrencySOL, stored.Currency)
}

func TestCreateRequest_UniqueReferences(t *testing.T) {
	store := repository.NewMemoryStore(0)
	uc := NewPaymentUsecase(store, notOnChain(), nil, nil, nil)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		res, err := uc.CreateRequest(context.Background(), validInput())
		require.NoError(t, err)
		require.False(t, seen[res.Request.Reference])
		seen[res.Request.Reference] = true
	}
	assert.Equal(t, 50, store.Len())
}

func TestCreateRequest_ConvertsCurrency(t *testing.T) {
	store := repository.NewMemoryStore(0)
	feed := rates.NewFeed("http://127.0.0.1:0", nil)
	uc := NewPaymentUsecase(store, notOnChain(), nil, feed, nil)

	in := validInput()
	in.Amount = decimal.NewFromInt(300)
	in.Currency = domain.CurrencyUSD

	res, err := uc.CreateRequest(context.Background(), in)
	require.NoError(t, err)
	assert.True(t, res.Request.Amount.Equal(decimal.NewFromInt(2)), res.Request.Amount.String())
	assert.True(t, res.Request.DisplayAmount.Equal(decimal.NewFromInt(300)))
	assert.Equal(t, domain.CurrencyUSD, res.Request.Currency)
}

func TestCreateRequest_RejectsInvalid(t *testing.T) {
	store := repository.NewMemoryStore(0)
	uc := NewPaymentUsecase(store, notOnChain(), nil, nil, nil)

	bad := validInput()
	bad.Recipient = "Addr1"
	_, err := uc.CreateRequest(context.Background(), bad)
	assert.Error(t, err)

	bad = validInput()
	bad.Amount = decimal.RequireFromString("0.0000000001")
	_, err = uc.CreateRequest(context.Background(), bad)
	assert.ErrorIs(t, err, chain.ErrInvalidAmount)

	assert.Equal(t, 0, store.Len())
}

func TestCreateRequest_ReferenceFailure(t *testing.T) {
	store := repository.NewMemoryStore(0)
	uc := NewPaymentUsecase(store, notOnChain(), nil, nil, nil)
	uc.newReference = func() (solana.PublicKey, error) {
		return solana.PublicKey{}, errors.New("entropy exhausted")
	}

	_, err := uc.CreateRequest(context.Background(), validInput())
	assert.Error(t, err)
	assert.Equal(t, 0, store.Len())
}

func TestVerify_NotOnChainKeepsEntry(t *testing.T) {
	store := repository.NewMemoryStore(0)
	uc := NewPaymentUsecase(store, notOnChain(), nil, nil, nil)

	res, err := uc.CreateRequest(context.Background(), validInput())
	require.NoError(t, err)

	_, err = uc.Verify(context.Background(), res.Request.Reference)
	assert.ErrorIs(t, err, domain.ErrTransferNotFound)

	_, ok := store.Get(res.Request.Reference)
	assert.True(t, ok)
}

func TestVerify_MatchDeletesOnce(t *testing.T) {
	store := repository.NewMemoryStore(0)
	ledger := &fakeLedger{}
	uc := NewPaymentUsecase(store, paidChain(decimal.RequireFromString("0.0001")), ledger, nil, nil)

	res, err := uc.CreateRequest(context.Background(), validInput())
	require.NoError(t, err)
	ref := res.Request.Reference

	out, err := uc.Verify(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, solana.Signature{7}.String(), out.Signature)

	_, err = uc.Verify(context.Background(), ref)
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)

	require.Len(t, ledger.txs, 1)
	assert.Equal(t, ref, ledger.txs[0].ReferenceNo)
	assert.Equal(t, domain.StatusVerified, ledger.txs[0].Status)
	assert.Equal(t, domain.MethodSolana, ledger.txs[0].Method)
}

func TestVerify_MismatchKeepsEntry(t *testing.T) {
	store := repository.NewMemoryStore(0)
	uc := NewPaymentUsecase(store, paidChain(decimal.RequireFromString("0.00005")), nil, nil, nil)

	res, err := uc.CreateRequest(context.Background(), validInput())
	require.NoError(t, err)

	_, err = uc.Verify(context.Background(), res.Request.Reference)
	assert.ErrorIs(t, err, domain.ErrTransferMismatch)

	_, ok := store.Get(res.Request.Reference)
	assert.True(t, ok)
}

func TestVerify_UpstreamError(t *testing.T) {
	store := repository.NewMemoryStore(0)
	c := &fakeChain{
		findFn: func(solana.PublicKey) (solana.Signature, error) {
			return solana.Signature{}, fmt.Errorf("%w: connection refused", domain.ErrUpstream)
		},
	}
	uc := NewPaymentUsecase(store, c, nil, nil, nil)

	res, err := uc.CreateRequest(context.Background(), validInput())
	require.NoError(t, err)

	_, err = uc.Verify(context.Background(), res.Request.Reference)
	assert.ErrorIs(t, err, domain.ErrUpstream)
	assert.NotErrorIs(t, err, domain.ErrTransferNotFound)
	assert.Equal(t, 1, store.Len())
}

func TestVerify_UnknownAndMalformedReference(t *testing.T) {
	uc := NewPaymentUsecase(repository.NewMemoryStore(0), notOnChain(), nil, nil, nil)

	_, err := uc.Verify(context.Background(), "not a key")
	assert.ErrorIs(t, err, ErrInvalidReference)

	ref, err := chain.NewReference()
	require.NoError(t, err)
	_, err = uc.Verify(context.Background(), ref.String())
	assert.ErrorIs(t, err, domain.ErrRequestNotFound)
}

func TestVerify_ConcurrentSingleSuccess(t *testing.T) {
	store := repository.NewMemoryStore(0)
	ledger := &fakeLedger{}
	uc := NewPaymentUsecase(store, paidChain(decimal.RequireFromString("0.0001")), ledger, nil, nil)

	res, err := uc.CreateRequest(context.Background(), validInput())
	require.NoError(t, err)

	var mu sync.Mutex
	verified := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := uc.Verify(context.Background(), res.Request.Reference); err == nil {
				mu.Lock()
				verified++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, verified)
	assert.Len(t, ledger.txs, 1)
}

func TestVerify_LedgerFailureStillVerifies(t *testing.T) {
	store := repository.NewMemoryStore(0)
	ledger := &fakeLedger{err: errors.New("disk full")}
	uc := NewPaymentUsecase(store, paidChain(decimal.RequireFromString("0.0001")), ledger, nil, nil)

	res, err := uc.CreateRequest(context.Background(), validInput())
	require.NoError(t, err)

	_, err = uc.Verify(context.Background(), res.Request.Reference)
	assert.NoError(t, err)
	assert.Equal(t, 0, store.Len())
}
