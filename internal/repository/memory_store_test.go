package repository

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solpay_gateway/internal/domain"
)

func makeRequest(ref string) domain.PendingPaymentRequest {
	return domain.PendingPaymentRequest{
		Reference:     ref,
		Recipient:     "9xQeWvG816bUx9EPjHmaT23yvVM2ZWbrrpZb9PusVFin",
		Amount:        decimal.RequireFromString("0.0001"),
		Currency:      domain.CurrencySOL,
		DisplayAmount: decimal.RequireFromString("0.0001"),
		Label:         "Shop",
		Message:       "Thanks",
		Memo:          "order-1",
		CreatedAt:     time.Now(),
	}
}

func TestGet_UnknownReference(t *testing.T) {
	s := NewMemoryStore(0)
	_, ok := s.Get("does-not-exist")
	assert.False(t, ok)
}

func TestPut_ThenGet(t *testing.T) {
	s := NewMemoryStore(0)
	req := makeRequest("ref-1")

	s.Put(req)
	got, ok := s.Get("ref-1")

	require.True(t, ok)
	assert.True(t, got.Equal(req))
	assert.Equal(t, 1, s.Len())
}

func TestCompareAndDelete(t *testing.T) {
	s := NewMemoryStore(0)
	req := makeRequest("ref-2")
	s.Put(req)

	stale := req
	stale.Amount = decimal.RequireFromString("0.0002")
	assert.False(t, s.CompareAndDelete(stale), "changed snapshot must not delete")

	assert.True(t, s.CompareAndDelete(req))
	assert.False(t, s.CompareAndDelete(req), "second delete must report false")

	_, ok := s.Get("ref-2")
	assert.False(t, ok)
}

func TestCompareAndDelete_SingleWinner(t *testing.T) {
	s := NewMemoryStore(0)
	req := makeRequest("ref-race")
	s.Put(req)

	var wins atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if s.CompareAndDelete(req) {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestConcurrentPuts(t *testing.T) {
	// Run with -race.
	s := NewMemoryStore(0)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ref := fmt.Sprintf("ref-%d", n)
			s.Put(makeRequest(ref))
			s.Get(ref)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 100, s.Len())
}

func TestSweep_EvictsExpired(t *testing.T) {
	s := NewMemoryStore(time.Hour)
	now := time.Now()
	s.now = func() time.Time { return now }

	old := makeRequest("old")
	old.CreatedAt = now.Add(-2 * time.Hour)
	fresh := makeRequest("fresh")
	fresh.CreatedAt = now.Add(-time.Minute)
	s.Put(old)
	s.Put(fresh)

	assert.Equal(t, 1, s.Sweep())

	_, ok := s.Get("old")
	assert.False(t, ok)
	_, ok = s.Get("fresh")
	assert.True(t, ok)
}

func TestSweep_DisabledWithZeroTTL(t *testing.T) {
	s := NewMemoryStore(0)
	old := makeRequest("old")
	old.CreatedAt = time.Now().Add(-365 * 24 * time.Hour)
	s.Put(old)

	assert.Equal(t, 0, s.Sweep())
	assert.Equal(t, 1, s.Len())
}

func TestStartSweeper_StopsOnCancel(t *testing.T) {
	s := NewMemoryStore(time.Millisecond)
	old := makeRequest("old")
	old.CreatedAt = time.Now().Add(-time.Hour)
	s.Put(old)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.StartSweeper(ctx, 5*time.Millisecond) }()

	require.Eventually(t, func() bool { return s.Len() == 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}
