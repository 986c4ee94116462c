package chain

import (
	"context"
	"errors"
	"fmt"

	solana "github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"

	"solpay_gateway/internal/domain"
)

const signaturePageSize = 1000

// Client looks up Solana Pay transfers through a JSON-RPC endpoint.
type Client struct {
	rpc        *rpc.Client
	commitment rpc.CommitmentType
}

func NewClient(endpoint string, commitment string) *Client {
	c := rpc.CommitmentType(commitment)
	if c == "" {
		c = rpc.CommitmentConfirmed
	}
	return &Client{rpc: rpc.New(endpoint), commitment: c}
}

// FindReference returns the oldest transaction signature that lists ref among
// its account keys. It returns domain.ErrTransferNotFound when the chain has
// no such transaction yet.
func (c *Client) FindReference(ctx context.Context, ref solana.PublicKey) (solana.Signature, error) {
	limit := signaturePageSize
	opts := &rpc.GetSignaturesForAddressOpts{
		Limit:      &limit,
		Commitment: c.commitment,
	}

	var oldest solana.Signature
	for {
		sigs, err := c.rpc.GetSignaturesForAddressWithOpts(ctx, ref, opts)
		if err != nil {
			return solana.Signature{}, fmt.Errorf("get signatures for %s: %w: %w", ref, domain.ErrUpstream, err)
		}
		if len(sigs) == 0 {
			break
		}
		oldest = sigs[len(sigs)-1].Signature
		if len(sigs) < limit {
			break
		}
		opts.Before = oldest
	}

	if oldest == (solana.Signature{}) {
		return solana.Signature{}, domain.ErrTransferNotFound
	}
	return oldest, nil
}

// ValidateTransfer fetches the transaction behind sig and checks that it moved
// exactly want.Amount SOL to want.Recipient and carries want.Reference.
func (c *Client) ValidateTransfer(ctx context.Context, sig solana.Signature, want TransferRequest) error {
	version := uint64(0)
	out, err := c.rpc.GetTransaction(ctx, sig, &rpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     c.commitment,
		MaxSupportedTransactionVersion: &version,
	})
	if err != nil {
		if errors.Is(err, rpc.ErrNotFound) {
			return domain.ErrTransferNotFound
		}
		return fmt.Errorf("get transaction %s: %w: %w", sig, domain.ErrUpstream, err)
	}
	if out == nil || out.Transaction == nil || out.Meta == nil {
		return domain.ErrTransferNotFound
	}

	tx, err := out.Transaction.GetTransaction()
	if err != nil {
		return fmt.Errorf("decode transaction %s: %w: %w", sig, domain.ErrUpstream, err)
	}

	keys := make([]solana.PublicKey, 0, len(tx.Message.AccountKeys)+
		len(out.Meta.LoadedAddresses.Writable)+len(out.Meta.LoadedAddresses.ReadOnly))
	keys = append(keys, tx.Message.AccountKeys...)
	keys = append(keys, out.Meta.LoadedAddresses.Writable...)
	keys = append(keys, out.Meta.LoadedAddresses.ReadOnly...)

	return matchTransfer(keys, out.Meta.Err, out.Meta.PreBalances, out.Meta.PostBalances, want)
}

// matchTransfer compares the balance change of the recipient against the
// expected amount. Balances are indexed like keys.
func matchTransfer(keys []solana.PublicKey, txErr any, pre, post []uint64, want TransferRequest) error {
	if txErr != nil {
		return fmt.Errorf("%w: transaction failed: %v", domain.ErrTransferMismatch, txErr)
	}

	recipient := -1
	hasReference := want.Reference.IsZero()
	for i, k := range keys {
		if k.Equals(want.Recipient) && recipient < 0 {
			recipient = i
		}
		if !want.Reference.IsZero() && k.Equals(want.Reference) {
			hasReference = true
		}
	}
	if recipient < 0 {
		return fmt.Errorf("%w: recipient %s not found", domain.ErrTransferMismatch, want.Recipient)
	}
	if !hasReference {
		return fmt.Errorf("%w: reference %s not found", domain.ErrTransferMismatch, want.Reference)
	}
	if recipient >= len(pre) || recipient >= len(post) {
		return fmt.Errorf("%w: balances missing for recipient", domain.ErrTransferMismatch)
	}

	got := int64(post[recipient]) - int64(pre[recipient])
	expected := ToLamports(want.Amount)
	if got != expected {
		return fmt.Errorf("%w: transferred %d lamports, expected %d", domain.ErrTransferMismatch, got, expected)
	}
	return nil
}
