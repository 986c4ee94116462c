package chain

import (
	"fmt"

	solana "github.com/gagliardetto/solana-go"
)

// NewReference returns the public key of a freshly generated keypair. The
// private half is discarded; the key only tags the payer's transaction so it
// can be found again with getSignaturesForAddress.
func NewReference() (solana.PublicKey, error) {
	priv, err := solana.NewRandomPrivateKey()
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("generate reference: %w", err)
	}
	return priv.PublicKey(), nil
}

// ParsePublicKey decodes a base58 account address.
func ParsePublicKey(s string) (solana.PublicKey, error) {
	pk, err := solana.PublicKeyFromBase58(s)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("invalid public key %q: %w", s, err)
	}
	return pk, nil
}

// IsValidPublicKey reports whether s decodes to a 32 byte base58 address.
func IsValidPublicKey(s string) bool {
	_, err := solana.PublicKeyFromBase58(s)
	return err == nil
}
