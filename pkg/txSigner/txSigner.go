// Package txSigner signs raw transactions for the RawKey authentication mode.
// Keys can be held in memory (PrivateKeySigner), loaded from AWS Secrets
// Manager, or never leave AWS KMS (AWSKMSSigner).
package txSigner

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// ITransactionSigner signs transactions locally before they are submitted
// with eth_sendRawTransaction.
type ITransactionSigner interface {
	// SignTransaction returns tx signed for chainID. The input is not modified.
	SignTransaction(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)

	// GetAddress returns the address derived from the signing key. It is
	// used as the sender of every transaction this signer signs.
	GetAddress() (common.Address, error)
}
