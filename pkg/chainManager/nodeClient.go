package chainManager

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// ManagedTransaction is a transaction the node signs with one of its own
// unlocked accounts (eth_sendTransaction). A nil To creates a contract.
type ManagedTransaction struct {
	From     common.Address
	To       *common.Address
	Gas      uint64
	GasPrice *big.Int
	// Nonce is only forwarded when set; the node assigns one otherwise.
	Nonce *uint64
	Data  []byte
}

type managedTxArgs struct {
	From     common.Address  `json:"from"`
	To       *common.Address `json:"to,omitempty"`
	Gas      hexutil.Uint64  `json:"gas"`
	GasPrice *hexutil.Big    `json:"gasPrice"`
	Nonce    *hexutil.Uint64 `json:"nonce,omitempty"`
	Data     hexutil.Bytes   `json:"data"`
}

// NodeClient is everything the executor and the migrator need from a node.
// It is a superset of bind's DeployBackend so receipts can be awaited with
// bind.WaitMined.
type NodeClient interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BlockNumber(ctx context.Context) (uint64, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)

	// Accounts returns the node-managed (unlocked) accounts, eth_accounts.
	Accounts(ctx context.Context) ([]common.Address, error)
	// ClientVersion returns the web3_clientVersion string.
	ClientVersion(ctx context.Context) (string, error)

	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	SendManagedTransaction(ctx context.Context, tx *ManagedTransaction) (common.Hash, error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)

	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error)
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)
}

// rpcNodeClient backs NodeClient with ethclient and the raw rpc client for
// the calls ethclient does not wrap.
type rpcNodeClient struct {
	*ethclient.Client
	raw *rpc.Client
}

// NewNodeClient wraps an already dialed rpc client.
func NewNodeClient(raw *rpc.Client) NodeClient {
	return &rpcNodeClient{
		Client: ethclient.NewClient(raw),
		raw:    raw,
	}
}

// DialNodeClient connects to url and returns a NodeClient.
func DialNodeClient(ctx context.Context, url string) (NodeClient, error) {
	raw, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RPC URL %s: %w", url, err)
	}
	return NewNodeClient(raw), nil
}

func (c *rpcNodeClient) Accounts(ctx context.Context) ([]common.Address, error) {
	var accounts []common.Address
	if err := c.raw.CallContext(ctx, &accounts, "eth_accounts"); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *rpcNodeClient) ClientVersion(ctx context.Context) (string, error) {
	var version string
	if err := c.raw.CallContext(ctx, &version, "web3_clientVersion"); err != nil {
		return "", err
	}
	return version, nil
}

func (c *rpcNodeClient) SendManagedTransaction(ctx context.Context, tx *ManagedTransaction) (common.Hash, error) {
	args := managedTxArgs{
		From: tx.From,
		To:   tx.To,
		Gas:  hexutil.Uint64(tx.Gas),
		Data: tx.Data,
	}
	gasPrice := tx.GasPrice
	if gasPrice == nil {
		gasPrice = new(big.Int)
	}
	args.GasPrice = (*hexutil.Big)(gasPrice)
	if tx.Nonce != nil {
		nonce := hexutil.Uint64(*tx.Nonce)
		args.Nonce = &nonce
	}

	var hash common.Hash
	if err := c.raw.CallContext(ctx, &hash, "eth_sendTransaction", args); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}
