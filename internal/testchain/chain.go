// Package testchain is an in-process node for tests. It implements
// chainManager.NodeClient, mines one transaction per block and runs
// contracts written in Go instead of EVM bytecode.
package testchain

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/energyweb/market-contracts-go/pkg/chainManager"
	"github.com/energyweb/market-contracts-go/pkg/util"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

const (
	// GethVersion and ParityVersion are client version strings the chain can report.
	GethVersion   = "Geth/v1.17.0-stable/linux-amd64/go1.24.11"
	ParityVersion = "Parity-Ethereum//v2.7.2-stable-2662d19-20200206/x86_64-unknown-linux-gnu/rustc1.41.0"

	// IntrinsicGas is what every estimation returns on success.
	IntrinsicGas uint64 = 90000
)

// Env is the execution context of one contract call.
type Env struct {
	Chain  *Chain
	Sender common.Address
	Self   common.Address
}

// Result is a successful execution. Apply commits the state change; it is
// skipped for calls and estimations.
type Result struct {
	Output []byte
	Logs   []types.Log
	Apply  func()
}

// Contract is a Go implementation of a deployed contract.
type Contract interface {
	Code() []byte
	Execute(env *Env, input []byte) (*Result, error)
}

// Factory creates a contract from its ABI-encoded constructor arguments.
type Factory func(env *Env, args []byte) (Contract, error)

type factoryEntry struct {
	creationCode []byte
	factory      Factory
}

// SendHook can reject a transaction before it is mined. A nil To is a deployment.
type SendHook func(from common.Address, to *common.Address, data []byte) error

// Chain implements chainManager.NodeClient. It is safe for concurrent use.
type Chain struct {
	mu sync.Mutex

	chainID       *big.Int
	clientVersion string
	accounts      []common.Address

	head      uint64
	nonces    map[common.Address]uint64
	receipts  map[common.Hash]*types.Receipt
	logs      []types.Log
	contracts map[common.Address]Contract
	factories []factoryEntry
	sendHook  SendHook

	// user and asset registry state consulted by the market contracts
	userRegistry common.Address
	roles        map[common.Address]uint64
	assetOwners  []common.Address
}

var _ chainManager.NodeClient = (*Chain)(nil)

// New creates an empty chain whose node manages accounts.
func New(chainID int64, accounts ...common.Address) *Chain {
	return &Chain{
		chainID:       big.NewInt(chainID),
		clientVersion: GethVersion,
		accounts:      accounts,
		nonces:        map[common.Address]uint64{},
		receipts:      map[common.Hash]*types.Receipt{},
		contracts:     map[common.Address]Contract{},
		roles:         map[common.Address]uint64{},
		userRegistry:  common.HexToAddress("0x00000000000000000000000000000000000000e1"),
	}
}

// SetClientVersion changes the web3_clientVersion string. Parity versions
// also switch error reporting to Parity's format.
func (c *Chain) SetClientVersion(v string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clientVersion = v
}

// SetSendHook installs h, or removes the hook when h is nil.
func (c *Chain) SetSendHook(h SendHook) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sendHook = h
}

// Register makes deployments of creationCode run factory.
func (c *Chain) Register(creationCode []byte, factory Factory) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.factories = append(c.factories, factoryEntry{creationCode: creationCode, factory: factory})
}

// SetRoles sets the user registry role mask of user.
func (c *Chain) SetRoles(user common.Address, mask uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.roles[user] = mask
}

// AddAsset registers an asset owned by owner and returns its ID.
func (c *Chain) AddAsset(owner common.Address) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assetOwners = append(c.assetOwners, owner)
	return uint64(len(c.assetOwners) - 1)
}

// UserRegistry is the address reported as the user registry lookup.
func (c *Chain) UserRegistry() common.Address {
	return c.userRegistry
}

// Contract returns the contract deployed at address.
func (c *Chain) Contract(address common.Address) (Contract, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ct, ok := c.contracts[address]
	return ct, ok
}

func (c *Chain) isParity() bool {
	return c.clientVersion == ParityVersion
}

func (c *Chain) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(c.chainID), nil
}

func (c *Chain) BlockNumber(ctx context.Context) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.head, nil
}

func (c *Chain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := c.head
	if number != nil {
		n = number.Uint64()
	}
	return &types.Header{Number: new(big.Int).SetUint64(n)}, nil
}

func (c *Chain) Accounts(ctx context.Context) ([]common.Address, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]common.Address(nil), c.accounts...), nil
}

func (c *Chain) ClientVersion(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientVersion, nil
}

func (c *Chain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.nonces[account], nil
}

func (c *Chain) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ct, ok := c.contracts[account]; ok {
		return ct.Code(), nil
	}
	return nil, nil
}

func (c *Chain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return r, nil
}

func (c *Chain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var err error
	if msg.To == nil {
		_, _, err = c.create(msg.From, c.nonces[msg.From], msg.Data)
	} else {
		_, err = c.execute(msg.From, *msg.To, msg.Data)
	}
	if err != nil {
		if c.isParity() {
			return 0, errors.New("VM execution error.")
		}
		return 0, c.nodeError(err)
	}
	return IntrinsicGas, nil
}

func (c *Chain) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if msg.To == nil {
		return nil, errors.New("missing to")
	}
	if _, ok := c.contracts[*msg.To]; !ok {
		return nil, nil
	}
	res, err := c.execute(msg.From, *msg.To, msg.Data)
	if err != nil {
		return nil, c.nodeError(err)
	}
	return res.Output, nil
}

func (c *Chain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	from, err := types.Sender(types.LatestSignerForChainID(c.chainID), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.checkNonce(from, tx.Nonce()); err != nil {
		return err
	}
	return c.mine(tx.Hash(), from, tx.To(), tx.Data(), tx.Gas())
}

func (c *Chain) SendManagedTransaction(ctx context.Context, tx *chainManager.ManagedTransaction) (common.Hash, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, managed := util.Find(c.accounts, func(a common.Address) bool { return a == tx.From }); !managed {
		return common.Hash{}, fmt.Errorf("unknown account %s", tx.From.Hex())
	}
	nonce := c.nonces[tx.From]
	if tx.Nonce != nil {
		if err := c.checkNonce(tx.From, *tx.Nonce); err != nil {
			return common.Hash{}, err
		}
	}
	hash := crypto.Keccak256Hash(tx.From.Bytes(), new(big.Int).SetUint64(nonce).Bytes(), c.chainID.Bytes())
	if err := c.mine(hash, tx.From, tx.To, tx.Data, tx.Gas); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

func (c *Chain) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	from := uint64(0)
	if q.FromBlock != nil {
		from = q.FromBlock.Uint64()
	}
	to := c.head
	if q.ToBlock != nil {
		to = q.ToBlock.Uint64()
	}

	out := []types.Log{}
	for _, l := range c.logs {
		if l.BlockNumber < from || l.BlockNumber > to {
			continue
		}
		if len(q.Addresses) > 0 {
			if _, ok := util.Find(q.Addresses, func(a common.Address) bool { return a == l.Address }); !ok {
				continue
			}
		}
		if !topicsMatch(q.Topics, l.Topics) {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (c *Chain) checkNonce(from common.Address, nonce uint64) error {
	expected := c.nonces[from]
	switch {
	case nonce < expected:
		return fmt.Errorf("nonce too low: address %s, tx: %d state: %d", from.Hex(), nonce, expected)
	case nonce > expected:
		return fmt.Errorf("nonce too high: address %s, tx: %d state: %d", from.Hex(), nonce, expected)
	}
	return nil
}

// mine executes one transaction in a new block. Reverts and out of gas
// still mine, with status 0.
func (c *Chain) mine(hash common.Hash, from common.Address, to *common.Address, data []byte, gas uint64) error {
	if c.sendHook != nil {
		if err := c.sendHook(from, to, data); err != nil {
			return err
		}
	}
	nonce := c.nonces[from]
	c.nonces[from] = nonce + 1
	c.head++

	receipt := &types.Receipt{
		Type:        types.LegacyTxType,
		TxHash:      hash,
		BlockNumber: new(big.Int).SetUint64(c.head),
		GasUsed:     IntrinsicGas,
		Status:      types.ReceiptStatusFailed,
	}
	c.receipts[hash] = receipt

	if gas < IntrinsicGas {
		receipt.GasUsed = gas
		return nil
	}

	var logs []types.Log
	if to == nil {
		address, contract, err := c.create(from, nonce, data)
		if err != nil {
			return nil
		}
		c.contracts[address] = contract
		receipt.ContractAddress = address
	} else {
		res, err := c.execute(from, *to, data)
		if err != nil {
			return nil
		}
		if res.Apply != nil {
			res.Apply()
		}
		logs = res.Logs
	}

	receipt.Status = types.ReceiptStatusSuccessful
	for i := range logs {
		l := logs[i]
		l.BlockNumber = c.head
		l.TxHash = hash
		l.Index = uint(len(c.logs))
		c.logs = append(c.logs, l)
		receipt.Logs = append(receipt.Logs, &l)
	}
	return nil
}

func (c *Chain) create(from common.Address, nonce uint64, data []byte) (common.Address, Contract, error) {
	address := crypto.CreateAddress(from, nonce)
	for _, f := range c.factories {
		if bytes.HasPrefix(data, f.creationCode) {
			contract, err := f.factory(&Env{Chain: c, Sender: from, Self: address}, data[len(f.creationCode):])
			if err != nil {
				return common.Address{}, nil, err
			}
			return address, contract, nil
		}
	}
	return common.Address{}, nil, Revert("")
}

func (c *Chain) execute(from, to common.Address, data []byte) (*Result, error) {
	contract, ok := c.contracts[to]
	if !ok {
		// plain value transfer to an account without code
		return &Result{}, nil
	}
	return contract.Execute(&Env{Chain: c, Sender: from, Self: to}, data)
}

// Call runs input against the contract at to as a nested call from env.Self.
func (env *Env) Call(to common.Address, input []byte) (*Result, error) {
	return env.Chain.execute(env.Self, to, input)
}

func topicsMatch(filter [][]common.Hash, topics []common.Hash) bool {
	if len(filter) > len(topics) {
		return false
	}
	for i, set := range filter {
		if len(set) == 0 {
			continue
		}
		match := false
		for _, h := range set {
			if h == topics[i] {
				match = true
				break
			}
		}
		if !match {
			return false
		}
	}
	return true
}
