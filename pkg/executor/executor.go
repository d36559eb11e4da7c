// Package executor submits market contract calls and transactions.
//
// Every write goes through the same routine: resolve the sender, pick the
// nonce, estimate gas (doubled), submit either a locally signed transaction
// (RawKey) or an eth_sendTransaction for a node-managed account
// (NodeManaged), then wait for the receipt.
package executor

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sync"

	"github.com/energyweb/market-contracts-go/pkg/chainManager"
	"github.com/energyweb/market-contracts-go/pkg/txSigner"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind/v2"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// DefaultGasMargin multiplies every gas estimate.
const DefaultGasMargin = 2.0

// AuthMode selects who signs a transaction.
type AuthMode int

const (
	// NodeManaged lets the node sign with one of its unlocked accounts.
	NodeManaged AuthMode = iota
	// RawKey signs locally and submits the raw transaction.
	RawKey
)

func (m AuthMode) String() string {
	switch m {
	case NodeManaged:
		return "node_managed"
	case RawKey:
		return "raw_key"
	default:
		return fmt.Sprintf("auth_mode(%d)", int(m))
	}
}

// TxParams are the optional per-call overrides. A nil *TxParams and every
// zero field mean "use the default".
type TxParams struct {
	From     *common.Address
	Gas      *uint64
	GasPrice *big.Int
	Nonce    *uint64
	// Data replaces the encoded call data when non-empty.
	Data []byte
	// PrivateKey selects RawKey mode. The 0x prefix is optional.
	PrivateKey string
	// Signer selects RawKey mode with an external signer, e.g. AWS KMS.
	// PrivateKey takes precedence when both are set.
	Signer txSigner.ITransactionSigner
}

// PreparedTransaction is the fully resolved transaction just before
// submission. A nil To creates a contract.
type PreparedTransaction struct {
	From     common.Address
	To       *common.Address
	Data     []byte
	Gas      uint64
	GasPrice *big.Int
	// Nonce is nil when the node assigns it (NodeManaged without override).
	Nonce *uint64
}

// EventFilter bounds an event query. ToBlock nil means latest.
type EventFilter struct {
	FromBlock uint64
	ToBlock   *uint64
	Topics    [][]common.Hash
}

// Option configures an Executor.
type Option func(*Executor)

// WithErrorDecoderSelector replaces the default Parity-aware selector.
func WithErrorDecoderSelector(s ErrorDecoderSelector) Option {
	return func(e *Executor) { e.selectDecoder = s }
}

// WithGasMargin sets the multiplier applied to gas estimates.
func WithGasMargin(margin float64) Option {
	return func(e *Executor) { e.gasMargin = margin }
}

// WithFallbackGas sets the gas used by the default selector's eth_call replay.
func WithFallbackGas(gas uint64) Option {
	return func(e *Executor) { e.fallbackGas = gas }
}

// WithMetrics records executor activity on m.
func WithMetrics(m *Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

type sender struct {
	mode   AuthMode
	from   common.Address
	signer txSigner.ITransactionSigner
}

// Executor is safe for concurrent use. Transactions from the same sender are
// serialised from nonce selection until the node accepts them.
type Executor struct {
	client        chainManager.NodeClient
	logger        *zap.Logger
	selectDecoder ErrorDecoderSelector
	gasMargin     float64
	fallbackGas   uint64
	metrics       *Metrics

	senderLocks sync.Map // map[common.Address]*sync.Mutex

	chainIDMu sync.Mutex
	chainID   *big.Int
}

// New creates an Executor on client.
func New(client chainManager.NodeClient, logger *zap.Logger, opts ...Option) *Executor {
	e := &Executor{
		client:      client,
		logger:      logger,
		gasMargin:   DefaultGasMargin,
		fallbackGas: DefaultFallbackGas,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.selectDecoder == nil {
		e.selectDecoder = DefaultErrorDecoderSelector(e.fallbackGas)
	}
	return e
}

// Client returns the node client the executor submits to.
func (e *Executor) Client() chainManager.NodeClient {
	return e.client
}

// Send executes a state-changing call to `to` and returns its successful receipt.
func (e *Executor) Send(ctx context.Context, to common.Address, data []byte, params *TxParams) (*types.Receipt, error) {
	return e.transact(ctx, &to, data, params)
}

// Deploy creates a contract from bytecode (constructor arguments already
// appended) and returns its address once code is present there.
func (e *Executor) Deploy(ctx context.Context, bytecode []byte, params *TxParams) (common.Address, *types.Receipt, error) {
	receipt, err := e.transact(ctx, nil, bytecode, params)
	if err != nil {
		return common.Address{}, nil, err
	}
	address := receipt.ContractAddress
	if address == (common.Address{}) {
		return common.Address{}, nil, fmt.Errorf("%w: receipt %s has no contract address", ErrNoCode, receipt.TxHash.Hex())
	}
	code, err := e.client.CodeAt(ctx, address, nil)
	if err != nil {
		return common.Address{}, nil, fmt.Errorf("failed to read code at %s: %w", address.Hex(), err)
	}
	if len(code) == 0 {
		return common.Address{}, nil, fmt.Errorf("%w: %s", ErrNoCode, address.Hex())
	}
	e.logger.Sugar().Infow("Contract deployed",
		zap.String("address", address.Hex()),
		zap.String("txHash", receipt.TxHash.Hex()),
	)
	return address, receipt, nil
}

// Call performs a read-only eth_call against the latest block. Only From
// and Data of params are used.
func (e *Executor) Call(ctx context.Context, to common.Address, data []byte, params *TxParams) ([]byte, error) {
	msg := ethereum.CallMsg{To: &to, Data: data}
	if params != nil {
		if len(params.Data) > 0 {
			msg.Data = params.Data
		}
		if params.From != nil {
			msg.From = *params.From
		} else if params.PrivateKey != "" || params.Signer != nil {
			s, err := e.resolveSender(ctx, params)
			if err != nil {
				return nil, err
			}
			msg.From = s.from
		}
	}

	e.metrics.call()
	out, err := e.client.CallContract(ctx, msg, nil)
	if err != nil {
		if revert := RevertFromError(err); revert != nil {
			return nil, revert
		}
		return nil, fmt.Errorf("eth_call to %s failed: %w", to.Hex(), err)
	}
	return out, nil
}

// FilterLogs returns the logs emitted by address in one eth_getLogs round
// trip, in node order. With eventID set, topic 0 is the event ID followed by
// filter.Topics. Without it, filter.Topics is used as is and defaults to a
// single wildcard position.
func (e *Executor) FilterLogs(ctx context.Context, address common.Address, filter *EventFilter, eventID *common.Hash) ([]types.Log, error) {
	if filter == nil {
		filter = &EventFilter{}
	}
	q := ethereum.FilterQuery{
		Addresses: []common.Address{address},
		FromBlock: new(big.Int).SetUint64(filter.FromBlock),
	}
	if filter.ToBlock != nil {
		q.ToBlock = new(big.Int).SetUint64(*filter.ToBlock)
	}
	if eventID != nil {
		q.Topics = append([][]common.Hash{{*eventID}}, filter.Topics...)
	} else if len(filter.Topics) > 0 {
		q.Topics = filter.Topics
	} else {
		q.Topics = [][]common.Hash{nil}
	}

	logs, err := e.client.FilterLogs(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to filter logs of %s: %w", address.Hex(), err)
	}
	return logs, nil
}

// CodeAt returns the runtime code at address in the latest block.
func (e *Executor) CodeAt(ctx context.Context, address common.Address) ([]byte, error) {
	return e.client.CodeAt(ctx, address, nil)
}

// Prepare resolves sender, nonce, gas and gas price without submitting.
// Gas estimation runs against the current state; Prepare does not hold the
// sender lock, so the nonce may be stale by the time it is used.
func (e *Executor) Prepare(ctx context.Context, to *common.Address, data []byte, params *TxParams) (*PreparedTransaction, error) {
	s, err := e.resolveSender(ctx, params)
	if err != nil {
		return nil, err
	}
	return e.prepare(ctx, s, to, data, params)
}

func (e *Executor) transact(ctx context.Context, to *common.Address, data []byte, params *TxParams) (*types.Receipt, error) {
	s, err := e.resolveSender(ctx, params)
	if err != nil {
		return nil, err
	}

	unlock := e.lockSender(s.from)
	prepared, err := e.prepare(ctx, s, to, data, params)
	if err != nil {
		unlock()
		return nil, err
	}
	hash, err := e.submit(ctx, s, prepared)
	unlock()
	if err != nil {
		return nil, err
	}
	e.metrics.transactionSent(s.mode)

	return e.ensureTransactionEvaled(ctx, hash)
}

func (e *Executor) lockSender(from common.Address) func() {
	v, _ := e.senderLocks.LoadOrStore(from, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}

func (e *Executor) resolveSender(ctx context.Context, params *TxParams) (*sender, error) {
	if params != nil && params.PrivateKey != "" {
		signer, err := txSigner.NewPrivateKeySigner(params.PrivateKey)
		if err != nil {
			return nil, err
		}
		return signerSender(signer)
	}
	if params != nil && params.Signer != nil {
		return signerSender(params.Signer)
	}

	if params != nil && params.From != nil {
		return &sender{mode: NodeManaged, from: *params.From}, nil
	}
	accounts, err := e.client.Accounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list node accounts: %w", err)
	}
	if len(accounts) == 0 {
		return nil, ErrNoAccounts
	}
	return &sender{mode: NodeManaged, from: accounts[0]}, nil
}

func signerSender(signer txSigner.ITransactionSigner) (*sender, error) {
	from, err := signer.GetAddress()
	if err != nil {
		return nil, fmt.Errorf("failed to get signer address: %w", err)
	}
	return &sender{mode: RawKey, from: from, signer: signer}, nil
}

func (e *Executor) prepare(ctx context.Context, s *sender, to *common.Address, data []byte, params *TxParams) (*PreparedTransaction, error) {
	if params == nil {
		params = &TxParams{}
	}
	p := &PreparedTransaction{
		From:     s.from,
		To:       to,
		Data:     data,
		GasPrice: new(big.Int),
	}
	if len(params.Data) > 0 {
		p.Data = params.Data
	}
	if params.GasPrice != nil {
		p.GasPrice = new(big.Int).Set(params.GasPrice)
	}

	switch {
	case params.Nonce != nil:
		nonce := *params.Nonce
		p.Nonce = &nonce
	case s.mode == RawKey:
		nonce, err := e.client.PendingNonceAt(ctx, s.from)
		if err != nil {
			return nil, fmt.Errorf("failed to get pending nonce for %s: %w", s.from.Hex(), err)
		}
		p.Nonce = &nonce
	}

	if params.Gas != nil {
		p.Gas = *params.Gas
	} else {
		gas, err := e.estimateGas(ctx, p)
		if err != nil {
			return nil, err
		}
		p.Gas = gas
	}
	if p.Gas == 0 {
		return nil, ErrZeroGas
	}
	return p, nil
}

func (e *Executor) estimateGas(ctx context.Context, p *PreparedTransaction) (uint64, error) {
	msg := ethereum.CallMsg{
		From: p.From,
		To:   p.To,
		Data: p.Data,
	}
	estimate, err := e.client.EstimateGas(ctx, msg)
	if err != nil {
		return 0, e.estimationFailure(ctx, msg, err)
	}
	gas := uint64(math.Round(float64(estimate) * e.gasMargin))
	e.logger.Sugar().Debugw("Estimated gas",
		zap.Uint64("estimate", estimate),
		zap.Uint64("gas", gas),
	)
	return gas, nil
}

func (e *Executor) estimationFailure(ctx context.Context, msg ethereum.CallMsg, estimateErr error) error {
	version, err := e.client.ClientVersion(ctx)
	if err != nil {
		e.logger.Sugar().Debugw("Failed to query client version",
			zap.Error(err),
		)
	}

	var revert *RevertError
	if decoder := e.selectDecoder(version); decoder != nil {
		revert, err = decoder.DecodeError(ctx, e.client, msg)
		if err != nil {
			e.logger.Sugar().Debugw("Failed to decode estimation error",
				zap.String("clientVersion", version),
				zap.Error(err),
			)
		}
	} else {
		revert = RevertFromError(estimateErr)
	}

	e.metrics.estimationFailed(revert != nil)
	e.logger.Sugar().Infow("Gas estimation failed",
		zap.String("from", msg.From.Hex()),
		zap.String("clientVersion", version),
		zap.Error(estimateErr),
	)
	return &EstimateGasError{Revert: revert, Err: estimateErr}
}

func (e *Executor) submit(ctx context.Context, s *sender, p *PreparedTransaction) (common.Hash, error) {
	if s.mode == NodeManaged {
		hash, err := e.client.SendManagedTransaction(ctx, &chainManager.ManagedTransaction{
			From:     p.From,
			To:       p.To,
			Gas:      p.Gas,
			GasPrice: p.GasPrice,
			Nonce:    p.Nonce,
			Data:     p.Data,
		})
		if err != nil {
			return common.Hash{}, fmt.Errorf("failed to send transaction from %s: %w", p.From.Hex(), err)
		}
		e.logSent(s, p, hash)
		return hash, nil
	}

	chainID, err := e.getChainID(ctx)
	if err != nil {
		return common.Hash{}, err
	}
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    *p.Nonce,
		GasPrice: p.GasPrice,
		Gas:      p.Gas,
		To:       p.To,
		Data:     p.Data,
	})
	signed, err := s.signer.SignTransaction(ctx, tx, chainID)
	if err != nil {
		return common.Hash{}, err
	}
	if err := e.client.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("failed to send raw transaction from %s: %w", p.From.Hex(), err)
	}
	e.logSent(s, p, signed.Hash())
	return signed.Hash(), nil
}

func (e *Executor) logSent(s *sender, p *PreparedTransaction, hash common.Hash) {
	to := "contract creation"
	if p.To != nil {
		to = p.To.Hex()
	}
	fields := []interface{}{
		zap.String("authMode", s.mode.String()),
		zap.String("from", p.From.Hex()),
		zap.String("to", to),
		zap.Uint64("gas", p.Gas),
		zap.String("txHash", hash.Hex()),
	}
	if p.Nonce != nil {
		fields = append(fields, zap.Uint64("nonce", *p.Nonce))
	}
	e.logger.Sugar().Infow("Sent transaction", fields...)
}

func (e *Executor) getChainID(ctx context.Context) (*big.Int, error) {
	e.chainIDMu.Lock()
	defer e.chainIDMu.Unlock()
	if e.chainID != nil {
		return e.chainID, nil
	}
	id, err := e.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain id: %w", err)
	}
	e.chainID = id
	return id, nil
}

func (e *Executor) ensureTransactionEvaled(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	receipt, err := bind.WaitMined(ctx, e.client, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for transaction %s to mine: %w", hash.Hex(), err)
	}
	if receipt == nil {
		return nil, fmt.Errorf("no receipt for transaction %s", hash.Hex())
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		e.logger.Sugar().Errorw("Transaction failed",
			zap.String("txHash", hash.Hex()),
			zap.Uint64("gasUsed", receipt.GasUsed),
		)
		return receipt, fmt.Errorf("%w: %s", ErrTransactionFailed, hash.Hex())
	}
	e.logger.Sugar().Debugw("Transaction succeeded",
		zap.String("txHash", hash.Hex()),
		zap.Stringer("blockNumber", receipt.BlockNumber),
	)
	return receipt, nil
}
