package executor

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/energyweb/market-contracts-go/pkg/chainManager"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testKeyHex = "0x4f3edf983ac636a65a842ce7c78d9aa706d3b113bce9c46f30d7d21715b23b1d"
)

var (
	testKeyAddress = common.HexToAddress("0x90F8bf6A479f320ead074411a4B0e7944Ea8c9C1")
	nodeAccount    = common.HexToAddress("0x00a329c0648769A73afAc7F9381E08FB43dBEA72")
	contractAddr   = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	chainID        = big.NewInt(73799)
	callData       = hexutil.MustDecode("0x2b0a9e5c")
)

type dataError struct {
	msg  string
	data interface{}
}

func (e *dataError) Error() string          { return e.msg }
func (e *dataError) ErrorData() interface{} { return e.data }

func revertPayload(t *testing.T, reason string) []byte {
	t.Helper()
	stringType, err := abi.NewType("string", "", nil)
	require.NoError(t, err)
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	require.NoError(t, err)
	return append(crypto.Keccak256([]byte("Error(string)"))[:4], packed...)
}

func newTestExecutor(t *testing.T, client chainManager.NodeClient, opts ...Option) *Executor {
	l, err := zap.NewDevelopment()
	require.NoError(t, err)
	return New(client, l, opts...)
}

func successReceipt() *types.Receipt {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful, BlockNumber: big.NewInt(7)}
}

func u64(v uint64) *uint64 { return &v }

func TestExecutor_Send_RawKey(t *testing.T) {
	ctx := context.Background()

	t.Run("derives sender, uses pending nonce and doubles the estimate", func(t *testing.T) {
		client := chainManager.NewMockNodeClient(t)
		client.On("PendingNonceAt", mock.Anything, testKeyAddress).Return(uint64(5), nil)
		client.On("EstimateGas", mock.Anything, mock.MatchedBy(func(msg ethereum.CallMsg) bool {
			return msg.From == testKeyAddress && *msg.To == contractAddr
		})).Return(uint64(21001), nil)
		client.On("ChainID", mock.Anything).Return(chainID, nil)
		client.On("SendTransaction", mock.Anything, mock.MatchedBy(func(tx *types.Transaction) bool {
			from, err := types.Sender(types.LatestSignerForChainID(chainID), tx)
			return err == nil &&
				from == testKeyAddress &&
				tx.Nonce() == 5 &&
				tx.Gas() == 42002 &&
				tx.GasPrice().Sign() == 0 &&
				*tx.To() == contractAddr
		})).Return(nil)
		client.On("TransactionReceipt", mock.Anything, mock.Anything).Return(successReceipt(), nil)

		e := newTestExecutor(t, client)
		receipt, err := e.Send(ctx, contractAddr, callData, &TxParams{PrivateKey: testKeyHex})
		require.NoError(t, err)
		assert.Equal(t, types.ReceiptStatusSuccessful, receipt.Status)
	})

	t.Run("explicit nonce and gas are used exactly", func(t *testing.T) {
		client := chainManager.NewMockNodeClient(t)
		client.On("ChainID", mock.Anything).Return(chainID, nil)
		client.On("SendTransaction", mock.Anything, mock.MatchedBy(func(tx *types.Transaction) bool {
			return tx.Nonce() == 11 && tx.Gas() == 300000
		})).Return(nil)
		client.On("TransactionReceipt", mock.Anything, mock.Anything).Return(successReceipt(), nil)

		e := newTestExecutor(t, client)
		// from is ignored in RawKey mode
		other := common.HexToAddress("0x1")
		_, err := e.Send(ctx, contractAddr, callData, &TxParams{
			PrivateKey: testKeyHex[2:],
			From:       &other,
			Nonce:      u64(11),
			Gas:        u64(300000),
		})
		require.NoError(t, err)
	})

	t.Run("zero gas is rejected before submission", func(t *testing.T) {
		client := chainManager.NewMockNodeClient(t)
		client.On("PendingNonceAt", mock.Anything, testKeyAddress).Return(uint64(0), nil)

		e := newTestExecutor(t, client)
		_, err := e.Send(ctx, contractAddr, callData, &TxParams{PrivateKey: testKeyHex, Gas: u64(0)})
		assert.ErrorIs(t, err, ErrZeroGas)
	})

	t.Run("invalid key", func(t *testing.T) {
		client := chainManager.NewMockNodeClient(t)
		e := newTestExecutor(t, client)
		_, err := e.Send(ctx, contractAddr, callData, &TxParams{PrivateKey: "0xzz"})
		assert.Error(t, err)
	})
}

func TestExecutor_Send_NodeManaged(t *testing.T) {
	ctx := context.Background()

	t.Run("defaults to the first node account and estimates gas", func(t *testing.T) {
		client := chainManager.NewMockNodeClient(t)
		client.On("Accounts", mock.Anything).Return([]common.Address{nodeAccount, testKeyAddress}, nil)
		client.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(50000), nil)
		client.On("SendManagedTransaction", mock.Anything, mock.MatchedBy(func(tx *chainManager.ManagedTransaction) bool {
			return tx.From == nodeAccount &&
				tx.Gas == 100000 &&
				tx.Nonce == nil &&
				tx.GasPrice.Sign() == 0 &&
				*tx.To == contractAddr
		})).Return(common.HexToHash("0xabc"), nil)
		client.On("TransactionReceipt", mock.Anything, common.HexToHash("0xabc")).Return(successReceipt(), nil)

		e := newTestExecutor(t, client)
		_, err := e.Send(ctx, contractAddr, callData, nil)
		require.NoError(t, err)
	})

	t.Run("explicit from, nonce and data override", func(t *testing.T) {
		override := hexutil.MustDecode("0xdeadbeef")
		client := chainManager.NewMockNodeClient(t)
		client.On("EstimateGas", mock.Anything, mock.MatchedBy(func(msg ethereum.CallMsg) bool {
			return msg.From == testKeyAddress && string(msg.Data) == string(override)
		})).Return(uint64(10), nil)
		client.On("SendManagedTransaction", mock.Anything, mock.MatchedBy(func(tx *chainManager.ManagedTransaction) bool {
			return tx.From == testKeyAddress && tx.Nonce != nil && *tx.Nonce == 3 && tx.Gas == 20
		})).Return(common.HexToHash("0x1"), nil)
		client.On("TransactionReceipt", mock.Anything, mock.Anything).Return(successReceipt(), nil)

		e := newTestExecutor(t, client)
		_, err := e.Send(ctx, contractAddr, callData, &TxParams{From: &testKeyAddress, Nonce: u64(3), Data: override})
		require.NoError(t, err)
	})

	t.Run("no accounts", func(t *testing.T) {
		client := chainManager.NewMockNodeClient(t)
		client.On("Accounts", mock.Anything).Return([]common.Address{}, nil)

		e := newTestExecutor(t, client)
		_, err := e.Send(ctx, contractAddr, callData, &TxParams{})
		assert.ErrorIs(t, err, ErrNoAccounts)
	})

	t.Run("reverted receipt", func(t *testing.T) {
		client := chainManager.NewMockNodeClient(t)
		client.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(10), nil)
		client.On("SendManagedTransaction", mock.Anything, mock.Anything).Return(common.HexToHash("0x2"), nil)
		client.On("TransactionReceipt", mock.Anything, mock.Anything).Return(&types.Receipt{Status: types.ReceiptStatusFailed}, nil)

		e := newTestExecutor(t, client)
		_, err := e.Send(ctx, contractAddr, callData, &TxParams{From: &nodeAccount})
		assert.ErrorIs(t, err, ErrTransactionFailed)
	})
}

func TestExecutor_EstimationFailure(t *testing.T) {
	ctx := context.Background()

	t.Run("revert data on the estimation error is decoded", func(t *testing.T) {
		payload := revertPayload(t, "user does not have the required role")
		client := chainManager.NewMockNodeClient(t)
		client.On("EstimateGas", mock.Anything, mock.Anything).
			Return(uint64(0), &dataError{msg: "execution reverted", data: hexutil.Encode(payload)})
		client.On("ClientVersion", mock.Anything).Return("Geth/v1.17.0-stable/linux-amd64/go1.24.11", nil)

		reg := prometheus.NewRegistry()
		metrics := NewMetrics(reg)
		e := newTestExecutor(t, client, WithMetrics(metrics))
		_, err := e.Send(ctx, contractAddr, callData, &TxParams{From: &nodeAccount})

		require.ErrorIs(t, err, ErrEstimateGas)
		assert.ErrorIs(t, err, ErrReverted)
		var estErr *EstimateGasError
		require.ErrorAs(t, err, &estErr)
		assert.Equal(t, "user does not have the required role", estErr.Reason())
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.EstimationFailures.WithLabelValues("true")))
	})

	t.Run("parity is asked again through eth_call with fallback gas", func(t *testing.T) {
		payload := revertPayload(t, "approveAgreementDemand: wrong msg.sender")
		client := chainManager.NewMockNodeClient(t)
		client.On("PendingNonceAt", mock.Anything, testKeyAddress).Return(uint64(0), nil)
		client.On("EstimateGas", mock.Anything, mock.Anything).
			Return(uint64(0), errors.New("VM execution error."))
		client.On("ClientVersion", mock.Anything).Return("Parity-Ethereum//v2.7.2-stable-2662d19-20200206/x86_64-unknown-linux-gnu/rustc1.41.0", nil)
		client.On("CallContract", mock.Anything, mock.MatchedBy(func(msg ethereum.CallMsg) bool {
			return msg.Gas == DefaultFallbackGas && msg.From == testKeyAddress
		}), (*big.Int)(nil)).Return(nil, &dataError{msg: "VM execution error.", data: "Reverted " + hexutil.Encode(payload)})

		e := newTestExecutor(t, client)
		_, err := e.Send(ctx, contractAddr, callData, &TxParams{PrivateKey: testKeyHex})

		var revert *RevertError
		require.ErrorAs(t, err, &revert)
		assert.Equal(t, "approveAgreementDemand: wrong msg.sender", revert.Reason)
		assert.ErrorIs(t, err, ErrEstimateGas)
	})

	t.Run("parity replay uses the configured fallback gas", func(t *testing.T) {
		client := chainManager.NewMockNodeClient(t)
		client.On("EstimateGas", mock.Anything, mock.Anything).
			Return(uint64(0), errors.New("VM execution error."))
		client.On("ClientVersion", mock.Anything).Return("OpenEthereum/v3.3.5-stable/x86_64-linux-musl/rustc1.59.0", nil)
		client.On("CallContract", mock.Anything, mock.MatchedBy(func(msg ethereum.CallMsg) bool {
			return msg.Gas == 4000000
		}), (*big.Int)(nil)).Return(nil, &dataError{msg: "VM execution error.", data: "Reverted " + hexutil.Encode(revertPayload(t, "msg.sender is not owner"))})

		e := newTestExecutor(t, client, WithFallbackGas(4000000))
		_, err := e.Send(ctx, contractAddr, callData, &TxParams{From: &nodeAccount})
		var estErr *EstimateGasError
		require.ErrorAs(t, err, &estErr)
		assert.Equal(t, "msg.sender is not owner", estErr.Reason())
	})

	t.Run("undecodable failure keeps the raw error", func(t *testing.T) {
		raw := errors.New("gas required exceeds allowance (8000000)")
		client := chainManager.NewMockNodeClient(t)
		client.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(0), raw)
		client.On("ClientVersion", mock.Anything).Return("", errors.New("method not found"))

		e := newTestExecutor(t, client)
		_, err := e.Send(ctx, contractAddr, callData, &TxParams{From: &nodeAccount})
		assert.ErrorIs(t, err, ErrEstimateGas)
		assert.ErrorIs(t, err, raw)
		assert.NotErrorIs(t, err, ErrReverted)
	})

	t.Run("custom selector", func(t *testing.T) {
		client := chainManager.NewMockNodeClient(t)
		client.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(0), errors.New("boom"))
		client.On("ClientVersion", mock.Anything).Return("Geth/v1", nil)
		client.On("CallContract", mock.Anything, mock.MatchedBy(func(msg ethereum.CallMsg) bool {
			return msg.Gas == 123
		}), (*big.Int)(nil)).Return(nil, errors.New("execution reverted: nope"))

		e := newTestExecutor(t, client, WithErrorDecoderSelector(func(string) ErrorDecoder {
			return &CallErrorDecoder{Gas: 123}
		}))
		_, err := e.Send(ctx, contractAddr, callData, &TxParams{From: &nodeAccount})
		var estErr *EstimateGasError
		require.ErrorAs(t, err, &estErr)
		assert.Equal(t, "nope", estErr.Reason())
	})
}

func TestExecutor_Deploy(t *testing.T) {
	ctx := context.Background()
	bytecode := hexutil.MustDecode("0x6080604052")

	newClient := func(t *testing.T, code []byte) *chainManager.MockNodeClient {
		client := chainManager.NewMockNodeClient(t)
		client.On("Accounts", mock.Anything).Return([]common.Address{nodeAccount}, nil)
		client.On("EstimateGas", mock.Anything, mock.MatchedBy(func(msg ethereum.CallMsg) bool {
			return msg.To == nil
		})).Return(uint64(1000000), nil)
		client.On("SendManagedTransaction", mock.Anything, mock.MatchedBy(func(tx *chainManager.ManagedTransaction) bool {
			return tx.To == nil && tx.Gas == 2000000
		})).Return(common.HexToHash("0x3"), nil)
		client.On("TransactionReceipt", mock.Anything, mock.Anything).Return(&types.Receipt{
			Status:          types.ReceiptStatusSuccessful,
			ContractAddress: contractAddr,
			BlockNumber:     big.NewInt(1),
		}, nil)
		client.On("CodeAt", mock.Anything, contractAddr, (*big.Int)(nil)).Return(code, nil)
		return client
	}

	t.Run("returns the contract address", func(t *testing.T) {
		e := newTestExecutor(t, newClient(t, []byte{0x60, 0x80}))
		addr, receipt, err := e.Deploy(ctx, bytecode, nil)
		require.NoError(t, err)
		assert.Equal(t, contractAddr, addr)
		assert.NotNil(t, receipt)
	})

	t.Run("no code after deployment", func(t *testing.T) {
		e := newTestExecutor(t, newClient(t, []byte{}))
		_, _, err := e.Deploy(ctx, bytecode, nil)
		assert.ErrorIs(t, err, ErrNoCode)
	})
}

func TestExecutor_Call(t *testing.T) {
	ctx := context.Background()

	t.Run("returns data and counts calls", func(t *testing.T) {
		client := chainManager.NewMockNodeClient(t)
		client.On("CallContract", mock.Anything, mock.MatchedBy(func(msg ethereum.CallMsg) bool {
			return msg.From == testKeyAddress && msg.Gas == 0
		}), (*big.Int)(nil)).Return([]byte{1, 2, 3}, nil)

		metrics := NewMetrics(prometheus.NewRegistry())
		e := newTestExecutor(t, client, WithMetrics(metrics))
		out, err := e.Call(ctx, contractAddr, callData, &TxParams{PrivateKey: testKeyHex})
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3}, out)
		assert.Equal(t, float64(1), testutil.ToFloat64(metrics.Calls))
	})

	t.Run("revert surfaces as RevertError", func(t *testing.T) {
		client := chainManager.NewMockNodeClient(t)
		client.On("CallContract", mock.Anything, mock.Anything, (*big.Int)(nil)).
			Return(nil, &dataError{msg: "execution reverted", data: hexutil.Encode(revertPayload(t, "demand does not exist"))})

		e := newTestExecutor(t, client)
		_, err := e.Call(ctx, contractAddr, callData, nil)
		var revert *RevertError
		require.ErrorAs(t, err, &revert)
		assert.Equal(t, "demand does not exist", revert.Reason)
		assert.ErrorIs(t, err, ErrReverted)
	})

	t.Run("transport errors are wrapped", func(t *testing.T) {
		netErr := errors.New("connection reset")
		client := chainManager.NewMockNodeClient(t)
		client.On("CallContract", mock.Anything, mock.Anything, (*big.Int)(nil)).Return(nil, netErr)

		e := newTestExecutor(t, client)
		_, err := e.Call(ctx, contractAddr, callData, nil)
		assert.ErrorIs(t, err, netErr)
		assert.NotErrorIs(t, err, ErrReverted)
	})
}

func TestExecutor_FilterLogs(t *testing.T) {
	ctx := context.Background()
	eventID := crypto.Keccak256Hash([]byte("createdNewDemand(address,uint256)"))
	logs := []types.Log{{Address: contractAddr, BlockNumber: 3}, {Address: contractAddr, BlockNumber: 4}}

	t.Run("all events default to one wildcard topic from block 0 to latest", func(t *testing.T) {
		client := chainManager.NewMockNodeClient(t)
		client.On("FilterLogs", mock.Anything, mock.MatchedBy(func(q ethereum.FilterQuery) bool {
			return q.FromBlock.Sign() == 0 &&
				q.ToBlock == nil &&
				len(q.Topics) == 1 && q.Topics[0] == nil &&
				q.Addresses[0] == contractAddr
		})).Return(logs, nil)

		e := newTestExecutor(t, client)
		got, err := e.FilterLogs(ctx, contractAddr, nil, nil)
		require.NoError(t, err)
		assert.Equal(t, logs, got)
	})

	t.Run("per event query carries only the event id by default", func(t *testing.T) {
		client := chainManager.NewMockNodeClient(t)
		client.On("FilterLogs", mock.Anything, mock.MatchedBy(func(q ethereum.FilterQuery) bool {
			return len(q.Topics) == 1 && len(q.Topics[0]) == 1 && q.Topics[0][0] == eventID
		})).Return(logs, nil)

		e := newTestExecutor(t, client)
		_, err := e.FilterLogs(ctx, contractAddr, &EventFilter{}, &eventID)
		require.NoError(t, err)
	})

	t.Run("fixed range re-query is identical", func(t *testing.T) {
		to := uint64(10)
		idTopic := common.BigToHash(big.NewInt(2))
		var seen []ethereum.FilterQuery
		client := chainManager.NewMockNodeClient(t)
		client.On("FilterLogs", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			seen = append(seen, args.Get(1).(ethereum.FilterQuery))
		}).Return(logs, nil).Twice()

		e := newTestExecutor(t, client)
		filter := &EventFilter{FromBlock: 2, ToBlock: &to, Topics: [][]common.Hash{nil, {idTopic}}}
		first, err := e.FilterLogs(ctx, contractAddr, filter, &eventID)
		require.NoError(t, err)
		second, err := e.FilterLogs(ctx, contractAddr, filter, &eventID)
		require.NoError(t, err)

		assert.Equal(t, first, second)
		require.Len(t, seen, 2)
		assert.Equal(t, seen[0], seen[1])
		assert.Equal(t, [][]common.Hash{{eventID}, nil, {idTopic}}, seen[0].Topics)
		assert.Equal(t, uint64(10), seen[0].ToBlock.Uint64())
	})
}

func TestExecutor_Metrics(t *testing.T) {
	client := chainManager.NewMockNodeClient(t)
	client.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(1), nil)
	client.On("SendManagedTransaction", mock.Anything, mock.Anything).Return(common.HexToHash("0x4"), nil)
	client.On("TransactionReceipt", mock.Anything, mock.Anything).Return(successReceipt(), nil)

	metrics := NewMetrics(prometheus.NewRegistry())
	e := newTestExecutor(t, client, WithMetrics(metrics))
	_, err := e.Send(context.Background(), contractAddr, callData, &TxParams{From: &nodeAccount})
	require.NoError(t, err)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.TransactionsSent.WithLabelValues("node_managed")))
	assert.Equal(t, float64(0), testutil.ToFloat64(metrics.TransactionsSent.WithLabelValues("raw_key")))
}

func TestExecutor_GasMargin(t *testing.T) {
	client := chainManager.NewMockNodeClient(t)
	client.On("EstimateGas", mock.Anything, mock.Anything).Return(uint64(1001), nil)

	e := newTestExecutor(t, client, WithGasMargin(1.5))
	p, err := e.Prepare(context.Background(), &contractAddr, callData, &TxParams{From: &nodeAccount})
	require.NoError(t, err)
	assert.Equal(t, uint64(1502), p.Gas)
	assert.Nil(t, p.Nonce)
}
