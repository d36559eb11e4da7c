package executor

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
)

// DefaultFallbackGas is the gas limit used when replaying a failed
// estimation as eth_call to recover its revert reason.
const DefaultFallbackGas uint64 = 7000000

// ContractCaller is the part of the node client an ErrorDecoder may use.
type ContractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// ErrorDecoder recovers a revert reason for a transaction whose gas
// estimation failed. It returns nil, nil when no reason could be recovered.
type ErrorDecoder interface {
	DecodeError(ctx context.Context, caller ContractCaller, msg ethereum.CallMsg) (*RevertError, error)
}

// ErrorDecoderSelector picks a decoder for a node, given its
// web3_clientVersion string. A nil decoder disables the fallback.
type ErrorDecoderSelector func(clientVersion string) ErrorDecoder

// CallErrorDecoder replays the transaction as eth_call with a fixed gas
// limit. Parity and OpenEthereum report a bare "VM execution error" from
// eth_estimateGas but include the revert data on eth_call.
type CallErrorDecoder struct {
	Gas uint64
}

func (d *CallErrorDecoder) DecodeError(ctx context.Context, caller ContractCaller, msg ethereum.CallMsg) (*RevertError, error) {
	msg.Gas = d.Gas
	if msg.Gas == 0 {
		msg.Gas = DefaultFallbackGas
	}
	_, err := caller.CallContract(ctx, msg, nil)
	if err == nil {
		return nil, nil
	}
	if revert := RevertFromError(err); revert != nil {
		return revert, nil
	}
	return nil, err
}

var parityClients = []string{"parity", "openethereum"}

// DefaultErrorDecoderSelector returns a CallErrorDecoder for Parity family
// clients and nil for everything else.
func DefaultErrorDecoderSelector(fallbackGas uint64) ErrorDecoderSelector {
	return func(clientVersion string) ErrorDecoder {
		v := strings.ToLower(clientVersion)
		for _, c := range parityClients {
			if strings.Contains(v, c) {
				return &CallErrorDecoder{Gas: fallbackGas}
			}
		}
		return nil
	}
}
