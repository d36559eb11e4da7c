package executor

import (
	"errors"
	"fmt"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRevertFromError(t *testing.T) {
	payload := revertPayload(t, "msg.sender is not owner")

	tests := []struct {
		name     string
		err      error
		isRevert bool
		reason   string
	}{
		{name: "nil", err: nil},
		{name: "not a revert", err: errors.New("connection refused")},
		{name: "geth hex data", err: &dataError{msg: "execution reverted", data: hexutil.Encode(payload)}, isRevert: true, reason: "msg.sender is not owner"},
		{name: "parity data", err: &dataError{msg: "VM execution error.", data: "Reverted " + hexutil.Encode(payload)}, isRevert: true, reason: "msg.sender is not owner"},
		{name: "wrapped", err: fmt.Errorf("rpc: %w", &dataError{msg: "execution reverted", data: hexutil.Encode(payload)}), isRevert: true, reason: "msg.sender is not owner"},
		{name: "ganache message", err: errors.New("VM Exception while processing transaction: revert msg.sender is not owner"), isRevert: true, reason: "msg.sender is not owner"},
		{name: "geth message", err: errors.New("execution reverted: createDemand: wrong owner when creating"), isRevert: true, reason: "createDemand: wrong owner when creating"},
		{name: "multi-line reason", err: errors.New("execution reverted: first line\nsecond line"), isRevert: true, reason: "first line\nsecond line"},
		{name: "bare revert", err: errors.New("execution reverted"), isRevert: true, reason: ""},
		{name: "custom error data", err: &dataError{msg: "execution reverted", data: "0x12345678"}, isRevert: true, reason: ""},
		{name: "non hex data", err: &dataError{msg: "invalid opcode", data: "something"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			revert := RevertFromError(tt.err)
			if !tt.isRevert {
				assert.Nil(t, revert)
				return
			}
			require.NotNil(t, revert)
			assert.Equal(t, tt.reason, revert.Reason)
			assert.ErrorIs(t, revert, ErrReverted)
		})
	}
}

func TestEstimateGasError(t *testing.T) {
	cause := errors.New("VM execution error.")

	withReason := &EstimateGasError{Revert: &RevertError{Reason: "nope"}, Err: cause}
	assert.Equal(t, "gas estimation failed: nope", withReason.Error())
	assert.ErrorIs(t, withReason, ErrEstimateGas)
	assert.ErrorIs(t, withReason, ErrReverted)
	assert.ErrorIs(t, withReason, cause)

	raw := &EstimateGasError{Err: cause}
	assert.Equal(t, "gas estimation failed: VM execution error.", raw.Error())
	assert.Equal(t, "", raw.Reason())
	assert.NotErrorIs(t, raw, ErrReverted)
}

func TestDefaultErrorDecoderSelector(t *testing.T) {
	sel := DefaultErrorDecoderSelector(5000000)
	for _, v := range []string{
		"Parity-Ethereum//v2.7.2-stable/x86_64-linux-gnu/rustc1.41.0",
		"OpenEthereum//v3.3.5-stable/x86_64-linux-gnu/rustc1.59.0",
		"Parity//v1.11.11-stable",
	} {
		d := sel(v)
		require.NotNil(t, d, v)
		assert.Equal(t, uint64(5000000), d.(*CallErrorDecoder).Gas)
	}
	for _, v := range []string{"Geth/v1.17.0-stable", "EthereumJS TestRPC/v2.13.2/ethereum-js", ""} {
		assert.Nil(t, sel(v), v)
	}
}
