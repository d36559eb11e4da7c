package testchain

import (
	"errors"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// RevertError aborts an execution. An empty Reason reverts without data,
// like a failed assert or an out of range read.
type RevertError struct {
	Reason string
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return "execution reverted"
	}
	return "execution reverted: " + e.Reason
}

// Revert returns a RevertError for reason.
func Revert(reason string) error {
	return &RevertError{Reason: reason}
}

var errorSelector = crypto.Keccak256([]byte("Error(string)"))[:4]

// RevertData ABI-encodes reason as Error(string), the payload solidity
// produces for require(cond, reason).
func RevertData(reason string) []byte {
	stringType, _ := abi.NewType("string", "", nil)
	packed, err := abi.Arguments{{Type: stringType}}.Pack(reason)
	if err != nil {
		panic(err)
	}
	return append(append([]byte{}, errorSelector...), packed...)
}

// jsonError mirrors a JSON-RPC error object carrying data.
type jsonError struct {
	msg  string
	code int
	data interface{}
}

func (e *jsonError) Error() string          { return e.msg }
func (e *jsonError) ErrorCode() int         { return e.code }
func (e *jsonError) ErrorData() interface{} { return e.data }

// nodeError renders an execution failure the way the configured client does.
func (c *Chain) nodeError(err error) error {
	var revert *RevertError
	if !errors.As(err, &revert) {
		return err
	}
	if c.isParity() {
		data := "Reverted 0x"
		if revert.Reason != "" {
			data = "Reverted " + hexutil.Encode(RevertData(revert.Reason))
		}
		return &jsonError{msg: "VM execution error.", code: -32015, data: data}
	}
	if revert.Reason == "" {
		return &jsonError{msg: "execution reverted", code: 3}
	}
	return &jsonError{msg: revert.Error(), code: 3, data: hexutil.Encode(RevertData(revert.Reason))}
}
