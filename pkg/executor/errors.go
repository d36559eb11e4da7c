package executor

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrEstimateGas marks every gas estimation failure. Estimation failures are fatal.
	ErrEstimateGas = errors.New("gas estimation failed")
	// ErrReverted is wrapped by every RevertError.
	ErrReverted = errors.New("execution reverted")
	// ErrTransactionFailed is returned when a mined receipt has status 0.
	ErrTransactionFailed = errors.New("transaction failed")
	// ErrNoAccounts is returned in NodeManaged mode when the node exposes no accounts and no from was given.
	ErrNoAccounts = errors.New("node has no managed accounts")
	// ErrZeroGas is returned when a transaction would be submitted with a zero gas limit.
	ErrZeroGas = errors.New("gas limit must be positive")
	// ErrNoCode is returned when a mined deployment left no code at the contract address.
	ErrNoCode = errors.New("no contract code at deployed address")
)

// RevertError carries the reason a call or estimation reverted. Reason is
// empty when the node gave no decodable message.
type RevertError struct {
	Reason string
	// Data is the raw revert payload when the node returned one.
	Data []byte
}

func (e *RevertError) Error() string {
	if e.Reason == "" {
		return ErrReverted.Error()
	}
	return fmt.Sprintf("%s: %s", ErrReverted, e.Reason)
}

func (e *RevertError) Unwrap() error {
	return ErrReverted
}

// EstimateGasError is returned when a transaction's gas could not be
// estimated. Revert is set when a reason could be decoded.
type EstimateGasError struct {
	Revert *RevertError
	Err    error
}

func (e *EstimateGasError) Error() string {
	if e.Revert != nil && e.Revert.Reason != "" {
		return fmt.Sprintf("%s: %s", ErrEstimateGas, e.Revert.Reason)
	}
	return fmt.Sprintf("%s: %v", ErrEstimateGas, e.Err)
}

func (e *EstimateGasError) Unwrap() []error {
	errs := []error{ErrEstimateGas}
	if e.Revert != nil {
		errs = append(errs, e.Revert)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// Reason returns the decoded revert reason, or "".
func (e *EstimateGasError) Reason() string {
	if e.Revert == nil {
		return ""
	}
	return e.Revert.Reason
}

var revertMessage = regexp.MustCompile(`(?is)\brevert(?:ed)?\b:?\s*(.*)$`)

// RevertFromError extracts a RevertError from a node error. Revert data
// attached to the JSON-RPC error wins over the message text; geth returns it
// as hex, Parity as "Reverted 0x...". It returns nil when err is not a revert.
func RevertFromError(err error) *RevertError {
	if err == nil {
		return nil
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if data, ok := revertData(dataErr.ErrorData()); ok {
			if reason, uerr := abi.UnpackRevert(data); uerr == nil {
				return &RevertError{Reason: reason, Data: data}
			}
			return &RevertError{Reason: reasonFromMessage(err.Error()), Data: data}
		}
	}
	if m := revertMessage.FindStringSubmatch(err.Error()); m != nil {
		return &RevertError{Reason: strings.TrimSpace(m[1])}
	}
	return nil
}

func reasonFromMessage(msg string) string {
	if m := revertMessage.FindStringSubmatch(msg); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func revertData(v interface{}) ([]byte, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	s = strings.TrimSpace(strings.TrimPrefix(s, "Reverted "))
	data, err := hexutil.Decode(s)
	if err != nil || len(data) == 0 {
		return nil, false
	}
	return data, true
}
