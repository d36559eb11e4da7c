// Package contracts binds an ABI to an address and routes every method
// through the executor: reads become eth_call, writes become transactions.
package contracts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/energyweb/market-contracts-go/pkg/executor"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

var (
	// ErrNoResult is returned when a call to a method with outputs returned no data.
	ErrNoResult = errors.New("call returned no data")
	// ErrUnknownMethod is returned for a method name missing from the ABI.
	ErrUnknownMethod = errors.New("method not found in ABI")
	// ErrUnknownEvent is returned for an event name missing from the ABI.
	ErrUnknownEvent = errors.New("event not found in ABI")
	// ErrEventSignatureMismatch is returned when a log does not belong to the requested event.
	ErrEventSignatureMismatch = errors.New("event signature mismatch")
)

// Backend is what a BoundContract needs from the executor.
type Backend interface {
	Send(ctx context.Context, to common.Address, data []byte, params *executor.TxParams) (*types.Receipt, error)
	Call(ctx context.Context, to common.Address, data []byte, params *executor.TxParams) ([]byte, error)
	FilterLogs(ctx context.Context, address common.Address, filter *executor.EventFilter, eventID *common.Hash) ([]types.Log, error)
}

// BoundContract is a contract ABI at an address.
type BoundContract struct {
	name    string
	address common.Address
	abi     abi.ABI
	backend Backend
}

// ParseABI parses a JSON ABI definition.
func ParseABI(definition string) (abi.ABI, error) {
	parsed, err := abi.JSON(strings.NewReader(definition))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse ABI: %w", err)
	}
	return parsed, nil
}

// NewBoundContract binds parsed to address. name is only used in errors.
func NewBoundContract(name string, address common.Address, parsed abi.ABI, backend Backend) *BoundContract {
	return &BoundContract{
		name:    name,
		address: address,
		abi:     parsed,
		backend: backend,
	}
}

func (c *BoundContract) Address() common.Address { return c.address }

func (c *BoundContract) ABI() *abi.ABI { return &c.abi }

// Pack encodes a call to method.
func (c *BoundContract) Pack(method string, args ...interface{}) ([]byte, error) {
	if _, ok := c.abi.Methods[method]; !ok {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, c.name, method)
	}
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s.%s: %w", c.name, method, err)
	}
	return data, nil
}

// Transact sends a transaction calling method with args.
func (c *BoundContract) Transact(ctx context.Context, params *executor.TxParams, method string, args ...interface{}) (*types.Receipt, error) {
	data, err := c.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	receipt, err := c.backend.Send(ctx, c.address, data, params)
	if err != nil {
		return receipt, fmt.Errorf("%s.%s: %w", c.name, method, err)
	}
	return receipt, nil
}

// Call invokes a constant method and unpacks its outputs into out: a
// pointer to a struct for several outputs, or to a single value.
func (c *BoundContract) Call(ctx context.Context, params *executor.TxParams, out interface{}, method string, args ...interface{}) error {
	data, err := c.Pack(method, args...)
	if err != nil {
		return err
	}
	result, err := c.backend.Call(ctx, c.address, data, params)
	if err != nil {
		return fmt.Errorf("%s.%s: %w", c.name, method, err)
	}
	if len(c.abi.Methods[method].Outputs) == 0 {
		return nil
	}
	if len(result) == 0 {
		return fmt.Errorf("%w: %s.%s at %s", ErrNoResult, c.name, method, c.address.Hex())
	}
	if err := c.abi.UnpackIntoInterface(out, method, result); err != nil {
		return fmt.Errorf("failed to unpack %s.%s: %w", c.name, method, err)
	}
	return nil
}

// EventID returns the topic 0 of event.
func (c *BoundContract) EventID(event string) (common.Hash, error) {
	ev, ok := c.abi.Events[event]
	if !ok {
		return common.Hash{}, fmt.Errorf("%w: %s.%s", ErrUnknownEvent, c.name, event)
	}
	return ev.ID, nil
}

// FilterEvents returns the logs of one event. filter.Topics continue after
// the event ID, so position 0 of filter.Topics is the first indexed argument.
func (c *BoundContract) FilterEvents(ctx context.Context, event string, filter *executor.EventFilter) ([]types.Log, error) {
	id, err := c.EventID(event)
	if err != nil {
		return nil, err
	}
	return c.backend.FilterLogs(ctx, c.address, filter, &id)
}

// AllEvents returns every log the contract emitted in the filter's range.
func (c *BoundContract) AllEvents(ctx context.Context, filter *executor.EventFilter) ([]types.Log, error) {
	return c.backend.FilterLogs(ctx, c.address, filter, nil)
}

// UnpackLog decodes log as event into out, indexed arguments included.
func (c *BoundContract) UnpackLog(out interface{}, event string, log types.Log) error {
	ev, ok := c.abi.Events[event]
	if !ok {
		return fmt.Errorf("%w: %s.%s", ErrUnknownEvent, c.name, event)
	}
	if len(log.Topics) == 0 || log.Topics[0] != ev.ID {
		return fmt.Errorf("%w: %s.%s", ErrEventSignatureMismatch, c.name, event)
	}
	if len(log.Data) > 0 {
		if err := c.abi.UnpackIntoInterface(out, event, log.Data); err != nil {
			return fmt.Errorf("failed to unpack %s.%s: %w", c.name, event, err)
		}
	}
	var indexed abi.Arguments
	for _, arg := range ev.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return abi.ParseTopics(out, indexed, log.Topics[1:])
}

// EventName returns the ABI name of the event that emitted log, or "".
func (c *BoundContract) EventName(log types.Log) string {
	if len(log.Topics) == 0 {
		return ""
	}
	ev, err := c.abi.EventByID(log.Topics[0])
	if err != nil {
		return ""
	}
	return ev.Name
}
