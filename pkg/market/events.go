package market

import (
	"context"
	"math/big"

	"github.com/energyweb/market-contracts-go/pkg/contracts"
	"github.com/energyweb/market-contracts-go/pkg/executor"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Event names shared by the market contracts.
const (
	EventCreatedNewDemand        = "createdNewDemand"
	EventCreatedNewSupply        = "createdNewSupply"
	EventLogAgreementCreated     = "LogAgreementCreated"
	EventLogAgreementFullySigned = "LogAgreementFullySigned"
	EventLogChangeOwner          = "LogChangeOwner"
)

type rawLog struct {
	Raw types.Log
}

func (r *rawLog) setRaw(l types.Log) { r.Raw = l }

// CreatedNewDemand is emitted by createDemand.
type CreatedNewDemand struct {
	Sender   common.Address
	DemandId *big.Int
	rawLog
}

// CreatedNewSupply is emitted by createSupply.
type CreatedNewSupply struct {
	Sender   common.Address
	SupplyId *big.Int
	rawLog
}

// AgreementEvent is emitted as LogAgreementCreated and LogAgreementFullySigned.
type AgreementEvent struct {
	AgreementId *big.Int
	DemandId    *big.Int
	SupplyId    *big.Int
	rawLog
}

// ChangeOwner is emitted by changeOwner.
type ChangeOwner struct {
	Sender   common.Address
	NewOwner common.Address
	rawLog
}

type event[T any] interface {
	*T
	setRaw(types.Log)
}

func decodeLogs[T any, PT event[T]](c *contracts.BoundContract, name string, logs []types.Log) ([]*T, error) {
	out := make([]*T, 0, len(logs))
	for _, l := range logs {
		ev := PT(new(T))
		if err := c.UnpackLog(ev, name, l); err != nil {
			return nil, err
		}
		ev.setRaw(l)
		out = append(out, (*T)(ev))
	}
	return out, nil
}

func filterEvents[T any, PT event[T]](ctx context.Context, c *contracts.BoundContract, name string, filter *executor.EventFilter) ([]*T, error) {
	logs, err := c.FilterEvents(ctx, name, filter)
	if err != nil {
		return nil, err
	}
	return decodeLogs[T, PT](c, name, logs)
}

// receiptEvents decodes the logs of receipt that c emitted as name.
func receiptEvents[T any, PT event[T]](c *contracts.BoundContract, name string, receipt *types.Receipt) ([]*T, error) {
	id, err := c.EventID(name)
	if err != nil {
		return nil, err
	}
	var logs []types.Log
	for _, l := range receipt.Logs {
		if l.Address == c.Address() && len(l.Topics) > 0 && l.Topics[0] == id {
			logs = append(logs, *l)
		}
	}
	return decodeLogs[T, PT](c, name, logs)
}

// IDTopic encodes an ID for use as an indexed topic filter.
func IDTopic(id uint64) common.Hash {
	return common.BigToHash(new(big.Int).SetUint64(id))
}
