package market

import (
	"context"
	"fmt"

	"github.com/energyweb/market-contracts-go/pkg/contracts"
	"github.com/energyweb/market-contracts-go/pkg/executor"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// MarketDB binds the market storage contract. Its owner is the logic
// contract that created it.
type MarketDB struct {
	contract *contracts.BoundContract
}

func NewMarketDB(address common.Address, backend contracts.Backend) (*MarketDB, error) {
	parsed, err := contracts.ParseABI(MarketDBABI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MarketDB ABI: %w", err)
	}
	return &MarketDB{
		contract: contracts.NewBoundContract("MarketDB", address, parsed, backend),
	}, nil
}

func (m *MarketDB) Address() common.Address { return m.contract.Address() }

func (m *MarketDB) Owner(ctx context.Context, params *executor.TxParams) (common.Address, error) {
	return callAddress(ctx, m.contract, params, "owner")
}

func (m *MarketDB) ChangeOwner(ctx context.Context, params *executor.TxParams, newOwner common.Address) (*types.Receipt, error) {
	return m.contract.Transact(ctx, params, "changeOwner", newOwner)
}

func (m *MarketDB) ChangeOwnerEvents(ctx context.Context, filter *executor.EventFilter) ([]*ChangeOwner, error) {
	return filterEvents[ChangeOwner](ctx, m.contract, EventLogChangeOwner, filter)
}
