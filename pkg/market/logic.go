package market

import (
	"context"
	"fmt"
	"math/big"

	"github.com/energyweb/market-contracts-go/pkg/contracts"
	"github.com/energyweb/market-contracts-go/pkg/executor"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Demand is a trader's request for energy.
type Demand struct {
	PropertiesDocumentHash string
	DocumentDBURL          string
	Owner                  common.Address
}

// Supply is an asset owner's offer, tied to one asset.
type Supply struct {
	PropertiesDocumentHash string
	DocumentDBURL          string
	AssetId                *big.Int
}

// Agreement links a demand and a supply. It is fully signed once both
// owners approved it.
type Agreement struct {
	PropertiesDocumentHash string
	DocumentDBURL          string
	DemandId               *big.Int
	SupplyId               *big.Int
	ApprovedBySupplyOwner  bool
	ApprovedByDemandOwner  bool
}

// FullySigned reports whether both sides approved.
func (a *Agreement) FullySigned() bool {
	return a.ApprovedBySupplyOwner && a.ApprovedByDemandOwner
}

// MarketLogic binds the market logic contract.
type MarketLogic struct {
	contract *contracts.BoundContract
}

func NewMarketLogic(address common.Address, backend contracts.Backend) (*MarketLogic, error) {
	parsed, err := contracts.ParseABI(MarketLogicABI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse MarketLogic ABI: %w", err)
	}
	return &MarketLogic{
		contract: contracts.NewBoundContract("MarketLogic", address, parsed, backend),
	}, nil
}

func (m *MarketLogic) Address() common.Address { return m.contract.Address() }

// Init hands the database and admin to the logic. Only the owner, normally
// the registry, may call it.
func (m *MarketLogic) Init(ctx context.Context, params *executor.TxParams, database, admin common.Address) (*types.Receipt, error) {
	return m.contract.Transact(ctx, params, "init", database, admin)
}

// Update migrates the database to newLogic.
func (m *MarketLogic) Update(ctx context.Context, params *executor.TxParams, newLogic common.Address) (*types.Receipt, error) {
	return m.contract.Transact(ctx, params, "update", newLogic)
}

func (m *MarketLogic) ChangeOwner(ctx context.Context, params *executor.TxParams, newOwner common.Address) (*types.Receipt, error) {
	return m.contract.Transact(ctx, params, "changeOwner", newOwner)
}

// CreateDemand registers a demand owned by the sender. The sender must be a trader.
func (m *MarketLogic) CreateDemand(ctx context.Context, params *executor.TxParams, propertiesDocumentHash, documentDBURL string) (*types.Receipt, error) {
	return m.contract.Transact(ctx, params, "createDemand", propertiesDocumentHash, documentDBURL)
}

// CreateSupply registers a supply for assetID. The sender must own the asset.
func (m *MarketLogic) CreateSupply(ctx context.Context, params *executor.TxParams, propertiesDocumentHash, documentDBURL string, assetID uint64) (*types.Receipt, error) {
	return m.contract.Transact(ctx, params, "createSupply", propertiesDocumentHash, documentDBURL, new(big.Int).SetUint64(assetID))
}

// CreateAgreement proposes an agreement between demandID and supplyID. The
// sender must own one of them and counts as that side's approval.
func (m *MarketLogic) CreateAgreement(ctx context.Context, params *executor.TxParams, propertiesDocumentHash, documentDBURL string, demandID, supplyID uint64) (*types.Receipt, error) {
	return m.contract.Transact(ctx, params, "createAgreement",
		propertiesDocumentHash, documentDBURL,
		new(big.Int).SetUint64(demandID), new(big.Int).SetUint64(supplyID),
	)
}

func (m *MarketLogic) ApproveAgreementSupply(ctx context.Context, params *executor.TxParams, agreementID uint64) (*types.Receipt, error) {
	return m.contract.Transact(ctx, params, "approveAgreementSupply", new(big.Int).SetUint64(agreementID))
}

func (m *MarketLogic) ApproveAgreementDemand(ctx context.Context, params *executor.TxParams, agreementID uint64) (*types.Receipt, error) {
	return m.contract.Transact(ctx, params, "approveAgreementDemand", new(big.Int).SetUint64(agreementID))
}

func (m *MarketLogic) GetDemand(ctx context.Context, params *executor.TxParams, demandID uint64) (*Demand, error) {
	out := new(Demand)
	if err := m.contract.Call(ctx, params, out, "getDemand", new(big.Int).SetUint64(demandID)); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MarketLogic) GetSupply(ctx context.Context, params *executor.TxParams, supplyID uint64) (*Supply, error) {
	out := new(Supply)
	if err := m.contract.Call(ctx, params, out, "getSupply", new(big.Int).SetUint64(supplyID)); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MarketLogic) GetAgreement(ctx context.Context, params *executor.TxParams, agreementID uint64) (*Agreement, error) {
	out := new(Agreement)
	if err := m.contract.Call(ctx, params, out, "getAgreement", new(big.Int).SetUint64(agreementID)); err != nil {
		return nil, err
	}
	return out, nil
}

func (m *MarketLogic) GetAllDemandListLength(ctx context.Context, params *executor.TxParams) (uint64, error) {
	return callUint(ctx, m.contract, params, "getAllDemandListLength")
}

func (m *MarketLogic) GetAllSupplyListLength(ctx context.Context, params *executor.TxParams) (uint64, error) {
	return callUint(ctx, m.contract, params, "getAllSupplyListLength")
}

func (m *MarketLogic) GetAllAgreementListLength(ctx context.Context, params *executor.TxParams) (uint64, error) {
	return callUint(ctx, m.contract, params, "getAllAgreementListLength")
}

func (m *MarketLogic) Owner(ctx context.Context, params *executor.TxParams) (common.Address, error) {
	return callAddress(ctx, m.contract, params, "owner")
}

func (m *MarketLogic) DB(ctx context.Context, params *executor.TxParams) (common.Address, error) {
	return callAddress(ctx, m.contract, params, "db")
}

func (m *MarketLogic) AssetContractLookup(ctx context.Context, params *executor.TxParams) (common.Address, error) {
	return callAddress(ctx, m.contract, params, "assetContractLookup")
}

// UserContractLookup returns the user registry lookup, resolved through the
// asset registry at deployment.
func (m *MarketLogic) UserContractLookup(ctx context.Context, params *executor.TxParams) (common.Address, error) {
	return callAddress(ctx, m.contract, params, "userContractLookup")
}

func (m *MarketLogic) IsRole(ctx context.Context, params *executor.TxParams, role Role, caller common.Address) (bool, error) {
	var out bool
	if err := m.contract.Call(ctx, params, &out, "isRole", uint8(role), caller); err != nil {
		return false, err
	}
	return out, nil
}

func (m *MarketLogic) CreatedNewDemandEvents(ctx context.Context, filter *executor.EventFilter) ([]*CreatedNewDemand, error) {
	return filterEvents[CreatedNewDemand](ctx, m.contract, EventCreatedNewDemand, filter)
}

func (m *MarketLogic) CreatedNewSupplyEvents(ctx context.Context, filter *executor.EventFilter) ([]*CreatedNewSupply, error) {
	return filterEvents[CreatedNewSupply](ctx, m.contract, EventCreatedNewSupply, filter)
}

func (m *MarketLogic) AgreementCreatedEvents(ctx context.Context, filter *executor.EventFilter) ([]*AgreementEvent, error) {
	return filterEvents[AgreementEvent](ctx, m.contract, EventLogAgreementCreated, filter)
}

func (m *MarketLogic) AgreementFullySignedEvents(ctx context.Context, filter *executor.EventFilter) ([]*AgreementEvent, error) {
	return filterEvents[AgreementEvent](ctx, m.contract, EventLogAgreementFullySigned, filter)
}

func (m *MarketLogic) ChangeOwnerEvents(ctx context.Context, filter *executor.EventFilter) ([]*ChangeOwner, error) {
	return filterEvents[ChangeOwner](ctx, m.contract, EventLogChangeOwner, filter)
}

// AllEvents returns every log emitted by the logic contract.
func (m *MarketLogic) AllEvents(ctx context.Context, filter *executor.EventFilter) ([]types.Log, error) {
	return m.contract.AllEvents(ctx, filter)
}

// EventName names the event of a log emitted by this contract.
func (m *MarketLogic) EventName(log types.Log) string {
	return m.contract.EventName(log)
}

// ParseCreatedNewDemand returns the createdNewDemand events in receipt.
func (m *MarketLogic) ParseCreatedNewDemand(receipt *types.Receipt) ([]*CreatedNewDemand, error) {
	return receiptEvents[CreatedNewDemand](m.contract, EventCreatedNewDemand, receipt)
}

func (m *MarketLogic) ParseCreatedNewSupply(receipt *types.Receipt) ([]*CreatedNewSupply, error) {
	return receiptEvents[CreatedNewSupply](m.contract, EventCreatedNewSupply, receipt)
}

func (m *MarketLogic) ParseAgreementCreated(receipt *types.Receipt) ([]*AgreementEvent, error) {
	return receiptEvents[AgreementEvent](m.contract, EventLogAgreementCreated, receipt)
}

func (m *MarketLogic) ParseAgreementFullySigned(receipt *types.Receipt) ([]*AgreementEvent, error) {
	return receiptEvents[AgreementEvent](m.contract, EventLogAgreementFullySigned, receipt)
}

func callUint(ctx context.Context, c *contracts.BoundContract, params *executor.TxParams, method string) (uint64, error) {
	var out *big.Int
	if err := c.Call(ctx, params, &out, method); err != nil {
		return 0, err
	}
	if !out.IsUint64() {
		return 0, fmt.Errorf("%s returned %s, which does not fit in uint64", method, out)
	}
	return out.Uint64(), nil
}
