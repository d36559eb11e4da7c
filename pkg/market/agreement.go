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

// MatchedAgreement is an AgreementLogic agreement, which also carries the
// matcher's properties.
type MatchedAgreement struct {
	PropertiesDocumentHash        string
	DocumentDBURL                 string
	MatcherPropertiesDocumentHash string
	MatcherDBURL                  string
	DemandId                      *big.Int
	SupplyId                      *big.Int
	ApprovedBySupplyOwner         bool
	ApprovedByDemandOwner         bool
}

// AgreementLogic binds the standalone agreement contract.
type AgreementLogic struct {
	contract *contracts.BoundContract
}

func NewAgreementLogic(address common.Address, backend contracts.Backend) (*AgreementLogic, error) {
	parsed, err := contracts.ParseABI(AgreementLogicABI)
	if err != nil {
		return nil, fmt.Errorf("failed to parse AgreementLogic ABI: %w", err)
	}
	return &AgreementLogic{
		contract: contracts.NewBoundContract("AgreementLogic", address, parsed, backend),
	}, nil
}

func (a *AgreementLogic) Address() common.Address { return a.contract.Address() }

func (a *AgreementLogic) Init(ctx context.Context, params *executor.TxParams, database, admin common.Address) (*types.Receipt, error) {
	return a.contract.Transact(ctx, params, "init", database, admin)
}

func (a *AgreementLogic) Update(ctx context.Context, params *executor.TxParams, newLogic common.Address) (*types.Receipt, error) {
	return a.contract.Transact(ctx, params, "update", newLogic)
}

func (a *AgreementLogic) ChangeOwner(ctx context.Context, params *executor.TxParams, newOwner common.Address) (*types.Receipt, error) {
	return a.contract.Transact(ctx, params, "changeOwner", newOwner)
}

func (a *AgreementLogic) CreateAgreement(
	ctx context.Context,
	params *executor.TxParams,
	propertiesDocumentHash, documentDBURL string,
	matcherPropertiesDocumentHash, matcherDBURL string,
	demandID, supplyID uint64,
) (*types.Receipt, error) {
	return a.contract.Transact(ctx, params, "createAgreement",
		propertiesDocumentHash, documentDBURL,
		matcherPropertiesDocumentHash, matcherDBURL,
		new(big.Int).SetUint64(demandID), new(big.Int).SetUint64(supplyID),
	)
}

func (a *AgreementLogic) ApproveAgreementSupply(ctx context.Context, params *executor.TxParams, agreementID uint64) (*types.Receipt, error) {
	return a.contract.Transact(ctx, params, "approveAgreementSupply", new(big.Int).SetUint64(agreementID))
}

func (a *AgreementLogic) ApproveAgreementDemand(ctx context.Context, params *executor.TxParams, agreementID uint64) (*types.Receipt, error) {
	return a.contract.Transact(ctx, params, "approveAgreementDemand", new(big.Int).SetUint64(agreementID))
}

// SetMatcherProperties replaces the matcher document of an agreement.
func (a *AgreementLogic) SetMatcherProperties(ctx context.Context, params *executor.TxParams, agreementID uint64, matcherPropertiesDocumentHash, matcherDBURL string) (*types.Receipt, error) {
	return a.contract.Transact(ctx, params, "setMatcherProperties",
		new(big.Int).SetUint64(agreementID), matcherPropertiesDocumentHash, matcherDBURL,
	)
}

func (a *AgreementLogic) GetAgreement(ctx context.Context, params *executor.TxParams, agreementID uint64) (*MatchedAgreement, error) {
	out := new(MatchedAgreement)
	if err := a.contract.Call(ctx, params, out, "getAgreement", new(big.Int).SetUint64(agreementID)); err != nil {
		return nil, err
	}
	return out, nil
}

func (a *AgreementLogic) GetAllAgreementListLength(ctx context.Context, params *executor.TxParams) (uint64, error) {
	return callUint(ctx, a.contract, params, "getAllAgreementListLength")
}

func (a *AgreementLogic) Owner(ctx context.Context, params *executor.TxParams) (common.Address, error) {
	return callAddress(ctx, a.contract, params, "owner")
}

func (a *AgreementLogic) DB(ctx context.Context, params *executor.TxParams) (common.Address, error) {
	return callAddress(ctx, a.contract, params, "db")
}

func (a *AgreementLogic) AssetContractLookup(ctx context.Context, params *executor.TxParams) (common.Address, error) {
	return callAddress(ctx, a.contract, params, "assetContractLookup")
}

func (a *AgreementLogic) UserContractLookup(ctx context.Context, params *executor.TxParams) (common.Address, error) {
	return callAddress(ctx, a.contract, params, "userContractLookup")
}

func (a *AgreementLogic) IsRole(ctx context.Context, params *executor.TxParams, role Role, caller common.Address) (bool, error) {
	var out bool
	if err := a.contract.Call(ctx, params, &out, "isRole", uint8(role), caller); err != nil {
		return false, err
	}
	return out, nil
}

func (a *AgreementLogic) AgreementCreatedEvents(ctx context.Context, filter *executor.EventFilter) ([]*AgreementEvent, error) {
	return filterEvents[AgreementEvent](ctx, a.contract, EventLogAgreementCreated, filter)
}

func (a *AgreementLogic) AgreementFullySignedEvents(ctx context.Context, filter *executor.EventFilter) ([]*AgreementEvent, error) {
	return filterEvents[AgreementEvent](ctx, a.contract, EventLogAgreementFullySigned, filter)
}

func (a *AgreementLogic) ChangeOwnerEvents(ctx context.Context, filter *executor.EventFilter) ([]*ChangeOwner, error) {
	return filterEvents[ChangeOwner](ctx, a.contract, EventLogChangeOwner, filter)
}

func (a *AgreementLogic) AllEvents(ctx context.Context, filter *executor.EventFilter) ([]types.Log, error) {
	return a.contract.AllEvents(ctx, filter)
}
