package testchain

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"

	"github.com/energyweb/market-contracts-go/pkg/artifact"
	"github.com/energyweb/market-contracts-go/pkg/market"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const (
	errNotOwner           = "msg.sender is not owner"
	errMissingRole        = "user does not have the required role"
	errWrongSupplyOwner   = "approveAgreementSupply: wrong msg.sender"
	errWrongDemandOwner   = "approveAgreementDemand: wrong msg.sender"
	errWrongCreator       = "createDemand: wrong owner when creating"
	errAlreadyInitialized = "already initialized"
)

var (
	lookupABI = mustABI(market.MarketContractLookupABI)
	logicABI  = mustABI(market.MarketLogicABI)
	dbABI     = mustABI(market.MarketDBABI)
)

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

// CreationCode and RuntimeCode are the fake bytecodes of the registry
// contracts. Runtime code is what CodeAt returns after deployment.
func CreationCode(name string) []byte {
	return append([]byte{0x60, 0x80, 0x60, 0x40, 0x52}, []byte("create:"+name+";")...)
}

func RuntimeCode(name string) []byte {
	return append([]byte{0x60, 0x80, 0x60, 0x40}, []byte("runtime:"+name+";")...)
}

// MarketArtifacts returns artifacts whose bytecode InstallMarket recognizes.
func MarketArtifacts() *artifact.Set {
	build := func(name, abiJSON string) *artifact.ContractArtifact {
		return &artifact.ContractArtifact{
			ContractName:     name,
			ABI:              json.RawMessage(abiJSON),
			Bytecode:         artifact.NewBytecode(CreationCode(name)),
			DeployedBytecode: artifact.NewBytecode(RuntimeCode(name)),
		}
	}
	return &artifact.Set{
		MarketContractLookup: build(artifact.MarketContractLookup, market.MarketContractLookupABI),
		MarketLogic:          build(artifact.MarketLogic, market.MarketLogicABI),
		MarketDB:             build(artifact.MarketDB, market.MarketDBABI),
	}
}

// InstallMarket registers the market registry contracts with c.
func (c *Chain) InstallMarket() {
	c.Register(CreationCode(artifact.MarketContractLookup), newLookup)
	c.Register(CreationCode(artifact.MarketLogic), newLogic)
	c.Register(CreationCode(artifact.MarketDB), newDB)
}

type handler func(env *Env, args []interface{}) (*Result, error)

// abiContract dispatches calldata to handlers by method selector.
type abiContract struct {
	abi      abi.ABI
	code     []byte
	handlers map[string]handler
}

func (c *abiContract) Code() []byte { return c.code }

func (c *abiContract) Execute(env *Env, input []byte) (*Result, error) {
	if len(input) < 4 {
		return nil, Revert("")
	}
	method, err := c.abi.MethodById(input[:4])
	if err != nil {
		return nil, Revert("")
	}
	h, ok := c.handlers[method.Name]
	if !ok {
		return nil, Revert("")
	}
	args, err := method.Inputs.Unpack(input[4:])
	if err != nil {
		return nil, Revert("")
	}
	return h(env, args)
}

func (c *abiContract) returns(method string, values ...interface{}) (*Result, error) {
	out, err := c.abi.Methods[method].Outputs.Pack(values...)
	if err != nil {
		return nil, fmt.Errorf("pack %s output: %w", method, err)
	}
	return &Result{Output: out}, nil
}

// event builds a log for the named event. values follow the event's input order.
func (c *abiContract) event(env *Env, name string, values ...interface{}) types.Log {
	ev := c.abi.Events[name]
	topics := []common.Hash{ev.ID}
	var data []interface{}
	for i, in := range ev.Inputs {
		if !in.Indexed {
			data = append(data, values[i])
			continue
		}
		switch v := values[i].(type) {
		case common.Address:
			topics = append(topics, common.BytesToHash(v.Bytes()))
		case *big.Int:
			topics = append(topics, common.BigToHash(v))
		default:
			panic(fmt.Sprintf("unsupported indexed type %T", v))
		}
	}
	packed, err := ev.Inputs.NonIndexed().Pack(data...)
	if err != nil {
		panic(err)
	}
	return types.Log{Address: env.Self, Topics: topics, Data: packed}
}

// owned is the ownership part shared by all registry contracts.
type owned struct {
	abiContract
	owner common.Address
}

func (o *owned) onlyOwner(env *Env) error {
	if env.Sender != o.owner {
		return Revert(errNotOwner)
	}
	return nil
}

func (o *owned) registerOwnership() {
	o.handlers["owner"] = func(env *Env, args []interface{}) (*Result, error) {
		return o.returns("owner", o.owner)
	}
	o.handlers["changeOwner"] = func(env *Env, args []interface{}) (*Result, error) {
		if err := o.onlyOwner(env); err != nil {
			return nil, err
		}
		newOwner := args[0].(common.Address)
		return &Result{
			Logs:  []types.Log{o.event(env, market.EventLogChangeOwner, env.Sender, newOwner)},
			Apply: func() { o.owner = newOwner },
		}, nil
	}
}

func index(id *big.Int, length int) (int, bool) {
	if !id.IsUint64() || id.Uint64() >= uint64(length) {
		return 0, false
	}
	return int(id.Uint64()), true
}

func applyAll(results ...*Result) func() {
	return func() {
		for _, r := range results {
			if r != nil && r.Apply != nil {
				r.Apply()
			}
		}
	}
}

type lookupContract struct {
	owned
	assetRegistry common.Address
	logic         common.Address
	db            common.Address
}

func newLookup(env *Env, args []byte) (Contract, error) {
	l := &lookupContract{owned: owned{
		abiContract: abiContract{abi: lookupABI, code: RuntimeCode(artifact.MarketContractLookup), handlers: map[string]handler{}},
		owner:       env.Sender,
	}}
	l.registerOwnership()
	l.handlers["init"] = l.init
	l.handlers["update"] = l.update
	l.handlers["assetContractLookup"] = func(env *Env, args []interface{}) (*Result, error) {
		return l.returns("assetContractLookup", l.assetRegistry)
	}
	l.handlers["marketLogicRegistry"] = func(env *Env, args []interface{}) (*Result, error) {
		return l.returns("marketLogicRegistry", l.logic)
	}
	l.handlers["marketDB"] = func(env *Env, args []interface{}) (*Result, error) {
		return l.returns("marketDB", l.db)
	}
	return l, nil
}

func (l *lookupContract) init(env *Env, args []interface{}) (*Result, error) {
	if err := l.onlyOwner(env); err != nil {
		return nil, err
	}
	if l.logic != (common.Address{}) {
		return nil, Revert(errAlreadyInitialized)
	}
	asset, logic, db := args[0].(common.Address), args[1].(common.Address), args[2].(common.Address)
	input, err := logicABI.Pack("init", db, env.Sender)
	if err != nil {
		return nil, err
	}
	inner, err := env.Call(logic, input)
	if err != nil {
		return nil, err
	}
	return &Result{
		Logs: inner.Logs,
		Apply: func() {
			l.assetRegistry, l.logic, l.db = asset, logic, db
			applyAll(inner)()
		},
	}, nil
}

func (l *lookupContract) update(env *Env, args []interface{}) (*Result, error) {
	if err := l.onlyOwner(env); err != nil {
		return nil, err
	}
	newLogic := args[0].(common.Address)
	input, err := logicABI.Pack("update", newLogic)
	if err != nil {
		return nil, err
	}
	inner, err := env.Call(l.logic, input)
	if err != nil {
		return nil, err
	}
	return &Result{
		Logs: inner.Logs,
		Apply: func() {
			l.logic = newLogic
			applyAll(inner)()
		},
	}, nil
}

type demandRecord struct {
	hash, url string
	owner     common.Address
}

type supplyRecord struct {
	hash, url string
	assetID   *big.Int
}

type agreementRecord struct {
	hash, url        string
	demandID         *big.Int
	supplyID         *big.Int
	approvedBySupply bool
	approvedByDemand bool
}

type logicContract struct {
	owned
	assetLookup common.Address
	db          common.Address

	demands    []demandRecord
	supplies   []supplyRecord
	agreements []*agreementRecord
}

func newLogic(env *Env, args []byte) (Contract, error) {
	ctorArgs, err := logicABI.Constructor.Inputs.Unpack(args)
	if err != nil {
		return nil, Revert("")
	}
	l := &logicContract{
		owned: owned{
			abiContract: abiContract{abi: logicABI, code: RuntimeCode(artifact.MarketLogic), handlers: map[string]handler{}},
			owner:       ctorArgs[1].(common.Address),
		},
		assetLookup: ctorArgs[0].(common.Address),
	}
	l.registerOwnership()
	h := l.handlers
	h["init"] = l.init
	h["update"] = l.update
	h["db"] = func(env *Env, args []interface{}) (*Result, error) { return l.returns("db", l.db) }
	h["assetContractLookup"] = func(env *Env, args []interface{}) (*Result, error) {
		return l.returns("assetContractLookup", l.assetLookup)
	}
	h["userContractLookup"] = func(env *Env, args []interface{}) (*Result, error) {
		return l.returns("userContractLookup", env.Chain.userRegistry)
	}
	h["isRole"] = func(env *Env, args []interface{}) (*Result, error) {
		role, caller := args[0].(uint8), args[1].(common.Address)
		return l.returns("isRole", market.HasRole(env.Chain.roles[caller], market.Role(role)))
	}
	h["createDemand"] = l.createDemand
	h["createSupply"] = l.createSupply
	h["createAgreement"] = l.createAgreement
	h["approveAgreementSupply"] = l.approveSupply
	h["approveAgreementDemand"] = l.approveDemand
	h["getDemand"] = l.getDemand
	h["getSupply"] = l.getSupply
	h["getAgreement"] = l.getAgreement
	h["getAllDemandListLength"] = func(env *Env, args []interface{}) (*Result, error) {
		return l.returns("getAllDemandListLength", big.NewInt(int64(len(l.demands))))
	}
	h["getAllSupplyListLength"] = func(env *Env, args []interface{}) (*Result, error) {
		return l.returns("getAllSupplyListLength", big.NewInt(int64(len(l.supplies))))
	}
	h["getAllAgreementListLength"] = func(env *Env, args []interface{}) (*Result, error) {
		return l.returns("getAllAgreementListLength", big.NewInt(int64(len(l.agreements))))
	}
	return l, nil
}

func (l *logicContract) init(env *Env, args []interface{}) (*Result, error) {
	if err := l.onlyOwner(env); err != nil {
		return nil, err
	}
	if l.db != (common.Address{}) {
		return nil, Revert(errAlreadyInitialized)
	}
	db := args[0].(common.Address)
	return &Result{Apply: func() { l.db = db }}, nil
}

// update hands the database over to the new logic.
func (l *logicContract) update(env *Env, args []interface{}) (*Result, error) {
	if err := l.onlyOwner(env); err != nil {
		return nil, err
	}
	input, err := dbABI.Pack("changeOwner", args[0].(common.Address))
	if err != nil {
		return nil, err
	}
	inner, err := env.Call(l.db, input)
	if err != nil {
		return nil, err
	}
	return &Result{Logs: inner.Logs, Apply: applyAll(inner)}, nil
}

func (l *logicContract) supplyOwner(env *Env, supply supplyRecord) (common.Address, bool) {
	i, ok := index(supply.assetID, len(env.Chain.assetOwners))
	if !ok {
		return common.Address{}, false
	}
	return env.Chain.assetOwners[i], true
}

func (l *logicContract) createDemand(env *Env, args []interface{}) (*Result, error) {
	if !market.HasRole(env.Chain.roles[env.Sender], market.RoleTrader) {
		return nil, Revert(errMissingRole)
	}
	rec := demandRecord{hash: args[0].(string), url: args[1].(string), owner: env.Sender}
	id := big.NewInt(int64(len(l.demands)))
	return &Result{
		Logs:  []types.Log{l.event(env, market.EventCreatedNewDemand, env.Sender, id)},
		Apply: func() { l.demands = append(l.demands, rec) },
	}, nil
}

func (l *logicContract) createSupply(env *Env, args []interface{}) (*Result, error) {
	rec := supplyRecord{hash: args[0].(string), url: args[1].(string), assetID: args[2].(*big.Int)}
	owner, ok := l.supplyOwner(env, rec)
	if !ok {
		return nil, Revert("")
	}
	if owner != env.Sender {
		return nil, Revert(errWrongSupplyOwner)
	}
	id := big.NewInt(int64(len(l.supplies)))
	return &Result{
		Logs:  []types.Log{l.event(env, market.EventCreatedNewSupply, env.Sender, id)},
		Apply: func() { l.supplies = append(l.supplies, rec) },
	}, nil
}

func (l *logicContract) createAgreement(env *Env, args []interface{}) (*Result, error) {
	demandID, supplyID := args[2].(*big.Int), args[3].(*big.Int)
	d, ok := index(demandID, len(l.demands))
	if !ok {
		return nil, Revert("")
	}
	s, ok := index(supplyID, len(l.supplies))
	if !ok {
		return nil, Revert("")
	}
	supplyOwner, ok := l.supplyOwner(env, l.supplies[s])
	if !ok {
		return nil, Revert("")
	}
	demandOwner := l.demands[d].owner
	if env.Sender != demandOwner && env.Sender != supplyOwner {
		return nil, Revert(errWrongCreator)
	}

	rec := &agreementRecord{
		hash:             args[0].(string),
		url:              args[1].(string),
		demandID:         demandID,
		supplyID:         supplyID,
		approvedBySupply: env.Sender == supplyOwner,
		approvedByDemand: env.Sender == demandOwner,
	}
	id := big.NewInt(int64(len(l.agreements)))
	logs := []types.Log{l.event(env, market.EventLogAgreementCreated, id, demandID, supplyID)}
	if rec.approvedBySupply && rec.approvedByDemand {
		logs = append(logs, l.event(env, market.EventLogAgreementFullySigned, id, demandID, supplyID))
	}
	return &Result{
		Logs:  logs,
		Apply: func() { l.agreements = append(l.agreements, rec) },
	}, nil
}

func (l *logicContract) approve(env *Env, args []interface{}, supplySide bool) (*Result, error) {
	i, ok := index(args[0].(*big.Int), len(l.agreements))
	if !ok {
		return nil, Revert("")
	}
	a := l.agreements[i]
	if supplySide {
		s, _ := index(a.supplyID, len(l.supplies))
		owner, _ := l.supplyOwner(env, l.supplies[s])
		if env.Sender != owner {
			return nil, Revert(errWrongSupplyOwner)
		}
	} else {
		d, _ := index(a.demandID, len(l.demands))
		if env.Sender != l.demands[d].owner {
			return nil, Revert(errWrongDemandOwner)
		}
	}

	wasSigned := a.approvedBySupply && a.approvedByDemand
	nowSigned := (a.approvedBySupply || supplySide) && (a.approvedByDemand || !supplySide)
	var logs []types.Log
	if nowSigned && !wasSigned {
		logs = append(logs, l.event(env, market.EventLogAgreementFullySigned, big.NewInt(int64(i)), a.demandID, a.supplyID))
	}
	return &Result{
		Logs: logs,
		Apply: func() {
			if supplySide {
				a.approvedBySupply = true
			} else {
				a.approvedByDemand = true
			}
		},
	}, nil
}

func (l *logicContract) approveSupply(env *Env, args []interface{}) (*Result, error) {
	return l.approve(env, args, true)
}

func (l *logicContract) approveDemand(env *Env, args []interface{}) (*Result, error) {
	return l.approve(env, args, false)
}

func (l *logicContract) getDemand(env *Env, args []interface{}) (*Result, error) {
	i, ok := index(args[0].(*big.Int), len(l.demands))
	if !ok {
		return nil, Revert("")
	}
	d := l.demands[i]
	return l.returns("getDemand", d.hash, d.url, d.owner)
}

func (l *logicContract) getSupply(env *Env, args []interface{}) (*Result, error) {
	i, ok := index(args[0].(*big.Int), len(l.supplies))
	if !ok {
		return nil, Revert("")
	}
	s := l.supplies[i]
	return l.returns("getSupply", s.hash, s.url, s.assetID)
}

func (l *logicContract) getAgreement(env *Env, args []interface{}) (*Result, error) {
	i, ok := index(args[0].(*big.Int), len(l.agreements))
	if !ok {
		return nil, Revert("")
	}
	a := l.agreements[i]
	return l.returns("getAgreement", a.hash, a.url, a.demandID, a.supplyID, a.approvedBySupply, a.approvedByDemand)
}

type dbContract struct {
	owned
}

func newDB(env *Env, args []byte) (Contract, error) {
	ctorArgs, err := dbABI.Constructor.Inputs.Unpack(args)
	if err != nil {
		return nil, Revert("")
	}
	d := &dbContract{owned: owned{
		abiContract: abiContract{abi: dbABI, code: RuntimeCode(artifact.MarketDB), handlers: map[string]handler{}},
		owner:       ctorArgs[0].(common.Address),
	}}
	d.registerOwnership()
	return d, nil
}
