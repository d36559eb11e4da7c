// Package artifact loads compiled contract artifacts (Truffle or Hardhat JSON).
package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/energyweb/market-contracts-go/pkg/util"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Contract names of the market registry, also the artifact file stems.
const (
	MarketContractLookup = "MarketContractLookup"
	MarketLogic          = "MarketLogic"
	MarketDB             = "MarketDB"
)

var (
	// ErrEmptyBytecode is returned when an artifact carries no creation code.
	ErrEmptyBytecode = errors.New("artifact has no bytecode")
)

// ContractArtifact is a compiled contract.
type ContractArtifact struct {
	ContractName     string                  `json:"contractName,omitempty"`
	ABI              json.RawMessage         `json:"abi"`
	Bytecode         Bytecode                `json:"bytecode"`
	DeployedBytecode Bytecode                `json:"deployedBytecode,omitempty"`
	Networks         map[string]NetworkEntry `json:"networks,omitempty"`
}

// NetworkEntry is a Truffle "networks" record: where the contract was
// already deployed on a network ID.
type NetworkEntry struct {
	Address         common.Address `json:"address"`
	TransactionHash common.Hash    `json:"transactionHash,omitempty"`
}

// Bytecode accepts both a hex string, with or without 0x, and the
// {"object": "..."} form.
type Bytecode struct {
	hex string
}

// NewBytecode wraps raw code.
func NewBytecode(code []byte) Bytecode {
	return Bytecode{hex: hexutil.Encode(code)}
}

func (b *Bytecode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.hex = s
		return nil
	}
	var obj struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		b.hex = obj.Object
		return nil
	}
	return fmt.Errorf("bytecode must be a string or object with 'object' field")
}

func (b Bytecode) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.hex)
}

func (b Bytecode) String() string {
	return b.hex
}

// Bytes decodes the bytecode. Unlinked library placeholders fail here.
func (b Bytecode) Bytes() ([]byte, error) {
	s := strings.TrimSpace(b.hex)
	if util.Strip0x(s) == "" {
		return nil, nil
	}
	return hexutil.Decode(util.Ensure0x(s))
}

// Load reads one artifact file.
func Load(path string) (*ContractArtifact, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact %s: %w", path, err)
	}
	var a ContractArtifact
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, fmt.Errorf("failed to parse artifact %s: %w", path, err)
	}
	if a.ContractName == "" {
		a.ContractName = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &a, nil
}

// CreationCode returns the constructor bytecode.
func (a *ContractArtifact) CreationCode() ([]byte, error) {
	code, err := a.Bytecode.Bytes()
	if err != nil {
		return nil, fmt.Errorf("invalid bytecode in %s: %w", a.ContractName, err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyBytecode, a.ContractName)
	}
	return code, nil
}

// RuntimeCode returns the deployed bytecode, nil when the artifact has none.
func (a *ContractArtifact) RuntimeCode() ([]byte, error) {
	code, err := a.DeployedBytecode.Bytes()
	if err != nil {
		return nil, fmt.Errorf("invalid deployedBytecode in %s: %w", a.ContractName, err)
	}
	return code, nil
}

// ParsedABI parses the artifact's ABI.
func (a *ContractArtifact) ParsedABI() (abi.ABI, error) {
	if len(a.ABI) == 0 {
		return abi.ABI{}, fmt.Errorf("artifact %s has no abi", a.ContractName)
	}
	parsed, err := abi.JSON(strings.NewReader(string(a.ABI)))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("failed to parse abi of %s: %w", a.ContractName, err)
	}
	return parsed, nil
}

// NetworkAddress returns the address recorded for networkID, if any.
func (a *ContractArtifact) NetworkAddress(networkID *big.Int) (common.Address, bool) {
	if networkID == nil {
		return common.Address{}, false
	}
	entry, ok := a.Networks[networkID.String()]
	if !ok || entry.Address == (common.Address{}) {
		return common.Address{}, false
	}
	return entry.Address, true
}

// Set holds the three market registry artifacts.
type Set struct {
	MarketContractLookup *ContractArtifact
	MarketLogic          *ContractArtifact
	MarketDB             *ContractArtifact
}

// LoadSet reads <name>.json for each registry contract from dir.
func LoadSet(dir string) (*Set, error) {
	load := func(name string) (*ContractArtifact, error) {
		return Load(filepath.Join(dir, name+".json"))
	}
	lookup, err := load(MarketContractLookup)
	if err != nil {
		return nil, err
	}
	logic, err := load(MarketLogic)
	if err != nil {
		return nil, err
	}
	db, err := load(MarketDB)
	if err != nil {
		return nil, err
	}
	return &Set{
		MarketContractLookup: lookup,
		MarketLogic:          logic,
		MarketDB:             db,
	}, nil
}

// Get returns the artifact for a registry contract name.
func (s *Set) Get(name string) (*ContractArtifact, error) {
	var a *ContractArtifact
	switch name {
	case MarketContractLookup:
		a = s.MarketContractLookup
	case MarketLogic:
		a = s.MarketLogic
	case MarketDB:
		a = s.MarketDB
	}
	if a == nil {
		return nil, fmt.Errorf("no artifact for %s", name)
	}
	return a, nil
}
