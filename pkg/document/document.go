// Package document hashes market properties documents. The hash stored on
// chain as propertiesDocumentHash is the keccak256 Merkle root over the
// document's properties, so a single property can be proven against it
// without revealing the rest of the document.
package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/energyweb/market-contracts-go/pkg/util"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	merkletree "github.com/wealdtech/go-merkletree/v2"
	"github.com/wealdtech/go-merkletree/v2/keccak256"
)

var (
	ErrEmptyDocument    = errors.New("document has no properties")
	ErrPropertyNotFound = errors.New("property not found")
)

// Properties is a flat properties document.
type Properties map[string]string

// Document is a properties document with its Merkle tree. Leaves are
// ordered by key.
type Document struct {
	properties Properties
	keys       []string
	tree       *merkletree.MerkleTree
}

// Proof shows that Key had Value in the document with a given root.
type Proof struct {
	Key    string        `json:"key"`
	Value  string        `json:"value"`
	Index  uint64        `json:"index"`
	Hashes []common.Hash `json:"hashes"`
}

func leaf(key, value string) []byte {
	// a JSON pair keeps keys and values containing separators unambiguous
	b, _ := json.Marshal([2]string{key, value})
	return b
}

func New(properties Properties) (*Document, error) {
	if len(properties) == 0 {
		return nil, ErrEmptyDocument
	}
	keys := make([]string, 0, len(properties))
	for k := range properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	data := util.Map(keys, func(k string, _ uint64) []byte {
		return leaf(k, properties[k])
	})
	tree, err := merkletree.NewTree(
		merkletree.WithData(data),
		merkletree.WithHashType(keccak256.New()),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build document tree: %w", err)
	}
	return &Document{properties: properties, keys: keys, tree: tree}, nil
}

// Root returns the Merkle root.
func (d *Document) Root() common.Hash {
	return common.BytesToHash(d.tree.Root())
}

// Hash returns the root in the 0x-prefixed form stored on chain.
func (d *Document) Hash() string {
	return hexutil.Encode(d.tree.Root())
}

// Prove builds the inclusion proof of key.
func (d *Document) Prove(key string) (*Proof, error) {
	i := sort.SearchStrings(d.keys, key)
	if i == len(d.keys) || d.keys[i] != key {
		return nil, fmt.Errorf("%w: %s", ErrPropertyNotFound, key)
	}
	p, err := d.tree.GenerateProofWithIndex(uint64(i), 0)
	if err != nil {
		return nil, fmt.Errorf("failed to generate proof for %s: %w", key, err)
	}
	proof := &Proof{Key: key, Value: d.properties[key], Index: p.Index}
	for _, h := range p.Hashes {
		proof.Hashes = append(proof.Hashes, common.BytesToHash(h))
	}
	return proof, nil
}

// Verify reports whether proof holds against root.
func Verify(root common.Hash, proof *Proof) (bool, error) {
	hashes := make([][]byte, len(proof.Hashes))
	for i, h := range proof.Hashes {
		hashes[i] = h.Bytes()
	}
	return merkletree.VerifyProofUsing(
		leaf(proof.Key, proof.Value),
		false,
		&merkletree.Proof{Hashes: hashes, Index: proof.Index},
		[][]byte{root.Bytes()},
		keccak256.New(),
	)
}

// Hash is shorthand for New(properties).Hash().
func Hash(properties Properties) (string, error) {
	d, err := New(properties)
	if err != nil {
		return "", err
	}
	return d.Hash(), nil
}
