package whitelist

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
)

var (
	ErrInvalidProof   = errors.New("whitelist: invalid proof")
	ErrEmptyTree      = errors.New("whitelist: no allocations")
	ErrLeafNotFound   = errors.New("whitelist: allocation not in tree")
	ErrDuplicateLeaf  = errors.New("whitelist: duplicate allocation")
	ErrAmountOverflow = errors.New("whitelist: amount does not fit in uint256")
)

// Allocation is one (account, amount) entry of the whitelist.
type Allocation struct {
	Account common.Address
	Amount  *big.Int
}

// Tree is a Merkle tree over allocations laid out the way OpenZeppelin's
// StandardMerkleTree lays out ["address", "uint256"] values, so roots and
// proofs interoperate with MerkleProof.verify on chain.
type Tree struct {
	nodes   []common.Hash
	entries []Allocation
	lookup  map[common.Hash]int
}

// LeafHash returns keccak256(keccak256(abi.encode(account, amount))).
func LeafHash(account common.Address, amount *big.Int) (common.Hash, error) {
	if amount == nil || amount.Sign() < 0 {
		return common.Hash{}, fmt.Errorf("%w: %v", ErrAmountOverflow, amount)
	}
	word, overflow := uint256.FromBig(amount)
	if overflow {
		return common.Hash{}, fmt.Errorf("%w: %s", ErrAmountOverflow, amount)
	}
	encoded := make([]byte, 0, 64)
	encoded = append(encoded, common.LeftPadBytes(account.Bytes(), 32)...)
	amountWord := word.Bytes32()
	encoded = append(encoded, amountWord[:]...)
	return ethcrypto.Keccak256Hash(ethcrypto.Keccak256(encoded)), nil
}

func hashPair(a, b common.Hash) common.Hash {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	return ethcrypto.Keccak256Hash(a[:], b[:])
}

// BuildTree hashes and sorts the allocations and assembles the tree.
func BuildTree(allocations []Allocation) (*Tree, error) {
	if len(allocations) == 0 {
		return nil, ErrEmptyTree
	}
	leaves := make([]common.Hash, len(allocations))
	seen := make(map[common.Hash]struct{}, len(allocations))
	entries := make([]Allocation, len(allocations))
	for i, alloc := range allocations {
		leaf, err := LeafHash(alloc.Account, alloc.Amount)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[leaf]; dup {
			return nil, fmt.Errorf("%w: %s %s", ErrDuplicateLeaf, alloc.Account.Hex(), alloc.Amount)
		}
		seen[leaf] = struct{}{}
		leaves[i] = leaf
		entries[i] = Allocation{Account: alloc.Account, Amount: new(big.Int).Set(alloc.Amount)}
	}
	sort.Slice(leaves, func(i, j int) bool {
		return bytes.Compare(leaves[i][:], leaves[j][:]) < 0
	})

	nodes := make([]common.Hash, 2*len(leaves)-1)
	lookup := make(map[common.Hash]int, len(leaves))
	for i, leaf := range leaves {
		pos := len(nodes) - 1 - i
		nodes[pos] = leaf
		lookup[leaf] = pos
	}
	for i := len(nodes) - 1 - len(leaves); i >= 0; i-- {
		nodes[i] = hashPair(nodes[2*i+1], nodes[2*i+2])
	}
	return &Tree{nodes: nodes, entries: entries, lookup: lookup}, nil
}

// Root returns the tree root.
func (t *Tree) Root() common.Hash {
	return t.nodes[0]
}

// Entries returns the allocations in the order they were supplied.
func (t *Tree) Entries() []Allocation {
	out := make([]Allocation, len(t.entries))
	for i, e := range t.entries {
		out[i] = Allocation{Account: e.Account, Amount: new(big.Int).Set(e.Amount)}
	}
	return out
}

// Proof returns the sibling path proving the allocation is in the tree.
func (t *Tree) Proof(account common.Address, amount *big.Int) ([]common.Hash, error) {
	leaf, err := LeafHash(account, amount)
	if err != nil {
		return nil, err
	}
	pos, ok := t.lookup[leaf]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrLeafNotFound, account.Hex(), amount)
	}
	var proof []common.Hash
	for pos > 0 {
		sibling := pos - 1
		if pos%2 == 1 {
			sibling = pos + 1
		}
		proof = append(proof, t.nodes[sibling])
		pos = (pos - 1) / 2
	}
	return proof, nil
}

// Verify checks that proof links the allocation to root.
func Verify(root common.Hash, proof []common.Hash, account common.Address, amount *big.Int) error {
	leaf, err := LeafHash(account, amount)
	if err != nil {
		return err
	}
	computed := leaf
	for _, sibling := range proof {
		computed = hashPair(computed, sibling)
	}
	if computed != root {
		return ErrInvalidProof
	}
	return nil
}
