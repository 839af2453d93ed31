package whitelist

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

func ether(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1_000_000_000_000_000_000))
}

var (
	holder1 = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	holder2 = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	holder3 = common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
)

func TestLeafHashEncoding(t *testing.T) {
	amount := big.NewInt(0x1234)
	encoded := append(common.LeftPadBytes(holder1.Bytes(), 32), common.LeftPadBytes(amount.Bytes(), 32)...)
	want := ethcrypto.Keccak256Hash(ethcrypto.Keccak256(encoded))

	got, err := LeafHash(holder1, amount)
	require.NoError(t, err)
	require.Equal(t, want, got)

	_, err = LeafHash(holder1, new(big.Int).Lsh(big.NewInt(1), 256))
	require.ErrorIs(t, err, ErrAmountOverflow)
	_, err = LeafHash(holder1, big.NewInt(-1))
	require.ErrorIs(t, err, ErrAmountOverflow)
}

func TestSingleLeafTree(t *testing.T) {
	tree, err := BuildTree([]Allocation{{Account: holder1, Amount: ether(1)}})
	require.NoError(t, err)
	leaf, err := LeafHash(holder1, ether(1))
	require.NoError(t, err)
	require.Equal(t, leaf, tree.Root())

	proof, err := tree.Proof(holder1, ether(1))
	require.NoError(t, err)
	require.Empty(t, proof)
	require.NoError(t, Verify(tree.Root(), proof, holder1, ether(1)))
}

func TestTwoLeafRootIsSortedPair(t *testing.T) {
	tree, err := BuildTree([]Allocation{
		{Account: holder1, Amount: ether(1)},
		{Account: holder2, Amount: ether(2)},
	})
	require.NoError(t, err)
	a, _ := LeafHash(holder1, ether(1))
	b, _ := LeafHash(holder2, ether(2))
	require.Equal(t, hashPair(a, b), tree.Root())
	require.Equal(t, hashPair(b, a), tree.Root())
}

func TestProofsVerifyForEveryEntry(t *testing.T) {
	var allocs []Allocation
	for i := 1; i <= 7; i++ {
		var raw common.Address
		raw[19] = byte(i)
		allocs = append(allocs, Allocation{Account: raw, Amount: big.NewInt(int64(i * 1000))})
	}
	tree, err := BuildTree(allocs)
	require.NoError(t, err)
	for _, alloc := range tree.Entries() {
		proof, err := tree.Proof(alloc.Account, alloc.Amount)
		require.NoError(t, err)
		require.NoError(t, Verify(tree.Root(), proof, alloc.Account, alloc.Amount))
		require.ErrorIs(t, Verify(tree.Root(), proof, alloc.Account, new(big.Int).Add(alloc.Amount, big.NewInt(1))), ErrInvalidProof)
	}
}

func TestAllocationVerification(t *testing.T) {
	tree, err := BuildTree([]Allocation{
		{Account: holder1, Amount: ether(1)},
		{Account: holder2, Amount: ether(2)},
		{Account: holder3, Amount: ether(3)},
	})
	require.NoError(t, err)
	proof1, err := tree.Proof(holder1, ether(1))
	require.NoError(t, err)
	proof2, err := tree.Proof(holder2, ether(2))
	require.NoError(t, err)

	require.ErrorIs(t, Verify(tree.Root(), proof1, holder1, ether(2)), ErrInvalidProof)
	require.NoError(t, Verify(tree.Root(), proof1, holder1, ether(1)))
	require.NoError(t, Verify(tree.Root(), proof2, holder2, ether(2)))
	require.ErrorIs(t, Verify(tree.Root(), proof2, holder1, ether(1)), ErrInvalidProof)

	_, err = tree.Proof(holder1, ether(5))
	require.ErrorIs(t, err, ErrLeafNotFound)
}

func TestBuildTreeRejectsBadInput(t *testing.T) {
	_, err := BuildTree(nil)
	require.ErrorIs(t, err, ErrEmptyTree)

	_, err = BuildTree([]Allocation{
		{Account: holder1, Amount: ether(1)},
		{Account: holder1, Amount: ether(1)},
	})
	require.ErrorIs(t, err, ErrDuplicateLeaf)
}

func TestEntriesPreserveInputOrder(t *testing.T) {
	tree, err := BuildTree([]Allocation{
		{Account: holder3, Amount: ether(3)},
		{Account: holder1, Amount: ether(1)},
	})
	require.NoError(t, err)
	entries := tree.Entries()
	require.Equal(t, holder3, entries[0].Account)
	require.Equal(t, holder1, entries[1].Account)
}

// Root, leaves and proofs produced by @openzeppelin/merkle-tree for
// StandardMerkleTree.of([[holder1, 1e18], [holder2, 2e18], [holder3, 3e18]],
// ["address", "uint256"]).
func TestStandardMerkleTreeVector(t *testing.T) {
	tree, err := BuildTree([]Allocation{
		{Account: holder1, Amount: ether(1)},
		{Account: holder2, Amount: ether(2)},
		{Account: holder3, Amount: ether(3)},
	})
	require.NoError(t, err)
	require.Equal(t, common.HexToHash("0xd43f2c69d42e3c95f51c9471664bb0359641d4a10fe3b0f9fcf64aa77c5d2935"), tree.Root())

	cases := []struct {
		account common.Address
		amount  *big.Int
		leaf    string
		proof   []string
	}{
		{holder1, ether(1), "0x48b89d46ac36bc91cff52fda8f367663966eeb47da22a76a3f52c1ed976504ee", []string{
			"0x1b51b9d975ad02132b59956c5c2e7462aa1f101eac0cb2103f9fa18609b236b8",
			"0x5a3b66a200185051eae1a50a3a96ebc5d65ec6e5d34231c4af1a3b5de8640e75",
		}},
		{holder2, ether(2), "0x5a3b66a200185051eae1a50a3a96ebc5d65ec6e5d34231c4af1a3b5de8640e75", []string{
			"0x8ca7f6db6905a0a3da67fed03df249547d62c6a52d351551d749c53b1e4dd479",
		}},
		{holder3, ether(3), "0x1b51b9d975ad02132b59956c5c2e7462aa1f101eac0cb2103f9fa18609b236b8", []string{
			"0x48b89d46ac36bc91cff52fda8f367663966eeb47da22a76a3f52c1ed976504ee",
			"0x5a3b66a200185051eae1a50a3a96ebc5d65ec6e5d34231c4af1a3b5de8640e75",
		}},
	}
	for _, tc := range cases {
		leaf, err := LeafHash(tc.account, tc.amount)
		require.NoError(t, err)
		require.Equal(t, common.HexToHash(tc.leaf), leaf, tc.account.Hex())

		proof, err := tree.Proof(tc.account, tc.amount)
		require.NoError(t, err)
		want := make([]common.Hash, len(tc.proof))
		for i, h := range tc.proof {
			want[i] = common.HexToHash(h)
		}
		require.Equal(t, want, proof, tc.account.Hex())
	}
}
