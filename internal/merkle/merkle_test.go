package merkle

import (
	"crypto/sha256"
	"testing"
)

func TestLargestPowerOfTwoLessThan(t *testing.T) {
	cases := []struct {
		n, want uint64
	}{
		{2, 1},
		{3, 2},
		{4, 2},
		{5, 4},
		{8, 4},
		{9, 8},
		{1024, 512},
		{1025, 1024},
	}
	for _, c := range cases {
		if got := LargestPowerOfTwoLessThan(c.n); got != c.want {
			t.Errorf("LargestPowerOfTwoLessThan(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

func TestLargestPowerOfTwoLessThanPanicsBelowTwo(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for n < 2")
		}
	}()
	LargestPowerOfTwoLessThan(1)
}

func TestEmptyHashIsSHA256OfEmptyString(t *testing.T) {
	want := Hash(sha256.Sum256(nil))
	if got := EmptyHash(); got != want {
		t.Errorf("EmptyHash() = %x, want %x", got, want)
	}
}

func TestRootFromLeafHashesSingleLeaf(t *testing.T) {
	h := LeafHash([]byte("leaf-0"))
	if got := RootFromLeafHashes([]Hash{h}); got != h {
		t.Errorf("single-leaf root = %x, want leaf hash %x", got, h)
	}
}

func TestRootFromLeafHashesEmpty(t *testing.T) {
	if got := RootFromLeafHashes(nil); got != EmptyHash() {
		t.Errorf("empty root = %x, want empty hash", got)
	}
}

func TestRootFromLeafHashesMatchesManualRecursionForSevenLeaves(t *testing.T) {
	leaves := make([]Hash, 7)
	for i := range leaves {
		leaves[i] = LeafHash([]byte{byte(i)})
	}

	// Manually combine per RFC 6962: split at k=4 (largest power of two < 7).
	left := NodeHash(NodeHash(leaves[0], leaves[1]), NodeHash(leaves[2], leaves[3]))
	rightLeft := NodeHash(leaves[4], leaves[5])
	right := NodeHash(rightLeft, leaves[6])
	want := NodeHash(left, right)

	if got := RootFromLeafHashes(leaves); got != want {
		t.Errorf("RootFromLeafHashes(7 leaves) = %x, want %x", got, want)
	}
}

func TestNodeHashOrderMatters(t *testing.T) {
	a := LeafHash([]byte("a"))
	b := LeafHash([]byte("b"))
	if NodeHash(a, b) == NodeHash(b, a) {
		t.Error("NodeHash should not be commutative")
	}
}
