package merkle

import "fmt"

// RootFromInclusionProof reconstructs the tree root implied by an RFC 6962
// Merkle audit (inclusion) proof: that the leaf at leafIndex in a tree of
// treeSize leaves hashes to leafHash, given the audit path proof. This is
// the "calculated_tree_hash" of an InclusionProof: callers that already
// know the expected root should compare it themselves (see VerifyInclusion);
// callers deriving an as-yet-untrusted root for a given tree size (e.g. to
// cross-check against a consistency proof) can use the returned hash
// directly.
func RootFromInclusionProof(leafIndex, treeSize uint64, leafHash Hash, proof []Hash) (Hash, error) {
	if treeSize == 0 || leafIndex >= treeSize {
		return Hash{}, fmt.Errorf("merkle: leaf index %d out of range for tree size %d", leafIndex, treeSize)
	}

	idx := 0
	var rec func(m, lo, hi uint64) (Hash, error)
	rec = func(m, lo, hi uint64) (Hash, error) {
		n := hi - lo
		if n == 1 {
			return leafHash, nil
		}
		k := LargestPowerOfTwoLessThan(n)
		if m < k {
			left, err := rec(m, lo, lo+k)
			if err != nil {
				return Hash{}, err
			}
			if idx >= len(proof) {
				return Hash{}, fmt.Errorf("merkle: inclusion proof too short")
			}
			right := proof[idx]
			idx++
			return NodeHash(left, right), nil
		}
		if idx >= len(proof) {
			return Hash{}, fmt.Errorf("merkle: inclusion proof too short")
		}
		left := proof[idx]
		idx++
		right, err := rec(m-k, lo+k, hi)
		if err != nil {
			return Hash{}, err
		}
		return NodeHash(left, right), nil
	}

	got, err := rec(leafIndex, 0, treeSize)
	if err != nil {
		return Hash{}, err
	}
	if idx != len(proof) {
		return Hash{}, fmt.Errorf("merkle: inclusion proof too long, %d hashes unused", len(proof)-idx)
	}
	return got, nil
}

// VerifyInclusion checks an RFC 6962 Merkle audit (inclusion) proof: that
// the leaf at leafIndex in a tree of treeSize leaves, known to hash to
// leafHash, is present under root, given the audit path proof.
func VerifyInclusion(leafIndex, treeSize uint64, leafHash, root Hash, proof []Hash) error {
	got, err := RootFromInclusionProof(leafIndex, treeSize, leafHash, proof)
	if err != nil {
		return err
	}
	if got != root {
		return fmt.Errorf("merkle: recomputed root does not match claimed root")
	}
	return nil
}
