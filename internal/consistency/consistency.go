// Package consistency implements RFC 6962 section 2.1.2 Merkle consistency
// proof verification, decomposed into deferred per-subtree obligations
// rather than a single pass/fail check.
//
// A consistency proof between a tree of size a and a tree of size b does not,
// by itself, let a verifier recompute the new root hash from already-known
// data: part of the proof covers leaves the verifier has not downloaded yet.
// Verify splits the proof into the portion that can be checked immediately
// against the trusted old root, and the portion covering [a,b) that can only
// be checked once the caller has fetched and hashed those leaves. The latter
// is returned as a list of Part values for the caller to validate later.
package consistency

import (
	"fmt"

	"github.com/nirvati/ctclient/internal/merkle"
)

// Part is an obligation deferred from consistency proof verification: a
// claim that the subtree covering new-tree leaf indices [SubtreeStart,
// SubtreeEnd) hashes to NodeHash. It can only be checked once the caller has
// the leaf hashes for that range.
type Part struct {
	SubtreeStart, SubtreeEnd uint64
	NodeHash                 merkle.Hash
}

// Verify checks a consistency proof between a tree of size oldSize (with
// root oldRoot) and a tree of size newSize (with root newRoot). It returns
// the list of obligations covering leaf range [oldSize, newSize) that the
// caller must separately confirm once it has hashed the corresponding
// leaves. Every returned Part satisfies oldSize <= SubtreeStart < SubtreeEnd
// <= newSize, and the parts partition [oldSize, newSize) in ascending order.
//
// proof is consumed positionally according to the RFC 6962 PROOF/SUBPROOF
// recursion: an error is returned if the proof is too short, too long, or
// internally inconsistent with oldRoot.
func Verify(oldSize, newSize uint64, oldRoot, newRoot merkle.Hash, proof []merkle.Hash) ([]Part, error) {
	if oldSize > newSize {
		return nil, fmt.Errorf("consistency: oldSize %d > newSize %d", oldSize, newSize)
	}
	if oldSize == newSize {
		if len(proof) != 0 {
			return nil, fmt.Errorf("consistency: equal tree sizes must carry an empty proof, got %d hashes", len(proof))
		}
		if oldRoot != newRoot {
			return nil, fmt.Errorf("consistency: equal tree sizes but root hashes differ")
		}
		return nil, nil
	}
	if oldSize == 0 {
		// RFC 6962 permits (and in practice logs emit) an empty proof when
		// growing from an empty tree: there is nothing to be consistent with.
		return []Part{{SubtreeStart: 0, SubtreeEnd: newSize, NodeHash: newRoot}}, nil
	}

	v := &verifier{oldSize: oldSize, proof: proof, trustedOldRoot: oldRoot}
	got, err := v.recur(0, newSize, true)
	if err != nil {
		return nil, err
	}
	if v.idx != len(proof) {
		return nil, fmt.Errorf("consistency: %d unconsumed proof hashes", len(proof)-v.idx)
	}
	if got != newRoot {
		return nil, fmt.Errorf("consistency: recomputed new root does not match claimed root")
	}

	if len(v.oldParts) == 0 {
		// The left spine never diverged: the old tree boundary is exactly
		// an implicit subtree and oldRoot was never separately asserted.
		// Nothing further to check; it's trivially true by construction.
	} else {
		foldedOld := v.oldParts[len(v.oldParts)-1].NodeHash
		for i := len(v.oldParts) - 2; i >= 0; i-- {
			foldedOld = merkle.NodeHash(v.oldParts[i].NodeHash, foldedOld)
		}
		if foldedOld != oldRoot {
			return nil, fmt.Errorf("consistency: old-tree portion of proof does not match trusted root")
		}
	}

	return v.newParts, nil
}

type verifier struct {
	oldSize        uint64
	trustedOldRoot merkle.Hash
	proof          []merkle.Hash
	idx            int
	oldParts       []Part // complete subtrees wholly within [0, oldSize), left to right
	newParts       []Part // complete subtrees wholly within [oldSize, newSize), left to right
}

func (v *verifier) pop() (merkle.Hash, error) {
	if v.idx >= len(v.proof) {
		return merkle.Hash{}, fmt.Errorf("consistency: proof exhausted")
	}
	h := v.proof[v.idx]
	v.idx++
	return h, nil
}

func (v *verifier) record(lo, hi uint64, h merkle.Hash) {
	p := Part{SubtreeStart: lo, SubtreeEnd: hi, NodeHash: h}
	if hi <= v.oldSize {
		v.oldParts = append(v.oldParts, p)
	} else {
		v.newParts = append(v.newParts, p)
	}
}

// recur implements RFC 6962's SUBPROOF(m, D[lo:hi], flag), with m held
// implicitly as the invariant oldSize == lo + m.
func (v *verifier) recur(lo, hi uint64, flag bool) (merkle.Hash, error) {
	n := hi - lo
	m := v.oldSize - lo

	if m == n {
		if flag {
			// This subtree is exactly the old tree; its root is already
			// known and trusted, no proof hash is spent on it.
			return v.trustedOldRoot, nil
		}
		h, err := v.pop()
		if err != nil {
			return merkle.Hash{}, err
		}
		v.record(lo, hi, h)
		return h, nil
	}

	k := merkle.LargestPowerOfTwoLessThan(n)
	if m <= k {
		left, err := v.recur(lo, lo+k, flag)
		if err != nil {
			return merkle.Hash{}, err
		}
		right, err := v.pop()
		if err != nil {
			return merkle.Hash{}, err
		}
		v.record(lo+k, hi, right)
		return merkle.NodeHash(left, right), nil
	}

	left, err := v.pop()
	if err != nil {
		return merkle.Hash{}, err
	}
	v.record(lo, lo+k, left)
	right, err := v.recur(lo+k, hi, false)
	if err != nil {
		return merkle.Hash{}, err
	}
	return merkle.NodeHash(left, right), nil
}
