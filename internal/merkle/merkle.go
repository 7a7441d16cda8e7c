// Package merkle implements the RFC 6962 Merkle tree hashing scheme used by
// Certificate Transparency logs.
package merkle

import (
	"crypto/sha256"

	"golang.org/x/mod/sumdb/tlog"
)

// Hash is a SHA-256 Merkle tree node hash, as defined by RFC 6962 section 2.1.
type Hash = tlog.Hash

// EmptyHash is MTH of the empty tree: SHA-256 of the empty string.
func EmptyHash() Hash {
	return Hash(sha256.Sum256(nil))
}

// LeafHash returns RFC 6962's MTH({d}), the hash of a single leaf: SHA-256(0x00 || d).
func LeafHash(d []byte) Hash {
	return tlog.RecordHash(d)
}

// NodeHash returns RFC 6962's internal node hash: SHA-256(0x01 || left || right).
func NodeHash(left, right Hash) Hash {
	return tlog.NodeHash(left, right)
}

// LargestPowerOfTwoLessThan returns the largest power of two strictly less
// than n. n must be at least 2.
func LargestPowerOfTwoLessThan(n uint64) uint64 {
	if n < 2 {
		panic("merkle: LargestPowerOfTwoLessThan requires n >= 2")
	}
	k := uint64(1)
	for k<<1 < n {
		k <<= 1
	}
	return k
}

// RootFromLeafHashes computes the RFC 6962 Merkle tree hash MTH(D[n]) of a
// sequence of leaf hashes, using the standard recursive split at the largest
// power of two less than n.
func RootFromLeafHashes(hashes []Hash) Hash {
	n := uint64(len(hashes))
	switch {
	case n == 0:
		return EmptyHash()
	case n == 1:
		return hashes[0]
	default:
		k := LargestPowerOfTwoLessThan(n)
		left := RootFromLeafHashes(hashes[:k])
		right := RootFromLeafHashes(hashes[k:])
		return NodeHash(left, right)
	}
}
