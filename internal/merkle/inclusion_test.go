package merkle

// buildInclusionProof is an independent oracle for VerifyInclusion's tests,
// built directly from RFC 6962's PATH recursion using RootFromLeafHashes
// rather than RootFromInclusionProof's own proof-consuming reconstruction.
func buildInclusionProof(leaves []Hash, index uint64) []Hash {
	var proof []Hash
	var rec func(m, lo, hi uint64)
	rec = func(m, lo, hi uint64) {
		n := hi - lo
		if n == 1 {
			return
		}
		k := LargestPowerOfTwoLessThan(n)
		if m < k {
			rec(m, lo, lo+k)
			proof = append(proof, RootFromLeafHashes(leaves[lo+k:hi]))
		} else {
			proof = append(proof, RootFromLeafHashes(leaves[lo:lo+k]))
			rec(m-k, lo+k, hi)
		}
	}
	rec(index, 0, uint64(len(leaves)))
	return proof
}
