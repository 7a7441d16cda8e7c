package merkle

import "testing"

func TestRootFromInclusionProofMatchesRootFromLeafHashes(t *testing.T) {
	leaves := make([]Hash, 13)
	for i := range leaves {
		leaves[i] = LeafHash([]byte{byte(i), byte(i * 3)})
	}
	want := RootFromLeafHashes(leaves)

	for i := range leaves {
		proof := buildInclusionProof(leaves, uint64(i))
		got, err := RootFromInclusionProof(uint64(i), uint64(len(leaves)), leaves[i], proof)
		if err != nil {
			t.Fatalf("RootFromInclusionProof(index=%d): %v", i, err)
		}
		if got != want {
			t.Errorf("RootFromInclusionProof(index=%d) = %x, want %x", i, got, want)
		}
	}
}

func TestRootFromInclusionProofRejectsShortProof(t *testing.T) {
	leaves := make([]Hash, 8)
	for i := range leaves {
		leaves[i] = LeafHash([]byte{byte(i)})
	}
	proof := buildInclusionProof(leaves, 3)
	if _, err := RootFromInclusionProof(3, 8, leaves[3], proof[:len(proof)-1]); err == nil {
		t.Error("expected an error for a truncated proof")
	}
}

func TestRootFromInclusionProofRejectsOversizedProof(t *testing.T) {
	leaves := make([]Hash, 4)
	for i := range leaves {
		leaves[i] = LeafHash([]byte{byte(i)})
	}
	proof := buildInclusionProof(leaves, 1)
	proof = append(proof, LeafHash([]byte("extra")))
	if _, err := RootFromInclusionProof(1, 4, leaves[1], proof); err == nil {
		t.Error("expected an error for a proof with unconsumed hashes")
	}
}
