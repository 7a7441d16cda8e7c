package merkle

import "testing"

func TestVerifyInclusionAcceptsValidProofAcrossAllIndices(t *testing.T) {
	leaves := make([]Hash, 11)
	for i := range leaves {
		leaves[i] = LeafHash([]byte{byte(i)})
	}
	root := RootFromLeafHashes(leaves)

	for i := range leaves {
		proof := buildInclusionProof(leaves, uint64(i))
		if err := VerifyInclusion(uint64(i), uint64(len(leaves)), leaves[i], root, proof); err != nil {
			t.Errorf("VerifyInclusion(index=%d) failed: %v", i, err)
		}
	}
}

func TestVerifyInclusionSingleLeafTreeNeedsNoProof(t *testing.T) {
	leaf := LeafHash([]byte("only"))
	if err := VerifyInclusion(0, 1, leaf, leaf, nil); err != nil {
		t.Errorf("single-leaf inclusion should need no proof: %v", err)
	}
}

func TestVerifyInclusionRejectsWrongLeafHash(t *testing.T) {
	leaves := make([]Hash, 5)
	for i := range leaves {
		leaves[i] = LeafHash([]byte{byte(i)})
	}
	root := RootFromLeafHashes(leaves)
	proof := buildInclusionProof(leaves, 2)

	wrong := LeafHash([]byte("wrong leaf"))
	if err := VerifyInclusion(2, 5, wrong, root, proof); err == nil {
		t.Error("expected error for wrong leaf hash")
	}
}

func TestVerifyInclusionRejectsTamperedProof(t *testing.T) {
	leaves := make([]Hash, 6)
	for i := range leaves {
		leaves[i] = LeafHash([]byte{byte(i)})
	}
	root := RootFromLeafHashes(leaves)
	proof := buildInclusionProof(leaves, 4)
	proof[0][0] ^= 0xff

	if err := VerifyInclusion(4, 6, leaves[4], root, proof); err == nil {
		t.Error("expected error for tampered proof")
	}
}

func TestVerifyInclusionRejectsOutOfRangeIndex(t *testing.T) {
	leaf := LeafHash([]byte("x"))
	if err := VerifyInclusion(5, 5, leaf, leaf, nil); err == nil {
		t.Error("expected error for leaf index == tree size")
	}
}
