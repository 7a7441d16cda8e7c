package ctclient

import (
	ct "github.com/google/certificate-transparency-go"
)

// Leaf is a single decoded log entry: either a certificate or a
// precertificate, together with the chain the log supplied alongside it.
type Leaf struct {
	// Hash is the RFC 6962 leaf hash: MTH({MerkleTreeLeaf encoding}).
	Hash [32]byte
	// Timestamp is the log's claimed time of inclusion, milliseconds since
	// the Unix epoch.
	Timestamp uint64
	// IsPrecert reports whether this entry is a precertificate.
	IsPrecert bool
	// Chain is the certificate (or precertificate) followed by its
	// issuers, as supplied by the log's extra_data.
	Chain []ct.ASN1Cert
	// TBSCert is the raw TBSCertificate bytes committed to the Merkle
	// tree; only set when IsPrecert is true.
	TBSCert []byte
}

func leafFromRawEntry(index int64, raw *ct.LeafEntry) (*Leaf, error) {
	rle, err := ct.RawLogEntryFromLeaf(index, raw)
	if err != nil {
		return nil, errMalformedResponseBody("decoding leaf at index %d: %v", index, err)
	}

	ts := rle.Leaf.TimestampedEntry
	leaf := &Leaf{Timestamp: ts.Timestamp}

	switch ts.EntryType {
	case ct.X509LogEntryType:
		leaf.IsPrecert = false
		leaf.Chain = append([]ct.ASN1Cert{*ts.X509Entry}, rle.Chain...)
	case ct.PrecertLogEntryType:
		leaf.IsPrecert = true
		leaf.Chain = append([]ct.ASN1Cert{rle.Cert}, rle.Chain...)
		leaf.TBSCert = ts.PrecertEntry.TBSCertificate
	default:
		return nil, errMalformedResponseBody("leaf at index %d has unknown entry type %d", index, ts.EntryType)
	}

	hash, err := ct.LeafHashForLeaf(&rle.Leaf)
	if err != nil {
		return nil, errMalformedResponseBody("hashing leaf at index %d: %v", index, err)
	}
	leaf.Hash = hash

	return leaf, nil
}
