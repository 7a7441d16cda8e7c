// Package sigverify verifies RFC 6962 digitally-signed log artifacts (signed
// tree heads and SCTs) against a log's public key.
package sigverify

import (
	"crypto"
	"fmt"

	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/x509"
)

// Verifier checks signatures produced by a single CT log's key.
type Verifier struct {
	inner *ct.SignatureVerifier
}

// New builds a Verifier from a DER-encoded SubjectPublicKeyInfo, the form CT
// logs publish their keys in.
func New(pubKeyDER []byte) (*Verifier, error) {
	pub, err := x509.ParsePKIXPublicKey(pubKeyDER)
	if err != nil {
		return nil, fmt.Errorf("sigverify: parsing log public key: %w", err)
	}
	return NewFromPublicKey(pub)
}

// NewFromPublicKey builds a Verifier from an already-parsed public key.
func NewFromPublicKey(pub crypto.PublicKey) (*Verifier, error) {
	v, err := ct.NewSignatureVerifier(pub)
	if err != nil {
		return nil, fmt.Errorf("sigverify: building signature verifier: %w", err)
	}
	return &Verifier{inner: v}, nil
}

// VerifySTH checks the log's signature over a signed tree head.
func (v *Verifier) VerifySTH(sth ct.SignedTreeHead) error {
	if err := v.inner.VerifySTHSignature(sth); err != nil {
		return fmt.Errorf("sigverify: STH signature invalid: %w", err)
	}
	return nil
}

// VerifySCT checks the log's signature over a signed certificate timestamp
// for the given leaf certificate or precertificate data.
func (v *Verifier) VerifySCT(sct ct.SignedCertificateTimestamp, entryType ct.LogEntryType, certData []byte) error {
	if err := v.inner.VerifySCTSignature(sct, entryType, certData); err != nil {
		return fmt.Errorf("sigverify: SCT signature invalid: %w", err)
	}
	return nil
}
