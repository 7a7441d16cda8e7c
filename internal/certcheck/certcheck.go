// Package certcheck verifies the certificate chains a CT log hands out
// alongside each logged entry: that each certificate in the chain is
// correctly signed by the next, and that a precertificate's embedded
// TBSCertificate matches what the log committed to in its Merkle tree.
package certcheck

import (
	"crypto/sha256"
	"fmt"

	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/x509"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Checker verifies certificate chains, caching the result of each
// (child, issuer) signature check since the same issuer pairs recur across
// many leaves in a log.
type Checker struct {
	cache *lru.Cache[[32]byte, error]
}

// New builds a Checker whose issuer-verification cache holds up to
// cacheSize entries.
func New(cacheSize int) (*Checker, error) {
	cache, err := lru.New[[32]byte, error](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("certcheck: creating issuer cache: %w", err)
	}
	return &Checker{cache: cache}, nil
}

// CheckChain parses rawChain (leaf certificate first, root-ward after) and
// verifies that each certificate is signed by the next. It returns the
// parsed chain.
func (c *Checker) CheckChain(rawChain []ct.ASN1Cert) ([]*x509.Certificate, error) {
	if len(rawChain) < 2 {
		return nil, fmt.Errorf("certcheck: chain has only %d certificate(s), need at least 2", len(rawChain))
	}
	parsed := make([]*x509.Certificate, len(rawChain))
	for i, raw := range rawChain {
		cert, err := x509.ParseCertificate(raw.Data)
		if x509.IsFatal(err) {
			return nil, fmt.Errorf("certcheck: parsing certificate %d: %w", i, err)
		}
		parsed[i] = cert
	}
	for i := 0; i < len(parsed)-1; i++ {
		if err := c.verifySignedBy(parsed[i], parsed[i+1]); err != nil {
			return nil, fmt.Errorf("certcheck: certificate %d not validly signed by certificate %d: %w", i, i+1, err)
		}
	}
	return parsed, nil
}

func (c *Checker) verifySignedBy(cert, issuer *x509.Certificate) error {
	var key [32]byte
	h := sha256.New()
	h.Write(cert.Raw)
	h.Write(issuer.Raw)
	h.Sum(key[:0])

	if cached, ok := c.cache.Get(key); ok {
		return cached
	}
	err := cert.CheckSignatureFrom(issuer)
	c.cache.Add(key, err)
	return err
}

// ReconstructPrecertTBS rebuilds the poison-free TBSCertificate that the log
// should have hashed into its Merkle tree for a precertificate entry, given
// the as-submitted chain (chain[0] is the precertificate, chain[1] its
// direct issuer, with a further reissuer at chain[2] when chain[1] is a
// precertificate-signing certificate).
func ReconstructPrecertTBS(chain []*x509.Certificate) ([]byte, error) {
	if len(chain) < 2 {
		return nil, fmt.Errorf("certcheck: precertificate chain has only %d certificate(s)", len(chain))
	}
	leaf, issuer := chain[0], chain[1]

	var preIssuer *x509.Certificate
	if ct.IsPreIssuer(issuer) {
		preIssuer = issuer
	}

	tbs, err := x509.BuildPrecertTBS(leaf.RawTBSCertificate, preIssuer)
	if err != nil && preIssuer == nil && len(chain) > 2 {
		// Some chains don't mark the direct issuer with the CT EKU even
		// though reconstruction still needs the deeper reissuer's key hash.
		tbs, err = x509.BuildPrecertTBS(leaf.RawTBSCertificate, chain[2])
	}
	if err != nil {
		return nil, fmt.Errorf("certcheck: building precertificate TBS: %w", err)
	}
	return tbs, nil
}
