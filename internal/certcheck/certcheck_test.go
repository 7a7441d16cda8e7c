package certcheck_test

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	ct "github.com/google/certificate-transparency-go"

	"github.com/nirvati/ctclient/internal/certcheck"
)

// selfSignedChain builds a two-certificate chain (leaf, root) using the
// standard library, to check that certcheck's x509 fork parses and
// verifies ordinary, well-formed certificates the way a production CT log
// would hand them out.
func selfSignedChain(t *testing.T) []ct.ASN1Cert {
	t.Helper()

	rootKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating root key: %v", err)
	}
	rootTmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "test root"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageDigitalSignature,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	rootDER, err := x509.CreateCertificate(rand.Reader, rootTmpl, rootTmpl, &rootKey.PublicKey, rootKey)
	if err != nil {
		t.Fatalf("creating root certificate: %v", err)
	}
	root, err := x509.ParseCertificate(rootDER)
	if err != nil {
		t.Fatalf("parsing root certificate: %v", err)
	}

	leafKey, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		t.Fatalf("generating leaf key: %v", err)
	}
	leafTmpl := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		Subject:      pkix.Name{CommonName: "test leaf"},
		DNSNames:     []string{"example.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageDigitalSignature,
	}
	leafDER, err := x509.CreateCertificate(rand.Reader, leafTmpl, root, &leafKey.PublicKey, rootKey)
	if err != nil {
		t.Fatalf("creating leaf certificate: %v", err)
	}

	return []ct.ASN1Cert{{Data: leafDER}, {Data: rootDER}}
}

func TestCheckChainAcceptsValidlySignedChain(t *testing.T) {
	checker, err := certcheck.New(16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	chain, err := checker.CheckChain(selfSignedChain(t))
	if err != nil {
		t.Fatalf("CheckChain: %v", err)
	}
	if len(chain) != 2 {
		t.Fatalf("len(chain) = %d, want 2", len(chain))
	}
	if chain[0].Subject.CommonName != "test leaf" {
		t.Errorf("chain[0].Subject.CommonName = %q, want %q", chain[0].Subject.CommonName, "test leaf")
	}
}

func TestCheckChainRejectsWrongIssuer(t *testing.T) {
	checker, err := certcheck.New(16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	chain := selfSignedChain(t)
	otherChain := selfSignedChain(t)
	// Pair the first chain's leaf with the second chain's (unrelated) root.
	mismatched := []ct.ASN1Cert{chain[0], otherChain[1]}

	if _, err := checker.CheckChain(mismatched); err == nil {
		t.Error("expected an error for a leaf paired with an unrelated issuer")
	}
}

func TestCheckChainRejectsShortChain(t *testing.T) {
	checker, err := certcheck.New(16)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	chain := selfSignedChain(t)
	if _, err := checker.CheckChain(chain[:1]); err == nil {
		t.Error("expected an error for a chain with only one certificate")
	}
}
