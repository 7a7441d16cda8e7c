// Package ctclient implements a Certificate Transparency log monitoring
// client: it maintains a trusted view of a single log's Merkle tree,
// advancing it only across cryptographically verified consistency and
// inclusion proofs, and flags any log that cannot produce one.
package ctclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	ct "github.com/google/certificate-transparency-go"
	"github.com/google/certificate-transparency-go/x509"

	"github.com/nirvati/ctclient/internal/certcheck"
	"github.com/nirvati/ctclient/internal/consistency"
	"github.com/nirvati/ctclient/internal/httpfetch"
	"github.com/nirvati/ctclient/internal/leafstream"
	"github.com/nirvati/ctclient/internal/merkle"
	"github.com/nirvati/ctclient/internal/sigverify"
)

// defaultCertCheckCacheSize bounds the issuer-signature verification cache
// shared across leaves; most logs have a handful of active intermediates,
// so this comfortably covers real deployments without unbounded growth.
const defaultCertCheckCacheSize = 4096

// Monitor tracks one CT log's verified tree state and advances it safely
// over time. The zero value is not usable; construct one with
// NewFromLatestTreeHead or NewFromTreeHead.
type Monitor struct {
	baseURL     string
	pubKeyDER   []byte
	fetcher     *httpfetch.Fetcher
	sigVerifier *sigverify.Verifier
	certChecker *certcheck.Checker
	metrics     *Metrics
	logger      *slog.Logger

	latestSize     uint64
	latestTreeHash merkle.Hash

	certCheckCacheSize int
}

// Option configures optional Monitor behavior at construction time.
type Option func(*Monitor)

// WithLogger overrides the default slog.Logger (log/slog's default logger).
func WithLogger(l *slog.Logger) Option {
	return func(m *Monitor) { m.logger = l }
}

// WithMetrics attaches Prometheus instrumentation to the monitor.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Monitor) { m.metrics = metrics }
}

// WithCertCheckCacheSize overrides the issuer-signature verification
// cache's capacity.
func WithCertCheckCacheSize(size int) Option {
	return func(m *Monitor) { m.certCheckCacheSize = size }
}

func newBase(baseURL string, pubKeyDER []byte, opts []Option) (*Monitor, error) {
	fetcher, err := httpfetch.New(baseURL, pubKeyDER)
	if err != nil {
		return nil, errInvalidArgument("building fetcher for %q: %v", baseURL, err)
	}
	verifier, err := sigverify.New(pubKeyDER)
	if err != nil {
		return nil, errInvalidArgument("building signature verifier for %q: %v", baseURL, err)
	}

	m := &Monitor{
		baseURL:            baseURL,
		pubKeyDER:          pubKeyDER,
		fetcher:            fetcher,
		sigVerifier:        verifier,
		logger:             slog.Default(),
		certCheckCacheSize: defaultCertCheckCacheSize,
	}
	for _, opt := range opts {
		opt(m)
	}

	checker, err := certcheck.New(m.certCheckCacheSize)
	if err != nil {
		return nil, errInvalidArgument("building certificate checker: %v", err)
	}
	m.certChecker = checker
	return m, nil
}

// NewFromLatestTreeHead bootstraps trust in a log by fetching and verifying
// its current signed tree head, and adopting it as the starting point for
// future verification. It does not verify any of the log's history: a log
// that is already misbehaving before this call will not be detected
// retroactively.
func NewFromLatestTreeHead(ctx context.Context, baseURL string, pubKeyDER []byte, opts ...Option) (*Monitor, error) {
	m, err := newBase(baseURL, pubKeyDER, opts)
	if err != nil {
		return nil, err
	}
	sth, err := m.fetcher.GetSTH(ctx)
	if err != nil {
		return nil, translateFetchErr(err)
	}
	if err := m.sigVerifier.VerifySTH(*sth); err != nil {
		return nil, errInvalidSignature("bootstrap STH: %v", err)
	}
	m.latestSize = sth.TreeSize
	m.latestTreeHash = merkle.Hash(sth.SHA256RootHash)
	return m, nil
}

// NewFromTreeHead adopts a tree size and root hash that the caller has
// already established trust in by some other means (typically, state saved
// by a prior Monitor via AsBytes). It performs no log I/O.
func NewFromTreeHead(baseURL string, pubKeyDER []byte, treeSize uint64, treeHash [32]byte, opts ...Option) (*Monitor, error) {
	m, err := newBase(baseURL, pubKeyDER, opts)
	if err != nil {
		return nil, err
	}
	m.latestSize = treeSize
	m.latestTreeHash = treeHash
	return m, nil
}

// TreeHead returns the monitor's currently trusted tree size and root hash.
func (m *Monitor) TreeHead() (size uint64, rootHash [32]byte) {
	return m.latestSize, m.latestTreeHash
}

// BaseURL returns the log's base URL, as passed to the constructor.
func (m *Monitor) BaseURL() string { return m.baseURL }

func translateFetchErr(err error) error {
	var fe *httpfetch.Error
	if errors.As(err, &fe) {
		switch fe.Kind {
		case httpfetch.KindBadStatus:
			return errInvalidResponseStatus(fe.StatusCode, fe.Cause)
		default:
			return errNetIO(fe.Cause)
		}
	}
	return errNetIO(err)
}

// Handler is invoked once for every newly verified leaf during Update, with
// the full decoded certificate (or precertificate) chain, leaf first. It is
// purely observational — it returns nothing, and any panic it raises
// propagates to the caller of Update.
type Handler func(chain []*x509.Certificate)

// Update fetches the log's current signed tree head and, if it has grown,
// verifies a consistency proof from the monitor's trusted tree to the new
// one. If handler is non-nil, it also downloads and hashes every new leaf,
// verifies each leaf's certificate chain, confirms the downloaded leaves
// actually hash to what the consistency proof claimed, and invokes handler
// once per leaf. If handler is nil, Update runs in "light" mode: it trusts
// the consistency proof's structural verification alone and does not
// download or re-verify any new leaf data.
//
// If the log reports a smaller tree than the one already trusted, Update
// conservatively checks whether the smaller tree is consistent with (i.e. an
// earlier snapshot of) the trusted one — this can happen innocuously when a
// request lands on a lagging replica — before concluding that the log has
// misbehaved.
func (m *Monitor) Update(ctx context.Context, handler Handler) (*ct.SignedTreeHead, error) {
	if m.metrics != nil {
		start := time.Now()
		defer func() { m.metrics.UpdateDuration.Observe(time.Since(start).Seconds()) }()
	}

	sth, err := m.fetcher.GetSTH(ctx)
	if err != nil {
		if m.metrics != nil {
			m.metrics.FetchErrors.Inc()
		}
		return nil, translateFetchErr(err)
	}
	if err := m.sigVerifier.VerifySTH(*sth); err != nil {
		if m.metrics != nil {
			m.metrics.SignatureErrors.Inc()
		}
		return nil, errInvalidSignature("%v", err)
	}

	switch {
	case sth.TreeSize == m.latestSize:
		if merkle.Hash(sth.SHA256RootHash) != m.latestTreeHash {
			return nil, withSTH(errInvalidConsistencyProof(m.latestSize, sth.TreeSize,
				"log reports the same tree size %d we already trust, but a different root hash", sth.TreeSize), sth)
		}
		m.logger.Info("tree head unchanged", "log", m.baseURL, "size", sth.TreeSize)
		return sth, nil

	case sth.TreeSize < m.latestSize:
		return m.updateShrink(ctx, sth)

	default:
		return m.updateGrowth(ctx, sth, handler)
	}
}

// LightUpdate is Update with a nil Handler: it verifies the log's
// consistency proof but does not download or verify any new leaf data.
func (m *Monitor) LightUpdate(ctx context.Context) (*ct.SignedTreeHead, error) {
	return m.Update(ctx, nil)
}

// updateShrink conservatively tolerates a smaller-than-trusted STH as long
// as it is provably an earlier snapshot of the same tree; otherwise it is
// reported as an inconsistency (the log has forked).
func (m *Monitor) updateShrink(ctx context.Context, sth *ct.SignedTreeHead) (*ct.SignedTreeHead, error) {
	proof, err := m.fetcher.GetSTHConsistency(ctx, sth.TreeSize, m.latestSize)
	if err != nil {
		return nil, withSTH(translateFetchErr(err), sth)
	}
	_, err = consistency.Verify(sth.TreeSize, m.latestSize, merkle.Hash(sth.SHA256RootHash), m.latestTreeHash, toHashes(proof))
	if err != nil {
		if m.metrics != nil {
			m.metrics.ConsistencyErrors.Inc()
		}
		return nil, withSTH(errInvalidConsistencyProof(sth.TreeSize, m.latestSize,
			"log reported a smaller tree (size %d) than already trusted (size %d), and it is not a consistent prefix: %v",
			sth.TreeSize, m.latestSize, err), sth)
	}
	// The smaller tree is a genuine earlier state of the one we already
	// trust (e.g. a load-balanced replica lagging behind). Not an error,
	// but we keep trusting the larger tree size rather than regressing.
	m.logger.Warn("log reported a stale (smaller) but consistent tree head",
		"log", m.baseURL, "reported_size", sth.TreeSize, "trusted_size", m.latestSize)
	return sth, nil
}

func (m *Monitor) updateGrowth(ctx context.Context, sth *ct.SignedTreeHead, handler Handler) (*ct.SignedTreeHead, error) {
	newRoot := merkle.Hash(sth.SHA256RootHash)
	oldSize := m.latestSize

	var parts []consistency.Part
	if oldSize > 0 {
		proof, err := m.fetcher.GetSTHConsistency(ctx, oldSize, sth.TreeSize)
		if err != nil {
			return nil, withSTH(translateFetchErr(err), sth)
		}
		p, err := consistency.Verify(oldSize, sth.TreeSize, m.latestTreeHash, newRoot, toHashes(proof))
		if err != nil {
			if m.metrics != nil {
				m.metrics.ConsistencyErrors.Inc()
			}
			return nil, withSTH(errInvalidConsistencyProof(oldSize, sth.TreeSize, "%v", err), sth)
		}
		parts = p
	} else {
		parts = []consistency.Part{{SubtreeStart: 0, SubtreeEnd: sth.TreeSize, NodeHash: newRoot}}
	}

	if handler != nil {
		leafHashes, err := m.verifyAndHashLeaves(ctx, int64(oldSize), int64(sth.TreeSize), sth, handler)
		if err != nil {
			return nil, err
		}

		for _, part := range parts {
			s := part.SubtreeStart - oldSize
			e := part.SubtreeEnd - oldSize
			if got := merkle.RootFromLeafHashes(leafHashes[s:e]); got != part.NodeHash {
				if m.metrics != nil {
					m.metrics.ConsistencyErrors.Inc()
				}
				return nil, withSTH(errCannotVerifyTreeData(
					"downloaded leaves for range [%d,%d) do not hash to what the consistency proof claimed",
					part.SubtreeStart, part.SubtreeEnd), sth)
			}
		}
		m.logger.Info("updated to new tree head", "log", m.baseURL, "size", sth.TreeSize, "leaves_read", sth.TreeSize-oldSize)
	} else {
		m.logger.Info("light updated to new tree head", "log", m.baseURL, "size", sth.TreeSize)
	}

	m.latestSize = sth.TreeSize
	m.latestTreeHash = newRoot
	if m.metrics != nil {
		m.metrics.TreeSize.Set(float64(sth.TreeSize))
	}
	return sth, nil
}

// verifyAndHashLeaves downloads leaves [start, end), validates each one's
// certificate chain (and, for precertificates, its reconstructed TBS
// against what the log committed to the tree), invokes handler with the
// decoded chain, and returns the leaves' hashes in order. It logs progress
// at most once per second.
func (m *Monitor) verifyAndHashLeaves(ctx context.Context, start, end int64, sth *ct.SignedTreeHead, handler Handler) ([]merkle.Hash, error) {
	hashes := make([]merkle.Hash, 0, end-start)
	stream := leafstream.New(ctx, m.fetcher, start, end)

	var lastLog time.Time
	for {
		idx, raw, err := stream.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			stream.Close()
			var sbe *leafstream.ShortBatchError
			if errors.As(err, &sbe) {
				return nil, withSTH(errExpectedEntry(uint64(sbe.Index)), sth)
			}
			return nil, withSTH(errNetIO(err), sth)
		}

		leaf, err := leafFromRawEntry(idx, raw)
		if err != nil {
			stream.Close()
			return nil, withSTH(err, sth)
		}

		chain, err := m.certChecker.CheckChain(leaf.Chain)
		if err != nil {
			stream.Close()
			return nil, withSTH(errBadCertificate("leaf %d: %v", idx, err), sth)
		}
		if leaf.IsPrecert {
			tbs, err := certcheck.ReconstructPrecertTBS(chain)
			if err != nil {
				stream.Close()
				return nil, withSTH(errBadCertificate("leaf %d: %v", idx, err), sth)
			}
			if !bytes.Equal(tbs, leaf.TBSCert) {
				stream.Close()
				return nil, withSTH(errBadCertificate("leaf %d: reconstructed precertificate does not match the entry committed to the tree", idx), sth)
			}
		}

		handler(chain)

		hashes = append(hashes, merkle.Hash(leaf.Hash))
		if m.metrics != nil {
			m.metrics.LeavesVerified.Inc()
		}
		if now := time.Now(); now.Sub(lastLog) >= time.Second {
			m.logger.Info("verifying new leaves", "log", m.baseURL, "index", idx, "target_size", end)
			lastLog = now
		}
	}

	if err := stream.Close(); err != nil {
		return nil, withSTH(errNetIO(err), sth)
	}
	if int64(len(hashes)) != end-start {
		return nil, withSTH(errExpectedEntry(start+int64(len(hashes))), sth)
	}
	return hashes, nil
}

// rootAtSize derives the Merkle root of the currently trusted tree's prefix
// of the given size without downloading every leaf in that prefix: it
// fetches the prefix's last leaf and an inclusion proof for it at the
// target tree size, and reconstructs the root from the audit path alone.
func (m *Monitor) rootAtSize(ctx context.Context, size uint64) (merkle.Hash, error) {
	idx := size - 1
	rsp, err := m.fetcher.GetRawEntries(ctx, int64(idx), int64(idx))
	if err != nil {
		return merkle.Hash{}, translateFetchErr(err)
	}
	if len(rsp.Entries) == 0 {
		return merkle.Hash{}, errExpectedEntry(idx)
	}
	leaf, err := leafFromRawEntry(int64(idx), &rsp.Entries[0])
	if err != nil {
		return merkle.Hash{}, err
	}
	proofRsp, err := m.fetcher.GetProofByHash(ctx, leaf.Hash[:], size)
	if err != nil {
		return merkle.Hash{}, translateFetchErr(err)
	}
	if uint64(proofRsp.LeafIndex) != idx {
		return merkle.Hash{}, errCannotVerifyTreeData(
			"inclusion proof leaf index %d does not match expected %d", proofRsp.LeafIndex, idx)
	}
	root, err := merkle.RootFromInclusionProof(idx, size, merkle.Hash(leaf.Hash), toHashes(proofRsp.AuditPath))
	if err != nil {
		return merkle.Hash{}, errInvalidInclusionProof(size, idx, "%v", err)
	}
	return root, nil
}

// FirstLeafAfter binary-searches the currently trusted tree for the index
// of the first leaf whose timestamp is >= timestamp. It returns
// KindExpectedEntry if every leaf predates timestamp.
func (m *Monitor) FirstLeafAfter(ctx context.Context, timestamp uint64) (uint64, error) {
	if m.latestSize == 0 {
		return 0, errInvalidArgument("tree is empty")
	}
	lo, hi := uint64(0), m.latestSize
	for lo < hi {
		mid := lo + (hi-lo)/2
		rsp, err := m.fetcher.GetRawEntries(ctx, int64(mid), int64(mid))
		if err != nil {
			return 0, translateFetchErr(err)
		}
		if len(rsp.Entries) == 0 {
			return 0, errExpectedEntry(mid)
		}
		rle, err := ct.RawLogEntryFromLeaf(int64(mid), &rsp.Entries[0])
		if err != nil {
			return 0, errMalformedResponseBody("leaf %d: %v", mid, err)
		}
		if rle.Leaf.TimestampedEntry.Timestamp < timestamp {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo >= m.latestSize {
		return 0, errExpectedEntry(lo)
	}
	return lo, nil
}

// FirstTreeHeadAfter returns the size and root hash of the smallest prefix
// of the currently trusted tree that includes the first leaf with
// timestamp >= timestamp. The returned root hash is independently
// recomputed from an inclusion proof over the prefix's last leaf and
// cross-checked against the currently trusted tree head via a consistency
// proof.
func (m *Monitor) FirstTreeHeadAfter(ctx context.Context, timestamp uint64) (treeSize uint64, rootHash [32]byte, err error) {
	idx, err := m.FirstLeafAfter(ctx, timestamp)
	if err != nil {
		return 0, [32]byte{}, err
	}
	size := idx + 1

	root, err := m.rootAtSize(ctx, size)
	if err != nil {
		return 0, [32]byte{}, err
	}

	switch {
	case size < m.latestSize:
		proof, err := m.fetcher.GetSTHConsistency(ctx, size, m.latestSize)
		if err != nil {
			return 0, [32]byte{}, translateFetchErr(err)
		}
		if _, err := consistency.Verify(size, m.latestSize, root, m.latestTreeHash, toHashes(proof)); err != nil {
			return 0, [32]byte{}, errInvalidConsistencyProof(size, m.latestSize, "%v", err)
		}
	case size == m.latestSize:
		if root != m.latestTreeHash {
			return 0, [32]byte{}, errCannotVerifyTreeData("recomputed root for tree size %d does not match the trusted root", size)
		}
	default:
		return 0, [32]byte{}, errInvalidArgument("timestamp %d is beyond the currently trusted tree", timestamp)
	}

	return size, [32]byte(root), nil
}

// RollbackToTimestamp forcibly retreats the monitor's trust to the largest
// tree size all of whose leaves predate timestamp, re-deriving that size's
// root hash from an inclusion proof rather than re-downloading the whole
// prefix. It's meant for recovering from a detected fork by retreating to a
// checkpoint that predates the suspected divergence, so a subsequent Update
// can re-verify forward from there.
func (m *Monitor) RollbackToTimestamp(ctx context.Context, timestamp uint64) error {
	var size uint64
	idx, err := m.FirstLeafAfter(ctx, timestamp)
	if err != nil {
		var ce *Error
		if errors.As(err, &ce) && ce.Kind == KindExpectedEntry {
			size = m.latestSize // every leaf predates timestamp
		} else {
			return err
		}
	} else {
		size = idx // leaves [0,idx) all predate timestamp
	}

	if size == 0 {
		m.latestSize = 0
		m.latestTreeHash = merkle.EmptyHash()
		return nil
	}
	if size == m.latestSize {
		return nil
	}

	root, err := m.rootAtSize(ctx, size)
	if err != nil {
		return err
	}
	m.latestSize = size
	m.latestTreeHash = root
	return nil
}

// CheckInclusionProofForSCT verifies that chain and its SCT are included in
// the currently trusted tree: it reconstructs the Merkle tree leaf for the
// (pre)certificate, fetches an audit proof for its hash, and verifies that
// proof against the trusted root. It returns BadSct if the reconstructed
// leaf's hash cannot be found in the tree.
func (m *Monitor) CheckInclusionProofForSCT(ctx context.Context, chain []ct.ASN1Cert, sct *ct.SignedCertificateTimestamp) error {
	if len(chain) == 0 {
		return errInvalidArgument("empty certificate chain")
	}
	if m.latestSize == 0 {
		return errCannotVerifyTreeData("tree is empty")
	}

	var leafEntry *ct.MerkleTreeLeaf
	var err error
	cert, parseErr := x509.ParseCertificate(chain[0].Data)
	switch {
	case parseErr == nil && cert.IsPrecertificate():
		leafEntry, err = ct.MerkleTreeLeafFromRawChain(chain, ct.PrecertLogEntryType, sct.Timestamp)
		if err != nil {
			return errInvalidArgument("building precertificate leaf: %v", err)
		}
	default:
		leafEntry = ct.CreateX509MerkleTreeLeaf(chain[0], sct.Timestamp)
	}

	leafHash, err := ct.LeafHashForLeaf(leafEntry)
	if err != nil {
		return errInvalidArgument("hashing leaf: %v", err)
	}

	rsp, err := m.fetcher.GetProofByHash(ctx, leafHash[:], m.latestSize)
	if err != nil {
		var fe *httpfetch.Error
		if errors.As(err, &fe) && fe.Kind == httpfetch.KindBadStatus && fe.StatusCode == 404 {
			return errBadSct("leaf hash not found in tree of size %d", m.latestSize)
		}
		return translateFetchErr(err)
	}

	if err := merkle.VerifyInclusion(uint64(rsp.LeafIndex), m.latestSize, merkle.Hash(leafHash), m.latestTreeHash, toHashes(rsp.AuditPath)); err != nil {
		return errInvalidInclusionProof(m.latestSize, uint64(rsp.LeafIndex), "%v", err)
	}
	return nil
}

func toHashes(audit [][]byte) []merkle.Hash {
	out := make([]merkle.Hash, len(audit))
	for i, a := range audit {
		copy(out[i][:], a)
	}
	return out
}

