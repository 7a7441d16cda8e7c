package ctclient

import (
	"context"
	"crypto/sha256"

	"golang.org/x/crypto/cryptobyte"

	"github.com/nirvati/ctclient/internal/statestore"
)

// stateVersion identifies the AsBytes/FromBytes wire layout. FromBytes
// rejects any version it doesn't understand rather than guessing at a
// newer layout.
const stateVersion = 0

// AsBytes serializes the monitor's full trust state — the log it is
// attached to, the public key it verifies signatures against, and the
// currently trusted tree size and root hash — into an opaque blob suitable
// for persisting across restarts. Use FromBytes to reconstruct an
// equivalent Monitor from it without re-verifying the log's entire
// history.
//
// Layout: version(1) || base_url (UTF-8) || 0x00 || latest_size(8, BE) ||
// latest_tree_hash(32) || len(pub_key_DER)(4, BE) || pub_key_DER ||
// sha256(everything above)(32).
func (m *Monitor) AsBytes() ([]byte, error) {
	if len(m.pubKeyDER) > 1<<32-1 {
		return nil, errInvalidArgument("public key is too large to serialize")
	}
	for i := 0; i < len(m.baseURL); i++ {
		if m.baseURL[i] == 0 {
			return nil, errInvalidArgument("base URL must not contain a NUL byte")
		}
	}

	var b cryptobyte.Builder
	b.AddUint8(stateVersion)
	b.AddBytes([]byte(m.baseURL))
	b.AddUint8(0)
	b.AddUint64(m.latestSize)
	b.AddBytes(m.latestTreeHash[:])
	b.AddUint32LengthPrefixed(func(child *cryptobyte.Builder) {
		child.AddBytes(m.pubKeyDER)
	})
	body, err := b.Bytes()
	if err != nil {
		return nil, errInvalidArgument("serializing state: %v", err)
	}
	sum := sha256.Sum256(body)
	return append(body, sum[:]...), nil
}

// FromBytes reconstructs a Monitor from state previously produced by
// AsBytes. It performs no log I/O and re-verifies nothing: the caller is
// trusting that this state was itself the product of a prior successful
// verification. Any unknown version byte, structural shortfall, trailing
// data, or checksum mismatch is rejected with KindInvalidArgument.
func FromBytes(data []byte, opts ...Option) (*Monitor, error) {
	if len(data) < 32 {
		return nil, errInvalidArgument("state blob too short to contain a checksum")
	}
	body, wantSum := data[:len(data)-32], data[len(data)-32:]
	gotSum := sha256.Sum256(body)
	if string(gotSum[:]) != string(wantSum) {
		return nil, errInvalidArgument("state blob checksum mismatch")
	}

	s := cryptobyte.String(body)
	var version uint8
	if !s.ReadUint8(&version) {
		return nil, errInvalidArgument("state blob too short to contain a version byte")
	}
	if version != stateVersion {
		return nil, errInvalidArgument("state blob has version %d, this package understands version %d", version, stateVersion)
	}

	rest := []byte(s)
	nulIdx := -1
	for i, c := range rest {
		if c == 0 {
			nulIdx = i
			break
		}
	}
	if nulIdx < 0 {
		return nil, errInvalidArgument("state blob is missing the base_url terminator")
	}
	baseURL := string(rest[:nulIdx])
	s = cryptobyte.String(rest[nulIdx+1:])

	var size uint64
	if !s.ReadUint64(&size) {
		return nil, errInvalidArgument("state blob too short to contain a tree size")
	}
	var hash []byte
	if !s.ReadBytes(&hash, 32) {
		return nil, errInvalidArgument("state blob too short to contain a tree hash")
	}
	var pubKeyDER []byte
	if !s.ReadUint32LengthPrefixed((*cryptobyte.String)(&pubKeyDER)) {
		return nil, errInvalidArgument("state blob has a malformed public key field")
	}
	if !s.Empty() {
		return nil, errInvalidArgument("state blob has trailing data")
	}

	m, err := newBase(baseURL, pubKeyDER, opts)
	if err != nil {
		return nil, err
	}
	m.latestSize = size
	copy(m.latestTreeHash[:], hash)
	return m, nil
}

// SaveState serializes the monitor's trust state via AsBytes and stores it
// under key in backend, for later recovery with LoadState.
func (m *Monitor) SaveState(ctx context.Context, backend statestore.Backend, key string) error {
	data, err := m.AsBytes()
	if err != nil {
		return err
	}
	if err := backend.Put(ctx, key, data); err != nil {
		return errFileIO(key, err)
	}
	return nil
}

// LoadState fetches a state blob previously saved with SaveState from
// backend under key and reconstructs a Monitor from it via FromBytes.
func LoadState(ctx context.Context, backend statestore.Backend, key string, opts ...Option) (*Monitor, error) {
	data, err := backend.Get(ctx, key)
	if err != nil {
		return nil, errFileIO(key, err)
	}
	return FromBytes(data, opts...)
}
