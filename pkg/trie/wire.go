package trie

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// BundleVersion is the current CBOR bundle format version.
const BundleVersion uint16 = 1

// Bundle wraps a table for interchange with other build tooling.
type Bundle struct {
	Version     uint16 `cbor:"1,keyasint"`
	Fingerprint []byte `cbor:"2,keyasint"`
	Table       *Table `cbor:"3,keyasint"`
}

// cborEncMode uses canonical encoding so equal tables produce equal bundles.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("trie: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalBundle serializes a table to CBOR bytes.
func MarshalBundle(t *Table) ([]byte, error) {
	sum := Fingerprint(t)
	return cborEncMode.Marshal(&Bundle{
		Version:     BundleVersion,
		Fingerprint: sum[:],
		Table:       t,
	})
}

// UnmarshalBundle deserializes a table from CBOR bytes and checks its
// fingerprint.
func UnmarshalBundle(data []byte) (*Table, error) {
	var b Bundle
	if err := cbor.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("trie: unmarshal bundle: %w", err)
	}
	if b.Version > BundleVersion {
		return nil, fmt.Errorf("trie: bundle version %d is newer than supported version %d", b.Version, BundleVersion)
	}
	if b.Table == nil {
		return nil, fmt.Errorf("trie: bundle has no table")
	}
	sum := Fingerprint(b.Table)
	if string(sum[:]) != string(b.Fingerprint) {
		return nil, ErrChecksum
	}
	if err := b.Table.Validate(); err != nil {
		return nil, err
	}
	return b.Table, nil
}
