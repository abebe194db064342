package trie

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/zeebo/blake3"
)

// ImageVersion is the current binary image format version.
// Increment when making incompatible changes to the format.
const ImageVersion uint16 = 1

// Magic bytes for table images: "TXTR" (Text eXpander TRie)
var ImageMagic = []byte{'T', 'X', 'T', 'R'}

// ErrChecksum reports an image or bundle whose digest does not match its
// contents.
var ErrChecksum = errors.New("trie: checksum mismatch")

const (
	nodeFlagTerminal byte = 1 << 0
	nodeFlagPreserve byte = 1 << 1

	digestLen = 32
)

// Fingerprint returns the BLAKE3-256 digest of the table's image body. Equal
// tables always have equal fingerprints.
func Fingerprint(t *Table) [32]byte {
	return blake3.Sum256(t.imageBody())
}

// MarshalImage encodes the table as a little-endian binary image.
// Format:
//
//	[magic:4] [version:2] [max_short_len:2]
//	[node_count:2]   nodes:   [hash_table:2] [text_offset:2] [len_chars:2] [flags:1]
//	[table_count:2]  tables:  [buckets_start:2] [num_buckets:2]
//	[bucket_count:2] buckets: [head:2]
//	[entry_count:2]  entries: [key:4] [child:2] [next:2]
//	[pool_len:2]     pool
//	[blake3:32] (digest of everything before it)
func MarshalImage(t *Table) []byte {
	body := t.imageBody()
	sum := blake3.Sum256(body)
	return append(body, sum[:]...)
}

func (t *Table) imageBody() []byte {
	estimatedSize := 18 + len(t.Nodes)*7 + len(t.HashTables)*4 + len(t.Buckets)*2 +
		len(t.Entries)*8 + len(t.StringPool) + digestLen
	buf := make([]byte, 0, estimatedSize)

	buf = append(buf, ImageMagic...)
	buf = binary.LittleEndian.AppendUint16(buf, ImageVersion)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(t.MaxShortCodeLen))

	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(t.Nodes)))
	for _, n := range t.Nodes {
		buf = binary.LittleEndian.AppendUint16(buf, n.HashTableIndex)
		buf = binary.LittleEndian.AppendUint16(buf, n.ExpandedTextOffset)
		buf = binary.LittleEndian.AppendUint16(buf, n.ExpandedLenChars)
		var flags byte
		if n.IsTerminal {
			flags |= nodeFlagTerminal
		}
		if n.PreserveTrigger {
			flags |= nodeFlagPreserve
		}
		buf = append(buf, flags)
	}

	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(t.HashTables)))
	for _, ht := range t.HashTables {
		buf = binary.LittleEndian.AppendUint16(buf, ht.BucketsStartIndex)
		buf = binary.LittleEndian.AppendUint16(buf, ht.NumBuckets)
	}

	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(t.Buckets)))
	for _, b := range t.Buckets {
		buf = binary.LittleEndian.AppendUint16(buf, b)
	}

	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(t.Entries)))
	for _, e := range t.Entries {
		buf = binary.LittleEndian.AppendUint32(buf, uint32(e.Key))
		buf = binary.LittleEndian.AppendUint16(buf, e.ChildNodeIndex)
		buf = binary.LittleEndian.AppendUint16(buf, e.NextEntryIndex)
	}

	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(t.StringPool)))
	buf = append(buf, t.StringPool...)

	return buf
}

// imageReader tracks the read position while decoding an image.
type imageReader struct {
	data []byte
	pos  int
}

func (r *imageReader) need(n int, what string) error {
	if r.pos+n > len(r.data) {
		return fmt.Errorf("unexpected end of image reading %s at pos %d", what, r.pos)
	}
	return nil
}

func (r *imageReader) u16(what string) (uint16, error) {
	if err := r.need(2, what); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *imageReader) u32(what string) (uint32, error) {
	if err := r.need(4, what); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

func (r *imageReader) u8(what string) (byte, error) {
	if err := r.need(1, what); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

// UnmarshalImage decodes an image written by MarshalImage.
func UnmarshalImage(data []byte) (*Table, error) {
	if len(data) < 8+digestLen {
		return nil, fmt.Errorf("image too short: need at least %d bytes, got %d", 8+digestLen, len(data))
	}
	if !bytes.Equal(data[0:4], ImageMagic) {
		return nil, fmt.Errorf("invalid image magic: expected %q, got %q", ImageMagic, data[0:4])
	}

	body := data[:len(data)-digestLen]
	sum := blake3.Sum256(body)
	if !bytes.Equal(sum[:], data[len(body):]) {
		return nil, ErrChecksum
	}

	r := &imageReader{data: body, pos: 4}
	version, err := r.u16("version")
	if err != nil {
		return nil, err
	}
	if version > ImageVersion {
		return nil, fmt.Errorf("image version %d is newer than supported version %d", version, ImageVersion)
	}

	t := &Table{}
	maxLen, err := r.u16("max short code length")
	if err != nil {
		return nil, err
	}
	t.MaxShortCodeLen = int(maxLen)

	count, err := r.u16("node count")
	if err != nil {
		return nil, err
	}
	if count > 0 {
		t.Nodes = make([]Node, count)
	}
	for i := range t.Nodes {
		n := &t.Nodes[i]
		if n.HashTableIndex, err = r.u16("node hash table"); err != nil {
			return nil, err
		}
		if n.ExpandedTextOffset, err = r.u16("node text offset"); err != nil {
			return nil, err
		}
		if n.ExpandedLenChars, err = r.u16("node length"); err != nil {
			return nil, err
		}
		flags, err := r.u8("node flags")
		if err != nil {
			return nil, err
		}
		n.IsTerminal = flags&nodeFlagTerminal != 0
		n.PreserveTrigger = flags&nodeFlagPreserve != 0
	}

	if count, err = r.u16("hash table count"); err != nil {
		return nil, err
	}
	if count > 0 {
		t.HashTables = make([]HashTable, count)
	}
	for i := range t.HashTables {
		ht := &t.HashTables[i]
		if ht.BucketsStartIndex, err = r.u16("buckets start"); err != nil {
			return nil, err
		}
		if ht.NumBuckets, err = r.u16("bucket count"); err != nil {
			return nil, err
		}
	}

	if count, err = r.u16("bucket array length"); err != nil {
		return nil, err
	}
	if count > 0 {
		t.Buckets = make([]uint16, count)
	}
	for i := range t.Buckets {
		if t.Buckets[i], err = r.u16("bucket head"); err != nil {
			return nil, err
		}
	}

	if count, err = r.u16("entry count"); err != nil {
		return nil, err
	}
	if count > 0 {
		t.Entries = make([]HashEntry, count)
	}
	for i := range t.Entries {
		e := &t.Entries[i]
		key, err := r.u32("entry key")
		if err != nil {
			return nil, err
		}
		e.Key = rune(key)
		if e.ChildNodeIndex, err = r.u16("entry child"); err != nil {
			return nil, err
		}
		if e.NextEntryIndex, err = r.u16("entry next"); err != nil {
			return nil, err
		}
	}

	poolLen, err := r.u16("pool length")
	if err != nil {
		return nil, err
	}
	if err := r.need(int(poolLen), "string pool"); err != nil {
		return nil, err
	}
	if poolLen > 0 {
		t.StringPool = make([]byte, poolLen)
		copy(t.StringPool, body[r.pos:])
		r.pos += int(poolLen)
	}

	if r.pos != len(body) {
		return nil, fmt.Errorf("trailing %d bytes after string pool", len(body)-r.pos)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
