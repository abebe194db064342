package trie

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/zeebo/blake3"
)

func TestImageRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		defs []Definition
	}{
		{"empty", nil},
		{"root only terminal", []Definition{{ShortCode: "", Text: "x"}}},
		{"sample", sampleDefs},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, err := Compile(tt.defs)
			if err != nil {
				t.Fatalf("Compile failed: %v", err)
			}
			data := MarshalImage(tbl)
			if !bytes.HasPrefix(data, ImageMagic) {
				t.Errorf("image does not start with magic: %q", data[:4])
			}
			got, err := UnmarshalImage(data)
			if err != nil {
				t.Fatalf("UnmarshalImage failed: %v", err)
			}
			if !reflect.DeepEqual(got, tbl) {
				t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, tbl)
			}
		})
	}
}

func TestUnmarshalImageErrors(t *testing.T) {
	tbl, err := Compile(sampleDefs)
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	good := MarshalImage(tbl)

	t.Run("too short", func(t *testing.T) {
		if _, err := UnmarshalImage(good[:10]); err == nil || !strings.Contains(err.Error(), "too short") {
			t.Errorf("err = %v, want too short", err)
		}
	})

	t.Run("bad magic", func(t *testing.T) {
		bad := bytes.Clone(good)
		bad[0] = 'X'
		if _, err := UnmarshalImage(bad); err == nil || !strings.Contains(err.Error(), "magic") {
			t.Errorf("err = %v, want magic error", err)
		}
	})

	t.Run("corrupted body", func(t *testing.T) {
		bad := bytes.Clone(good)
		bad[len(bad)-digestLen-1] ^= 0xFF
		if _, err := UnmarshalImage(bad); !errors.Is(err, ErrChecksum) {
			t.Errorf("err = %v, want ErrChecksum", err)
		}
	})

	t.Run("newer version", func(t *testing.T) {
		body := bytes.Clone(good[:len(good)-digestLen])
		body[4] = byte(ImageVersion + 1)
		if _, err := UnmarshalImage(resign(body)); err == nil || !strings.Contains(err.Error(), "newer") {
			t.Errorf("err = %v, want version error", err)
		}
	})

	t.Run("truncated body", func(t *testing.T) {
		body := bytes.Clone(good[:len(good)-digestLen-3])
		if _, err := UnmarshalImage(resign(body)); err == nil || !strings.Contains(err.Error(), "unexpected end") {
			t.Errorf("err = %v, want unexpected end", err)
		}
	})

	t.Run("trailing bytes", func(t *testing.T) {
		body := append(bytes.Clone(good[:len(good)-digestLen]), 0xAA)
		if _, err := UnmarshalImage(resign(body)); err == nil || !strings.Contains(err.Error(), "trailing") {
			t.Errorf("err = %v, want trailing bytes error", err)
		}
	})
}

// resign appends a fresh digest so decoding gets past the checksum.
func resign(body []byte) []byte {
	sum := blake3.Sum256(body)
	return append(body, sum[:]...)
}

func TestFingerprint(t *testing.T) {
	a, _ := Compile(sampleDefs)
	b, _ := Compile(sampleDefs)
	if Fingerprint(a) != Fingerprint(b) {
		t.Error("equal tables have different fingerprints")
	}

	changed := append([]Definition(nil), sampleDefs...)
	changed[0].PreserveTrigger = !changed[0].PreserveTrigger
	c, _ := Compile(changed)
	if Fingerprint(a) == Fingerprint(c) {
		t.Error("different tables share a fingerprint")
	}
}

func TestUnmarshalRejectsCorruptTables(t *testing.T) {
	// Both encodings carry a valid digest, so only the structure is wrong.
	tbl := cyclicTable()

	if _, err := UnmarshalImage(MarshalImage(tbl)); !errors.Is(err, ErrCorrupt) {
		t.Errorf("UnmarshalImage err = %v, want ErrCorrupt", err)
	}

	data, err := MarshalBundle(tbl)
	if err != nil {
		t.Fatalf("MarshalBundle failed: %v", err)
	}
	if _, err := UnmarshalBundle(data); !errors.Is(err, ErrCorrupt) {
		t.Errorf("UnmarshalBundle err = %v, want ErrCorrupt", err)
	}
}
