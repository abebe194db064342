package trie

import (
	"errors"
	"reflect"
	"testing"

	"github.com/fxamacker/cbor/v2"
)

func TestBundleRoundTrip(t *testing.T) {
	for _, defs := range [][]Definition{nil, sampleDefs} {
		tbl, err := Compile(defs)
		if err != nil {
			t.Fatalf("Compile failed: %v", err)
		}
		data, err := MarshalBundle(tbl)
		if err != nil {
			t.Fatalf("MarshalBundle failed: %v", err)
		}
		got, err := UnmarshalBundle(data)
		if err != nil {
			t.Fatalf("UnmarshalBundle failed: %v", err)
		}
		if !reflect.DeepEqual(got, tbl) {
			t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, tbl)
		}
	}
}

func TestBundleDeterministic(t *testing.T) {
	a, _ := Compile(sampleDefs)
	b, _ := Compile(sampleDefs)
	da, err := MarshalBundle(a)
	if err != nil {
		t.Fatal(err)
	}
	db, err := MarshalBundle(b)
	if err != nil {
		t.Fatal(err)
	}
	if string(da) != string(db) {
		t.Error("bundles of the same input differ")
	}
}

func TestUnmarshalBundleRejectsTampering(t *testing.T) {
	tbl, _ := Compile(sampleDefs)
	sum := Fingerprint(tbl)

	tampered := *tbl
	tampered.MaxShortCodeLen++
	data, err := cbor.Marshal(&Bundle{Version: BundleVersion, Fingerprint: sum[:], Table: &tampered})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := UnmarshalBundle(data); !errors.Is(err, ErrChecksum) {
		t.Errorf("err = %v, want ErrChecksum", err)
	}
}

func TestUnmarshalBundleErrors(t *testing.T) {
	if _, err := UnmarshalBundle([]byte{0xFF, 0x00}); err == nil {
		t.Error("expected error for garbage input")
	}

	data, err := cbor.Marshal(&Bundle{Version: BundleVersion})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := UnmarshalBundle(data); err == nil {
		t.Error("expected error for bundle without table")
	}

	tbl, _ := Compile(nil)
	data, err = cbor.Marshal(&Bundle{Version: BundleVersion + 1, Table: tbl})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := UnmarshalBundle(data); err == nil {
		t.Error("expected error for newer bundle version")
	}
}
