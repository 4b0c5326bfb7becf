package dahash

import (
	"encoding/binary"
	"testing"

	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

func TestHashnameKnownValues(t *testing.T) {
	cases := []struct {
		name string
		want uint32
	}{
		{"", 0},
		{"a", 97},
		{"ab", 12514},
		{"abc", 1601891},
		{"abcd", 205042148},
		{"hello", 2361079401},
		{"testfile.txt", 2703098475},
	}
	for _, c := range cases {
		if got := Hashname([]byte(c.name)); got != c.want {
			t.Errorf("Hashname(%q) = %d, want %d", c.name, got, c.want)
		}
	}
}

func TestHashnameDiffersByOrder(t *testing.T) {
	if Hashname([]byte("ab")) == Hashname([]byte("ba")) {
		t.Fatal("Hashname should not be order-independent")
	}
}

// buildV4Node encodes a minimal v4-format da intermediate node with the
// given level and entries, matching the layout Decode expects.
func buildV4Node(level uint16, entries []Entry) []byte {
	buf := make([]byte, 16+8*len(entries))
	binary.BigEndian.PutUint16(buf[8:], NodeMagicV4)
	binary.BigEndian.PutUint16(buf[12:], uint16(len(entries)))
	binary.BigEndian.PutUint16(buf[14:], level)
	off := 16
	for _, e := range entries {
		binary.BigEndian.PutUint32(buf[off:], e.Hashval)
		binary.BigEndian.PutUint32(buf[off+4:], e.Before)
		off += 8
	}
	return buf
}

func TestDecodeV4Node(t *testing.T) {
	entries := []Entry{{Hashval: 10, Before: 100}, {Hashval: 20, Before: 200}}
	buf := buildV4Node(1, entries)
	node, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if node.Level != 1 || len(node.Entries) != 2 {
		t.Fatalf("Decode = %+v", node)
	}
	if node.Entries[0] != entries[0] || node.Entries[1] != entries[1] {
		t.Fatalf("Decode entries = %+v, want %+v", node.Entries, entries)
	}
}

func TestDecodeRejectsBadMagic(t *testing.T) {
	buf := buildV4Node(1, nil)
	binary.BigEndian.PutUint16(buf[8:], 0xDEAD)
	if _, err := Decode(buf); err == nil {
		t.Fatal("expected an error for a bad magic")
	} else if k, _ := xfserr.KindOf(err); k != xfserr.Corrupt {
		t.Fatalf("KindOf = %v, want Corrupt", k)
	}
}

func TestLookupLeafLevel(t *testing.T) {
	root := &Intnode{Level: 1, Entries: []Entry{
		{Hashval: 0, Before: 10},
		{Hashval: 100, Before: 20},
		{Hashval: 200, Before: 30},
	}}
	tree := NewTreeForTest()

	cases := []struct {
		hash uint32
		want uint32
	}{
		{0, 10},
		{50, 20},
		{100, 20},
		{150, 30},
		{200, 30},
	}
	for _, c := range cases {
		got, err := Lookup(root, tree, c.hash)
		if err != nil {
			t.Fatalf("Lookup(%d): %v", c.hash, err)
		}
		if got != c.want {
			t.Errorf("Lookup(%d) = %d, want %d", c.hash, got, c.want)
		}
	}
}

func TestLookupBeyondRangeIsNotFound(t *testing.T) {
	root := &Intnode{Level: 1, Entries: []Entry{{Hashval: 0, Before: 10}}}
	_, err := Lookup(root, NewTreeForTest(), ^uint32(0))
	if k, ok := xfserr.KindOf(err); !ok || k != xfserr.NotFound {
		t.Fatalf("Lookup past range = %v, want NotFound", err)
	}
}

func TestFirstBlockReturnsLeftmostLeaf(t *testing.T) {
	root := &Intnode{Level: 1, Entries: []Entry{
		{Hashval: 5, Before: 42},
		{Hashval: 500, Before: 43},
	}}
	got, err := FirstBlock(root, NewTreeForTest())
	if err != nil || got != 42 {
		t.Fatalf("FirstBlock = %d, %v, want 42", got, err)
	}
}

// NewTreeForTest builds a Tree whose readChild is never exercised by tests
// that only probe level-1 (leaf) roots.
func NewTreeForTest() *Tree {
	return &Tree{mapDblock: func(uint32) (uint64, error) { return 0, nil }, children: map[uint32]*Intnode{}}
}
