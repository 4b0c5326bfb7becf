package attr

import (
	"encoding/binary"
	"sort"
	"testing"

	"github.com/lvdlvd/xfsro/internal/xfs/dahash"
	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

type leafFixtureEntry struct {
	name  string
	value string
	flags uint8
}

// buildV4LeafBlock encodes a minimal v4 xfs_attr_leafblock (no CRC tail)
// with one local entry per fixture, in ascending-hash order as the real
// on-disk format requires.
func buildV4LeafBlock(t *testing.T, forw uint32, fixtures []leafFixtureEntry) []byte {
	t.Helper()
	sort.Slice(fixtures, func(i, j int) bool {
		return dahash.Hashname([]byte(fixtures[i].name)) < dahash.Hashname([]byte(fixtures[j].name))
	})

	const headerSize = 34
	entryTableSize := 8 * len(fixtures)
	nameAreaStart := headerSize + entryTableSize

	var nameArea []byte
	entryOffsets := make([]int, len(fixtures))
	for i, f := range fixtures {
		entryOffsets[i] = nameAreaStart + len(nameArea)
		rec := []byte{0, 0, byte(len(f.name))}
		binary.BigEndian.PutUint16(rec[:2], uint16(len(f.value)))
		rec = append(rec, []byte(f.name)...)
		rec = append(rec, []byte(f.value)...)
		nameArea = append(nameArea, rec...)
	}

	buf := make([]byte, nameAreaStart+len(nameArea))
	binary.BigEndian.PutUint32(buf[0:], forw)
	binary.BigEndian.PutUint16(buf[8:], attrLeafMagicV4)
	binary.BigEndian.PutUint16(buf[12:], uint16(len(fixtures)))

	off := headerSize
	for i, f := range fixtures {
		binary.BigEndian.PutUint32(buf[off:], dahash.Hashname([]byte(f.name)))
		binary.BigEndian.PutUint16(buf[off+4:], uint16(entryOffsets[i]))
		buf[off+6] = f.flags | flagLocal
		off += 8
	}
	copy(buf[nameAreaStart:], nameArea)
	return buf
}

func TestDecodeAttrLeafBlockLocalEntries(t *testing.T) {
	fixtures := []leafFixtureEntry{
		{name: "checksum", value: "abc123"},
		{name: "opaque", value: "y", flags: flagRoot},
	}
	buf := buildV4LeafBlock(t, 0, fixtures)

	lb, err := decodeAttrLeafBlock(buf, false)
	if err != nil {
		t.Fatalf("decodeAttrLeafBlock: %v", err)
	}
	if len(lb.entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(lb.entries))
	}
	for i, e := range lb.entries {
		if i > 0 && e.Hashval < lb.entries[i-1].Hashval {
			t.Fatal("entries must be hash-sorted")
		}
	}
}

func TestLeafStoreListAndGetLocal(t *testing.T) {
	fixtures := []leafFixtureEntry{
		{name: "checksum", value: "abc123"},
		{name: "opaque", value: "y", flags: flagRoot},
	}
	buf := buildV4LeafBlock(t, 0, fixtures)
	lb, err := decodeAttrLeafBlock(buf, false)
	if err != nil {
		t.Fatalf("decodeAttrLeafBlock: %v", err)
	}

	ls := &leafStore{directLeaf: lb, blocks: map[uint64]*leafBlock{0: lb}}

	names, err := ls.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	sort.Strings(names)
	want := []string{"trusted.opaque", "user.checksum"}
	if len(names) != len(want) || names[0] != want[0] || names[1] != want[1] {
		t.Fatalf("List = %v, want %v", names, want)
	}

	val, err := ls.Get("user.checksum")
	if err != nil || string(val) != "abc123" {
		t.Fatalf("Get(user.checksum) = %q, %v", val, err)
	}
	val, err = ls.Get("trusted.opaque")
	if err != nil || string(val) != "y" {
		t.Fatalf("Get(trusted.opaque) = %q, %v", val, err)
	}
}

func TestLeafStoreGetMissingIsNotFound(t *testing.T) {
	buf := buildV4LeafBlock(t, 0, nil)
	lb, err := decodeAttrLeafBlock(buf, false)
	if err != nil {
		t.Fatalf("decodeAttrLeafBlock: %v", err)
	}
	ls := &leafStore{directLeaf: lb, blocks: map[uint64]*leafBlock{0: lb}}
	_, err = ls.Get("user.nope")
	if k, ok := xfserr.KindOf(err); !ok || k != xfserr.NotFound {
		t.Fatalf("Get(missing) = %v, want NotFound", err)
	}
}

func TestLeafStoreGetRejectsUnknownNamespace(t *testing.T) {
	ls := &leafStore{directLeaf: &leafBlock{}, blocks: map[uint64]*leafBlock{}}
	_, err := ls.Get("nonamespace")
	if k, ok := xfserr.KindOf(err); !ok || k != xfserr.NotFound {
		t.Fatalf("Get(no namespace) = %v, want NotFound", err)
	}
}

func TestSplitNamespace(t *testing.T) {
	cases := []struct {
		in        string
		wantRaw   string
		wantFlags uint8
		wantOK    bool
	}{
		{"user.foo", "foo", 0, true},
		{"trusted.foo", "foo", flagRoot, true},
		{"secure.foo", "foo", flagSecure, true},
		{"garbage", "", 0, false},
	}
	for _, c := range cases {
		raw, flags, ok := splitNamespace(c.in)
		if ok != c.wantOK {
			t.Errorf("splitNamespace(%q) ok = %v, want %v", c.in, ok, c.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if string(raw) != c.wantRaw || flags != c.wantFlags {
			t.Errorf("splitNamespace(%q) = %q, %#x, want %q, %#x", c.in, raw, flags, c.wantRaw, c.wantFlags)
		}
	}
}
