// Package dahash implements the directory/attribute name hash function and
// the shared intermediate-node (Da3Intnode) lookup walked by both the
// directory and attribute node/btree encodings (spec §4.7, §4.9). Grounded
// on original_source's da_btree.rs.
package dahash

import (
	"sync"

	"github.com/lvdlvd/xfsro/internal/xfs/codec"
	"github.com/lvdlvd/xfsro/internal/xfs/device"
	"github.com/lvdlvd/xfsro/internal/xfs/superblock"
	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

// Hashname computes the XFS directory/attribute name hash: 4-byte chunks
// folded with a rotate-left-7*4 accumulator, with special-cased 1-3 byte
// tails (da_btree.rs::hashname).
func Hashname(name []byte) uint32 {
	var hash uint32
	n := len(name)
	i := 0
	for n >= 4 {
		hash = uint32(name[i])<<21 ^
			uint32(name[i+1])<<14 ^
			uint32(name[i+2])<<7 ^
			uint32(name[i+3]) ^
			rol32(hash, 28)
		n -= 4
		i += 4
	}
	switch n {
	case 3:
		return uint32(name[i])<<14 ^ uint32(name[i+1])<<7 ^ uint32(name[i+2]) ^ rol32(hash, 21)
	case 2:
		return uint32(name[i])<<7 ^ uint32(name[i+1]) ^ rol32(hash, 14)
	case 1:
		return uint32(name[i]) ^ rol32(hash, 7)
	default:
		return hash
	}
}

func rol32(x uint32, y uint) uint32 {
	return (x << y) | (x >> (32 - y))
}

// NodeMagic is "3" (XFS_DA3_NODE_MAGIC), the CRC-enabled intermediate node
// magic. v4 images use a different (2-byte) magic without the CRC header;
// both are accepted and dispatched on the magic value, mirroring the teacher's
// tolerant detect-by-probing style.
const (
	NodeMagicV5 = 0x3ebe
	NodeMagicV4 = 0xfebe
)

// blkinfoSize is the on-disk size of XfsDa3Blkinfo: forw(4)+back(4)+magic(2)+
// pad(2)+crc(4)+blkno(8)+lsn(8)+uuid(16)+owner(8).
const blkinfoSize = 56

// Entry is one (hash, child-block) pair in an intermediate node.
type Entry struct {
	Hashval uint32
	Before  uint32
}

// Intnode is one decoded directory/attribute intermediate (or leaf-adjacent
// node-level) block: a sorted array of (hash, child block) entries.
type Intnode struct {
	Level   uint16
	Entries []Entry
}

// Decode decodes one intermediate node block.
func Decode(buf []byte) (*Intnode, error) {
	const op = "dahash.Decode"
	c := codec.NewCursor(buf, op)
	c.Skip(4) // forw
	c.Skip(4) // back
	magic, err := c.U16()
	if err != nil {
		return nil, err
	}
	if magic != NodeMagicV5 && magic != NodeMagicV4 {
		return nil, xfserr.New(xfserr.Corrupt, op, "bad da intermediate node magic")
	}
	if magic == NodeMagicV5 {
		c.Seek(blkinfoSize)
	} else {
		c.Seek(8 + 2 + 2) // v4: forw+back+magic+pad, no crc/uuid/owner tail
	}
	count, err := c.U16()
	if err != nil {
		return nil, err
	}
	level, err := c.U16()
	if err != nil {
		return nil, err
	}
	if magic == NodeMagicV5 {
		c.Skip(4) // pad32 (v5 only)
	}

	entries := make([]Entry, 0, count)
	for i := uint16(0); i < count; i++ {
		hv, err := c.U32()
		if err != nil {
			return nil, err
		}
		before, err := c.U32()
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Hashval: hv, Before: before})
	}
	return &Intnode{Level: level, Entries: entries}, nil
}

// MapDblock resolves a directory/attribute-fork logical block to its
// backing filesystem block, shared by node and btree callers.
type MapDblock func(dblock uint32) (uint64, error)

// Tree wraps a decoded root Intnode with a block-fetching callback and a
// per-child cache, mirroring da_btree.rs's Da3Intnode::read_child caching.
// Intermediate node blocks (unlike directory data blocks) are always
// exactly one filesystem block regardless of dirblklog, so callers pass
// the plain filesystem block size, shared identically by directory and
// attribute node/btree indexes.
type Tree struct {
	mapDblock MapDblock
	dev       *device.Device
	sb        *superblock.Sb
	blockSize int64

	mu       sync.Mutex
	children map[uint32]*Intnode
}

// NewTree builds a Tree, reading further node blocks through dev/sb as
// needed and resolving logical-to-physical blocks via mapDblock.
func NewTree(mapDblock MapDblock, dev *device.Device, sb *superblock.Sb) *Tree {
	return &Tree{mapDblock: mapDblock, dev: dev, sb: sb, blockSize: int64(sb.Blocksize), children: map[uint32]*Intnode{}}
}

func (t *Tree) readChild(dblock uint32) (*Intnode, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n, ok := t.children[dblock]; ok {
		return n, nil
	}
	fsblock, err := t.mapDblock(dblock)
	if err != nil {
		return nil, err
	}
	off := t.sb.FsbToOffset(fsblock)
	buf, err := t.dev.Pread(int64(off), t.blockSize)
	if err != nil {
		return nil, err
	}
	n, err := Decode(buf)
	if err != nil {
		return nil, err
	}
	t.children[dblock] = n
	return n, nil
}

// Lookup descends from root to the leaf directory/attribute block whose
// hash range covers hash, returning ENOENT (xfserr.NotFound) if hash falls
// past every entry (da_btree.rs::XfsDa3Intnode::lookup).
func Lookup(root *Intnode, t *Tree, hash uint32) (uint32, error) {
	const op = "dahash.Lookup"
	node := root
	for {
		idx := partitionPoint(node.Entries, hash)
		if idx >= len(node.Entries) {
			return 0, xfserr.New(xfserr.NotFound, op, "hash exceeds intermediate node range")
		}
		before := node.Entries[idx].Before
		if node.Level == 1 {
			return before, nil
		}
		child, err := t.readChild(before)
		if err != nil {
			return 0, err
		}
		node = child
	}
}

// FirstBlock returns the leftmost leaf directory/attribute block reachable
// from root, used to start an unkeyed forward scan (readdir from the
// beginning).
func FirstBlock(root *Intnode, t *Tree) (uint32, error) {
	node := root
	for {
		if len(node.Entries) == 0 {
			return 0, xfserr.New(xfserr.Corrupt, "dahash.FirstBlock", "empty intermediate node")
		}
		before := node.Entries[0].Before
		if node.Level == 1 {
			return before, nil
		}
		child, err := t.readChild(before)
		if err != nil {
			return 0, err
		}
		node = child
	}
}

func partitionPoint(entries []Entry, hash uint32) int {
	lo, hi := 0, len(entries)
	for lo < hi {
		mid := (lo + hi) / 2
		if entries[mid].Hashval < hash {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
