package dir

import (
	"bytes"

	"github.com/lvdlvd/xfsro/internal/xfs/codec"
	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

// blockTailSize is Dir2BlockTail's on-disk size: count(4) + stale(4).
const blockTailSize = 8

// blockLeafEntrySize is Dir2LeafEntry's on-disk size: hashval(4) + address(4).
const blockLeafEntrySize = 8

// Block is a single-fsblock directory combining a data region, a leaf-entry
// hash index, and a tail in one block (dir3_block.rs::Dir2Block). Grounded
// on Dir2BlockDisk::from, which reads the tail first to locate the leaf
// array, then works backward to find where the data region ends.
type Block struct {
	data    []byte // the data region only, truncated at the leaf array
	hashes  map[uint32]uint32
	hasFt   bool
	hdrSize int
}

// DecodeBlock decodes a Block-format directory's single data fsblock.
func DecodeBlock(buf []byte, hasFtype, isV5 bool) (*Block, error) {
	const op = "dir.DecodeBlock"
	if len(buf) < blockTailSize {
		return nil, xfserr.New(xfserr.Corrupt, op, "block directory buffer too short")
	}
	tailOff := len(buf) - blockTailSize
	tc := codec.NewCursor(buf[tailOff:], op)
	count, err := tc.U32()
	if err != nil {
		return nil, err
	}
	stale, err := tc.U32()
	if err != nil {
		return nil, err
	}
	_ = stale

	leafArrayOff := tailOff - int(count)*blockLeafEntrySize
	if leafArrayOff < 0 {
		return nil, xfserr.New(xfserr.Corrupt, op, "block directory leaf array underflows block")
	}

	hashes := make(map[uint32]uint32, count)
	lc := codec.NewCursor(buf[leafArrayOff:tailOff], op)
	for i := uint32(0); i < count; i++ {
		hashval, err := lc.U32()
		if err != nil {
			return nil, err
		}
		address, err := lc.U32()
		if err != nil {
			return nil, err
		}
		if address != 0 { // XFS_DIR2_NULL_DATAPTR marks a stale/removed entry
			hashes[hashval] = address
		}
	}

	hdrSize := dataHdrSize(isV5)
	if leafArrayOff < hdrSize {
		return nil, xfserr.New(xfserr.Corrupt, op, "block directory data region underflows header")
	}

	return &Block{data: buf[:leafArrayOff], hashes: hashes, hasFt: hasFtype, hdrSize: hdrSize}, nil
}

// Lookup hashes name, finds its leaf-array address, and decodes the entry
// there (dir3_block.rs's default Dir3::lookup via get_addresses/hash map).
func (b *Block) Lookup(name []byte, hash uint32) (uint64, error) {
	const op = "dir.Block.Lookup"
	addr, ok := b.hashes[hash]
	if !ok {
		return 0, xfserr.New(xfserr.NotFound, op, "name not found")
	}
	off := int(addr) * 8
	if off < 0 || off >= len(b.data) {
		return 0, xfserr.New(xfserr.Corrupt, op, "leaf address out of range")
	}
	e, err := DecodeEntry(b.data[off:], b.hasFt)
	if err != nil {
		return 0, err
	}
	if !bytes.Equal(e.Name, name) {
		return 0, xfserr.New(xfserr.NotFound, op, "hash collision resolved to different name")
	}
	return e.Ino, nil
}

// Next scans the data region forward from byte offset cursor (starting at
// the header size), skipping Dir2DataUnused free regions, and returns the
// next live entry.
func (b *Block) Next(cursor int64) (ino uint64, next int64, ftype uint8, name []byte, ok bool) {
	off := int(cursor)
	if off == 0 {
		off = b.hdrSize
	}
	for off < len(b.data) {
		tag, err := PeekTag(b.data[off:])
		if err != nil {
			return 0, cursor, 0, nil, false
		}
		if tag == unusedTag {
			length, err := DecodeUnusedLength(b.data[off:])
			if err != nil || length <= 0 {
				return 0, cursor, 0, nil, false
			}
			off += length
			continue
		}
		e, err := DecodeEntry(b.data[off:], b.hasFt)
		if err != nil {
			return 0, cursor, 0, nil, false
		}
		return e.Ino, int64(off + e.Length), e.Ftype, e.Name, true
	}
	return 0, cursor, 0, nil, false
}
