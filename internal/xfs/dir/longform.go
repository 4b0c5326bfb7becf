package dir

import (
	"bytes"
	"sync"

	"github.com/lvdlvd/xfsro/internal/xfs/bmbt"
	"github.com/lvdlvd/xfsro/internal/xfs/codec"
	"github.com/lvdlvd/xfsro/internal/xfs/dahash"
	"github.com/lvdlvd/xfsro/internal/xfs/device"
	"github.com/lvdlvd/xfsro/internal/xfs/superblock"
	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

// dfork abstracts over the two ways a data fork can back a multi-block
// directory: a fully materialized extent list, or a lazily-descending
// on-disk btree (dir3_lf.rs::Dfork).
type dfork interface {
	MapDblock(dblock uint64) (uint64, bool, error)
	Lseek(offset uint64, whence bmbt.Whence, blocklog uint8) (uint64, bool, error)
}

type bmxFork struct{ b *bmbt.Bmx }

func (f bmxFork) MapDblock(dblock uint64) (uint64, bool, error) {
	fb := f.b.MapDblock(dblock)
	if fb == nil {
		return 0, false, nil
	}
	return *fb, true, nil
}

func (f bmxFork) Lseek(offset uint64, whence bmbt.Whence, blocklog uint8) (uint64, bool, error) {
	v, ok := f.b.Lseek(offset, whence, blocklog)
	return v, ok, nil
}

type btreeFork struct{ r *bmbt.Root }

func (f btreeFork) MapDblock(dblock uint64) (uint64, bool, error) {
	fb, _, err := f.r.GetExtent(dblock)
	if err != nil {
		return 0, false, err
	}
	if fb == nil {
		return 0, false, nil
	}
	return *fb, true, nil
}

func (f btreeFork) Lseek(offset uint64, whence bmbt.Whence, blocklog uint8) (uint64, bool, error) {
	return f.r.Lseek(offset, whence, blocklog)
}

// leafBlock is a decoded Dir2LeafNDisk: a sorted (hashval, address) index
// plus a forward sibling pointer used to continue scanning past a hash
// bucket boundary on collision (dir3.rs::Dir2LeafNDisk).
type leafBlock struct {
	forw    uint32
	entries []leafEntryRec
}

type leafEntryRec struct {
	Hashval uint32
	Address uint32
}

func decodeLeafBlock(buf []byte, isV5 bool) (*leafBlock, error) {
	const op = "dir.decodeLeafBlock"
	c := codec.NewCursor(buf, op)
	forw, err := c.U32()
	if err != nil {
		return nil, err
	}
	c.Skip(4) // back
	c.Skip(2) // magic
	if isV5 {
		c.Skip(2)  // pad
		c.Skip(4)  // crc
		c.Skip(8)  // blkno
		c.Skip(8)  // lsn
		c.Skip(16) // uuid
		c.Skip(8)  // owner
	} else {
		c.Skip(2) // pad
	}
	count, err := c.U16()
	if err != nil {
		return nil, err
	}
	stale, err := c.U16()
	if err != nil {
		return nil, err
	}
	_ = stale
	if isV5 {
		c.Skip(4) // pad32
	}
	entries := make([]leafEntryRec, 0, count)
	for i := uint16(0); i < count; i++ {
		hv, err := c.U32()
		if err != nil {
			return nil, err
		}
		addr, err := c.U32()
		if err != nil {
			return nil, err
		}
		entries = append(entries, leafEntryRec{Hashval: hv, Address: addr})
	}
	return &leafBlock{forw: forw, entries: entries}, nil
}

func (l *leafBlock) addressRange(hash uint32) (int, int) {
	lo := 0
	for lo < len(l.entries) && l.entries[lo].Hashval < hash {
		lo++
	}
	hi := lo
	for hi < len(l.entries) && l.entries[hi].Hashval == hash {
		hi++
	}
	return lo, hi
}

// LongForm is the unified Leaf/Node/Btree directory: data blocks addressed
// through dfork, a hash-indexed leaf structure (either a single leaf block,
// or a dahash.Tree of intermediate nodes rooted at a Btree-format
// attribute-style index) locating candidate data blocks
// (dir3_lf.rs::Dir2Lf).
type LongForm struct {
	fork       dfork
	dev        *device.Device
	sb         *superblock.Sb
	hasFt      bool
	isV5       bool
	dirBlkSize int64
	blocklog   uint8
	dirblklog  uint8

	directLeaf *leafBlock // set when the leaf index is a single block (Leaf format)
	hashTree   *dahash.Tree
	hashRoot   *dahash.Intnode // set when the leaf index is node/btree-indexed

	mu     sync.Mutex
	blocks map[uint64][]byte
}

// fsblockOf converts a directory-relative logical block index (in units of
// the directory block size) to the fork's logical filesystem-block index
// (in units of one fsblock), needed because dirblklog can chunk multiple
// fsblocks into one directory block.
func (l *LongForm) fsblockOf(dirBlock uint64) uint64 { return dirBlock << l.dirblklog }

// NewLongForm builds a LongForm directory reader. leafBuf is the raw bytes
// of the dedicated index block at sb.LeafOffset(); its magic decides
// whether the index is a direct leaf block or a node/btree root.
func NewLongForm(fork dfork, dev *device.Device, sb *superblock.Sb, hasFtype bool, leafBuf []byte) (*LongForm, error) {
	const op = "dir.NewLongForm"
	lf := &LongForm{
		fork: fork, dev: dev, sb: sb, hasFt: hasFtype, isV5: sb.IsV5(),
		dirBlkSize: int64(sb.DirBlockSize()), blocklog: sb.Blocklog, dirblklog: sb.Dirblklog,
		blocks: map[uint64][]byte{},
	}

	magic, err := peekDaMagic(leafBuf)
	if err != nil {
		return nil, err
	}
	switch magic {
	case daLeafMagicV4, daLeafMagicV5:
		lb, err := decodeLeafBlock(leafBuf, lf.isV5)
		if err != nil {
			return nil, err
		}
		lf.directLeaf = lb
	case dahash.NodeMagicV4, dahash.NodeMagicV5:
		root, err := dahash.Decode(leafBuf)
		if err != nil {
			return nil, err
		}
		lf.hashRoot = root
		lf.hashTree = dahash.NewTree(lf.mapDirBlockToFsblock, dev, sb)
	default:
		return nil, xfserr.New(xfserr.Corrupt, op, "unrecognized directory index block magic")
	}
	return lf, nil
}

const (
	daLeafMagicV4 = 0xd2f1
	daLeafMagicV5 = 0x3df1
)

func peekDaMagic(buf []byte) (uint16, error) {
	const op = "dir.peekDaMagic"
	c := codec.NewCursor(buf, op)
	c.Skip(8) // forw, back
	return c.U16()
}

// mapDirBlockToFsblock adapts dfork.MapDblock for dahash.Tree: da-btree
// intermediate node "before" pointers are absolute logical fork block
// numbers already, needing no further offset.
func (l *LongForm) mapDirBlockToFsblock(dblock uint32) (uint64, error) {
	fb, ok, err := l.fork.MapDblock(uint64(dblock))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, xfserr.New(xfserr.Corrupt, "dir.LongForm", "directory index block is a hole")
	}
	return fb, nil
}

// readDblock reads and caches directory data block dblock (in
// directory-block units; fsblockOf scales it to fork fsblocks).
func (l *LongForm) readDblock(dblock uint64) ([]byte, error) {
	const op = "dir.LongForm.readDblock"
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.blocks[dblock]; ok {
		return b, nil
	}
	fsblock, ok, err := l.fork.MapDblock(l.fsblockOf(dblock))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, xfserr.New(xfserr.Corrupt, op, "directory data block is a hole")
	}
	off := l.sb.FsbToOffset(fsblock)
	buf, err := l.dev.Pread(int64(off), l.dirBlkSize)
	if err != nil {
		return nil, err
	}
	l.blocks[dblock] = buf
	return buf, nil
}

// getAddresses returns every (address) candidate for hash, first within the
// located leaf block's own range and then, on a run that touches the range
// boundary, forward across sibling leaf blocks via forw (dir3_lf.rs's
// NodeLikeAddressIterator).
func (l *LongForm) getAddresses(hash uint32) ([]uint32, error) {
	lb := l.directLeaf
	if lb == nil {
		leafDblock, err := dahash.Lookup(l.hashRoot, l.hashTree, hash)
		if err != nil {
			return nil, err
		}
		buf, err := l.readIndexBlock(uint64(leafDblock))
		if err != nil {
			return nil, err
		}
		lb, err = decodeLeafBlock(buf, l.isV5)
		if err != nil {
			return nil, err
		}
	}

	var addrs []uint32
	for {
		lo, hi := lb.addressRange(hash)
		for _, e := range lb.entries[lo:hi] {
			addrs = append(addrs, e.Address)
		}
		atEnd := hi > 0 && lb.entries[hi-1].Hashval != hash
		if hi < len(lb.entries) || lb.forw == 0 || atEnd {
			break
		}
		buf, err := l.readIndexBlock(uint64(lb.forw))
		if err != nil {
			return nil, err
		}
		next, err := decodeLeafBlock(buf, l.isV5)
		if err != nil {
			return nil, err
		}
		lb = next
	}
	return addrs, nil
}

// readIndexBlock reads a raw dedicated index block (leaf or node) given its
// absolute logical fork block number. Unlike data blocks, leaf/node/free
// index blocks are always exactly one filesystem block regardless of
// dirblklog, so no directory-block-to-fsblock scaling applies here.
func (l *LongForm) readIndexBlock(logicalBlock uint64) ([]byte, error) {
	fsblock, ok, err := l.fork.MapDblock(logicalBlock)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, xfserr.New(xfserr.Corrupt, "dir.LongForm.readIndexBlock", "index block is a hole")
	}
	off := l.sb.FsbToOffset(fsblock)
	return l.dev.Pread(int64(off), int64(l.sb.Blocksize))
}

// Lookup hashes name, resolves every candidate address, and decodes the
// data entry at the first one whose name matches.
func (l *LongForm) Lookup(name []byte) (uint64, error) {
	const op = "dir.LongForm.Lookup"
	hash := dahash.Hashname(name)
	addrs, err := l.getAddresses(hash)
	if err != nil {
		return 0, err
	}
	for _, addr := range addrs {
		dbBlockNo, byteOff := l.addrDecode(addr)
		buf, err := l.readDblock(dbBlockNo)
		if err != nil {
			return 0, err
		}
		if byteOff >= len(buf) {
			continue
		}
		e, err := DecodeEntry(buf[byteOff:], l.hasFt)
		if err != nil {
			continue
		}
		if bytes.Equal(e.Name, name) {
			return e.Ino, nil
		}
	}
	return 0, xfserr.New(xfserr.NotFound, op, "name not found")
}

// addrDecode splits a Dir2LeafEntry's packed address (a byte offset into
// the flat directory address space, in 8-byte units) into a directory
// block number and an in-block byte offset.
func (l *LongForm) addrDecode(address uint32) (dblock uint64, byteOff int) {
	byteAddress := uint64(address) * 8
	return byteAddress / uint64(l.dirBlkSize), int(byteAddress % uint64(l.dirBlkSize))
}

// Next implements the generic Dir3::next: skip logical holes with
// SEEK_DATA up to the leaf offset, then scan data/unused records across
// consecutive directory blocks.
func (l *LongForm) Next(cursor int64) (ino uint64, next int64, ftype uint8, name []byte, ok bool) {
	off := uint64(cursor)
	leafByteOffset := l.sb.LeafOffset() << l.blocklog
	hdrSize := dataHdrSize(l.isV5)
	for {
		if off >= leafByteOffset {
			return 0, cursor, 0, nil, false
		}
		pos, found, err := l.fork.Lseek(off, bmbt.SeekData, l.blocklog)
		if err != nil || !found || pos >= leafByteOffset {
			return 0, cursor, 0, nil, false
		}
		dblock := pos >> uint(l.blocklog+l.dirblklog)
		buf, err := l.readDblock(dblock)
		if err != nil {
			return 0, cursor, 0, nil, false
		}
		blockByteBase := dblock << uint(l.blocklog+l.dirblklog)
		inBlock := int(pos - blockByteBase)
		if inBlock < hdrSize {
			inBlock = hdrSize
		}
		for inBlock < len(buf) {
			tag, err := PeekTag(buf[inBlock:])
			if err != nil {
				return 0, cursor, 0, nil, false
			}
			if tag == unusedTag {
				length, err := DecodeUnusedLength(buf[inBlock:])
				if err != nil || length <= 0 {
					return 0, cursor, 0, nil, false
				}
				inBlock += length
				continue
			}
			e, err := DecodeEntry(buf[inBlock:], l.hasFt)
			if err != nil {
				return 0, cursor, 0, nil, false
			}
			return e.Ino, int64(blockByteBase) + int64(inBlock) + int64(e.Length), e.Ftype, e.Name, true
		}
		off = blockByteBase + uint64(len(buf))
	}
}
