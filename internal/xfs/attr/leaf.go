package attr

import (
	"sync"

	"github.com/lvdlvd/xfsro/internal/xfs/codec"
	"github.com/lvdlvd/xfsro/internal/xfs/dahash"
	"github.com/lvdlvd/xfsro/internal/xfs/device"
	"github.com/lvdlvd/xfsro/internal/xfs/superblock"
	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

const (
	attrLeafMagicV4 = 0xfbee
	attrLeafMagicV5 = 0x3bee
)

// leafEntry is one decoded xfs_attr_leaf_entry: a name/value's hash plus the
// byte offset (from the start of the block) of its name_entry record
// (attr.rs::AttrLeafEntry).
type leafEntry struct {
	Hashval uint32
	Nameidx uint16
	Flags   uint8
}

// leafBlock is a fully decoded xfs_attr_leafblock: its hash-sorted entry
// index plus every name/value pair it carries, resolved eagerly at decode
// time so Get can scan the in-memory slice directly rather than
// re-seeking per probe the way attr.rs's AttrLeafblock::get does.
type leafBlock struct {
	forw    uint32
	entries []leafEntry
	names   []sfEntry  // parallel to entries; Value is nil for remote entries
	remote  []remoteRef // parallel to entries; zero value for local entries
}

// remoteRef names the out-of-line block chain holding a remote value.
type remoteRef struct {
	valueblk uint32
	valuelen uint32
}

func decodeAttrLeafBlock(buf []byte, isV5 bool) (*leafBlock, error) {
	const op = "attr.decodeAttrLeafBlock"
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
	c.Skip(2) // usedbytes
	c.Skip(2) // firstused
	c.Skip(1) // holes
	c.Skip(1) // pad1
	c.Skip(3 * 4) // freemap[3]{base,size}
	c.Skip(2)     // pad2

	lb := &leafBlock{forw: forw}
	for i := uint16(0); i < count; i++ {
		hashval, err := c.U32()
		if err != nil {
			return nil, err
		}
		nameidx, err := c.U16()
		if err != nil {
			return nil, err
		}
		flags, err := c.U8()
		if err != nil {
			return nil, err
		}
		c.Skip(1) // pad2
		lb.entries = append(lb.entries, leafEntry{Hashval: hashval, Nameidx: nameidx, Flags: flags})
	}

	lb.names = make([]sfEntry, len(lb.entries))
	lb.remote = make([]remoteRef, len(lb.entries))
	for i, e := range lb.entries {
		if e.Nameidx == 0 || int(e.Nameidx) >= len(buf) {
			return nil, xfserr.New(xfserr.Corrupt, op, "attribute leaf entry name index out of range")
		}
		nc := codec.NewCursor(buf[e.Nameidx:], op)
		if e.Flags&flagLocal != 0 {
			valuelen, err := nc.U16()
			if err != nil {
				return nil, err
			}
			namelen, err := nc.U8()
			if err != nil {
				return nil, err
			}
			name, err := nc.Bytes(int(namelen))
			if err != nil {
				return nil, err
			}
			value, err := nc.Bytes(int(valuelen))
			if err != nil {
				return nil, err
			}
			lb.names[i] = sfEntry{Name: append([]byte(nil), name...), Value: append([]byte(nil), value...), Flags: e.Flags}
		} else {
			valueblk, err := nc.U32()
			if err != nil {
				return nil, err
			}
			valuelen, err := nc.U32()
			if err != nil {
				return nil, err
			}
			namelen, err := nc.U8()
			if err != nil {
				return nil, err
			}
			name, err := nc.Bytes(int(namelen))
			if err != nil {
				return nil, err
			}
			lb.names[i] = sfEntry{Name: append([]byte(nil), name...), Flags: e.Flags}
			lb.remote[i] = remoteRef{valueblk: valueblk, valuelen: valuelen}
		}
	}
	return lb, nil
}

// addressRange returns the [lo,hi) index range of entries whose hashval
// equals hash, exploiting that entries are stored hash-sorted (mirrors
// internal/xfs/dir's leafBlock.addressRange).
func (lb *leafBlock) addressRange(hash uint32) (int, int) {
	lo := 0
	for lo < len(lb.entries) && lb.entries[lo].Hashval < hash {
		lo++
	}
	hi := lo
	for hi < len(lb.entries) && lb.entries[hi].Hashval == hash {
		hi++
	}
	return lo, hi
}

// leafStore is the attribute Store backing the Leaf/Node/Btree on-disk
// formats. A single dedicated index block at logical block 0 is either a
// direct leaf block, or a node/btree root indexing multiple leaf blocks by
// name hash (attr_leaf.rs / attr_node.rs / attr_bptree.rs).
type leafStore struct {
	fork      dfork
	dev       *device.Device
	sb        *superblock.Sb
	isV5      bool
	blocksize int64

	directLeaf *leafBlock
	hashTree   *dahash.Tree
	hashRoot   *dahash.Intnode

	mu     sync.Mutex
	blocks map[uint64]*leafBlock
}

func newLeafStore(fork dfork, sb *superblock.Sb, dev *device.Device) (*leafStore, error) {
	const op = "attr.newLeafStore"
	ls := &leafStore{
		fork: fork, dev: dev, sb: sb, isV5: sb.IsV5(),
		blocksize: int64(sb.Blocksize),
		blocks:    map[uint64]*leafBlock{},
	}

	buf, err := ls.readBlock(0)
	if err != nil {
		return nil, err
	}
	magic, err := peekDaMagic(buf)
	if err != nil {
		return nil, err
	}
	switch magic {
	case attrLeafMagicV4, attrLeafMagicV5:
		lb, err := decodeAttrLeafBlock(buf, ls.isV5)
		if err != nil {
			return nil, err
		}
		ls.directLeaf = lb
		ls.blocks[0] = lb
	case dahash.NodeMagicV4, dahash.NodeMagicV5:
		root, err := dahash.Decode(buf)
		if err != nil {
			return nil, err
		}
		ls.hashRoot = root
		ls.hashTree = dahash.NewTree(ls.mapBlock, dev, sb)
	default:
		return nil, xfserr.New(xfserr.Corrupt, op, "unrecognized attribute index block magic")
	}
	return ls, nil
}

func peekDaMagic(buf []byte) (uint16, error) {
	const op = "attr.peekDaMagic"
	c := codec.NewCursor(buf, op)
	c.Skip(8) // forw, back
	return c.U16()
}

func (ls *leafStore) mapBlock(dblock uint32) (uint64, error) {
	fb, ok, err := ls.fork.MapDblock(uint64(dblock))
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, xfserr.New(xfserr.Corrupt, "attr.leafStore", "attribute index block is a hole")
	}
	return fb, nil
}

// readBlock reads the raw bytes of fork-logical block dblock (always
// exactly one filesystem block; the attribute fork has no dirblklog-style
// chunking).
func (ls *leafStore) readBlock(dblock uint64) ([]byte, error) {
	const op = "attr.leafStore.readBlock"
	fsblock, ok, err := ls.fork.MapDblock(dblock)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, xfserr.New(xfserr.Corrupt, op, "attribute block is a hole")
	}
	return ls.dev.Pread(int64(ls.sb.FsbToOffset(fsblock)), ls.blocksize)
}

func (ls *leafStore) readLeaf(dblock uint64) (*leafBlock, error) {
	ls.mu.Lock()
	if lb, ok := ls.blocks[dblock]; ok {
		ls.mu.Unlock()
		return lb, nil
	}
	ls.mu.Unlock()

	buf, err := ls.readBlock(dblock)
	if err != nil {
		return nil, err
	}
	lb, err := decodeAttrLeafBlock(buf, ls.isV5)
	if err != nil {
		return nil, err
	}

	ls.mu.Lock()
	ls.blocks[dblock] = lb
	ls.mu.Unlock()
	return lb, nil
}

// allLeaves returns every leaf block the fork carries, in the order
// reachable by following forw pointers from the first (lowest-hash) leaf.
func (ls *leafStore) allLeaves() ([]*leafBlock, error) {
	if ls.directLeaf != nil {
		return []*leafBlock{ls.directLeaf}, nil
	}
	first, err := dahash.FirstBlock(ls.hashRoot, ls.hashTree)
	if err != nil {
		return nil, err
	}
	var out []*leafBlock
	dblock := uint64(first)
	seen := map[uint64]bool{}
	for !seen[dblock] {
		seen[dblock] = true
		lb, err := ls.readLeaf(dblock)
		if err != nil {
			return nil, err
		}
		out = append(out, lb)
		if lb.forw == 0 {
			break
		}
		dblock = uint64(lb.forw)
	}
	return out, nil
}

// List implements Store.
func (ls *leafStore) List() ([]string, error) {
	leaves, err := ls.allLeaves()
	if err != nil {
		return nil, err
	}
	var out []string
	for _, lb := range leaves {
		for _, n := range lb.names {
			out = append(out, Namespace(n.Flags)+string(n.Name))
		}
	}
	return out, nil
}

// Get implements Store.
func (ls *leafStore) Get(name string) ([]byte, error) {
	const op = "attr.leafStore.Get"
	rawName, flags, ok := splitNamespace(name)
	if !ok {
		return nil, xfserr.New(xfserr.NotFound, op, "unknown attribute namespace")
	}
	hash := dahash.Hashname(rawName)

	lb := ls.directLeaf
	if lb == nil {
		leafDblock, err := dahash.Lookup(ls.hashRoot, ls.hashTree, hash)
		if err != nil {
			return nil, err
		}
		lb, err = ls.readLeaf(uint64(leafDblock))
		if err != nil {
			return nil, err
		}
	}

	for {
		lo, hi := lb.addressRange(hash)
		for i := lo; i < hi; i++ {
			n := lb.names[i]
			if n.Flags&(flagRoot|flagSecure) != flags&(flagRoot|flagSecure) {
				continue
			}
			if string(n.Name) != string(rawName) {
				continue
			}
			if lb.entries[i].Flags&flagLocal != 0 {
				return n.Value, nil
			}
			return ls.readRemoteValue(lb.remote[i])
		}
		if hi < len(lb.entries) || lb.forw == 0 {
			break
		}
		next, err := ls.readLeaf(uint64(lb.forw))
		if err != nil {
			return nil, err
		}
		lb = next
	}
	return nil, xfserr.New(xfserr.NotFound, op, "attribute not found")
}

// splitNamespace strips a namespace prefix off a public attribute name,
// returning the raw on-disk name bytes and the flag bits that prefix
// encodes.
func splitNamespace(name string) (raw []byte, flags uint8, ok bool) {
	switch {
	case len(name) > len("user.") && name[:len("user.")] == "user.":
		return []byte(name[len("user."):]), 0, true
	case len(name) > len("trusted.") && name[:len("trusted.")] == "trusted.":
		return []byte(name[len("trusted."):]), flagRoot, true
	case len(name) > len("secure.") && name[:len("secure.")] == "secure.":
		return []byte(name[len("secure."):]), flagSecure, true
	default:
		return nil, 0, false
	}
}

// remoteHdrSize is the size of the xfs_attr3_rmt_hdr (v5) prefixing each
// block of an out-of-line value; v4 images carry no such header.
const remoteHdrSize = 56

// readRemoteValue follows a remote value's contiguous block chain,
// skipping the per-block verification header on v5 images (attr.rs's
// AttrRmtHdr / Attr::get).
func (ls *leafStore) readRemoteValue(ref remoteRef) ([]byte, error) {
	hdrSize := int64(0)
	if ls.isV5 {
		hdrSize = remoteHdrSize
	}
	perBlock := ls.blocksize - hdrSize

	out := make([]byte, 0, ref.valuelen)
	remaining := int64(ref.valuelen)
	blk := uint64(ref.valueblk)
	for remaining > 0 {
		buf, err := ls.readBlock(blk)
		if err != nil {
			return nil, err
		}
		n := perBlock
		if n > remaining {
			n = remaining
		}
		out = append(out, buf[hdrSize:hdrSize+n]...)
		remaining -= n
		blk++
	}
	return out, nil
}
