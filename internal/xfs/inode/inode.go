package inode

import (
	"github.com/lvdlvd/xfsro/internal/xfs/bmbt"
	"github.com/lvdlvd/xfsro/internal/xfs/codec"
	"github.com/lvdlvd/xfsro/internal/xfs/device"
	"github.com/lvdlvd/xfsro/internal/xfs/superblock"
	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

// Linux S_IFMT family bits, decoded out of Core.Mode.
const (
	modeFmt   = 0xF000
	modeSock  = 0xC000
	modeLink  = 0xA000
	modeReg   = 0x8000
	modeBlk   = 0x6000
	modeDir   = 0x4000
	modeChr   = 0x2000
	modeFifo  = 0x1000
)

// Kind is the inode's file type, independent of its on-disk fork encoding.
type Kind int

const (
	KindUnknown Kind = iota
	KindRegular
	KindDirectory
	KindSymlink
	KindCharDevice
	KindBlockDevice
	KindFifo
	KindSocket
)

func kindOf(mode uint16) Kind {
	switch mode & modeFmt {
	case modeReg:
		return KindRegular
	case modeDir:
		return KindDirectory
	case modeLink:
		return KindSymlink
	case modeChr:
		return KindCharDevice
	case modeBlk:
		return KindBlockDevice
	case modeFifo:
		return KindFifo
	case modeSock:
		return KindSocket
	default:
		return KindUnknown
	}
}

// Fork is one decoded data or attribute fork. At most one of Local, Bmx, or
// Btree is set, per Format; device, FIFO and socket inodes set none. The decoder never follows the fork to its
// content: directories, files, and attribute stores each build on whichever
// representation lands here (spec §4.5, "the decoder does not follow
// forks").
type Fork struct {
	Format Format
	Local  []byte     // FormatLocal: raw literal-area bytes
	Bmx    *bmbt.Bmx  // FormatExtents: fully materialized extent list
	Btree  *bmbt.Root // FormatBtree: root node, descends lazily via dev
}

// Inode is a fully decoded on-disk inode: its fixed core plus its data and
// (optional) attribute fork.
type Inode struct {
	Core *Core
	Kind Kind
	Data Fork
	Attr *Fork // nil when di_forkoff == 0 (no attribute fork)
}

// Decode decodes a whole raw inode record (exactly sb.Inodesize bytes, as
// returned by Locate) into its core and forks. dev and sb are needed only
// to resolve BTREE-format fork roots, which read further blocks off disk.
func Decode(raw []byte, sb *superblock.Sb, dev *device.Device) (*Inode, error) {
	const op = "inode.Decode"
	core, err := DecodeCore(raw)
	if err != nil {
		return nil, err
	}
	kind := kindOf(core.Mode)
	literalOff := LiteralAreaOffset(core.Version)
	inodeSize := len(raw) // raw is exactly one inode record

	data, err := decodeDataFork(raw, literalOff, inodeSize, core, kind, sb, dev)
	if err != nil {
		return nil, err
	}

	var attr *Fork
	if core.Forkoff != 0 {
		attrOff := literalOff + int(core.Forkoff)*8
		if attrOff > len(raw) {
			return nil, xfserr.New(xfserr.Corrupt, op, "attribute fork offset beyond inode record")
		}
		a, err := decodeAttrFork(raw, attrOff, inodeSize, core, sb, dev)
		if err != nil {
			return nil, err
		}
		attr = a
	}

	return &Inode{Core: core, Kind: kind, Data: data, Attr: attr}, nil
}

func decodeDataFork(raw []byte, literalOff, inodeSize int, core *Core, kind Kind, sb *superblock.Sb, dev *device.Device) (Fork, error) {
	const op = "inode.decodeDataFork"
	switch kind {
	case KindRegular, KindDirectory, KindSymlink:
		switch core.Format {
		case FormatLocal:
			if kind == KindSymlink {
				end := literalOff + int(core.Size)
				if end > len(raw) {
					return Fork{}, xfserr.New(xfserr.Corrupt, op, "local symlink target exceeds inode record")
				}
				return Fork{Format: FormatLocal, Local: append([]byte(nil), raw[literalOff:end]...)}, nil
			}
			// Directory short-form: size is self-describing (dir2_sf.rs); the
			// directory layer parses it, so hand over the whole remaining
			// literal area and let it stop itself.
			return Fork{Format: FormatLocal, Local: append([]byte(nil), raw[literalOff:]...)}, nil

		case FormatExtents:
			c := codec.NewCursor(raw, op)
			c.Seek(literalOff)
			recs, err := bmbt.DecodeRecs(c, int(core.Nextents))
			if err != nil {
				return Fork{}, err
			}
			return Fork{Format: FormatExtents, Bmx: bmbt.NewBmx(recs)}, nil

		case FormatBtree:
			root, err := decodeDataBtreeRoot(raw, literalOff, inodeSize, core, sb, dev)
			if err != nil {
				return Fork{}, err
			}
			return Fork{Format: FormatBtree, Btree: root}, nil

		default:
			return Fork{}, xfserr.New(xfserr.UnsupportedFeature, op, "unsupported data fork format")
		}

	case KindBlockDevice, KindCharDevice, KindFifo, KindSocket:
		return Fork{Format: core.Format}, nil

	default:
		return Fork{}, xfserr.New(xfserr.UnsupportedFeature, op, "unsupported inode type")
	}
}

// dataBtreeKeyAreaSpace reproduces dinode.rs's "space" computation for the
// data fork: half the room between the end of BmdrBlock and either the end
// of the inode (no attribute fork) or the start of the attribute fork,
// rounded up to a multiple of 8 when di_forkoff is set.
func dataBtreeKeyAreaSpace(core *Core, literalOff, inodeSize int) int {
	if core.Forkoff == 0 {
		return (inodeSize - literalOff) / 2
	}
	space := int(core.Forkoff) * 8 / 2
	if rem := space % 8; rem != 0 {
		space += 8 - rem
	}
	return space
}

func decodeDataBtreeRoot(raw []byte, literalOff, inodeSize int, core *Core, sb *superblock.Sb, dev *device.Device) (*bmbt.Root, error) {
	keyAreaSpace := dataBtreeKeyAreaSpace(core, literalOff, inodeSize)
	return bmbt.DecodeRoot(raw[literalOff:], keyAreaSpace, 4, int64(sb.Blocksize), dev, sb.FsbToOffset)
}

func decodeAttrFork(raw []byte, attrOff, inodeSize int, core *Core, sb *superblock.Sb, dev *device.Device) (*Fork, error) {
	const op = "inode.decodeAttrFork"
	switch core.AttrFormat {
	case FormatLocal:
		return &Fork{Format: FormatLocal, Local: append([]byte(nil), raw[attrOff:]...)}, nil

	case FormatExtents:
		c := codec.NewCursor(raw, op)
		c.Seek(attrOff)
		recs, err := bmbt.DecodeRecs(c, int(core.Anextents))
		if err != nil {
			return nil, err
		}
		return &Fork{Format: FormatExtents, Bmx: bmbt.NewBmx(recs)}, nil

	case FormatBtree:
		// attr.rs/dinode.rs place the pointer array at the midpoint between
		// the attribute fork's start and the end of the inode, minus 4.
		ptrOfs := (inodeSize-attrOff)/2 + attrOff - 4
		keyAreaSpace := ptrOfs - attrOff
		root, err := bmbt.DecodeRoot(raw[attrOff:], keyAreaSpace, 0, int64(sb.Blocksize), dev, sb.FsbToOffset)
		if err != nil {
			return nil, err
		}
		return &Fork{Format: FormatBtree, Btree: root}, nil

	default:
		return nil, xfserr.New(xfserr.UnsupportedFeature, op, "unsupported attribute fork format")
	}
}
