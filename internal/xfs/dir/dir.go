package dir

import (
	"github.com/lvdlvd/xfsro/internal/xfs/dahash"
	"github.com/lvdlvd/xfsro/internal/xfs/device"
	"github.com/lvdlvd/xfsro/internal/xfs/inode"
	"github.com/lvdlvd/xfsro/internal/xfs/superblock"
	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

// Directory is a read-only view over one of the five on-disk directory
// encodings, dispatched on by Decode.
type Directory interface {
	// Lookup resolves a single child name to its inode number.
	Lookup(name string) (ino uint64, err error)
	// Next returns the directory entry at cursor (0 means "from the
	// beginning") and the cursor value to resume a subsequent readdir from;
	// ok is false once the directory is exhausted.
	Next(cursor int64) (ino uint64, nextCursor int64, ftype uint8, name string, ok bool)
}

// shortFormDir adapts ShortForm (index-free, []byte names) to Directory.
type shortFormDir struct{ sf *ShortForm }

func (d shortFormDir) Lookup(name string) (uint64, error) { return d.sf.Lookup([]byte(name)) }
func (d shortFormDir) Next(cursor int64) (uint64, int64, uint8, string, bool) {
	ino, next, ftype, name, ok := d.sf.Next(cursor)
	return ino, next, ftype, string(name), ok
}

// blockDir adapts Block to Directory; name hashes are computed here so the
// Block type itself stays ignorant of the hash function.
type blockDir struct{ b *Block }

func (d blockDir) Lookup(name string) (uint64, error) {
	nb := []byte(name)
	return d.b.Lookup(nb, dahash.Hashname(nb))
}
func (d blockDir) Next(cursor int64) (uint64, int64, uint8, string, bool) {
	ino, next, ftype, name, ok := d.b.Next(cursor)
	return ino, next, ftype, string(name), ok
}

// longFormDir adapts LongForm to Directory.
type longFormDir struct{ lf *LongForm }

func (d longFormDir) Lookup(name string) (uint64, error) { return d.lf.Lookup([]byte(name)) }
func (d longFormDir) Next(cursor int64) (uint64, int64, uint8, string, bool) {
	ino, next, ftype, name, ok := d.lf.Next(cursor)
	return ino, next, ftype, string(name), ok
}

// Decode builds a Directory reader for the given inode's data fork,
// dispatching on its on-disk format and, for the EXTENTS case, on whether
// the directory's size equals one directory block (Block format) or not
// (Leaf/Node format reached through the long form path), per dir3.rs's
// Directory enum.
func Decode(core *inode.Core, fork inode.Fork, sb *superblock.Sb, dev *device.Device) (Directory, error) {
	const op = "dir.Decode"
	hasFt := sb.HasFtype()

	switch fork.Format {
	case inode.FormatLocal:
		sf, err := DecodeShortForm(fork.Local, core.Ino, hasFt)
		if err != nil {
			return nil, err
		}
		return shortFormDir{sf}, nil

	case inode.FormatExtents:
		if core.Size == int64(sb.DirBlockSize()) {
			fsblock := fork.Bmx.MapDblock(0)
			if fsblock == nil {
				return nil, xfserr.New(xfserr.Corrupt, op, "block-format directory has no data block")
			}
			buf, err := dev.Pread(int64(sb.FsbToOffset(*fsblock)), int64(sb.DirBlockSize()))
			if err != nil {
				return nil, err
			}
			b, err := DecodeBlock(buf, hasFt, sb.IsV5())
			if err != nil {
				return nil, err
			}
			return blockDir{b}, nil
		}
		leafBuf, err := readLeafIndexBlock(bmxFork{fork.Bmx}, sb, dev)
		if err != nil {
			return nil, err
		}
		lf, err := NewLongForm(bmxFork{fork.Bmx}, dev, sb, hasFt, leafBuf)
		if err != nil {
			return nil, err
		}
		return longFormDir{lf}, nil

	case inode.FormatBtree:
		leafBuf, err := readLeafIndexBlock(btreeFork{fork.Btree}, sb, dev)
		if err != nil {
			return nil, err
		}
		lf, err := NewLongForm(btreeFork{fork.Btree}, dev, sb, hasFt, leafBuf)
		if err != nil {
			return nil, err
		}
		return longFormDir{lf}, nil

	default:
		return nil, xfserr.New(xfserr.UnsupportedFeature, op, "unsupported directory fork format")
	}
}

func readLeafIndexBlock(fork dfork, sb *superblock.Sb, dev *device.Device) ([]byte, error) {
	const op = "dir.readLeafIndexBlock"
	fsblock, ok, err := fork.MapDblock(sb.LeafOffset())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, xfserr.New(xfserr.Corrupt, op, "directory has no leaf/node index block")
	}
	return dev.Pread(int64(sb.FsbToOffset(fsblock)), int64(sb.Blocksize))
}
