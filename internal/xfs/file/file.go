// Package file provides sparse-aware byte-level reads over a regular
// file's data fork, whether EXTENTS or BTREE format, per spec §4.8.
// Grounded on rawhide's fsys.ExtentReaderAt flattening approach, reused
// here through internal/xfs/extent for the EXTENTS case; the BTREE case
// walks bmbt.Root.GetExtent directly since its extent list is never fully
// materialized.
package file

import (
	"io"

	"github.com/lvdlvd/xfsro/internal/xfs/bmbt"
	"github.com/lvdlvd/xfsro/internal/xfs/device"
	"github.com/lvdlvd/xfsro/internal/xfs/extent"
	"github.com/lvdlvd/xfsro/internal/xfs/inode"
	"github.com/lvdlvd/xfsro/internal/xfs/superblock"
	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

// File is a read-only view over a regular file's data fork.
type File struct {
	size     int64
	blocklog uint8
	dev      *device.Device

	// Exactly one of ra (EXTENTS, fully materialized), btree (BTREE,
	// lazily descending), or local (FormatLocal, inline bytes) backs the
	// file.
	ra      *extent.ReaderAt
	btree   *bmbt.Root
	local   []byte
	isLocal bool
}

// Open builds a File over a regular inode's data fork.
func Open(core *inode.Core, fork inode.Fork, sb *superblock.Sb, dev *device.Device) (*File, error) {
	const op = "file.Open"
	f := &File{size: core.Size, blocklog: sb.Blocklog, dev: dev}
	switch fork.Format {
	case inode.FormatLocal:
		f.isLocal = true
		f.local = fork.Local
		return f, nil
	case inode.FormatExtents:
		exts := make([]extent.Extent, 0, len(fork.Bmx.Recs()))
		for _, r := range fork.Bmx.Recs() {
			exts = append(exts, extent.Extent{
				Logical:  int64(r.StartOff) << sb.Blocklog,
				Physical: int64(sb.FsbToOffset(r.StartBlock)),
				Length:   int64(r.BlockCount) << sb.Blocklog,
			})
		}
		f.ra = extent.New(dev, exts, core.Size)
		return f, nil
	case inode.FormatBtree:
		f.btree = fork.Btree
		return f, nil
	default:
		return nil, xfserr.New(xfserr.UnsupportedFeature, op, "unsupported file fork format")
	}
}

// Size returns the file's logical size in bytes.
func (f *File) Size() int64 { return f.size }

// ReadAt implements io.ReaderAt, zero-filling holes and unwritten extents.
func (f *File) ReadAt(p []byte, off int64) (int, error) {
	const op = "file.File.ReadAt"
	if off < 0 {
		return 0, xfserr.New(xfserr.InvalidArgument, op, "negative offset")
	}
	if off >= f.size {
		return 0, io.EOF
	}
	if off+int64(len(p)) > f.size {
		p = p[:f.size-off]
	}

	switch {
	case f.isLocal:
		n := copy(p, f.local[off:])
		if n < len(p) {
			return n, io.EOF
		}
		return n, nil
	case f.ra != nil:
		return f.ra.ReadAt(p, off)
	default:
		return f.readAtBtree(p, off)
	}
}

// readAtBtree serves reads over a BTREE-format fork one extent (or hole) at
// a time, since its full extent list is never materialized.
func (f *File) readAtBtree(p []byte, off int64) (int, error) {
	total := 0
	for len(p) > 0 {
		dblock := uint64(off) >> f.blocklog
		fsblock, runLen, err := f.btree.GetExtent(dblock)
		if err != nil {
			return total, err
		}
		inBlock := off - int64(dblock)<<f.blocklog

		if fsblock == nil {
			n := f.size - off
			if runLen != nil {
				n = int64(*runLen)<<f.blocklog - inBlock
			}
			if n > int64(len(p)) {
				n = int64(len(p))
			}
			for i := int64(0); i < n; i++ {
				p[i] = 0
			}
			total += int(n)
			off += n
			p = p[n:]
			continue
		}

		runBlocks := uint64(1)
		if runLen != nil {
			runBlocks = *runLen
		}
		avail := int64(runBlocks)<<f.blocklog - inBlock
		n := avail
		if n > int64(len(p)) {
			n = int64(len(p))
		}
		absOff := int64(*fsblock)<<f.blocklog + inBlock
		buf, err := f.dev.Pread(absOff, n)
		if err != nil {
			return total, err
		}
		copy(p[:n], buf)
		total += int(n)
		off += n
		p = p[n:]
	}
	return total, nil
}

// Lseek implements SEEK_DATA/SEEK_HOLE over the file's data fork.
func (f *File) Lseek(off int64, whence extent.SeekWhence) (int64, bool) {
	switch {
	case f.isLocal:
		if off >= f.size {
			if whence == extent.SeekHole {
				return off, true
			}
			return 0, false
		}
		if whence == extent.SeekData {
			return off, true
		}
		return f.size, true
	case f.ra != nil:
		return f.ra.Lseek(off, whence)
	default:
		w := bmbt.SeekData
		if whence == extent.SeekHole {
			w = bmbt.SeekHole
		}
		v, ok, err := f.btree.Lseek(uint64(off), w, f.blocklog)
		if err != nil {
			return 0, false
		}
		return int64(v), ok
	}
}
