package fsys

import (
	"github.com/lvdlvd/xfsro/internal/xfs/device"
	"github.com/lvdlvd/xfsro/internal/xfs/superblock"
	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

// crossCheckAGI reads every AG's inode-btree header (the third sector of
// each AG, after the superblock-copy and AGF sectors) and sums their
// agi_count/agi_freecount against the superblock-wide icount/ifree, a
// mount-time sanity check grounded on original_source's agi.rs. A mismatch
// is logged by the caller, not fatal: the superblock's own icount/ifree
// remain authoritative for Statfs.
func crossCheckAGI(dev *device.Device, sb *superblock.Sb) error {
	const op = "fsys.crossCheckAGI"
	var count, freecount uint64
	for agno := uint32(0); agno < sb.Agcount; agno++ {
		off := int64(sb.FsbToOffset(uint64(agno)<<sb.Agblklog)) + int64(sb.Sectsize)*2
		buf, err := dev.Pread(off, int64(sb.Sectsize))
		if err != nil {
			return xfserr.Wrap(xfserr.Io, op, err)
		}
		agi, err := superblock.ParseAgi(buf)
		if err != nil {
			return err
		}
		count += uint64(agi.Count)
		freecount += uint64(agi.Freecount)
	}
	if count != sb.Icount || freecount != sb.Ifree {
		return xfserr.New(xfserr.Corrupt, op, "sum of per-AG inode-btree headers disagrees with superblock icount/ifree")
	}
	return nil
}
