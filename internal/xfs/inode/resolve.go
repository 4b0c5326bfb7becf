// Package inode resolves inode numbers to their on-disk location and
// decodes the fixed-size inode record, per spec §4.4-§4.5. Grounded on
// original_source's dinode.rs::Dinode::from, which performs the identical
// decomposition inline before reading the inode buffer.
package inode

import (
	"github.com/lvdlvd/xfsro/internal/xfs/superblock"
	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

// Locate decomposes ino into its on-disk byte offset within the device.
// ag = ino >> ag_ino_bits; ag_rel = ino & mask; ag_block and slot split
// ag_rel by ino_per_block_log/ag_blk_log (spec §4.4).
func Locate(sb *superblock.Sb, ino uint64) (byteOffset uint64, size uint32, err error) {
	const op = "inode.Locate"
	agInoBits := sb.AgInoBits()
	ag := ino >> agInoBits
	if ag >= uint64(sb.Agcount) {
		return 0, 0, xfserr.New(xfserr.NotFound, op, "AG number out of range")
	}
	agRel := ino & ((uint64(1) << agInoBits) - 1)
	agBlock := (agRel >> sb.Inopblog) & ((uint64(1) << sb.Agblklog) - 1)
	slot := agRel & ((uint64(1) << sb.Inopblog) - 1)

	off := ((ag*uint64(sb.Agblocks) + agBlock) << sb.Blocklog) + slot*uint64(sb.Inodesize)
	return off, uint32(sb.Inodesize), nil
}
