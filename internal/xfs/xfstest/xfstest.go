// Package xfstest builds small synthetic on-disk XFS byte buffers for unit
// tests elsewhere in the module: a v4 superblock buffer good enough to
// round-trip through superblock.Parse. It provides no device backing; tests
// wrap their own byte slices in a bytes.Reader for device.New.
package xfstest

import "encoding/binary"

// SuperblockV4Options controls the fields BuildSuperblockV4 fills in; zero
// value fields fall back to a small but internally consistent default
// geometry (one AG, 256-byte inodes, 4096-byte blocks).
type SuperblockV4Options struct {
	Blocksize uint32
	Dblocks   uint64
	Agblocks  uint32
	Agcount   uint32
	Sectsize  uint16
	Inodesize uint16
	Inopblock uint16
	Blocklog  uint8
	Agblklog  uint8
	Inopblog  uint8
	Icount    uint64
	Ifree     uint64
	RootIno   uint64
}

// BuildSuperblockV4 encodes a minimal, well-formed v4 XFS superblock. Field
// offsets follow superblock.Parse's decode order exactly; any bytes beyond
// the encoded prefix are left zero, which superblock.Parse tolerates (only
// a minimum buffer length is enforced, not an exact one).
func BuildSuperblockV4(opts SuperblockV4Options) []byte {
	if opts.Blocksize == 0 {
		opts.Blocksize = 4096
	}
	if opts.Agblocks == 0 {
		opts.Agblocks = 1024
	}
	if opts.Agcount == 0 {
		opts.Agcount = 1
	}
	if opts.Dblocks == 0 {
		opts.Dblocks = uint64(opts.Agblocks) * uint64(opts.Agcount)
	}
	if opts.Sectsize == 0 {
		opts.Sectsize = 512
	}
	if opts.Inodesize == 0 {
		opts.Inodesize = 256
	}
	if opts.Inopblock == 0 {
		opts.Inopblock = uint16(opts.Blocksize / uint32(opts.Inodesize))
	}
	if opts.Blocklog == 0 {
		opts.Blocklog = 12 // 4096 = 1<<12
	}
	if opts.Agblklog == 0 {
		opts.Agblklog = 10 // 1024 = 1<<10
	}
	if opts.Inopblog == 0 {
		opts.Inopblog = 4 // 16 = 1<<4 inodes per block at 256B inodes/4096B blocks
	}
	if opts.RootIno == 0 {
		opts.RootIno = 128
	}

	const sizeV4 = 264
	buf := make([]byte, sizeV4)
	be := binary.BigEndian

	be.PutUint32(buf[0:], 0x58465342) // "XFSB"
	be.PutUint32(buf[4:], opts.Blocksize)
	be.PutUint64(buf[8:], opts.Dblocks)
	// rblocks, rextents, uuid, logstart left zero.
	be.PutUint64(buf[56:], opts.RootIno)
	// rbmino, rsumino, rextsize left zero.
	be.PutUint32(buf[84:], opts.Agblocks)
	be.PutUint32(buf[88:], opts.Agcount)
	// rbmblocks, logblocks left zero.
	be.PutUint16(buf[100:], 4) // versionnum: XFS_SB_VERSION_4
	be.PutUint16(buf[102:], opts.Sectsize)
	be.PutUint16(buf[104:], opts.Inodesize)
	be.PutUint16(buf[106:], opts.Inopblock)
	// fname left zero.
	buf[120] = opts.Blocklog
	// sectlog, inodelog left zero (unused by the decoder's own helpers).
	buf[123] = opts.Inopblog
	buf[124] = opts.Agblklog
	// rextslog, inprogress, imax_pct left zero.
	icount := opts.Icount
	if icount == 0 {
		icount = 64
	}
	be.PutUint64(buf[128:], icount)
	be.PutUint64(buf[136:], opts.Ifree)
	// fdblocks, frextents, uquotino, gquotino, qflags, flags, shared_vn,
	// inoalignmt, unit, width, dirblklog, logsectlog, logsectsize,
	// logsunit, features2, bad_features2 left zero.
	return buf
}
