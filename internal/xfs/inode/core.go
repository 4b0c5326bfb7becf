package inode

import (
	"github.com/google/uuid"

	"github.com/lvdlvd/xfsro/internal/xfs/codec"
	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

// Magic is "IN", the on-disk inode magic number.
const Magic = 0x494e

// Format is the per-fork on-disk encoding (spec §3).
type Format uint8

const (
	FormatDev Format = iota
	FormatLocal
	FormatExtents
	FormatBtree
	FormatUUID
	FormatRmap
)

func (f Format) String() string {
	switch f {
	case FormatDev:
		return "dev"
	case FormatLocal:
		return "local"
	case FormatExtents:
		return "extents"
	case FormatBtree:
		return "btree"
	case FormatUUID:
		return "uuid"
	case FormatRmap:
		return "rmap"
	default:
		return "unknown"
	}
}

// Timestamp is a decoded XFS on-disk timestamp, either the classic
// 32-bit-seconds/32-bit-nanoseconds encoding or (v3+, XFS_DIFLAG2_BITTIME)
// the epoch-shifted 64-bit-nanosecond "bigtime" encoding.
type Timestamp struct {
	Sec  int64 // seconds since Unix epoch
	Nsec uint32
}

const bigtimeFlag = 1 << 3 // XFS_DIFLAG2_BITTIME

// classicEpoch is Unix epoch minus (1<<31) seconds: bigtime timestamps are
// nanosecond offsets from this shifted epoch, matching dinode_core.rs.
const classicEpoch int64 = -(int64(1) << 31)

// LiteralAreaOffset is the byte offset of the fork literal area within the
// inode record: v3+ (v5 filesystems) reserve a 176-byte core; v1/v2 (plain
// v4) reserve the 96-byte core plus the trailing di_next_unlinked field,
// the only non-core field in the old dinode shape, for 100 bytes.
func LiteralAreaOffset(version int8) int {
	if version >= 3 {
		return 176
	}
	return 100
}

// Core is the decoded fixed portion of an on-disk inode (spec §3, "Inode").
type Core struct {
	Magic      uint16
	Mode       uint16
	Version    int8
	Format     Format
	UID        uint32
	GID        uint32
	Nlink      uint32
	Forkoff    uint8
	AttrFormat Format
	Flags2     uint64
	Gen        uint32
	Ino        uint64
	UUID       uuid.UUID

	Size     int64
	Nblocks  uint64
	Nextents uint32
	Anextents uint16

	Atime, Mtime, Ctime, Crtime Timestamp
}

// DecodeCore decodes the fixed inode core starting at the beginning of buf.
// buf must be at least LiteralAreaOffset(version) bytes for the version
// actually encountered; the caller supplies the whole raw inode record.
func DecodeCore(buf []byte) (*Core, error) {
	const op = "inode.DecodeCore"
	c := codec.NewCursor(buf, op)

	var core Core
	var err error
	if core.Magic, err = c.U16(); err != nil {
		return nil, err
	}
	if core.Magic != Magic {
		return nil, xfserr.New(xfserr.Corrupt, op, "bad inode magic")
	}
	if core.Mode, err = c.U16(); err != nil {
		return nil, err
	}
	if core.Version, err = c.I8(); err != nil {
		return nil, err
	}
	fmtByte, err := c.U8()
	if err != nil {
		return nil, err
	}
	core.Format = Format(fmtByte)
	c.Skip(2) // di_onlink (unused on v5, legacy on v4)
	if core.UID, err = c.U32(); err != nil {
		return nil, err
	}
	if core.GID, err = c.U32(); err != nil {
		return nil, err
	}
	if core.Nlink, err = c.U32(); err != nil {
		return nil, err
	}
	c.Skip(2 + 2 + 6 + 2) // di_projid, di_projid_hi, di_pad[6], di_flushiter

	core.Atime, err = decodeTimestamp(c)
	if err != nil {
		return nil, err
	}
	core.Mtime, err = decodeTimestamp(c)
	if err != nil {
		return nil, err
	}
	core.Ctime, err = decodeTimestamp(c)
	if err != nil {
		return nil, err
	}

	size, err := c.I64()
	if err != nil {
		return nil, err
	}
	core.Size = size
	if core.Nblocks, err = c.U64(); err != nil {
		return nil, err
	}
	c.Skip(4) // di_extsize
	if core.Nextents, err = c.U32(); err != nil {
		return nil, err
	}
	anext, err := c.U16()
	if err != nil {
		return nil, err
	}
	core.Anextents = anext
	if core.Forkoff, err = c.U8(); err != nil {
		return nil, err
	}
	afmt, err := c.U8()
	if err != nil {
		return nil, err
	}
	core.AttrFormat = Format(afmt)
	c.Skip(4 + 2 + 2) // di_dmevmask, di_dmstate, di_flags
	if core.Gen, err = c.U32(); err != nil {
		return nil, err
	}
	c.Skip(4) // di_next_unlinked

	if core.Version >= 3 {
		c.Skip(4)  // di_crc
		c.Skip(8)  // di_changecount
		c.Skip(8)  // di_lsn
		if core.Flags2, err = c.U64(); err != nil {
			return nil, err
		}
		c.Skip(4)  // di_cowextsize
		c.Skip(12) // di_pad2
		core.Crtime, err = decodeTimestamp(c)
		if err != nil {
			return nil, err
		}
		if core.Ino, err = c.U64(); err != nil {
			return nil, err
		}
		hi, lo, err := c.U128()
		if err != nil {
			return nil, err
		}
		core.UUID = u128ToUUID(hi, lo)
	}

	return &core, nil
}

func decodeTimestamp(c *codec.Cursor) (Timestamp, error) {
	sec, err := c.I32()
	if err != nil {
		return Timestamp{}, err
	}
	nsec, err := c.U32()
	if err != nil {
		return Timestamp{}, err
	}
	return Timestamp{Sec: int64(sec), Nsec: nsec}, nil
}

func u128ToUUID(hi, lo uint64) uuid.UUID {
	var b [16]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(hi >> (8 * (7 - i)))
		b[8+i] = byte(lo >> (8 * (7 - i)))
	}
	return uuid.UUID(b)
}

// resolveTimestamp converts a raw on-disk timestamp into (seconds,
// nanoseconds) since the Unix epoch, handling the v3+ "bigtime" epoch shift (dinode_core.rs::timestamp).
func (c *Core) resolveTimestamp(ts Timestamp) (sec int64, nsec uint32) {
	if c.Version >= 3 && c.Flags2&bigtimeFlag != 0 {
		total := uint64(uint32(ts.Sec))<<32 + uint64(ts.Nsec)
		absNanos := int64(total)
		return classicEpoch + absNanos/1_000_000_000, uint32(absNanos % 1_000_000_000)
	}
	return ts.Sec, ts.Nsec
}

// AtimeUnix, MtimeUnix, CtimeUnix, CrtimeUnix return (seconds, nanoseconds)
// since the Unix epoch for each timestamp, applying the bigtime shift where
// applicable.
func (c *Core) AtimeUnix() (int64, uint32)  { return c.resolveTimestamp(c.Atime) }
func (c *Core) MtimeUnix() (int64, uint32)  { return c.resolveTimestamp(c.Mtime) }
func (c *Core) CtimeUnix() (int64, uint32)  { return c.resolveTimestamp(c.Ctime) }
func (c *Core) CrtimeUnix() (int64, uint32) { return c.resolveTimestamp(c.Crtime) }
