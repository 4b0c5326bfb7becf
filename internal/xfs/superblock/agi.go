package superblock

import (
	"github.com/lvdlvd/xfsro/internal/xfs/codec"
	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

// AgiMagic is "XAGI", the AG inode-btree header's magic number.
const AgiMagic = 0x58414749

// Agi is the per-AG inode-btree header (original_source's agi.rs). It is
// not on the read path for any facade operation; it is parsed at mount only
// to cross-check the superblock's global icount/ifree against the sum of
// per-AG counters, per SPEC_FULL.md's supplemented-features section.
type Agi struct {
	Magicnum   uint32
	Versionnum uint32
	Seqno      uint32
	Length     uint32
	Count      uint32
	Root       uint32
	Level      uint32
	Freecount  uint32
	Newino     uint32
	Dirino     uint32
	Unlinked   [64]uint32
}

// ParseAgi decodes an AG inode-btree header from buf.
func ParseAgi(buf []byte) (*Agi, error) {
	const op = "superblock.ParseAgi"
	c := codec.NewCursor(buf, op)
	var a Agi
	var err error
	if a.Magicnum, err = c.U32(); err != nil {
		return nil, err
	}
	if a.Magicnum != AgiMagic {
		return nil, xfserr.New(xfserr.Corrupt, op, "bad AGI magic")
	}
	fields := []*uint32{&a.Versionnum, &a.Seqno, &a.Length, &a.Count, &a.Root, &a.Level, &a.Freecount, &a.Newino, &a.Dirino}
	for _, f := range fields {
		if *f, err = c.U32(); err != nil {
			return nil, err
		}
	}
	for i := range a.Unlinked {
		if a.Unlinked[i], err = c.U32(); err != nil {
			return nil, err
		}
	}
	return &a, nil
}
