// Package dir decodes the five XFS directory data encodings (short-form,
// block, leaf, node, btree) into a single read-only Directory interface,
// per spec §4.7. Grounded on original_source's dir2_sf.rs/dir3_sf.rs,
// dir3.rs, dir3_block.rs, and dir3_lf.rs (the unified long-form
// abstraction this package's Leaf/Node/Btree handling is adapted from).
package dir

import (
	"github.com/lvdlvd/xfsro/internal/xfs/codec"
	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

// File-type byte stored inline in v3+ directory entries.
const (
	FtUnknown = 0
	FtRegFile = 1
	FtDir     = 2
	FtChrdev  = 3
	FtBlkdev  = 4
	FtFifo    = 5
	FtSock    = 6
	FtSymlink = 7
	FtWht     = 8
)

// DataHdrSizeV4 and DataHdrSizeV5 are the on-disk sizes of a directory data
// block's header: magic(4) + 3*Dir2DataFree(4 each) for v4, and the full
// CRC-protected Dir3BlkHdr(48) + 3*Dir2DataFree + pad(4) for v5.
const (
	DataHdrSizeV4 = 4 + 3*4
	DataHdrSizeV5 = 48 + 3*4 + 4
)

func dataHdrSize(isV5 bool) int {
	if isV5 {
		return DataHdrSizeV5
	}
	return DataHdrSizeV4
}

// Entry is one decoded directory data entry.
type Entry struct {
	Ino    uint64
	Name   []byte
	Ftype  uint8 // FtUnknown when the filesystem predates ftype
	HasFt  bool
	Tag    uint16
	Length int // total on-disk size of this entry, for advancing a cursor
}

// entryLength reproduces Dir2DataEntry::get_length: namelen padded up so the
// whole entry (including the trailing 2-byte tag) is 8-byte aligned.
func entryLength(namelen int, hasFtype bool) int {
	if hasFtype {
		return ((namelen + 19) / 8) * 8
	}
	return ((namelen + 18) / 8) * 8
}

// DecodeEntry decodes one directory data entry at the start of buf.
func DecodeEntry(buf []byte, hasFtype bool) (Entry, error) {
	const op = "dir.DecodeEntry"
	c := codec.NewCursor(buf, op)
	ino, err := c.U64()
	if err != nil {
		return Entry{}, err
	}
	namelen, err := c.U8()
	if err != nil {
		return Entry{}, err
	}
	name, err := c.Bytes(int(namelen))
	if err != nil {
		return Entry{}, err
	}
	var ftype uint8
	if hasFtype {
		ftype, err = c.U8()
		if err != nil {
			return Entry{}, err
		}
	}
	length := entryLength(int(namelen), hasFtype)
	if length > len(buf) {
		return Entry{}, xfserr.New(xfserr.Corrupt, op, "directory entry overruns block")
	}
	tagOff := length - 2
	tag := uint16(buf[tagOff])<<8 | uint16(buf[tagOff+1])
	return Entry{Ino: ino, Name: name, Ftype: ftype, HasFt: hasFtype, Tag: tag, Length: length}, nil
}

// unusedTag marks a free-space record in place of a live directory entry.
const unusedTag = 0xffff

// DecodeUnusedLength reads a Dir2DataUnused record's total length (its
// second field): freetag(2, already checked == 0xffff by the caller) +
// length(2) + ... + tag(2) at the end.
func DecodeUnusedLength(buf []byte) (int, error) {
	const op = "dir.DecodeUnusedLength"
	c := codec.NewCursor(buf, op)
	c.Skip(2) // freetag
	length, err := c.U16()
	if err != nil {
		return 0, err
	}
	return int(length), nil
}

// PeekTag reads the first 2 bytes of a directory data record without
// otherwise interpreting them: 0xffff (the freetag) for a free-space record,
// otherwise the high bytes of a live entry's inode number.
func PeekTag(buf []byte) (uint16, error) {
	const op = "dir.PeekTag"
	c := codec.NewCursor(buf, op)
	return c.U16()
}
