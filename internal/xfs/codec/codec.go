// Package codec decodes packed big-endian on-disk XFS records into host
// structs. Every on-disk structure has an explicit size/offset table
// documented at its use site rather than derived from Go struct layout;
// this package is the only place that reaches into a raw byte slice.
package codec

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

// Castagnoli is the CRC32C table XFS v5 uses for every self-describing
// metadata checksum (superblock, AG headers, inode core, directory/attr
// blocks, remote attribute headers, symlink blocks).
var Castagnoli = crc32.MakeTable(crc32.Castagnoli)

// Cursor is a sequential big-endian reader over a fixed byte slice, the Go
// analogue of the bincode BigEndian/fixed-int decoder the original Rust
// implementation configures once and reuses for every record (utils.rs
// decode/decode_from).
type Cursor struct {
	buf []byte
	off int
	op  string
}

// NewCursor wraps buf for sequential decoding. op names the caller for
// error messages (e.g. "superblock.Parse").
func NewCursor(buf []byte, op string) *Cursor {
	return &Cursor{buf: buf, op: op}
}

func (c *Cursor) need(n int) error {
	if c.off+n > len(c.buf) {
		return xfserr.New(xfserr.Corrupt, c.op, "short buffer during decode")
	}
	return nil
}

// Offset returns the current read position.
func (c *Cursor) Offset() int { return c.off }

// Seek repositions the cursor to an absolute offset within the buffer.
func (c *Cursor) Seek(off int) { c.off = off }

// Skip advances the cursor by n bytes without interpreting them.
func (c *Cursor) Skip(n int) { c.off += n }

// Remaining returns the unread tail of the buffer.
func (c *Cursor) Remaining() []byte { return c.buf[c.off:] }

// PeekBytes returns the raw bytes at the cursor's current position without
// advancing it.
func (c *Cursor) PeekBytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	return c.buf[c.off : c.off+n], nil
}

// U8 decodes an unsigned byte.
func (c *Cursor) U8() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.buf[c.off]
	c.off++
	return v, nil
}

// I8 decodes a signed byte.
func (c *Cursor) I8() (int8, error) {
	v, err := c.U8()
	return int8(v), err
}

// U16 decodes a big-endian uint16.
func (c *Cursor) U16() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(c.buf[c.off:])
	c.off += 2
	return v, nil
}

// U32 decodes a big-endian uint32.
func (c *Cursor) U32() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(c.buf[c.off:])
	c.off += 4
	return v, nil
}

// I32 decodes a big-endian int32.
func (c *Cursor) I32() (int32, error) {
	v, err := c.U32()
	return int32(v), err
}

// U64 decodes a big-endian uint64.
func (c *Cursor) U64() (uint64, error) {
	if err := c.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(c.buf[c.off:])
	c.off += 8
	return v, nil
}

// I64 decodes a big-endian int64.
func (c *Cursor) I64() (int64, error) {
	v, err := c.U64()
	return int64(v), err
}

// U128 decodes a big-endian 128-bit value into (hi, lo), used for UUIDs.
func (c *Cursor) U128() (hi, lo uint64, err error) {
	if hi, err = c.U64(); err != nil {
		return
	}
	lo, err = c.U64()
	return
}

// Bytes decodes a fixed-length byte slice, copying it out of the buffer.
func (c *Cursor) Bytes(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, c.buf[c.off:c.off+n])
	c.off += n
	return out, nil
}

// VerifyCRC32C recomputes the CRC32C (Castagnoli) checksum of buf the way
// every v5 XFS metadata header does: the little-endian on-disk checksum
// field (__le32) at byte offset crcOff (4 bytes) is temporarily treated as
// zero and the CRC is computed over the whole buffer; crc32.Checksum already
// applies the standard CRC32C final complement, so no extra XOR is needed.
func VerifyCRC32C(buf []byte, crcOff int) bool {
	if crcOff < 0 || crcOff+4 > len(buf) {
		return false
	}
	tmp := make([]byte, len(buf))
	copy(tmp, buf)
	for i := 0; i < 4; i++ {
		tmp[crcOff+i] = 0
	}
	want := binary.LittleEndian.Uint32(buf[crcOff : crcOff+4])
	got := crc32.Checksum(tmp, Castagnoli)
	return got == want
}
