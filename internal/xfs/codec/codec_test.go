package codec

import (
	"encoding/binary"
	"hash/crc32"
	"testing"

	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

func TestCursorSequentialDecode(t *testing.T) {
	buf := []byte{
		0x2A,                   // U8
		0x01, 0x02,             // U16
		0x00, 0x00, 0x01, 0x00, // U32
		0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x05, // U64
		'h', 'e', 'l', 'l', 'o',
	}
	c := NewCursor(buf, "test")

	if v, err := c.U8(); err != nil || v != 0x2A {
		t.Fatalf("U8 = %d, %v", v, err)
	}
	if v, err := c.U16(); err != nil || v != 0x0102 {
		t.Fatalf("U16 = %#x, %v", v, err)
	}
	if v, err := c.U32(); err != nil || v != 0x100 {
		t.Fatalf("U32 = %#x, %v", v, err)
	}
	if v, err := c.U64(); err != nil || v != 5 {
		t.Fatalf("U64 = %d, %v", v, err)
	}
	name, err := c.Bytes(5)
	if err != nil || string(name) != "hello" {
		t.Fatalf("Bytes = %q, %v", name, err)
	}
	if rem := c.Remaining(); len(rem) != 0 {
		t.Fatalf("Remaining = %d bytes, want 0", len(rem))
	}
}

func TestCursorShortBufferError(t *testing.T) {
	c := NewCursor([]byte{0x01, 0x02}, "test")
	if _, err := c.U32(); err == nil {
		t.Fatal("expected error decoding U32 past end of buffer")
	} else if k, ok := xfserr.KindOf(err); !ok || k != xfserr.Corrupt {
		t.Fatalf("KindOf = %v, %v, want Corrupt", k, ok)
	}
}

func TestCursorSeekAndSkip(t *testing.T) {
	buf := []byte{0, 1, 2, 3, 4, 5, 6, 7}
	c := NewCursor(buf, "test")
	c.Skip(3)
	if c.Offset() != 3 {
		t.Fatalf("Offset = %d, want 3", c.Offset())
	}
	c.Seek(6)
	v, err := c.U8()
	if err != nil || v != 6 {
		t.Fatalf("U8 after Seek = %d, %v", v, err)
	}
}

func TestCursorPeekBytesDoesNotAdvance(t *testing.T) {
	c := NewCursor([]byte{0xAA, 0xBB, 0xCC}, "test")
	peeked, err := c.PeekBytes(2)
	if err != nil || len(peeked) != 2 {
		t.Fatalf("PeekBytes = %v, %v", peeked, err)
	}
	if c.Offset() != 0 {
		t.Fatalf("Offset after PeekBytes = %d, want 0", c.Offset())
	}
}

func TestCursorU128(t *testing.T) {
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[:8], 0x0102030405060708)
	binary.BigEndian.PutUint64(buf[8:], 0x1112131415161718)
	c := NewCursor(buf, "test")
	hi, lo, err := c.U128()
	if err != nil || hi != 0x0102030405060708 || lo != 0x1112131415161718 {
		t.Fatalf("U128 = %#x, %#x, %v", hi, lo, err)
	}
}

func TestVerifyCRC32C(t *testing.T) {
	buf := make([]byte, 32)
	for i := range buf {
		buf[i] = byte(i)
	}
	const crcOff = 16
	for i := 0; i < 4; i++ {
		buf[crcOff+i] = 0
	}
	sum := crc32.Checksum(buf, Castagnoli)
	binary.LittleEndian.PutUint32(buf[crcOff:], sum)

	if !VerifyCRC32C(buf, crcOff) {
		t.Fatal("VerifyCRC32C rejected a correctly computed checksum")
	}
	buf[0] ^= 0xFF
	if VerifyCRC32C(buf, crcOff) {
		t.Fatal("VerifyCRC32C accepted a corrupted buffer")
	}
}

func TestVerifyCRC32COutOfRange(t *testing.T) {
	if VerifyCRC32C([]byte{1, 2, 3}, 10) {
		t.Fatal("VerifyCRC32C should reject an out-of-range crcOff")
	}
}
