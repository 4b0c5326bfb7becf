package inode

import (
	"encoding/binary"
	"testing"

	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

// buildExtentRec packs one bmbt extent record in the same 128-bit layout
// bmbt.DecodeRec expects: 21-bit blockcount, 52-bit startblock, 54-bit
// startoff, 1-bit unwritten flag, MSB-first.
func buildExtentRec(startoff, startblock, blockcount uint64, unwritten bool) []byte {
	const blockcountBits = 21
	const startblockBits = 52
	lowBits := uint(64 - blockcountBits) // 43 bits of startblock fit below the hi/lo boundary
	lo := blockcount | (startblock&(1<<lowBits-1))<<blockcountBits
	hi := startblock >> lowBits
	hi |= startoff << (blockcountBits + startblockBits - 64)
	if unwritten {
		hi |= 1 << 63
	}
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:], hi)
	binary.BigEndian.PutUint64(buf[8:], lo)
	return buf
}

func TestDecodeInodeRegularFileWithExtents(t *testing.T) {
	// A version-2 regular file core with one data extent and no attribute
	// fork; the data fork's extent records start at LiteralAreaOffset(2).
	literalOff := LiteralAreaOffset(2)
	buf2 := buildCoreV2WithExtents(modeReg|0644, 4096, 1)
	if len(buf2) < literalOff {
		buf2 = append(buf2, make([]byte, literalOff-len(buf2))...)
	}
	buf2 = append(buf2, buildExtentRec(0, 500, 1, false)...)

	core, err := DecodeCore(buf2)
	if err != nil {
		t.Fatalf("DecodeCore: %v", err)
	}
	if core.Nextents != 1 {
		t.Fatalf("Nextents = %d, want 1", core.Nextents)
	}

	in, err := Decode(buf2, nil, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if in.Kind != KindRegular {
		t.Fatalf("Kind = %v, want KindRegular", in.Kind)
	}
	if in.Data.Format != FormatExtents || in.Data.Bmx == nil {
		t.Fatalf("Data fork = %+v", in.Data)
	}
	recs := in.Data.Bmx.Recs()
	if len(recs) != 1 || recs[0].StartBlock != 500 {
		t.Fatalf("Recs = %+v, want one extent at block 500", recs)
	}
	if in.Attr != nil {
		t.Fatal("expected no attribute fork when di_forkoff == 0")
	}
}

// buildCoreV2WithExtents is buildCoreV2 with an explicit nextents count,
// needed because buildCoreV2 always hardcodes nextents=0.
func buildCoreV2WithExtents(mode uint16, size int64, nextents uint32) []byte {
	var b coreBuilder
	b.u16(Magic)
	b.u16(mode)
	b.i8(2)
	b.u8(uint8(FormatExtents))
	b.skip(2)
	b.u32(0)
	b.u32(0)
	b.u32(1)
	b.skip(2 + 2 + 6 + 2)
	b.timestamp(1000, 0)
	b.timestamp(2000, 0)
	b.timestamp(3000, 0)
	b.i64(size)
	b.u64(1)
	b.skip(4)
	b.u32(nextents)
	b.u16(0)
	b.u8(0) // forkoff == 0: no attribute fork
	b.u8(0)
	b.skip(4 + 2 + 2)
	b.u32(1)
	b.skip(4)
	return b.buf.Bytes()
}

func TestDecodeInodeUnsupportedKind(t *testing.T) {
	buf := buildCoreV2(0, FormatLocal, 0, 0, 1, 0) // mode 0 decodes to KindUnknown
	literalOff := LiteralAreaOffset(2)
	if len(buf) < literalOff {
		buf = append(buf, make([]byte, literalOff-len(buf))...)
	}
	_, err := Decode(buf, nil, nil)
	if k, ok := xfserr.KindOf(err); !ok || k != xfserr.UnsupportedFeature {
		t.Fatalf("Decode(unknown kind) = %v, want UnsupportedFeature", err)
	}
}

func TestKindOfAllModes(t *testing.T) {
	tests := []struct {
		mode uint16
		want Kind
	}{
		{modeReg, KindRegular},
		{modeDir, KindDirectory},
		{modeLink, KindSymlink},
		{modeChr, KindCharDevice},
		{modeBlk, KindBlockDevice},
		{modeFifo, KindFifo},
		{modeSock, KindSocket},
		{0, KindUnknown},
	}
	for _, tt := range tests {
		if got := kindOf(tt.mode); got != tt.want {
			t.Errorf("kindOf(%#x) = %v, want %v", tt.mode, got, tt.want)
		}
	}
}
