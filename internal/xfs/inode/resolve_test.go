package inode_test

import (
	"testing"

	"github.com/lvdlvd/xfsro/internal/xfs/inode"
	"github.com/lvdlvd/xfsro/internal/xfs/superblock"
	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
	"github.com/lvdlvd/xfsro/internal/xfs/xfstest"
)

func testSb(t *testing.T) *superblock.Sb {
	t.Helper()
	buf := xfstest.BuildSuperblockV4(xfstest.SuperblockV4Options{
		Blocksize: 4096,
		Blocklog:  12,
		Agblocks:  1024,
		Agblklog:  10,
		Agcount:   2,
		Inodesize: 256,
		Inopblog:  4, // 16 inodes/block at 256B inodes, 4096B blocks
	})
	sb, err := superblock.Parse(buf, superblock.VerifyOff)
	if err != nil {
		t.Fatalf("superblock.Parse: %v", err)
	}
	return sb
}

func TestLocateRootIno(t *testing.T) {
	sb := testSb(t)
	// ino 128 = AG 0, AG-block 8, slot 0 at 16 inodes/block: 128>>4=8 -> ag_block=8&1023=8, slot=128&15=0.
	off, size, err := inode.Locate(sb, 128)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	if size != 256 {
		t.Fatalf("size = %d, want 256", size)
	}
	wantOff := uint64(8) << 12 // ag 0, ag_block 8, slot 0, blocklog 12
	if off != wantOff {
		t.Fatalf("Locate(128) offset = %d, want %d", off, wantOff)
	}
}

func TestLocateSecondAG(t *testing.T) {
	sb := testSb(t)
	agInoBits := sb.AgInoBits() // agblklog(10) + inopblog(4) = 14
	ino := uint64(1)<<agInoBits | 5 // AG 1, ag-relative 5 -> ag_block 0, slot 5
	off, _, err := inode.Locate(sb, ino)
	if err != nil {
		t.Fatalf("Locate: %v", err)
	}
	wantOff := (uint64(1) * uint64(sb.Agblocks)) << sb.Blocklog + 5*uint64(sb.Inodesize)
	if off != wantOff {
		t.Fatalf("Locate(AG1) offset = %d, want %d", off, wantOff)
	}
}

func TestLocateRejectsOutOfRangeAG(t *testing.T) {
	sb := testSb(t)
	agInoBits := sb.AgInoBits()
	ino := uint64(sb.Agcount) << agInoBits // one AG past the end
	_, _, err := inode.Locate(sb, ino)
	if k, ok := xfserr.KindOf(err); !ok || k != xfserr.NotFound {
		t.Fatalf("Locate(out-of-range AG) = %v, want NotFound", err)
	}
}
