package symlink

import (
	"bytes"
	"testing"

	"github.com/lvdlvd/xfsro/internal/xfs/bmbt"
	"github.com/lvdlvd/xfsro/internal/xfs/device"
	"github.com/lvdlvd/xfsro/internal/xfs/inode"
	"github.com/lvdlvd/xfsro/internal/xfs/superblock"
	"github.com/lvdlvd/xfsro/internal/xfs/xfstest"
)

func testSb(t *testing.T) *superblock.Sb {
	t.Helper()
	buf := xfstest.BuildSuperblockV4(xfstest.SuperblockV4Options{
		Blocksize: 4096,
		Blocklog:  12,
		Agblocks:  1024,
		Agblklog:  10,
		Agcount:   1,
	})
	sb, err := superblock.Parse(buf, superblock.VerifyOff)
	if err != nil {
		t.Fatalf("superblock.Parse: %v", err)
	}
	return sb
}

func TestReadTargetLocal(t *testing.T) {
	sb := testSb(t)
	target := "../etc/passwd"
	core := &inode.Core{Size: int64(len(target))}
	fork := inode.Fork{Format: inode.FormatLocal, Local: []byte(target)}

	got, err := ReadTarget(core, fork, sb, nil)
	if err != nil {
		t.Fatalf("ReadTarget: %v", err)
	}
	if got != target {
		t.Fatalf("ReadTarget = %q, want %q", got, target)
	}
}

func TestReadTargetLocalRejectsTruncatedFork(t *testing.T) {
	sb := testSb(t)
	core := &inode.Core{Size: 100}
	fork := inode.Fork{Format: inode.FormatLocal, Local: []byte("short")}
	if _, err := ReadTarget(core, fork, sb, nil); err == nil {
		t.Fatal("expected an error for a local fork shorter than the declared size")
	}
}

func TestReadTargetRemoteV4NoHeader(t *testing.T) {
	sb := testSb(t) // v4: no remote symlink header to skip
	target := "/a/long/enough/target/path/to/need/an/extent"
	core := &inode.Core{Size: int64(len(target))}

	dev := make([]byte, int64(sb.Blocksize)*6)
	copy(dev[sb.FsbToOffset(5):], target)
	d := device.New(bytes.NewReader(dev), int64(len(dev)), 512)

	fork := inode.Fork{Format: inode.FormatExtents, Bmx: bmbt.NewBmx([]bmbt.Rec{
		{StartOff: 0, StartBlock: 5, BlockCount: 1},
	})}

	got, err := ReadTarget(core, fork, sb, d)
	if err != nil {
		t.Fatalf("ReadTarget: %v", err)
	}
	if got != target {
		t.Fatalf("ReadTarget = %q, want %q", got, target)
	}
}
