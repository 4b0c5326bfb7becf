package bmbt

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/lvdlvd/xfsro/internal/xfs/device"
)

// packRec packs one bmbt extent record in the 128-bit layout DecodeRec
// expects, the inverse of DecodeRec's bit math.
func packRec(startoff, startblock, blockcount uint64) []byte {
	const blockcountBits = 21
	const startblockBits = 52
	lowBits := uint(64 - blockcountBits)
	lo := blockcount | (startblock&(1<<lowBits-1))<<blockcountBits
	hi := startblock >> lowBits
	hi |= startoff << (blockcountBits + startblockBits - 64)
	buf := make([]byte, 16)
	binary.BigEndian.PutUint64(buf[0:], hi)
	binary.BigEndian.PutUint64(buf[8:], lo)
	return buf
}

// buildLeafNode encodes one level-0 (leaf) long-form btree block: a
// longBlockHdr followed by numrecs packed extent records.
func buildLeafNode(recs [][3]uint64) []byte {
	be := binary.BigEndian
	buf := make([]byte, longBlockHdrSize)
	be.PutUint16(buf[4:], 0) // level 0
	be.PutUint16(buf[6:], uint16(len(recs)))
	for _, r := range recs {
		buf = append(buf, packRec(r[0], r[1], r[2])...)
	}
	return buf
}

// buildRoot encodes a BmdrBlock with a single key/pointer pair, with no gap
// between the key array and the pointer array (keyAreaSpace chosen to match).
func buildRoot(startoff, childFsblock uint64) []byte {
	be := binary.BigEndian
	buf := make([]byte, 20)
	be.PutUint16(buf[0:], 1) // level 1
	be.PutUint16(buf[2:], 1) // numrecs
	be.PutUint64(buf[4:], startoff)
	be.PutUint64(buf[12:], childFsblock)
	return buf
}

func identityOffset(blockSize int64) func(uint64) uint64 {
	return func(fsblock uint64) uint64 { return fsblock * uint64(blockSize) }
}

func TestDecodeRootAndGetExtent(t *testing.T) {
	const blockSize = 128
	const childFsblock = 3

	rootBuf := buildRoot(0, childFsblock)
	leafBuf := buildLeafNode([][3]uint64{{0, 777, 2}})

	dev := make([]byte, blockSize*10)
	copy(dev[childFsblock*blockSize:], leafBuf)
	d := device.New(bytes.NewReader(dev), int64(len(dev)), 512)

	root, err := DecodeRoot(rootBuf, 12, 0, blockSize, d, identityOffset(blockSize))
	if err != nil {
		t.Fatalf("DecodeRoot: %v", err)
	}

	fb, hl, err := root.GetExtent(0)
	if err != nil {
		t.Fatalf("GetExtent(0): %v", err)
	}
	if fb == nil || *fb != 777 {
		t.Fatalf("GetExtent(0) fsblock = %v, want 777", fb)
	}
	if hl == nil || *hl != 2 {
		t.Fatalf("GetExtent(0) run length = %v, want 2 (blocks remaining in the extent)", hl)
	}

	fb, hl, err = root.GetExtent(1)
	if err != nil {
		t.Fatalf("GetExtent(1): %v", err)
	}
	if fb == nil || *fb != 778 {
		t.Fatalf("GetExtent(1) fsblock = %v, want 778", fb)
	}
	_ = hl

	fb, _, err = root.GetExtent(5)
	if err != nil {
		t.Fatalf("GetExtent(5): %v", err)
	}
	if fb != nil {
		t.Fatalf("GetExtent(5) fsblock = %v, want nil (past the extent)", fb)
	}
}

func TestDecodeRootRejectsNegativeGap(t *testing.T) {
	rootBuf := buildRoot(0, 3)
	_, err := DecodeRoot(rootBuf, 4, 0, 128, nil, identityOffset(128))
	if err == nil {
		t.Fatal("expected an error when keyAreaSpace underflows the key array")
	}
}

func TestRootLseekDataAndHole(t *testing.T) {
	const blockSize = 128
	const childFsblock = 3

	rootBuf := buildRoot(0, childFsblock)
	leafBuf := buildLeafNode([][3]uint64{{0, 777, 2}})

	dev := make([]byte, blockSize*10)
	copy(dev[childFsblock*blockSize:], leafBuf)
	d := device.New(bytes.NewReader(dev), int64(len(dev)), 512)

	root, err := DecodeRoot(rootBuf, 12, 0, blockSize, d, identityOffset(blockSize))
	if err != nil {
		t.Fatalf("DecodeRoot: %v", err)
	}

	const blocklog = 7 // 1<<7 == 128, matching blockSize above
	off, ok, err := root.Lseek(0, SeekData, blocklog)
	if err != nil || !ok || off != 0 {
		t.Fatalf("Lseek(0, SeekData) = %d, %v, %v, want 0, true, nil", off, ok, err)
	}
	off, ok, err = root.Lseek(0, SeekHole, blocklog)
	if err != nil || !ok || off != 2<<blocklog {
		t.Fatalf("Lseek(0, SeekHole) = %d, %v, %v, want %d, true, nil", off, ok, err, 2<<blocklog)
	}
}
