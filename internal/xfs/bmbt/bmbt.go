// Package bmbt decodes the XFS block-map B+tree: the packed 128-bit extent
// records embedded directly in an inode (EXTENTS format) or reachable
// through a root/intermediate/leaf node chain (BTREE format), per spec §4.6.
// Grounded on original_source's bmbt_rec.rs (BmbtRec, Bmx) and btree.rs
// (BtreeRoot/BtreeIntermediate/BtreeLeaf descent).
package bmbt

import (
	"sort"

	"github.com/lvdlvd/xfsro/internal/xfs/codec"
)

// Rec is a single decoded block-map extent record.
type Rec struct {
	StartOff   uint64 // first logical file block this extent covers
	StartBlock uint64 // first filesystem block backing it
	BlockCount uint64 // length in filesystem blocks
	Unwritten  bool   // preallocated but never written (reads as a hole)
}

func (r Rec) end() uint64 { return r.StartOff + r.BlockCount }

// RecSize is the on-disk size of a packed extent record.
const RecSize = 16

// DecodeRec decodes one 128-bit packed extent record: 21 bits block count,
// 52 bits start block, 54 bits start offset, 1 bit unwritten flag, read
// MSB-first (bmbt_rec.rs).
func DecodeRec(buf []byte) (Rec, error) {
	const op = "bmbt.DecodeRec"
	c := codec.NewCursor(buf, op)
	hi, lo, err := c.U128()
	if err != nil {
		return Rec{}, err
	}

	blockcount := lo & (1<<21 - 1)
	hi, lo = shr128(hi, lo, 21)
	startblock := lo & (1<<52 - 1)
	hi, lo = shr128(hi, lo, 52)
	startoff := lo & (1<<54 - 1)
	flag := (lo >> 54) != 0
	_ = hi

	return Rec{StartOff: startoff, StartBlock: startblock, BlockCount: blockcount, Unwritten: flag}, nil
}

// shr128 right-shifts the 128-bit value (hi:lo) by n bits (n <= 127).
func shr128(hi, lo uint64, n uint) (uint64, uint64) {
	if n == 0 {
		return hi, lo
	}
	if n < 64 {
		lo = (lo >> n) | (hi << (64 - n))
		hi >>= n
		return hi, lo
	}
	return 0, hi >> (n - 64)
}

// DecodeRecs decodes n consecutive packed extent records starting at the
// cursor's current position.
func DecodeRecs(c *codec.Cursor, n int) ([]Rec, error) {
	recs := make([]Rec, 0, n)
	for i := 0; i < n; i++ {
		raw, err := c.PeekBytes(RecSize)
		if err != nil {
			return nil, err
		}
		rec, err := DecodeRec(raw)
		if err != nil {
			return nil, err
		}
		c.Skip(RecSize)
		recs = append(recs, rec)
	}
	return recs, nil
}

// Bmx is an ordered, materialized extent list (EXTENTS-format fork, or the
// fully-read-out contents of a BTREE-format fork). Unwritten extents are
// dropped at construction so lookups never need to special-case them: the
// rest of the decoder treats "unwritten" and "hole" identically (spec §3).
type Bmx struct {
	recs []Rec
}

// NewBmx filters out unwritten extents and sorts by starting offset.
func NewBmx(recs []Rec) *Bmx {
	out := make([]Rec, 0, len(recs))
	for _, r := range recs {
		if !r.Unwritten {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartOff < out[j].StartOff })
	return &Bmx{recs: out}
}

// Recs returns the filtered, sorted extent list.
func (b *Bmx) Recs() []Rec { return b.recs }

// partitionPoint returns the first index i such that recs[i].StartOff > dblock.
func (b *Bmx) partitionPoint(dblock uint64) int {
	return sort.Search(len(b.recs), func(i int) bool { return b.recs[i].StartOff > dblock })
}

// GetExtent returns the filesystem block backing dblock (if any) and, if
// dblock falls in a hole, the hole's remaining length in blocks (nil if the
// hole runs to EOF).
func (b *Bmx) GetExtent(dblock uint64) (fsblock *uint64, holeLen *uint64) {
	i := b.partitionPoint(dblock)
	if i == 0 {
		if len(b.recs) == 0 {
			return nil, nil
		}
		l := b.recs[0].StartOff - dblock
		return nil, &l
	}
	entry := b.recs[i-1]
	skip := dblock - entry.StartOff
	if entry.end() > dblock {
		fb := entry.StartBlock + skip
		l := entry.BlockCount - skip
		return &fb, &l
	}
	if i < len(b.recs) {
		l := b.recs[i].StartOff - entry.StartOff - skip
		return nil, &l
	}
	return nil, nil
}

// MapDblock maps a single directory/attribute-fork logical block to its
// backing filesystem block, or nil if unmapped (a hole).
func (b *Bmx) MapDblock(dblock uint64) *uint64 {
	i := b.partitionPoint(dblock)
	if i == 0 {
		return nil
	}
	rec := b.recs[i-1]
	if rec.StartOff > dblock || rec.end() <= dblock {
		return nil
	}
	fb := rec.StartBlock + dblock - rec.StartOff
	return &fb
}

// Whence mirrors lseek(2)'s SEEK_DATA/SEEK_HOLE.
type Whence int

const (
	SeekData Whence = iota
	SeekHole
)

// Lseek implements SEEK_DATA/SEEK_HOLE at file-block granularity over the
// extent list, mirroring bmbt_rec.rs's Bmx::lseek. offset and the returned
// value are in bytes; blocklog converts to/from block units.
func (b *Bmx) Lseek(offset uint64, whence Whence, blocklog uint8) (uint64, bool) {
	dblock := offset >> blocklog
	i := b.partitionPoint(dblock)
	if i == 0 {
		if whence == SeekHole {
			return offset, true
		}
		if len(b.recs) == 0 {
			return 0, false
		}
		return b.recs[0].StartOff << blocklog, true
	}
	cur := b.recs[i-1]
	if dblock < cur.end() {
		if whence == SeekData {
			return offset, true
		}
		for j := i - 1; j < len(b.recs)-1; j++ {
			before, after := b.recs[j], b.recs[j+1]
			if after.StartOff > before.end() {
				return before.end() << blocklog, true
			}
		}
		last := b.recs[len(b.recs)-1]
		return last.end() << blocklog, true
	}
	if whence == SeekHole {
		return offset, true
	}
	if i < len(b.recs) {
		return b.recs[i].StartOff << blocklog, true
	}
	return 0, false
}
