package bmbt

import "testing"

func TestNewBmxDropsUnwrittenAndSorts(t *testing.T) {
	recs := []Rec{
		{StartOff: 10, StartBlock: 1000, BlockCount: 5},
		{StartOff: 0, StartBlock: 500, BlockCount: 5},
		{StartOff: 20, StartBlock: 2000, BlockCount: 5, Unwritten: true},
	}
	bmx := NewBmx(recs)
	got := bmx.Recs()
	if len(got) != 2 {
		t.Fatalf("Recs() has %d entries, want 2 (unwritten dropped)", len(got))
	}
	if got[0].StartOff != 0 || got[1].StartOff != 10 {
		t.Fatalf("Recs() not sorted by StartOff: %+v", got)
	}
}

func TestMapDblock(t *testing.T) {
	bmx := NewBmx([]Rec{
		{StartOff: 0, StartBlock: 100, BlockCount: 5},
		{StartOff: 10, StartBlock: 200, BlockCount: 5},
	})
	cases := []struct {
		dblock uint64
		want   *uint64
	}{
		{0, u64p(100)},
		{4, u64p(104)},
		{5, nil}, // hole between the two extents
		{9, nil},
		{10, u64p(200)},
		{14, u64p(204)},
		{15, nil}, // past EOF
	}
	for _, c := range cases {
		got := bmx.MapDblock(c.dblock)
		if !ptrEq(got, c.want) {
			t.Errorf("MapDblock(%d) = %v, want %v", c.dblock, deref(got), deref(c.want))
		}
	}
}

func TestGetExtentHoleLength(t *testing.T) {
	bmx := NewBmx([]Rec{
		{StartOff: 0, StartBlock: 100, BlockCount: 5},
		{StartOff: 10, StartBlock: 200, BlockCount: 5},
	})
	fsblock, holeLen := bmx.GetExtent(6)
	if fsblock != nil {
		t.Fatalf("GetExtent(6) fsblock = %v, want nil (hole)", *fsblock)
	}
	if holeLen == nil || *holeLen != 4 {
		t.Fatalf("GetExtent(6) holeLen = %v, want 4", deref(holeLen))
	}

	fsblock, _ = bmx.GetExtent(2)
	if fsblock == nil || *fsblock != 102 {
		t.Fatalf("GetExtent(2) fsblock = %v, want 102", deref(fsblock))
	}
}

func TestLseekDataAndHole(t *testing.T) {
	bmx := NewBmx([]Rec{
		{StartOff: 0, StartBlock: 100, BlockCount: 2}, // blocks [0,2)
		{StartOff: 4, StartBlock: 200, BlockCount: 2}, // blocks [4,6)
	})
	const blocklog = 12 // 4KiB blocks

	// Inside data: SEEK_DATA returns offset unchanged.
	if off, ok := bmx.Lseek(0, SeekData, blocklog); !ok || off != 0 {
		t.Fatalf("Lseek(0, SeekData) = %d, %v", off, ok)
	}
	// Inside a hole: SEEK_DATA jumps to the next extent's start.
	if off, ok := bmx.Lseek(2<<blocklog, SeekData, blocklog); !ok || off != 4<<blocklog {
		t.Fatalf("Lseek(hole, SeekData) = %d, %v, want %d", off, ok, 4<<blocklog)
	}
	// Inside data: SEEK_HOLE jumps to the end of the current extent.
	if off, ok := bmx.Lseek(0, SeekHole, blocklog); !ok || off != 2<<blocklog {
		t.Fatalf("Lseek(0, SeekHole) = %d, %v, want %d", off, ok, 2<<blocklog)
	}
	// Past the last extent: SEEK_DATA fails.
	if _, ok := bmx.Lseek(10<<blocklog, SeekData, blocklog); ok {
		t.Fatal("Lseek past EOF with SeekData should fail")
	}
}

func u64p(v uint64) *uint64 { return &v }

func ptrEq(a, b *uint64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func deref(p *uint64) interface{} {
	if p == nil {
		return nil
	}
	return *p
}
