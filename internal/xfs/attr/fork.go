package attr

import (
	"github.com/lvdlvd/xfsro/internal/xfs/bmbt"
)

// dfork abstracts over a materialized extent list (EXTENTS-format
// attribute fork) versus a lazily-descending on-disk btree (BTREE-format),
// exactly as internal/xfs/dir's dfork does for the data fork.
type dfork interface {
	MapDblock(dblock uint64) (uint64, bool, error)
}

type bmxFork struct{ b *bmbt.Bmx }

func (f bmxFork) MapDblock(dblock uint64) (uint64, bool, error) {
	fb := f.b.MapDblock(dblock)
	if fb == nil {
		return 0, false, nil
	}
	return *fb, true, nil
}

type btreeFork struct{ r *bmbt.Root }

func (f btreeFork) MapDblock(dblock uint64) (uint64, bool, error) {
	fb, _, err := f.r.GetExtent(dblock)
	if err != nil {
		return 0, false, err
	}
	if fb == nil {
		return 0, false, nil
	}
	return *fb, true, nil
}
