// Package attr decodes XFS extended attributes: short-form (inline in the
// inode's attribute fork literal area) and leaf/node/btree (indexed,
// possibly spanning many blocks, with local or out-of-line remote values),
// per spec §4.9. Grounded on original_source's attr.rs (AttrLeafblock,
// remote value chain), attr_shortform.rs (AttrShortform), attr_leaf.rs and
// attr_node.rs/attr_bptree.rs (leaf/node/btree block location), reusing
// internal/xfs/dahash exactly as internal/xfs/dir does for the node/btree
// index.
package attr

import (
	"github.com/lvdlvd/xfsro/internal/xfs/device"
	"github.com/lvdlvd/xfsro/internal/xfs/inode"
	"github.com/lvdlvd/xfsro/internal/xfs/superblock"
	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

// Real on-disk XFS_ATTR_* flag bits carried in each leaf/shortform entry.
const (
	flagLocal  = 0x01
	flagRoot   = 0x02
	flagSecure = 0x08
)

// Namespace returns the attribute namespace prefix ("user.", "trusted.", or
// "secure.") encoded by an entry's flags byte (attr.rs's
// get_namespace_from_flags).
func Namespace(flags uint8) string {
	switch {
	case flags&flagSecure != 0:
		return "secure."
	case flags&flagRoot != 0:
		return "trusted."
	default:
		return "user."
	}
}

// Store is a read-only view over one inode's attribute fork, keyed by
// namespace-prefixed name (e.g. "user.checksum", "trusted.overlay.opaque").
type Store interface {
	// List returns every attribute name this fork carries, each prefixed
	// with its namespace.
	List() ([]string, error)
	// Get returns the value of a single namespace-prefixed attribute name.
	Get(name string) ([]byte, error)
}

// emptyStore backs inodes with no attribute fork (di_forkoff == 0).
type emptyStore struct{}

func (emptyStore) List() ([]string, error) { return nil, nil }
func (emptyStore) Get(name string) ([]byte, error) {
	return nil, xfserr.New(xfserr.NotFound, "attr.emptyStore.Get", "no attribute fork")
}

// Decode builds a Store for the given inode's attribute fork. fork is nil
// when the inode carries no attribute fork at all.
func Decode(core *inode.Core, fork *inode.Fork, sb *superblock.Sb, dev *device.Device) (Store, error) {
	const op = "attr.Decode"
	if fork == nil {
		return emptyStore{}, nil
	}
	switch fork.Format {
	case inode.FormatLocal:
		return decodeShortForm(fork.Local)
	case inode.FormatExtents:
		return newLeafStore(bmxFork{fork.Bmx}, sb, dev)
	case inode.FormatBtree:
		return newLeafStore(btreeFork{fork.Btree}, sb, dev)
	default:
		return nil, xfserr.New(xfserr.UnsupportedFeature, op, "unsupported attribute fork format")
	}
}
