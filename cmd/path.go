// Package cmd implements the xfsro CLI commands: ls, cat, stat, getfattr,
// and info, each driven directly against internal/xfs/fsys.Volume's facade
// rather than a mounted filesystem (spec places the kernel-bridge adapter
// out of scope; see SPEC_FULL.md's DOMAIN STACK).
package cmd

import (
	"strings"

	"github.com/lvdlvd/xfsro/internal/xfs/fsys"
)

// normalizePath strips a leading slash and collapses an empty path to the
// root, mirroring rawhide's cmd.normalizePath.
func normalizePath(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return "."
	}
	return p
}

// resolve walks fsPath component by component from the volume's aliased
// root inode, using nothing but repeated Lookup calls the way an adapter
// would.
func resolve(v *fsys.Volume, fsPath string) (uint64, error) {
	ino := v.RootIno()
	fsPath = normalizePath(fsPath)
	if fsPath == "." {
		return ino, nil
	}
	for _, part := range strings.Split(fsPath, "/") {
		if part == "" {
			continue
		}
		next, err := v.Lookup(ino, part)
		if err != nil {
			return 0, err
		}
		ino = next
	}
	return ino, nil
}
