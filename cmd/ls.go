package cmd

import (
	"fmt"
	"io"

	"github.com/lvdlvd/xfsro/internal/xfs/fsys"
	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

// LsOptions controls Ls behavior.
type LsOptions struct {
	Long bool // -l, long listing format
	All  bool // -a, include dotfiles
}

// Ls lists a path's directory contents, or shows a single file's own entry
// if fsPath does not name a directory.
func Ls(v *fsys.Volume, fsPath string, out io.Writer, opts LsOptions) error {
	ino, err := resolve(v, fsPath)
	if err != nil {
		return err
	}
	attr, err := v.Getattr(ino)
	if err != nil {
		return err
	}
	if attr.Mode&modeFmt != modeDir {
		return printEntry(out, attr, lastComponent(fsPath), opts.Long)
	}
	return listDirectory(v, ino, out, opts)
}

func listDirectory(v *fsys.Volume, ino uint64, out io.Writer, opts LsOptions) error {
	h, err := v.Opendir(ino)
	if err != nil {
		return err
	}
	defer h.Releasedir()

	var cursor int64
	for {
		name, childIno, _, next, ok := h.Readdir(cursor)
		if !ok {
			return nil
		}
		cursor = next

		if !opts.All && len(name) > 0 && name[0] == '.' {
			continue
		}
		attr, err := v.Getattr(childIno)
		if err != nil {
			if k, _ := xfserr.KindOf(err); k == xfserr.NotFound {
				continue
			}
			return err
		}
		if err := printEntry(out, attr, name, opts.Long); err != nil {
			return err
		}
	}
}

func printEntry(out io.Writer, a fsys.Attr, name string, long bool) error {
	if !long {
		if a.Mode&modeFmt == modeDir {
			name += "/"
		}
		_, err := fmt.Fprintln(out, name)
		return err
	}
	_, err := fmt.Fprintf(out, "%s %8d %12d %s %s\n", formatMode(a.Mode), a.Ino, a.Size, formatTime(a.Mtime.Sec, a.Mtime.Nsec), name)
	return err
}

func lastComponent(p string) string {
	p = normalizePath(p)
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] == '/' {
			return p[i+1:]
		}
	}
	return p
}
