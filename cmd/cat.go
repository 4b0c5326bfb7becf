package cmd

import (
	"fmt"
	"io"

	"github.com/lvdlvd/xfsro/internal/xfs/fsys"
)

// Cat copies a regular file's contents to out, streaming in fixed-size
// chunks the way rawhide's cmd.Cat streams from an extent-backed reader
// rather than materializing the whole file.
func Cat(v *fsys.Volume, fsPath string, out io.Writer) error {
	ino, err := resolve(v, fsPath)
	if err != nil {
		return err
	}
	attr, err := v.Getattr(ino)
	if err != nil {
		return err
	}
	if attr.Mode&modeFmt == modeDir {
		return fmt.Errorf("%s: is a directory", fsPath)
	}

	h, err := v.Open(ino)
	if err != nil {
		return err
	}
	defer h.Release()

	const chunk = 64 * 1024
	buf := make([]byte, chunk)
	off := int64(0)
	for off < attr.Size {
		want := int64(chunk)
		if off+want > attr.Size {
			want = attr.Size - off
		}
		n, err := h.Read(buf[:want], off)
		if n > 0 {
			if _, werr := out.Write(buf[:n]); werr != nil {
				return werr
			}
			off += int64(n)
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return err
		}
	}
	return nil
}

// Stat prints detailed metadata about a single path.
func Stat(v *fsys.Volume, fsPath string, out io.Writer) error {
	ino, err := resolve(v, fsPath)
	if err != nil {
		return err
	}
	a, err := v.Getattr(ino)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  File: %s\n", fsPath)
	fmt.Fprintf(out, "  Size: %d\n", a.Size)
	fmt.Fprintf(out, "Blocks: %d\n", a.Nblocks)
	fmt.Fprintf(out, "  Mode: %s\n", formatMode(a.Mode))
	fmt.Fprintf(out, " Inode: %d   Links: %d\n", a.Ino, a.Nlink)
	fmt.Fprintf(out, "   Uid: %d   Gid: %d\n", a.UID, a.GID)
	fmt.Fprintf(out, "Access: %s\n", formatTime(a.Atime.Sec, a.Atime.Nsec))
	fmt.Fprintf(out, "Modify: %s\n", formatTime(a.Mtime.Sec, a.Mtime.Nsec))
	fmt.Fprintf(out, "Change: %s\n", formatTime(a.Ctime.Sec, a.Ctime.Nsec))
	if a.Mode&modeFmt == modeLink {
		target, err := v.Readlink(ino)
		if err == nil {
			fmt.Fprintf(out, "  Link: -> %s\n", target)
		}
	}
	return nil
}
