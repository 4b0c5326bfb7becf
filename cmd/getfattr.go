package cmd

import (
	"fmt"
	"io"

	"github.com/lvdlvd/xfsro/internal/xfs/fsys"
)

// Getfattr lists a path's extended attributes, or prints a single named
// attribute's value if name is non-empty.
func Getfattr(v *fsys.Volume, fsPath, name string, out io.Writer) error {
	ino, err := resolve(v, fsPath)
	if err != nil {
		return err
	}
	if name != "" {
		val, err := v.GetXattr(ino, name)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s=\"%s\"\n", name, val)
		return nil
	}

	names, err := v.ListXattr(ino)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "# file: %s\n", fsPath)
	for _, n := range names {
		val, err := v.GetXattr(ino, n)
		if err != nil {
			continue
		}
		fmt.Fprintf(out, "%s=\"%s\"\n", n, val)
	}
	return nil
}
