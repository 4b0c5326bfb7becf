package cmd

import (
	"fmt"
	"io"

	"github.com/lvdlvd/xfsro/internal/xfs/fsys"
)

// Info prints a summary of the mounted image's superblock-derived geometry.
func Info(v *fsys.Volume, out io.Writer) error {
	s := v.Statfs()
	fmt.Fprintf(out, "Block size:    %d\n", s.BlockSize)
	fmt.Fprintf(out, "Total blocks:  %d\n", s.TotalBlocks)
	fmt.Fprintf(out, "Free blocks:   %d\n", s.FreeBlocks)
	fmt.Fprintf(out, "Total inodes:  %d\n", s.TotalInodes)
	fmt.Fprintf(out, "Free inodes:   %d\n", s.FreeInodes)
	fmt.Fprintf(out, "Max name len:  %d\n", s.MaxNameLen)
	fmt.Fprintf(out, "Root ino:      %d\n", v.RootIno())
	return nil
}
