package cmd

import "time"

const (
	modeFmt  = 0xF000
	modeSock = 0xC000
	modeLink = 0xA000
	modeReg  = 0x8000
	modeBlk  = 0x6000
	modeDir  = 0x4000
	modeChr  = 0x2000
	modeFifo = 0x1000

	modeSetuid = 0o4000
	modeSetgid = 0o2000
	modeSticky = 0o1000
)

// fileTypeChar returns the `ls -l` leading type character for a raw Linux
// st_mode value.
func fileTypeChar(mode uint16) byte {
	switch mode & modeFmt {
	case modeDir:
		return 'd'
	case modeLink:
		return 'l'
	case modeChr:
		return 'c'
	case modeBlk:
		return 'b'
	case modeFifo:
		return 'p'
	case modeSock:
		return 's'
	default:
		return '-'
	}
}

// formatMode renders a raw Linux st_mode value as an `ls -l` permission
// string, e.g. "drwxr-xr-x".
func formatMode(mode uint16) string {
	b := make([]byte, 10)
	b[0] = fileTypeChar(mode)
	perms := "rwxrwxrwx"
	for i := 0; i < 9; i++ {
		if mode&(1<<uint(8-i)) != 0 {
			b[1+i] = perms[i]
		} else {
			b[1+i] = '-'
		}
	}
	if mode&modeSetuid != 0 {
		b[3] = withExecBit(b[3], 's', 'S')
	}
	if mode&modeSetgid != 0 {
		b[6] = withExecBit(b[6], 's', 'S')
	}
	if mode&modeSticky != 0 {
		b[9] = withExecBit(b[9], 't', 'T')
	}
	return string(b)
}

func withExecBit(cur byte, withExec, withoutExec byte) byte {
	if cur == 'x' {
		return withExec
	}
	return withoutExec
}

// formatTime renders an on-disk (seconds, nanoseconds) timestamp the way
// `ls -l` does.
func formatTime(sec int64, nsec uint32) string {
	return time.Unix(sec, int64(nsec)).UTC().Format("Jan _2 15:04")
}
