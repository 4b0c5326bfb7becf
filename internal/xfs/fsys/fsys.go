// Package fsys is the stateless top-layer facade an adapter (the
// kernel-bridge bridge, out of scope here) drives: statfs, lookup, getattr,
// opendir/readdir/releasedir, open/read/release, readlink, listxattr/
// getxattr, and lseek, per spec §4.12. Grounded on
// original_source/volume.rs, which performs the identical root-ino
// aliasing and dispatch at the same layer, and on rawhide's fsys.FS as the
// teacher's own facade-over-decoder shape.
package fsys

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/lvdlvd/xfsro/internal/xfs/attr"
	"github.com/lvdlvd/xfsro/internal/xfs/cache"
	"github.com/lvdlvd/xfsro/internal/xfs/device"
	"github.com/lvdlvd/xfsro/internal/xfs/dir"
	"github.com/lvdlvd/xfsro/internal/xfs/extent"
	"github.com/lvdlvd/xfsro/internal/xfs/file"
	"github.com/lvdlvd/xfsro/internal/xfs/inode"
	"github.com/lvdlvd/xfsro/internal/xfs/superblock"
	"github.com/lvdlvd/xfsro/internal/xfs/symlink"
	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

// MountOptions are the four mount-time configuration knobs of spec §6,
// bound from flags/env/config file by cmd's viper setup.
type MountOptions struct {
	CacheCapacity      int
	VerifyChecksums    superblock.VerifyMode
	UIDOverride        *uint32
	GIDOverride        *uint32
	DefaultPermissions bool
}

// DefaultMountOptions matches spec §6's stated defaults.
func DefaultMountOptions() MountOptions {
	return MountOptions{CacheCapacity: cache.DefaultCapacity, VerifyChecksums: superblock.VerifyOff}
}

// Volume is a mounted, read-only view over one XFS image. All exported
// methods are safe for concurrent use (spec §5).
type Volume struct {
	dev  *device.Device
	sb   *superblock.Sb
	opts MountOptions
	log  *zap.Logger

	inodes *cache.Cache[uint64, *inode.Inode]
	dirs   *cache.Cache[uint64, dir.Directory]
	attrs  *cache.Cache[uint64, attr.Store]
	files  *cache.Cache[uint64, *file.File]
}

// Mount parses the superblock at the start of r and builds a Volume ready
// to serve facade operations. log may be nil, in which case a no-op logger
// is used.
func Mount(r *device.Device, opts MountOptions, log *zap.Logger) (*Volume, error) {
	const op = "fsys.Mount"
	if log == nil {
		log = zap.NewNop()
	}
	if opts.CacheCapacity <= 0 {
		opts.CacheCapacity = cache.DefaultCapacity
	}

	sbBuf, err := r.Pread(0, int64(superblock.SizeV5))
	if err != nil {
		return nil, xfserr.Wrap(xfserr.Io, op, err)
	}
	sb, err := superblock.Parse(sbBuf, opts.VerifyChecksums)
	if err != nil {
		log.Error("mount: superblock parse failed", zap.Error(err))
		return nil, err
	}

	if err := crossCheckAGI(r, sb); err != nil {
		log.Warn("mount: AG inode-btree header sanity check failed", zap.Error(err))
	}

	v := &Volume{
		dev:  r,
		sb:   sb,
		opts: opts,
		log:  log,
		inodes: cache.New[uint64, *inode.Inode](opts.CacheCapacity, func(k uint64) string { return "ino:" + strconv.FormatUint(k, 10) }),
		dirs:   cache.New[uint64, dir.Directory](opts.CacheCapacity, func(k uint64) string { return "dir:" + strconv.FormatUint(k, 10) }),
		attrs:  cache.New[uint64, attr.Store](opts.CacheCapacity, func(k uint64) string { return "attr:" + strconv.FormatUint(k, 10) }),
		files:  cache.New[uint64, *file.File](opts.CacheCapacity, func(k uint64) string { return "file:" + strconv.FormatUint(k, 10) }),
	}
	log.Info("mounted XFS image", zap.Uint16("version", sb.Version()), zap.Uint32("blocksize", sb.Blocksize), zap.Uint64("rootino", sb.RootIno))
	return v, nil
}

// Unmount logs the unmount and returns nil; it does not clear the Volume's
// caches. The underlying device is owned by the caller and is not closed
// here.
func (v *Volume) Unmount() error {
	v.log.Info("unmounted XFS image")
	return nil
}

// RootIno returns the aliased root inode number the adapter should treat
// as the filesystem root (original_source's volume.rs root-ino aliasing).
func (v *Volume) RootIno() uint64 { return v.sb.RootIno }

func (v *Volume) loadInode(ino uint64) (*inode.Inode, error) {
	return v.inodes.GetOrLoad(ino, func() (*inode.Inode, error) {
		const op = "fsys.Volume.loadInode"
		off, size, err := inode.Locate(v.sb, ino)
		if err != nil {
			return nil, err
		}
		raw, err := v.dev.Pread(int64(off), int64(size))
		if err != nil {
			return nil, xfserr.Wrap(xfserr.Io, op, err)
		}
		in, err := inode.Decode(raw, v.sb, v.dev)
		if err != nil {
			v.log.Warn("corrupt inode", zap.Uint64("ino", ino), zap.Error(err))
			return nil, err
		}
		in.Core.Ino = ino
		return in, nil
	})
}

func (v *Volume) loadDir(ino uint64) (dir.Directory, error) {
	const op = "fsys.Volume.loadDir"
	return v.dirs.GetOrLoad(ino, func() (dir.Directory, error) {
		in, err := v.loadInode(ino)
		if err != nil {
			return nil, err
		}
		if in.Kind != inode.KindDirectory {
			return nil, xfserr.New(xfserr.NotDirectory, op, "inode is not a directory")
		}
		return dir.Decode(in.Core, in.Data, v.sb, v.dev)
	})
}

func (v *Volume) loadAttrs(ino uint64) (attr.Store, error) {
	return v.attrs.GetOrLoad(ino, func() (attr.Store, error) {
		in, err := v.loadInode(ino)
		if err != nil {
			return nil, err
		}
		return attr.Decode(in.Core, in.Attr, v.sb, v.dev)
	})
}

func (v *Volume) loadFile(ino uint64) (*file.File, error) {
	const op = "fsys.Volume.loadFile"
	return v.files.GetOrLoad(ino, func() (*file.File, error) {
		in, err := v.loadInode(ino)
		if err != nil {
			return nil, err
		}
		if in.Kind != inode.KindRegular {
			return nil, xfserr.New(xfserr.IsDirectory, op, "inode is not a regular file")
		}
		return file.Open(in.Core, in.Data, v.sb, v.dev)
	})
}

// Lookup resolves a single child name within a directory inode.
func (v *Volume) Lookup(parentIno uint64, name string) (uint64, error) {
	d, err := v.loadDir(parentIno)
	if err != nil {
		return 0, err
	}
	return d.Lookup(name)
}

// Attr is the getattr result: the subset of inode metadata the adapter
// needs to answer stat(2), with uid/gid override applied per spec §6.
type Attr struct {
	Ino     uint64
	Mode    uint16
	Nlink   uint32
	UID     uint32
	GID     uint32
	Size    int64
	Nblocks uint64
	Atime   Time
	Mtime   Time
	Ctime   Time
	Crtime  Time
}

// Time is a decoded (seconds, nanoseconds) Unix timestamp.
type Time struct {
	Sec  int64
	Nsec uint32
}

// Getattr returns ino's metadata, applying any configured uid/gid override.
func (v *Volume) Getattr(ino uint64) (Attr, error) {
	in, err := v.loadInode(ino)
	if err != nil {
		return Attr{}, err
	}
	c := in.Core
	uid, gid := c.UID, c.GID
	if v.opts.UIDOverride != nil {
		uid = *v.opts.UIDOverride
	}
	if v.opts.GIDOverride != nil {
		gid = *v.opts.GIDOverride
	}
	asec, ansec := c.AtimeUnix()
	msec, mnsec := c.MtimeUnix()
	csec, cnsec := c.CtimeUnix()
	rsec, rnsec := c.CrtimeUnix()
	return Attr{
		Ino: ino, Mode: c.Mode, Nlink: c.Nlink, UID: uid, GID: gid,
		Size: c.Size, Nblocks: c.Nblocks,
		Atime: Time{asec, ansec}, Mtime: Time{msec, mnsec}, Ctime: Time{csec, cnsec}, Crtime: Time{rsec, rnsec},
	}, nil
}

// Statfs summarizes the mounted image for statfs(2), per spec §4.12.
type Statfs struct {
	BlockSize      uint32
	TotalBlocks    uint64
	FreeBlocks     uint64
	TotalInodes    uint64
	FreeInodes     uint64
	MaxNameLen     uint32
	DefaultPerms   bool
}

// Statfs reports block size, total/free data blocks, total/free inodes,
// and the fixed 255-byte max filename length.
func (v *Volume) Statfs() Statfs {
	return Statfs{
		BlockSize:    v.sb.Blocksize,
		TotalBlocks:  v.sb.Dblocks,
		FreeBlocks:   v.sb.Fdblocks,
		TotalInodes:  v.sb.Icount,
		FreeInodes:   v.sb.Ifree,
		MaxNameLen:   255,
		DefaultPerms: v.opts.DefaultPermissions,
	}
}

// Readlink returns a symlink inode's raw target bytes.
func (v *Volume) Readlink(ino uint64) (string, error) {
	const op = "fsys.Volume.Readlink"
	in, err := v.loadInode(ino)
	if err != nil {
		return "", err
	}
	if in.Kind != inode.KindSymlink {
		return "", xfserr.New(xfserr.InvalidArgument, op, "inode is not a symlink")
	}
	return symlink.ReadTarget(in.Core, in.Data, v.sb, v.dev)
}

// ListXattr returns every namespace-prefixed extended attribute name ino
// carries.
func (v *Volume) ListXattr(ino uint64) ([]string, error) {
	s, err := v.loadAttrs(ino)
	if err != nil {
		return nil, err
	}
	return s.List()
}

// GetXattr returns the value of a single namespace-prefixed extended
// attribute name.
func (v *Volume) GetXattr(ino uint64, name string) ([]byte, error) {
	s, err := v.loadAttrs(ino)
	if err != nil {
		return nil, err
	}
	return s.Get(name)
}

// DirHandle is an open directory-read cursor, returned by Opendir.
type DirHandle struct {
	d dir.Directory
}

// Opendir returns a handle over ino's contents, positioned before the
// first entry.
func (v *Volume) Opendir(ino uint64) (*DirHandle, error) {
	d, err := v.loadDir(ino)
	if err != nil {
		return nil, err
	}
	return &DirHandle{d: d}, nil
}

// Readdir returns the entry at cursor (0 for the beginning) and the
// cursor to resume from, or ok=false once exhausted.
func (h *DirHandle) Readdir(cursor int64) (name string, childIno uint64, fileType uint8, nextCursor int64, ok bool) {
	childIno, nextCursor, fileType, name, ok = h.d.Next(cursor)
	return name, childIno, fileType, nextCursor, ok
}

// Releasedir releases a directory handle. Directory handles hold no
// device resources beyond decoded, cache-owned blocks, so this is a no-op
// beyond dropping the reference (spec §5, "handles must not outlive
// unmount").
func (h *DirHandle) Releasedir() error {
	h.d = nil
	return nil
}

// FileHandle is an open regular-file read/seek cursor, returned by Open.
type FileHandle struct {
	f *file.File
}

// Open returns a handle over a regular file inode's data.
func (v *Volume) Open(ino uint64) (*FileHandle, error) {
	f, err := v.loadFile(ino)
	if err != nil {
		return nil, err
	}
	return &FileHandle{f: f}, nil
}

// Read fills p from file offset off, zero-filling holes and unwritten
// (preallocated) extents.
func (h *FileHandle) Read(p []byte, off int64) (int, error) {
	return h.f.ReadAt(p, off)
}

// Lseek implements SEEK_DATA/SEEK_HOLE over the file's data fork.
func (h *FileHandle) Lseek(off int64, whence extent.SeekWhence) (int64, bool) {
	return h.f.Lseek(off, whence)
}

// Release releases a file handle.
func (h *FileHandle) Release() error {
	h.f = nil
	return nil
}
