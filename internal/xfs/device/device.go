// Package device implements aligned, stateless positional reads against the
// block device or regular file backing an XFS image, grounded on the
// sector-rounding buffered reader in original_source's block_reader.rs
// (BlockReader), reworked around Go's io.ReaderAt instead of a seek pointer:
// spec §4.3 is explicit that device I/O has no seek pointer of its own.
package device

import (
	"io"

	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

// Device is a read-only, concurrency-safe positional reader over the image.
// Every read is rounded up to the sector size for direct-I/O-compatible
// access and then trimmed back to the caller's requested range, mirroring
// BlockReader's fill-then-slice behavior.
type Device struct {
	r          io.ReaderAt
	size       int64
	sectorSize int64
}

// New wraps r (size bytes long) as a Device rounding reads to sectorSize.
func New(r io.ReaderAt, size int64, sectorSize int64) *Device {
	if sectorSize <= 0 {
		sectorSize = 512
	}
	return &Device{r: r, size: size, sectorSize: sectorSize}
}

// Size returns the device's total length in bytes.
func (d *Device) Size() int64 { return d.size }

// SectorSize returns the alignment granularity reads are rounded to.
func (d *Device) SectorSize() int64 { return d.sectorSize }

// Pread reads exactly len bytes at offset, internally rounding both to the
// sector size and returning a trimmed view of the caller's requested range.
// Reads that run off the end of the device fail with Io.
func (d *Device) Pread(offset, length int64) ([]byte, error) {
	if offset < 0 || length < 0 {
		return nil, xfserr.New(xfserr.InvalidArgument, "device.Pread", "negative offset or length")
	}
	if offset+length > d.size {
		return nil, xfserr.New(xfserr.Io, "device.Pread", "read past end of device")
	}

	alignedStart := offset &^ (d.sectorSize - 1)
	alignedEnd := (offset + length + d.sectorSize - 1) &^ (d.sectorSize - 1)
	if alignedEnd > d.size {
		alignedEnd = d.size
	}

	buf := make([]byte, alignedEnd-alignedStart)
	n, err := d.r.ReadAt(buf, alignedStart)
	if err != nil && err != io.EOF {
		return nil, xfserr.Wrap(xfserr.Io, "device.Pread", err)
	}
	if int64(n) < offset+length-alignedStart {
		return nil, xfserr.New(xfserr.Io, "device.Pread", "short read")
	}

	lead := offset - alignedStart
	return buf[lead : lead+length], nil
}

// ReadAt implements io.ReaderAt directly against the aligned Pread, so
// Device itself can serve as the base reader for extent.ReaderAt.
func (d *Device) ReadAt(p []byte, off int64) (int, error) {
	if off >= d.size {
		return 0, io.EOF
	}
	n := int64(len(p))
	if off+n > d.size {
		n = d.size - off
	}
	buf, err := d.Pread(off, n)
	if err != nil {
		return 0, err
	}
	copy(p, buf)
	if n < int64(len(p)) {
		return int(n), io.EOF
	}
	return int(n), nil
}
