package device

import (
	"bytes"
	"testing"

	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

func TestPreadAlignsAndTrims(t *testing.T) {
	data := make([]byte, 4096)
	for i := range data {
		data[i] = byte(i)
	}
	d := New(bytes.NewReader(data), int64(len(data)), 512)

	got, err := d.Pread(600, 100)
	if err != nil {
		t.Fatalf("Pread: %v", err)
	}
	want := data[600:700]
	if !bytes.Equal(got, want) {
		t.Fatalf("Pread(600, 100) = %v, want %v", got, want)
	}
}

func TestPreadPastEndFails(t *testing.T) {
	d := New(bytes.NewReader(make([]byte, 512)), 512, 512)
	if _, err := d.Pread(0, 1024); err == nil {
		t.Fatal("expected an error reading past the end of the device")
	} else if k, ok := xfserr.KindOf(err); !ok || k != xfserr.Io {
		t.Fatalf("KindOf = %v, %v, want Io", k, ok)
	}
}

func TestPreadRejectsNegativeArgs(t *testing.T) {
	d := New(bytes.NewReader(make([]byte, 512)), 512, 512)
	if _, err := d.Pread(-1, 10); err == nil {
		t.Fatal("expected an error for a negative offset")
	}
}

func TestReadAtImplementsIoReaderAt(t *testing.T) {
	data := []byte("0123456789abcdef")
	d := New(bytes.NewReader(data), int64(len(data)), 4)
	buf := make([]byte, 6)
	n, err := d.ReadAt(buf, 3)
	if err != nil || n != 6 || string(buf) != "345678" {
		t.Fatalf("ReadAt = %q, %d, %v", buf[:n], n, err)
	}
}

func TestReadAtEOFAtDeviceEnd(t *testing.T) {
	data := []byte("hello")
	d := New(bytes.NewReader(data), int64(len(data)), 4)
	buf := make([]byte, 10)
	n, err := d.ReadAt(buf, 2)
	if n != 3 || string(buf[:n]) != "llo" {
		t.Fatalf("ReadAt short read = %q, %d", buf[:n], n)
	}
	if err == nil {
		t.Fatal("expected io.EOF for a read that runs off the end of the device")
	}
}
