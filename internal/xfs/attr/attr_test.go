package attr

import (
	"testing"

	"github.com/lvdlvd/xfsro/internal/xfs/inode"
	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

func TestDecodeNilForkReturnsEmptyStore(t *testing.T) {
	s, err := Decode(nil, nil, nil, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if names, err := s.List(); err != nil || names != nil {
		t.Fatalf("List() = %v, %v, want nil, nil", names, err)
	}
	if _, err := s.Get("user.foo"); err == nil {
		t.Fatal("expected an error from an empty store")
	}
}

func TestDecodeLocalFormatDispatchesToShortForm(t *testing.T) {
	buf := buildShortForm([]sfEntry{{Name: []byte("foo"), Value: []byte("bar"), Flags: 0}})
	fork := &inode.Fork{Format: inode.FormatLocal, Local: buf}

	s, err := Decode(nil, fork, nil, nil)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	v, err := s.Get("user.foo")
	if err != nil || string(v) != "bar" {
		t.Fatalf("Get(user.foo) = %q, %v, want bar, nil", v, err)
	}
}

func TestDecodeUnsupportedFormat(t *testing.T) {
	fork := &inode.Fork{Format: inode.Format(99)}
	_, err := Decode(nil, fork, nil, nil)
	if k, ok := xfserr.KindOf(err); !ok || k != xfserr.UnsupportedFeature {
		t.Fatalf("Decode(bad format) = %v, want UnsupportedFeature", err)
	}
}

func TestEmptyStoreGetIsNotFound(t *testing.T) {
	var s emptyStore
	if _, err := s.Get("user.anything"); err == nil {
		t.Fatal("expected an error")
	} else if k, ok := xfserr.KindOf(err); !ok || k != xfserr.NotFound {
		t.Fatalf("KindOf = %v, %v, want NotFound", k, ok)
	}
}
