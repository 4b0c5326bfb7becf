package attr

import (
	"reflect"
	"sort"
	"testing"

	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

// buildShortForm encodes a minimal xfs_attr_shortform buffer for entries,
// each (name, value, flags), matching decodeShortForm's expected layout.
func buildShortForm(entries []sfEntry) []byte {
	buf := []byte{0, 0, byte(len(entries)), 0} // totsize (unused by decode), count, pad
	for _, e := range entries {
		buf = append(buf, byte(len(e.Name)), byte(len(e.Value)), e.Flags)
		buf = append(buf, e.Name...)
		buf = append(buf, e.Value...)
	}
	return buf
}

func TestDecodeShortFormListAndGet(t *testing.T) {
	buf := buildShortForm([]sfEntry{
		{Name: []byte("checksum"), Value: []byte("abc123"), Flags: 0},
		{Name: []byte("opaque"), Value: []byte("y"), Flags: flagRoot},
	})
	sf, err := decodeShortForm(buf)
	if err != nil {
		t.Fatalf("decodeShortForm: %v", err)
	}

	names, err := sf.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	sort.Strings(names)
	want := []string{"trusted.opaque", "user.checksum"}
	if !reflect.DeepEqual(names, want) {
		t.Fatalf("List = %v, want %v", names, want)
	}

	val, err := sf.Get("user.checksum")
	if err != nil || string(val) != "abc123" {
		t.Fatalf("Get(user.checksum) = %q, %v", val, err)
	}
	val, err = sf.Get("trusted.opaque")
	if err != nil || string(val) != "y" {
		t.Fatalf("Get(trusted.opaque) = %q, %v", val, err)
	}
}

func TestShortFormGetMissingIsNotFound(t *testing.T) {
	sf, err := decodeShortForm(buildShortForm(nil))
	if err != nil {
		t.Fatalf("decodeShortForm: %v", err)
	}
	_, err = sf.Get("user.nope")
	if k, ok := xfserr.KindOf(err); !ok || k != xfserr.NotFound {
		t.Fatalf("Get(missing) = %v, want NotFound", err)
	}
}

func TestNamespace(t *testing.T) {
	cases := []struct {
		flags uint8
		want  string
	}{
		{0, "user."},
		{flagLocal, "user."},
		{flagRoot, "trusted."},
		{flagSecure, "secure."},
		{flagRoot | flagSecure, "secure."}, // secure takes precedence
	}
	for _, c := range cases {
		if got := Namespace(c.flags); got != c.want {
			t.Errorf("Namespace(%#x) = %q, want %q", c.flags, got, c.want)
		}
	}
}

func TestEmptyStore(t *testing.T) {
	var s Store = emptyStore{}
	names, err := s.List()
	if err != nil || names != nil {
		t.Fatalf("emptyStore.List() = %v, %v, want nil, nil", names, err)
	}
	_, err = s.Get("user.anything")
	if k, ok := xfserr.KindOf(err); !ok || k != xfserr.NotFound {
		t.Fatalf("emptyStore.Get = %v, want NotFound", err)
	}
}
