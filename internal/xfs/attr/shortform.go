package attr

import (
	"github.com/lvdlvd/xfsro/internal/xfs/codec"
	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

// sfEntry is one decoded xfs_attr_sf_entry: namelen bytes of name
// immediately followed by valuelen bytes of value (attr_shortform.rs's
// AttrSfEntry).
type sfEntry struct {
	Name  []byte
	Value []byte
	Flags uint8
}

// ShortForm is the attribute fork's inline encoding, used when every name
// and value fits directly in the inode's literal area.
type ShortForm struct {
	entries []sfEntry
}

// decodeShortForm decodes an xfs_attr_shortform: a 4-byte header (totsize,
// count, padding) followed by count variable-length entries.
func decodeShortForm(buf []byte) (*ShortForm, error) {
	const op = "attr.decodeShortForm"
	c := codec.NewCursor(buf, op)
	c.Skip(2) // totsize
	count, err := c.U8()
	if err != nil {
		return nil, err
	}
	c.Skip(1) // padding

	sf := &ShortForm{entries: make([]sfEntry, 0, count)}
	for i := uint8(0); i < count; i++ {
		namelen, err := c.U8()
		if err != nil {
			return nil, err
		}
		valuelen, err := c.U8()
		if err != nil {
			return nil, err
		}
		flags, err := c.U8()
		if err != nil {
			return nil, err
		}
		name, err := c.Bytes(int(namelen))
		if err != nil {
			return nil, err
		}
		value, err := c.Bytes(int(valuelen))
		if err != nil {
			return nil, err
		}
		sf.entries = append(sf.entries, sfEntry{
			Name:  append([]byte(nil), name...),
			Value: append([]byte(nil), value...),
			Flags: flags,
		})
	}
	return sf, nil
}

// List implements Store.
func (sf *ShortForm) List() ([]string, error) {
	out := make([]string, 0, len(sf.entries))
	for _, e := range sf.entries {
		out = append(out, Namespace(e.Flags)+string(e.Name))
	}
	return out, nil
}

// Get implements Store.
func (sf *ShortForm) Get(name string) ([]byte, error) {
	const op = "attr.ShortForm.Get"
	for _, e := range sf.entries {
		if Namespace(e.Flags)+string(e.Name) == name {
			return e.Value, nil
		}
	}
	return nil, xfserr.New(xfserr.NotFound, op, "attribute not found")
}
