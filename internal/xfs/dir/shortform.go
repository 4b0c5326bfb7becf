package dir

import (
	"bytes"

	"github.com/lvdlvd/xfsro/internal/xfs/codec"
	"github.com/lvdlvd/xfsro/internal/xfs/xfserr"
)

// sfEntry is one on-disk short-form directory entry, plus the two synthetic
// "." and ".." entries every ShortForm directory reports first.
type sfEntry struct {
	Ino   uint64
	Name  []byte
	Ftype uint8
}

// ShortForm is a directory small enough to live entirely in its inode's
// literal area (dir3_sf.rs::Dir2Sf). ino is the directory's own inode
// number, needed to synthesize the "." entry, which the on-disk format
// never stores.
type ShortForm struct {
	entries []sfEntry
	hasFt   bool
}

// DecodeShortForm decodes a short-form directory out of buf (the fork's
// full literal-area bytes; only the header-declared prefix is consumed).
// ino is the directory's own inode number.
func DecodeShortForm(buf []byte, ino uint64, hasFtype bool) (*ShortForm, error) {
	const op = "dir.DecodeShortForm"
	c := codec.NewCursor(buf, op)

	count, err := c.U8()
	if err != nil {
		return nil, err
	}
	i8count, err := c.U8()
	if err != nil {
		return nil, err
	}
	n := int(count)
	if count == 0 && i8count != 0 {
		n = int(i8count)
	}

	// The header's parent field is 4 bytes when i8count == 0, 8 bytes
	// otherwise (dir3_sf.rs::Dir2SfHdr); entry inode widths switch on the
	// same flag, not on the entry count.
	wideIno := i8count > 0
	var parent uint64
	if wideIno {
		parent, err = c.U64()
	} else {
		var v32 uint32
		v32, err = c.U32()
		parent = uint64(v32)
	}
	if err != nil {
		return nil, err
	}

	entries := make([]sfEntry, 0, n+2)
	entries = append(entries, sfEntry{Ino: ino, Name: []byte("."), Ftype: FtDir})
	entries = append(entries, sfEntry{Ino: parent, Name: []byte(".."), Ftype: FtDir})

	for i := 0; i < n; i++ {
		namelen, err := c.U8()
		if err != nil {
			return nil, err
		}
		off, err := c.U16()
		if err != nil {
			return nil, err
		}
		_ = off // Dir2SfEntry's offset field is a hint only, not needed for lookup/next
		name, err := c.Bytes(int(namelen))
		if err != nil {
			return nil, err
		}
		var ftype uint8
		if hasFtype {
			ftype, err = c.U8()
			if err != nil {
				return nil, err
			}
		}
		var entInoRaw uint64
		if wideIno {
			entInoRaw, err = c.U64()
		} else {
			var v32 uint32
			v32, err = c.U32()
			entInoRaw = uint64(v32)
		}
		if err != nil {
			return nil, err
		}
		entries = append(entries, sfEntry{Ino: entInoRaw, Name: name, Ftype: ftype})
	}

	return &ShortForm{entries: entries, hasFt: hasFtype}, nil
}

// Lookup implements Dir2Sf::lookup: a linear scan, short-form directories
// never carry an index.
func (s *ShortForm) Lookup(name []byte) (uint64, error) {
	for _, e := range s.entries {
		if bytes.Equal(e.Name, name) {
			return e.Ino, nil
		}
	}
	return 0, xfserr.New(xfserr.NotFound, "dir.ShortForm.Lookup", "name not found")
}

// Next returns the entry at position cursor (an index into the synthesized
// entry list, "." first) and the cursor to resume from, or ok=false past
// the last entry.
func (s *ShortForm) Next(cursor int64) (ino uint64, next int64, ftype uint8, name []byte, ok bool) {
	if cursor < 0 || int(cursor) >= len(s.entries) {
		return 0, cursor, 0, nil, false
	}
	e := s.entries[cursor]
	return e.Ino, cursor + 1, e.Ftype, e.Name, true
}
