package attrs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// DOSAttributeName is the user extended attribute the DOS view is stored in.
// The name and the "0xNN" hex encoding follow the convention established by
// Samba so files shared over SMB keep their DOS attributes.
const DOSAttributeName = "user.DOSATTRIB"

// DOS attribute bits as defined by the FAT directory entry format.
const (
	dosReadOnly = 0x01
	dosHidden   = 0x02
	dosSystem   = 0x04
	dosArchive  = 0x20
)

// DOSAttributes is the DOS-compatibility metadata view. Linux file systems
// have no native notion of these bits, so they are emulated on top of user
// extended attributes; the view is therefore only usable on file systems with
// xattr support.
type DOSAttributes struct {
	ReadOnly bool
	Hidden   bool
	System   bool
	Archive  bool
}

// GetDOSAttributes reads the DOS view of path. A file without the attribute
// simply has all bits clear; that is not an error.
func GetDOSAttributes(path string) (DOSAttributes, error) {
	value, err := Get(path, DOSAttributeName)
	if err != nil {
		if errors.Is(err, unix.ENODATA) {
			return DOSAttributes{}, nil
		}
		return DOSAttributes{}, err
	}
	bits, err := parseDOSValue(string(value))
	if err != nil {
		return DOSAttributes{}, fmt.Errorf("malformed %s on %s: %w", DOSAttributeName, path, err)
	}
	return DOSAttributes{
		ReadOnly: bits&dosReadOnly != 0,
		Hidden:   bits&dosHidden != 0,
		System:   bits&dosSystem != 0,
		Archive:  bits&dosArchive != 0,
	}, nil
}

// SetDOSAttributes writes the DOS view of path, replacing all bits.
func SetDOSAttributes(path string, attrs DOSAttributes) error {
	var bits uint64
	if attrs.ReadOnly {
		bits |= dosReadOnly
	}
	if attrs.Hidden {
		bits |= dosHidden
	}
	if attrs.System {
		bits |= dosSystem
	}
	if attrs.Archive {
		bits |= dosArchive
	}
	return Set(path, DOSAttributeName, []byte(fmt.Sprintf("0x%x", bits)))
}

// parseDOSValue accepts the hex form ("0x21") we and Samba write. Samba has
// written several binary formats over the years; anything that does not start
// with the hex marker is rejected rather than misinterpreted.
func parseDOSValue(value string) (uint64, error) {
	trimmed := strings.TrimRight(value, "\x00")
	if !strings.HasPrefix(trimmed, "0x") && !strings.HasPrefix(trimmed, "0X") {
		return 0, fmt.Errorf("unsupported encoding %q", trimmed)
	}
	bits, err := strconv.ParseUint(trimmed[2:], 16, 64)
	if err != nil {
		return 0, err
	}
	return bits, nil
}

func (a DOSAttributes) String() string {
	// The classic four letter rendering with dashes for clear bits.
	letters := []struct {
		set bool
		c   byte
	}{{a.ReadOnly, 'r'}, {a.Hidden, 'h'}, {a.System, 's'}, {a.Archive, 'a'}}
	out := make([]byte, len(letters))
	for i, l := range letters {
		if l.set {
			out[i] = l.c
		} else {
			out[i] = '-'
		}
	}
	return string(out)
}
