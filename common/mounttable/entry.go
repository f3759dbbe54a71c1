package mounttable

import (
	"path/filepath"
	"strings"
)

// MountEntry is one decoded line of the mount table. Entries are value types
// and are never modified after they are decoded. Two enumerations may return
// different entries for the same mount point if the table changed in between.
type MountEntry struct {
	// Source is the device or pseudo device backing the mount (e.g. /dev/sda1,
	// tmpfs, proc).
	Source string
	// Target is the absolute path of the mount directory.
	Target string
	// FSType is the file system type label reported by the kernel (e.g. ext4).
	FSType string
	// Options is the raw comma separated mount option string (e.g. rw,relatime).
	Options string
}

// HasOption reports whether the named option is present in the entry's option
// string. Options of the form key=value match on the key.
func (e MountEntry) HasOption(name string) bool {
	for opt := range strings.SplitSeq(e.Options, ",") {
		if opt == name {
			return true
		}
		if key, _, ok := strings.Cut(opt, "="); ok && key == name {
			return true
		}
	}
	return false
}

// ReadOnly reports whether the mount was mounted read-only.
func (e MountEntry) ReadOnly() bool {
	return e.HasOption("ro")
}

// decodeEntry parses a single mount table line. The mtab format is
// whitespace-separated fields (source, target, type, options, and two dump/pass
// fields that modern kernels always report as zero) with spaces, tabs, newlines
// and backslashes inside fields encoded as octal escapes. Returns false for
// comments, blank lines, and lines that do not satisfy the entry invariants.
func decodeEntry(line string) (MountEntry, bool) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" || strings.HasPrefix(trimmed, "#") {
		return MountEntry{}, false
	}
	fields := strings.Fields(trimmed)
	if len(fields) < 4 {
		return MountEntry{}, false
	}
	entry := MountEntry{
		Source:  unescapeOctal(fields[0]),
		Target:  unescapeOctal(fields[1]),
		FSType:  unescapeOctal(fields[2]),
		Options: unescapeOctal(fields[3]),
	}
	if entry.FSType == "" || !filepath.IsAbs(entry.Target) {
		return MountEntry{}, false
	}
	return entry, true
}

// unescapeOctal decodes the getmntent style escapes (\040 space, \011 tab,
// \012 newline, \134 backslash) the kernel uses so fields with embedded
// whitespace survive the line format. Unrecognized escapes are kept verbatim.
func unescapeOctal(field string) string {
	if !strings.Contains(field, `\`) {
		return field
	}
	var sb strings.Builder
	sb.Grow(len(field))
	for i := 0; i < len(field); i++ {
		if field[i] == '\\' && i+3 < len(field) && isOctal(field[i+1]) && isOctal(field[i+2]) && isOctal(field[i+3]) {
			sb.WriteByte((field[i+1]-'0')<<6 | (field[i+2]-'0')<<3 | (field[i+3] - '0'))
			i += 3
			continue
		}
		sb.WriteByte(field[i])
	}
	return sb.String()
}

func isOctal(c byte) bool {
	return c >= '0' && c <= '7'
}
