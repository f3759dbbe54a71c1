package mounttable

import (
	"bufio"
	"io"
	"os"
)

const (
	// DefaultPath is the live mount table maintained by the kernel. It uses the
	// same line format as the legacy /etc/mtab (which is a symlink to it on any
	// kernel we support).
	DefaultPath = "/proc/self/mounts"

	// minLineSize is the smallest decode buffer used for the record pass. The
	// sizing pass only ever grows it.
	minLineSize = 1024
)

// Entries enumerates the system mount table. See the package documentation for
// the partial-result policy.
func Entries() []MountEntry {
	return EntriesFromFile(DefaultPath)
}

// EntriesFromFile enumerates the mount table at the given path. It exists so
// tests and tools can decode a saved table or the table of another mount
// namespace (e.g. /proc/<pid>/mounts).
func EntriesFromFile(path string) []MountEntry {
	table, err := openTable(path)
	if err != nil {
		return nil
	}
	defer table.close()

	maxLine := table.probeMaxLineSize()
	if err := table.rewind(); err != nil {
		return nil
	}
	return table.decodeEntries(maxLine)
}

// table owns the open mount table stream for the duration of one enumeration.
// It is created and released inside a single EntriesFromFile call and is never
// shared, so concurrent enumerations are independent.
type table struct {
	file *os.File
}

func openTable(path string) (*table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &table{file: file}, nil
}

// probeMaxLineSize scans the table once tracking the longest line so the
// decode pass can use a single buffer that is guaranteed to hold any record. A
// read failure during the probe stops the probe rather than failing the
// enumeration; the decode pass will then stop at the same point anyway.
func (t *table) probeMaxLineSize() int {
	maxLine := minLineSize
	lineLen := 0
	reader := bufio.NewReader(t.file)
	for {
		chunk, err := reader.ReadSlice('\n')
		lineLen += len(chunk)
		if err == nil {
			if lineLen > maxLine {
				maxLine = lineLen
			}
			lineLen = 0
			continue
		}
		if err == bufio.ErrBufferFull {
			continue
		}
		// EOF or a real read error both end the probe. A final line without a
		// terminator still counts.
		if lineLen > maxLine {
			maxLine = lineLen
		}
		return maxLine
	}
}

func (t *table) rewind() error {
	_, err := t.file.Seek(0, io.SeekStart)
	return err
}

// decodeEntries runs the record pass, appending each decoded entry in table
// order. Any read failure mid-stream returns the entries collected so far.
func (t *table) decodeEntries(maxLine int) []MountEntry {
	entries := []MountEntry{}
	scanner := bufio.NewScanner(t.file)
	// One extra byte mirrors the terminator getmntent reserves; it also keeps
	// a final unterminated line within the buffer.
	scanner.Buffer(make([]byte, maxLine+1), maxLine+1)
	for scanner.Scan() {
		if entry, ok := decodeEntry(scanner.Text()); ok {
			entries = append(entries, entry)
		}
	}
	return entries
}

// close releases the underlying stream. Failure to close a read-only stream
// has no consequence for the caller, so it is not surfaced.
func (t *table) close() {
	_ = t.file.Close()
}
