package util

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
)

// GetStdinDelimiterFromString parses the user facing --stdin-delimiter value into the single byte
// that separates paths on stdin. Escape sequences like \n and \x00 are accepted so null delimited
// input from `find -print0` works.
func GetStdinDelimiterFromString(s string) (byte, error) {
	if s == "\n" {
		// The flag default is a literal newline so the help text stays readable. Normalize it to
		// the escaped form before unquoting.
		s = `\n`
	}
	unquoted, err := strconv.Unquote(`"` + s + `"`)
	if err != nil || len(unquoted) != 1 {
		return 0, fmt.Errorf("the stdin-delimiter must be a single character or valid escape sequence such as \"\\n\" for a newline or \"\\x00\" for null (provided: %s)", s)
	}
	return unquoted[0], nil
}

// ReadFromStdin splits stdin on delimiter and sends each token to toChan until EOF, then closes
// toChan. The first read or context error is sent to errChan and reading stops. Tokens are not
// trimmed, so a trailing delimiter produces no empty final token but embedded whitespace survives.
func ReadFromStdin(ctx context.Context, delimiter byte, toChan chan<- string, errChan chan<- error) {
	defer close(toChan)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Split(func(data []byte, atEOF bool) (int, []byte, error) {
		for i, b := range data {
			if b == delimiter {
				return i + 1, data[:i], nil
			}
		}
		if atEOF && len(data) > 0 {
			// Flush whatever trails the last delimiter.
			return len(data), data, nil
		}
		return 0, nil, nil
	})

	for scanner.Scan() {
		select {
		case toChan <- scanner.Text():
		case <-ctx.Done():
			errChan <- ctx.Err()
			return
		}
	}
	if err := scanner.Err(); err != nil {
		errChan <- err
	}
}
