package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseIntFromStr(t *testing.T) {
	tests := []struct {
		input    string
		expected uint64
		err      bool
	}{
		{"1024", 1024, false},
		{"1Mi", 1048576, false},
		{"2Mi", 2097152, false},
		{"2MiB", 2097152, false},
		{"4Mi", 4194304, false},
		{"1kB", 1000, false},
		{"1ki", 1024, false},
		{"1kiB", 1024, false},
		{"1.5Mi", 1572864, false}, // 1.5 * 1024 * 1024
		{"1G", 1000000000, false},
		{"1GB", 1000000000, false},
		{"2.5T", 2500000000000, false},                        // 2.5 * 1000 * 1000 * 1000 * 1000
		{"3.2Gi", 3435973836, false},                          // 3.2 * 1024 * 1024 * 1024
		{"1536ki", 1572864, false},                            // equivalent to 1.5Mi in bytes
		{"", 0, true},                                         // invalid input
		{"10XY", 0, true},                                     // invalid prefix
		{"1.5.5G", 0, true},                                   // invalid number format
		{"18446744073709551615", 18446744073709551615, false}, // Max uint64 in bytes does not return an error.
		{"18446744073709551616", 0, true},                     // Max uint64+1 in bytes returns an error.
		{"9007199254740992.0", 0, true},                       // Bytes must be specified as a whole number.
		{"8.00PiB", 9007199254740992, false},                  // There is no loss of precision up to 9007199254740992 for decimal values.
		{"9PiB", 10133099161583616, false},                    // There is no loss of precision above 9007199254740992 for whole numbers.
		{"18014398509481984KiB", 0, true},                     // Converting whole numbers that would overflow a uint64 results in an error.
		{"18014398509481984.00KiB", 0, true},                  // Converting decimals that would overflow a uint64 results in an error.
		{"1kiI", 0, true},                                     // Reject if the unit is not B for bytes.
		{"1kib", 1024, true},                                  // Reject if the unit is not an uppercase B for bytes.
	}

	for _, test := range tests {
		result, err := ParseIntFromStr(test.input)
		if test.err {
			assert.Error(t, err, "expected an error for input %s", test.input)
		} else {
			assert.NoError(t, err, "did not expect an error for input %s", test.input)
			assert.Equal(t, test.expected, result, "unexpected result for input %s", test.input)
		}
	}
}

func TestU64FormatBytes(t *testing.T) {
	assert.Equal(t, "1.0KiB", U64FormatBytes(1024, false))
	assert.Equal(t, "1024", U64FormatBytes(1024, true))
}

func TestGetStdinDelimiterFromString(t *testing.T) {
	d, err := GetStdinDelimiterFromString(`\n`)
	assert.NoError(t, err)
	assert.Equal(t, byte('\n'), d)

	d, err = GetStdinDelimiterFromString(`\x00`)
	assert.NoError(t, err)
	assert.Equal(t, byte(0), d)

	_, err = GetStdinDelimiterFromString("too long")
	assert.Error(t, err)
}
