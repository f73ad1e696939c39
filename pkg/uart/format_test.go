package uart

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatValue(t *testing.T) {
	tests := []struct {
		format Format
		bits   int
		v      int
		want   string
	}{
		{FormatASCII, 8, 65, "A"},
		{FormatASCII, 8, 200, "[C8]"},
		{FormatASCII, 8, 31, "[1F]"},
		{FormatASCII, 8, 127, "[7F]"},
		{FormatASCII, 9, 300, "[12C]"},
		{FormatDec, 8, 65, "65"},
		{FormatDec, 8, 0, "0"},
		{FormatHex, 8, 10, "0A"},
		{FormatHex, 9, 10, "00A"},
		{FormatHex, 5, 31, "1F"},
		{FormatOct, 8, 10, "012"},
		{FormatOct, 6, 63, "77"},
		{FormatBin, 5, 5, "00101"},
		{FormatBin, 8, 65, "01000001"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatValue(tt.format, tt.bits, tt.v), "format %v bits %d value %d", tt.format, tt.bits, tt.v)
	}
}

// TestFormatValueRoundTrip parses the padded representations back and expects
// the original value, for all supported data bit counts.
func TestFormatValueRoundTrip(t *testing.T) {
	bases := map[Format]int{
		FormatDec: 10,
		FormatHex: 16,
		FormatOct: 8,
		FormatBin: 2,
	}

	for bits := 5; bits <= 9; bits++ {
		for _, v := range []int{0, 1, 5, 1<<bits - 1} {
			for format, base := range bases {
				s := FormatValue(format, bits, v)
				got, err := strconv.ParseInt(s, base, 32)
				require.NoError(t, err, "parsing %q", s)
				assert.Equal(t, int64(v), got, "bits %d base %d", bits, base)
			}
		}
	}
}

func TestParseOptions(t *testing.T) {
	for _, s := range []string{"none", "odd", "even", "zero", "one"} {
		_, err := ParseParity(s)
		assert.NoError(t, err)
	}
	_, err := ParseParity("mark")
	assert.Error(t, err)

	for _, s := range []string{"lsb-first", "msb-first"} {
		_, err := ParseBitOrder(s)
		assert.NoError(t, err)
	}
	_, err = ParseBitOrder("both")
	assert.Error(t, err)

	for _, s := range []string{"ascii", "dec", "hex", "oct", "bin"} {
		_, err := ParseFormat(s)
		assert.NoError(t, err)
	}
	_, err = ParseFormat("utf8")
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{BaudRate: 9600, DataBits: 8, StopBits: 1.0}
	assert.NoError(t, cfg.Validate())

	bad := cfg
	bad.BaudRate = 0
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.DataBits = 4
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.DataBits = 10
	assert.Error(t, bad.Validate())

	bad = cfg
	bad.StopBits = 3.0
	assert.Error(t, bad.Validate())
}
