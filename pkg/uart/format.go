package uart

import (
	"fmt"
	"strconv"
)

// FormatValue renders a data value for display according to the configured
// format and the data bit count. The structured and binary outputs always
// carry the raw value, this representation is for annotations only.
func FormatValue(format Format, bits, v int) string {
	switch format {
	case FormatASCII:
		// Printable is 32..126: below is control, 127 (DEL) is not
		// printable and above is not strict ASCII. Non-printables fall
		// back to bracketed hex.
		if v >= 32 && v <= 126 {
			return string(rune(v))
		}
		if bits <= 8 {
			return fmt.Sprintf("[%02X]", v)
		}
		return fmt.Sprintf("[%03X]", v)

	case FormatDec:
		return strconv.Itoa(v)

	case FormatHex:
		return fmt.Sprintf("%0*X", (bits+3)/4, v)

	case FormatOct:
		return fmt.Sprintf("%0*o", (bits+2)/3, v)

	case FormatBin:
		return fmt.Sprintf("%0*b", bits, v)
	}

	return ""
}
