// Package uart is a software decoder for asynchronous serial (UART) frames.
//
// It turns raw logic samples delivered by a logic.Source into a stream of
// decoded frame events (start bit, data bits, parity bit, stop bit and error
// conditions), independently for the RX and the TX line. Both lines share the
// same absolute sample clock but are otherwise fully independent.
package uart

import (
	"errors"
	"fmt"

	"uartad/pkg/logic"
)

var (
	// ErrNoSamplerate is returned when decoding starts without a known sample rate.
	ErrNoSamplerate = errors.New("cannot decode without samplerate")
	// ErrNoLine is returned when neither RX nor TX is monitored.
	ErrNoLine = errors.New("either RX or TX (or both) lines required")
)

// Parity is the configured parity mode.
type Parity int

const (
	// ParityNone disables the parity bit entirely.
	ParityNone Parity = iota
	// ParityOdd expects an odd count of set bits across data and parity bit.
	ParityOdd
	// ParityEven expects an even count of set bits across data and parity bit.
	ParityEven
	// ParityZero expects the parity bit to always be 0.
	ParityZero
	// ParityOne expects the parity bit to always be 1.
	ParityOne
)

// ParseParity maps a configuration string to a Parity mode.
func ParseParity(s string) (Parity, error) {
	switch s {
	case "none":
		return ParityNone, nil
	case "odd":
		return ParityOdd, nil
	case "even":
		return ParityEven, nil
	case "zero":
		return ParityZero, nil
	case "one":
		return ParityOne, nil
	}
	return 0, fmt.Errorf("invalid parity type %q", s)
}

// BitOrder is the order data bits arrive on the wire.
type BitOrder int

const (
	// LSBFirst receives the least significant data bit first.
	LSBFirst BitOrder = iota
	// MSBFirst receives the most significant data bit first.
	MSBFirst
)

// ParseBitOrder maps a configuration string to a BitOrder.
func ParseBitOrder(s string) (BitOrder, error) {
	switch s {
	case "lsb-first":
		return LSBFirst, nil
	case "msb-first":
		return MSBFirst, nil
	}
	return 0, fmt.Errorf("invalid bit order %q", s)
}

// Format selects the textual representation of decoded data values.
type Format int

const (
	// FormatHex renders zero-padded hexadecimal.
	FormatHex Format = iota
	// FormatASCII renders printable characters, hex in brackets otherwise.
	FormatASCII
	// FormatDec renders plain decimal.
	FormatDec
	// FormatOct renders zero-padded octal.
	FormatOct
	// FormatBin renders zero-padded binary.
	FormatBin
)

// ParseFormat maps a configuration string to a Format.
func ParseFormat(s string) (Format, error) {
	switch s {
	case "ascii":
		return FormatASCII, nil
	case "dec":
		return FormatDec, nil
	case "hex":
		return FormatHex, nil
	case "oct":
		return FormatOct, nil
	case "bin":
		return FormatBin, nil
	}
	return 0, fmt.Errorf("invalid data format %q", s)
}

// Config holds the frame shape and decoding options of a decode run.
// It is immutable for the lifetime of a Decoder.
type Config struct {
	// BaudRate is the line speed in bits per second.
	BaudRate int
	// DataBits is the number of data bits per frame (5..9).
	DataBits int
	// Parity is the parity mode, ParityNone for no parity bit.
	Parity Parity
	// ParityCheck is informational only: parity validation always runs
	// whenever Parity is not ParityNone.
	ParityCheck bool
	// StopBits is the configured stop bit count (0.5, 1.0, 1.5 or 2.0).
	// Only the first stop bit is sampled and validated.
	StopBits float64
	// BitOrder is the wire order of the data bits.
	BitOrder BitOrder
	// Format selects the display representation of data values.
	Format Format
	// Invert flags an inverted signal per line, indexed by logic.Line.
	Invert [logic.NumLines]bool
}

// Validate checks the configuration against the supported value sets.
func (c Config) Validate() error {
	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.BaudRate)
	}
	if c.DataBits < 5 || c.DataBits > 9 {
		return fmt.Errorf("invalid data bit count %d", c.DataBits)
	}
	switch c.StopBits {
	case 0.5, 1.0, 1.5, 2.0:
	default:
		return fmt.Errorf("invalid stop bit count %v", c.StopBits)
	}
	return nil
}
