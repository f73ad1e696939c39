package uart

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"uartad/pkg/logic"
)

// Test waveforms run at 9600 baud sampled at 96000 samples/s,
// so one bit is exactly 10 samples wide.
const (
	testBaud = 9600
	testRate = 96000
	bitW     = 10
)

// collector records everything the decoder emits.
type collector struct {
	events []Event
	anns   []Ann
	bins   []Bin
}

func (c *collector) PutEvent(e Event) { c.events = append(c.events, e) }
func (c *collector) PutAnn(a Ann)     { c.anns = append(c.anns, a) }
func (c *collector) PutBin(b Bin)     { c.bins = append(c.bins, b) }

func (c *collector) byType(typ EventType) []Event {
	var events []Event
	for _, e := range c.events {
		if e.Type == typ {
			events = append(events, e)
		}
	}
	return events
}

func (c *collector) byClass(class int) []Ann {
	var anns []Ann
	for _, a := range c.anns {
		if a.Class == class {
			anns = append(anns, a)
		}
	}
	return anns
}

// level appends n samples of value v.
func level(s []bool, v bool, n int) []bool {
	for i := 0; i < n; i++ {
		s = append(s, v)
	}
	return s
}

// dataBits appends the data bits of v in the configured order.
func dataBits(s []bool, cfg Config, v int) []bool {
	for i := 0; i < cfg.DataBits; i++ {
		var bit int
		if cfg.BitOrder == LSBFirst {
			bit = v >> i & 1
		} else {
			bit = v >> (cfg.DataBits - 1 - i) & 1
		}
		s = level(s, bit == 1, bitW)
	}
	return s
}

// frame appends one complete well-formed frame transmitting v.
// The parity bit, if configured, is chosen to validate.
func frame(s []bool, cfg Config, v int) []bool {
	s = level(s, false, bitW)
	s = dataBits(s, cfg, v)
	if cfg.Parity != ParityNone {
		s = level(s, expectedParity(cfg.Parity, v) == 1, bitW)
	}
	return level(s, true, bitW)
}

func testConfig() Config {
	return Config{
		BaudRate: testBaud,
		DataBits: 8,
		Parity:   ParityNone,
		StopBits: 1.0,
		BitOrder: LSBFirst,
		Format:   FormatHex,
	}
}

func decode(t *testing.T, cfg Config, rx, tx []bool) (*Decoder, *collector) {
	t.Helper()

	trace := logic.NewTrace(testRate)
	if rx != nil {
		trace.SetLine(logic.RX, rx)
	}
	if tx != nil {
		trace.SetLine(logic.TX, tx)
	}

	out := &collector{}
	d, err := New(cfg, trace, out)
	require.NoError(t, err)
	require.NoError(t, d.Run())

	return d, out
}

func TestDecodeByte(t *testing.T) {
	cfg := testConfig()

	rx := level(nil, true, 20)
	rx = frame(rx, cfg, 0x41)
	rx = level(rx, true, 30)

	d, out := decode(t, cfg, rx, nil)

	starts := out.byType(EvStartBit)
	require.Len(t, starts, 1)
	assert.Equal(t, logic.RX, starts[0].Line)
	assert.Equal(t, 0, starts[0].Value)
	// start bit edge at sample 20, sampled at 25, spanned half a bit wide
	assert.Equal(t, int64(20), starts[0].SS)
	assert.Equal(t, int64(30), starts[0].ES)

	data := out.byType(EvData)
	require.Len(t, data, 1)
	assert.Equal(t, 0x41, data[0].Value)
	require.Len(t, data[0].Bits, 8)
	assert.Equal(t, []int{1, 0, 0, 0, 0, 0, 1, 0}, bitValues(data[0].Bits))
	for _, b := range data[0].Bits {
		assert.Equal(t, int64(bitW), b.ES-b.SS)
	}
	// first data bit sampled at 35, last at 105
	assert.Equal(t, int64(30), data[0].SS)
	assert.Equal(t, int64(110), data[0].ES)

	stops := out.byType(EvStopBit)
	require.Len(t, stops, 1)
	assert.Equal(t, 1, stops[0].Value)

	assert.Empty(t, out.byType(EvInvalidStartBit))
	assert.Empty(t, out.byType(EvInvalidStopBit))
	assert.Empty(t, out.byType(EvParityBit))
	assert.Empty(t, out.byType(EvParityError))

	// display annotation carries the hex rendering
	dataAnns := out.byClass(annData + int(logic.RX))
	require.Len(t, dataAnns, 1)
	assert.Equal(t, []string{"41"}, dataAnns[0].Texts)

	// binary dump once per line and once combined
	require.Len(t, out.bins, 2)
	assert.Equal(t, BinRX, out.bins[0].Row)
	assert.Equal(t, []byte{0x41}, out.bins[0].Data)
	assert.Equal(t, BinRXTX, out.bins[1].Row)
	assert.Equal(t, []byte{0x41}, out.bins[1].Data)

	assert.Equal(t, waitForStartBit, d.line[logic.RX].state)
}

func bitValues(bits []Bit) []int {
	values := make([]int, len(bits))
	for i, b := range bits {
		values[i] = b.Value
	}
	return values
}

func TestDecodeBitWidthsAndOrders(t *testing.T) {
	for bits := 5; bits <= 9; bits++ {
		for _, order := range []BitOrder{LSBFirst, MSBFirst} {
			cfg := testConfig()
			cfg.DataBits = bits
			cfg.BitOrder = order

			v := 0x155 & (1<<bits - 1)

			rx := level(nil, true, 2*bitW)
			rx = frame(rx, cfg, v)
			rx = level(rx, true, 2*bitW)

			_, out := decode(t, cfg, rx, nil)

			data := out.byType(EvData)
			require.Len(t, data, 1, "bits %d order %v", bits, order)
			assert.Equal(t, v, data[0].Value, "bits %d order %v", bits, order)
			assert.Len(t, data[0].Bits, bits)
		}
	}
}

func TestDecodeNineBitDump(t *testing.T) {
	cfg := testConfig()
	cfg.DataBits = 9

	rx := level(nil, true, 2*bitW)
	rx = frame(rx, cfg, 0x155)
	rx = level(rx, true, 2*bitW)

	_, out := decode(t, cfg, rx, nil)

	require.Len(t, out.bins, 2)
	assert.Equal(t, []byte{0x01, 0x55}, out.bins[0].Data)
}

func TestInvalidStartBit(t *testing.T) {
	cfg := testConfig()

	// a glitch: the line falls but is back high at the start bit sample point
	rx := level(nil, true, 20)
	rx = level(rx, false, 3)
	rx = level(rx, true, 40)

	d, out := decode(t, cfg, rx, nil)

	invalid := out.byType(EvInvalidStartBit)
	require.Len(t, invalid, 1)
	assert.Equal(t, 1, invalid[0].Value)

	assert.Len(t, out.byClass(annWarn+int(logic.RX)), 1)

	// the frame attempt is aborted, nothing else is emitted
	assert.Empty(t, out.byType(EvStartBit))
	assert.Empty(t, out.byType(EvData))
	assert.Empty(t, out.byType(EvStopBit))

	assert.Equal(t, waitForStartBit, d.line[logic.RX].state)
}

func TestInvalidStopBit(t *testing.T) {
	cfg := testConfig()

	// first frame with a broken stop bit, then a well-formed one
	rx := level(nil, true, 20)
	rx = level(rx, false, bitW)
	rx = dataBits(rx, cfg, 0x41)
	rx = level(rx, false, bitW) // stop bit stuck low
	rx = level(rx, true, 20)
	rx = frame(rx, cfg, 0x55)
	rx = level(rx, true, 30)

	d, out := decode(t, cfg, rx, nil)

	invalid := out.byType(EvInvalidStopBit)
	require.Len(t, invalid, 1)
	assert.Equal(t, 0, invalid[0].Value)

	// the normal stop bit event fires as well, for both frames
	stops := out.byType(EvStopBit)
	require.Len(t, stops, 2)
	assert.Equal(t, 0, stops[0].Value)
	assert.Equal(t, 1, stops[1].Value)

	data := out.byType(EvData)
	require.Len(t, data, 2)
	assert.Equal(t, 0x41, data[0].Value)
	assert.Equal(t, 0x55, data[1].Value)

	assert.Equal(t, waitForStartBit, d.line[logic.RX].state)
}

func TestParityEven(t *testing.T) {
	cfg := testConfig()
	cfg.Parity = ParityEven

	rx := level(nil, true, 20)
	rx = frame(rx, cfg, 0x41)
	rx = level(rx, true, 30)

	_, out := decode(t, cfg, rx, nil)

	parity := out.byType(EvParityBit)
	require.Len(t, parity, 1)
	assert.Equal(t, expectedParity(ParityEven, 0x41), parity[0].Value)
	assert.Empty(t, out.byType(EvParityError))

	require.Len(t, out.byType(EvData), 1)
	require.Len(t, out.byType(EvStopBit), 1)
}

func TestParityError(t *testing.T) {
	cfg := testConfig()
	cfg.Parity = ParityOdd

	wrong := 1 - expectedParity(ParityOdd, 0x41)

	rx := level(nil, true, 20)
	rx = level(rx, false, bitW)
	rx = dataBits(rx, cfg, 0x41)
	rx = level(rx, wrong == 1, bitW)
	rx = level(rx, true, bitW)
	rx = level(rx, true, 30)

	d, out := decode(t, cfg, rx, nil)

	errors := out.byType(EvParityError)
	require.Len(t, errors, 1)
	assert.Equal(t, expectedParity(ParityOdd, 0x41), errors[0].Expected)
	assert.Equal(t, wrong, errors[0].Actual)
	assert.Empty(t, out.byType(EvParityBit))

	// a parity mismatch does not abort the frame
	require.Len(t, out.byType(EvStopBit), 1)
	assert.Equal(t, waitForStartBit, d.line[logic.RX].state)
}

func TestDualLineIdleTX(t *testing.T) {
	cfg := testConfig()

	rx := level(nil, true, 20)
	rx = frame(rx, cfg, 0x41)
	rx = level(rx, true, 30)
	tx := level(nil, true, len(rx))

	d, out := decode(t, cfg, rx, tx)

	for _, e := range out.events {
		assert.Equal(t, logic.RX, e.Line)
	}
	require.Len(t, out.byType(EvData), 1)

	assert.Equal(t, waitForStartBit, d.line[logic.TX].state)
}

func TestDecodeInverted(t *testing.T) {
	cfg := testConfig()
	cfg.Invert[logic.RX] = true

	rx := level(nil, true, 20)
	rx = frame(rx, cfg, 0x41)
	rx = level(rx, true, 30)
	for i := range rx {
		rx[i] = !rx[i]
	}

	_, out := decode(t, cfg, rx, nil)

	data := out.byType(EvData)
	require.Len(t, data, 1)
	assert.Equal(t, 0x41, data[0].Value)
}

func TestRunStartupErrors(t *testing.T) {
	cfg := testConfig()
	out := &collector{}

	// unknown samplerate
	trace := logic.NewTrace(0)
	trace.SetLine(logic.RX, level(nil, true, 100))
	d, err := New(cfg, trace, out)
	require.NoError(t, err)
	assert.ErrorIs(t, d.Run(), ErrNoSamplerate)

	// neither line monitored
	d, err = New(cfg, logic.NewTrace(testRate), out)
	require.NoError(t, err)
	assert.ErrorIs(t, d.Run(), ErrNoLine)
}
