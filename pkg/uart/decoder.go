package uart

import (
	"errors"
	"io"
	"math"
	"strconv"

	"github.com/womat/debug"
	"uartad/pkg/logic"
)

const (
	// waitForStartBit is the idle state, waiting for a start bit edge.
	waitForStartBit stateType = iota
	// getStartBit samples and validates the start bit.
	getStartBit
	// getDataBits samples the configured number of data bits.
	getDataBits
	// getParityBit samples and validates the parity bit.
	getParityBit
	// getStopBits samples and validates the first stop bit.
	getStopBits
)

// stateType represents the per-line state of the frame automaton.
type stateType int

// lineState is the mutable decode state of a single line. The two line
// states are fully independent, they only share the absolute sample clock.
type lineState struct {
	state stateType
	// frameStart is the absolute sample index of the start bit edge.
	frameStart int64
	// startSample is the absolute sample index of the middle of the first
	// data bit, -1 while unset. It anchors the span of data annotations.
	startSample int64
	// curDataBit counts the data bits consumed in the current frame.
	curDataBit int
	// dataValue accumulates the data bits in the configured order.
	dataValue int
	// bits is the per-bit log of the in-progress data group.
	bits []Bit

	startBit  int
	parityBit int
	stopBit   int
}

// Decoder decodes UART frames on up to two lines from a sample source.
type Decoder struct {
	cfg Config
	src logic.Source
	out Emitter

	// bitWidth is the width of one UART bit in samples, derived from the
	// source sample rate and the baud rate when Run starts.
	bitWidth float64
	// byteWidth is the width of a data value in the binary dump.
	byteWidth int
	// samplenum is the absolute sample index of the last wait result.
	samplenum int64

	present [logic.NumLines]bool
	line    [logic.NumLines]lineState
}

// New creates a Decoder for the given configuration, sample source and
// output emitter. The configuration is validated and immutable afterwards.
func New(cfg Config, src logic.Source, out Emitter) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	d := &Decoder{
		cfg:       cfg,
		src:       src,
		out:       out,
		byteWidth: (cfg.DataBits + 7) / 8,
	}
	for i := range d.line {
		d.line[i] = lineState{state: waitForStartBit, frameStart: -1, startSample: -1}
	}

	return d, nil
}

// Run drives the decode loop until the source reports the end of its samples
// (io.EOF, returned as nil) or fails. Each cycle submits one wait condition
// per monitored line, blocks on the combined wait and feeds every matched
// line's sample through its frame automaton.
func (d *Decoder) Run() error {
	rate := d.src.Samplerate()
	if rate == 0 {
		return ErrNoSamplerate
	}
	d.bitWidth = float64(rate) / float64(d.cfg.BaudRate)

	for l := logic.Line(0); l < logic.NumLines; l++ {
		d.present[l] = d.src.HasLine(l)
	}
	if !d.present[logic.RX] && !d.present[logic.TX] {
		return ErrNoLine
	}

	debug.InfoLog.Printf("uart decode started: %v baud, bit width %.2f samples", d.cfg.BaudRate, d.bitWidth)

	conds := make([]logic.Cond, 0, logic.NumLines)
	var condIdx [logic.NumLines]int

	for {
		conds = conds[:0]
		for l := logic.Line(0); l < logic.NumLines; l++ {
			if !d.present[l] {
				condIdx[l] = -1
				continue
			}
			condIdx[l] = len(conds)
			conds = append(conds, d.waitCond(l))
		}

		snap, err := d.src.Wait(conds)
		if errors.Is(err, io.EOF) {
			debug.InfoLog.Print("uart decode finished: end of samples")
			return nil
		}
		if err != nil {
			return err
		}

		d.samplenum = snap.SampleNum
		for l := logic.Line(0); l < logic.NumLines; l++ {
			if condIdx[l] >= 0 && snap.Matched[condIdx[l]] {
				d.inspectSample(l, snap.Values[l])
			}
		}
	}
}

// waitCond computes the next wait condition for a line: the start bit edge
// while idle, otherwise a skip to the sample point of the pending bit slot.
func (d *Decoder) waitCond(l logic.Line) logic.Cond {
	ls := &d.line[l]

	if ls.state == waitForStartBit {
		if d.cfg.Invert[l] {
			return logic.Cond{Line: l, Edge: logic.Rising}
		}
		return logic.Cond{Line: l, Edge: logic.Falling}
	}

	// bitnum is the bit ordinal within the frame: 0 is the start bit,
	// 1..DataBits the data bits, then the parity bit (if any), then the
	// first stop bit.
	var bitnum int
	switch ls.state {
	case getStartBit:
		bitnum = 0
	case getDataBits:
		bitnum = 1 + ls.curDataBit
	case getParityBit:
		bitnum = 1 + d.cfg.DataBits
	case getStopBits:
		bitnum = 1 + d.cfg.DataBits
		if d.cfg.Parity != ParityNone {
			bitnum++
		}
	}

	// The samples within a bit slot are 0 .. bitWidth-1, so the middle one
	// sits at (bitWidth-1)/2 past the slot start. Rounding up keeps the
	// sample point from preceding the true bit center under fractional bit
	// widths.
	bitpos := float64(ls.frameStart) + (d.bitWidth-1)/2 + float64(bitnum)*d.bitWidth
	want := int64(math.Ceil(bitpos))

	return logic.Cond{Line: l, Skip: want - d.samplenum}
}

// inspectSample feeds one sample value through the frame automaton of a line.
func (d *Decoder) inspectSample(l logic.Line, value bool) {
	if d.cfg.Invert[l] {
		value = !value
	}
	signal := 0
	if value {
		signal = 1
	}

	switch d.line[l].state {
	case waitForStartBit:
		d.startBitEdge(l)
	case getStartBit:
		d.readStartBit(l, signal)
	case getDataBits:
		d.readDataBit(l, signal)
	case getParityBit:
		d.readParityBit(l, signal)
	case getStopBits:
		d.readStopBit(l, signal)
	}
}

// startBitEdge records where the start bit begins and arms sampling of it.
func (d *Decoder) startBitEdge(l logic.Line) {
	d.line[l].frameStart = d.samplenum
	d.line[l].state = getStartBit
}

// readStartBit validates the start bit. A start bit that is not 0 is
// reported and aborts the frame attempt, treating the edge as spurious.
func (d *Decoder) readStartBit(l logic.Line, signal int) {
	ls := &d.line[l]
	ls.startBit = signal

	if signal != 0 {
		d.putBitEvent(l, EvInvalidStartBit, signal)
		d.putBitAnn(l, annWarn, "Frame error", "Frame err", "FE")
		ls.state = waitForStartBit
		return
	}

	ls.curDataBit = 0
	ls.dataValue = 0
	ls.startSample = -1

	d.putBitEvent(l, EvStartBit, signal)
	d.putBitAnn(l, annStart, "Start bit", "Start", "S")

	ls.state = getDataBits
}

// readDataBit folds one data bit into the accumulator and, once the
// configured count is reached, emits the completed data value on all three
// output channels.
func (d *Decoder) readDataBit(l logic.Line, signal int) {
	ls := &d.line[l]

	// The middle of the first data bit anchors the data value span.
	if ls.startSample == -1 {
		ls.startSample = d.samplenum
	}

	if d.cfg.BitOrder == LSBFirst {
		ls.dataValue >>= 1
		ls.dataValue |= signal << (d.cfg.DataBits - 1)
	} else {
		ls.dataValue <<= 1
		ls.dataValue |= signal
	}

	d.putBitAnn(l, annBit, strconv.Itoa(signal))

	half := int64(d.bitWidth / 2)
	ls.bits = append(ls.bits, Bit{Value: signal, SS: d.samplenum - half, ES: d.samplenum + half})

	ls.curDataBit++
	if ls.curDataBit < d.cfg.DataBits {
		return
	}

	ss, es := d.wordSpan(l)
	d.out.PutEvent(Event{Type: EvData, Line: l, SS: ss, ES: es, Value: ls.dataValue, Bits: ls.bits})
	d.out.PutAnn(Ann{Class: annData + int(l), SS: ss, ES: es,
		Texts: []string{FormatValue(d.cfg.Format, d.cfg.DataBits, ls.dataValue)}})

	data := make([]byte, d.byteWidth)
	for i := range data {
		data[i] = byte(ls.dataValue >> (8 * (d.byteWidth - 1 - i)))
	}
	d.out.PutBin(Bin{Row: int(l), SS: ss, ES: es, Data: data})
	d.out.PutBin(Bin{Row: BinRXTX, SS: ss, ES: es, Data: data})

	ls.bits = nil

	if d.cfg.Parity == ParityNone {
		ls.state = getStopBits
	} else {
		ls.state = getParityBit
	}
}

// readParityBit validates the parity bit against the accumulated data value.
// Validation runs whenever parity is configured, the outcome never aborts
// the frame.
func (d *Decoder) readParityBit(l logic.Line, signal int) {
	ls := &d.line[l]
	ls.parityBit = signal

	if parityOK(d.cfg.Parity, signal, ls.dataValue) {
		d.putBitEvent(l, EvParityBit, signal)
		d.putBitAnn(l, annParityOK, "Parity bit", "Parity", "P")
	} else {
		ss, es := d.bitSpan()
		d.out.PutEvent(Event{Type: EvParityError, Line: l, SS: ss, ES: es,
			Expected: expectedParity(d.cfg.Parity, ls.dataValue), Actual: signal})
		d.putBitAnn(l, annParityErr, "Parity error", "Parity err", "PE")
	}

	ls.state = getStopBits
}

// readStopBit validates the first stop bit. A stop bit that is not 1 is
// reported as a frame error but the frame still completes.
func (d *Decoder) readStopBit(l logic.Line, signal int) {
	ls := &d.line[l]
	ls.stopBit = signal

	if signal != 1 {
		d.putBitEvent(l, EvInvalidStopBit, signal)
		d.putBitAnn(l, annWarn, "Frame error", "Frame err", "FE")
	}

	d.putBitEvent(l, EvStopBit, signal)
	d.putBitAnn(l, annStop, "Stop bit", "Stop", "T")

	ls.state = waitForStartBit
}

// bitSpan is the half-bit-width span around the current sample point.
func (d *Decoder) bitSpan() (ss, es int64) {
	half := d.bitWidth / 2
	return d.samplenum - int64(math.Floor(half)), d.samplenum + int64(math.Ceil(half))
}

// wordSpan spans from the middle of the first data bit to the current sample
// point, widened by half a bit on both sides.
func (d *Decoder) wordSpan(l logic.Line) (ss, es int64) {
	half := d.bitWidth / 2
	return d.line[l].startSample - int64(math.Floor(half)), d.samplenum + int64(math.Ceil(half))
}

func (d *Decoder) putBitEvent(l logic.Line, typ EventType, value int) {
	ss, es := d.bitSpan()
	d.out.PutEvent(Event{Type: typ, Line: l, SS: ss, ES: es, Value: value})
}

func (d *Decoder) putBitAnn(l logic.Line, base int, texts ...string) {
	ss, es := d.bitSpan()
	d.out.PutAnn(Ann{Class: base + int(l), SS: ss, ES: es, Texts: texts})
}
