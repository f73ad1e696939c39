package uart

import "uartad/pkg/logic"

// EventType tags a decoded frame element on the structured output channel.
type EventType string

const (
	EvStartBit        EventType = "STARTBIT"
	EvData            EventType = "DATA"
	EvParityBit       EventType = "PARITYBIT"
	EvStopBit         EventType = "STOPBIT"
	EvInvalidStartBit EventType = "INVALID STARTBIT"
	EvInvalidStopBit  EventType = "INVALID STOPBIT"
	EvParityError     EventType = "PARITY ERROR"
)

// Bit is one received data bit with its sample span.
type Bit struct {
	// Value is the bit value (0 or 1).
	Value int
	// SS is the inclusive start sample of the bit span.
	SS int64
	// ES is the exclusive end sample of the bit span.
	ES int64
}

// Event is one structured decode event. SS/ES span the samples the event
// covers (inclusive start, exclusive end).
type Event struct {
	Type EventType  `json:"type"`
	Line logic.Line `json:"line"`
	SS   int64      `json:"ss"`
	ES   int64      `json:"es"`
	// Value is the bit value for bit events and the accumulated data value
	// for EvData.
	Value int `json:"value"`
	// Bits is the per-bit log of an EvData event, nil otherwise.
	Bits []Bit `json:"bits,omitempty"`
	// Expected and Actual are set for EvParityError only.
	Expected int `json:"expected"`
	Actual   int `json:"actual"`
}

// Annotation class bases. The class of an annotation is its base plus the
// line index, yielding one small integer id per (line, element kind) pair.
const (
	annData      = 0
	annStart     = 2
	annParityOK  = 4
	annParityErr = 6
	annStop      = 8
	annWarn      = 10
	annBit       = 12
)

// Ann is one display annotation with a class id and a label set ordered from
// longest to shortest.
type Ann struct {
	Class int
	SS    int64
	ES    int64
	Texts []string
}

// Binary dump rows.
const (
	BinRX   = 0
	BinTX   = 1
	BinRXTX = 2
)

// Bin is one binary dump chunk: the big-endian fixed-width encoding of a
// completed data value.
type Bin struct {
	Row  int
	SS   int64
	ES   int64
	Data []byte
}

// Emitter consumes the three independent output channels of the decoder.
type Emitter interface {
	// PutEvent receives a structured decode event.
	PutEvent(Event)
	// PutAnn receives a display annotation.
	PutAnn(Ann)
	// PutBin receives a binary dump chunk.
	PutBin(Bin)
}
