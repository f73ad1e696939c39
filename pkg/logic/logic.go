// Package logic holds the definition of the boundary to a logic sample source.
//
// A sample source owns the monotonically increasing absolute sample counter and
// delivers single samples on request: the decoder submits a list of wait
// conditions and the source blocks until at least one of them is satisfied.
package logic

// Line identifies one of the two monitored half-duplex signal lines.
type Line int

const (
	// RX is the receive line.
	RX Line = 0
	// TX is the transmit line.
	TX Line = 1

	// NumLines is the count of monitorable lines.
	NumLines = 2
)

func (l Line) String() string {
	if l == RX {
		return "RX"
	}
	return "TX"
}

// Edge indicates the polarity of a line transition.
type Edge int

const (
	_ Edge = iota
	// Rising indicates a low to high transition.
	Rising
	// Falling indicates a high to low transition.
	Falling
)

// Cond is a single wait condition for one line.
// Exactly one of Edge and Skip is meaningful: a zero Edge makes the condition
// a skip condition, satisfied Skip samples past the current sample position.
type Cond struct {
	// Line is the line the condition applies to.
	Line Line
	// Edge is the transition polarity to wait for, or zero for a skip condition.
	Edge Edge
	// Skip is the number of samples to advance from the current position.
	Skip int64
}

// Snapshot is the result of a wait call.
type Snapshot struct {
	// SampleNum is the absolute sample index the wait stopped at.
	SampleNum int64
	// Values holds the current value of every line, indexed by Line.
	// Lines that are not monitored read as false.
	Values [NumLines]bool
	// Matched reports, per submitted condition, whether it was satisfied at
	// SampleNum. Conditions whose satisfying sample indices coincide are all
	// reported as matched.
	Matched []bool
}

// Source is a sample source. Wait is the single blocking synchronization
// boundary between the decoder and the source; it returns io.EOF when the
// source has no further samples to deliver.
type Source interface {
	// Samplerate returns the sample rate in samples per second,
	// or 0 if it is not known.
	Samplerate() uint64
	// HasLine reports whether the line is monitored by this source.
	HasLine(Line) bool
	// Wait blocks until at least one condition is satisfied.
	Wait([]Cond) (Snapshot, error)
}
