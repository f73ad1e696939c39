package logic

import (
	"fmt"
	"io"
	"os"
)

// Trace is an in-memory replay Source over recorded samples.
// It is used to decode capture files and drives the decoder tests.
type Trace struct {
	samplerate uint64
	// samples holds the recorded values per line. Monitored lines must all
	// have the same length.
	samples [NumLines][]bool
	present [NumLines]bool
	// pos is the current sample position, advanced by Wait.
	pos int64
}

// NewTrace creates an empty trace with the given sample rate.
// Lines are added with SetLine before the first Wait call.
func NewTrace(samplerate uint64) *Trace {
	return &Trace{samplerate: samplerate}
}

// SetLine records the sample values of a line and marks it monitored.
func (t *Trace) SetLine(l Line, samples []bool) {
	t.samples[l] = samples
	t.present[l] = true
}

// Samplerate returns the configured sample rate.
func (t *Trace) Samplerate() uint64 {
	return t.samplerate
}

// HasLine reports whether the line was recorded.
func (t *Trace) HasLine(l Line) bool {
	return t.present[l]
}

// len returns the number of recorded samples.
func (t *Trace) len() int64 {
	for l := range t.samples {
		if t.present[l] {
			return int64(len(t.samples[l]))
		}
	}
	return 0
}

// Wait scans forward from the current position for the earliest sample index
// satisfying any condition and stops there. All conditions satisfied at that
// same index are reported as matched. Returns io.EOF when no condition can be
// satisfied by the remaining samples.
func (t *Trace) Wait(conds []Cond) (Snapshot, error) {
	n := t.len()
	best := int64(-1)

	target := func(c Cond) int64 {
		if c.Edge == 0 {
			skip := c.Skip
			if skip < 1 {
				skip = 1
			}
			return t.pos + skip
		}

		// Scan for the next transition of the requested polarity.
		s := t.samples[c.Line]
		for i := t.pos + 1; i < n; i++ {
			prev, cur := s[i-1], s[i]
			if c.Edge == Rising && !prev && cur {
				return i
			}
			if c.Edge == Falling && prev && !cur {
				return i
			}
		}
		return -1
	}

	targets := make([]int64, len(conds))
	for i, c := range conds {
		targets[i] = target(c)
		if targets[i] >= 0 && (best < 0 || targets[i] < best) {
			best = targets[i]
		}
	}

	if best < 0 || best >= n {
		return Snapshot{}, io.EOF
	}

	t.pos = best
	snap := Snapshot{SampleNum: best, Matched: make([]bool, len(conds))}
	for i, tg := range targets {
		snap.Matched[i] = tg == best
	}
	for l := Line(0); l < NumLines; l++ {
		if t.present[l] {
			snap.Values[l] = t.samples[l][best]
		}
	}

	return snap, nil
}

// Capture file sample layout: one byte per sample.
const (
	rxBit = 1 << 0
	txBit = 1 << 1
)

// ReadFile loads a raw capture file into a Trace. The file holds one byte per
// sample with the RX value in bit 0 and the TX value in bit 1; rx and tx
// select which lines are monitored.
func ReadFile(file string, samplerate uint64, rx, tx bool) (*Trace, error) {
	if !rx && !tx {
		return nil, fmt.Errorf("capture file %q: no line selected", file)
	}

	b, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("reading capture file: %w", err)
	}

	t := NewTrace(samplerate)
	if rx {
		s := make([]bool, len(b))
		for i, v := range b {
			s[i] = v&rxBit != 0
		}
		t.SetLine(RX, s)
	}
	if tx {
		s := make([]bool, len(b))
		for i, v := range b {
			s[i] = v&txBit != 0
		}
		t.SetLine(TX, s)
	}

	return t, nil
}
