// Package capture is a live logic sample source backed by GPIO lines.
//
// Edge events delivered by the gpiod character device are converted to the
// configured sample clock, so the decoder sees the same wait interface as a
// replayed trace.
package capture

import (
	"fmt"
	"io"
	"math"
	"time"

	"github.com/warthog618/gpiod"
	"github.com/womat/debug"
	"uartad/pkg/logic"
)

// rawEvent is one line transition as reported by gpiod.
type rawEvent struct {
	line logic.Line
	edge logic.Edge
	ts   time.Duration
}

// event is a transition converted to the sample clock.
type event struct {
	line   logic.Line
	edge   logic.Edge
	sample int64
}

// Source watches up to two GPIO lines and implements logic.Source.
// Wait must be called from a single goroutine.
type Source struct {
	chip       *gpiod.Chip
	samplerate uint64

	lines   [logic.NumLines]*gpiod.Line
	present [logic.NumLines]bool
	// value is the line value as of the current sample position.
	value [logic.NumLines]bool

	// ts0 anchors the gpiod event clock to sample 0, -1 until the first event.
	ts0 time.Duration
	// pending holds received events not yet consumed by Wait, time ordered.
	pending []event
	// samplenum is the sample position of the last Wait result.
	samplenum int64

	evC  chan rawEvent
	quit chan struct{}
}

// Open requests the configured GPIO lines with both-edge event watches.
// gpios holds the line offsets per logic.Line, monitor selects which of the
// two lines are watched.
func Open(chipName string, gpios [logic.NumLines]int, monitor [logic.NumLines]bool, samplerate uint64) (*Source, error) {
	if samplerate == 0 {
		return nil, fmt.Errorf("capture: samplerate required")
	}

	chip, err := gpiod.NewChip(chipName)
	if err != nil {
		return nil, fmt.Errorf("capture: opening chip %q: %w", chipName, err)
	}

	s := &Source{
		chip:       chip,
		samplerate: samplerate,
		ts0:        -1,
		evC:        make(chan rawEvent, 64),
		quit:       make(chan struct{}),
	}

	for l := logic.Line(0); l < logic.NumLines; l++ {
		if !monitor[l] {
			continue
		}

		line := l
		handler := func(evt gpiod.LineEvent) {
			e := rawEvent{line: line, ts: evt.Timestamp}
			switch evt.Type {
			case gpiod.LineEventRisingEdge:
				e.edge = logic.Rising
			case gpiod.LineEventFallingEdge:
				e.edge = logic.Falling
			default:
				debug.ErrorLog.Printf("capture: invalid event type %v", evt.Type)
				return
			}

			select {
			case s.evC <- e:
			case <-s.quit:
			}
		}

		gl, err := chip.RequestLine(gpios[l], gpiod.WithEventHandler(handler),
			gpiod.WithBothEdges, gpiod.AsInput)
		if err != nil {
			_ = s.Close()
			return nil, fmt.Errorf("capture: requesting %v line (gpio %d): %w", l, gpios[l], err)
		}

		v, err := gl.Value()
		if err != nil {
			_ = gl.Close()
			_ = s.Close()
			return nil, fmt.Errorf("capture: reading %v line: %w", l, err)
		}

		s.lines[l] = gl
		s.present[l] = true
		s.value[l] = v != 0
	}

	return s, nil
}

// Samplerate returns the configured sample rate.
func (s *Source) Samplerate() uint64 {
	return s.samplerate
}

// HasLine reports whether the line is watched.
func (s *Source) HasLine(l logic.Line) bool {
	return s.present[l]
}

// Close releases the requested lines and the chip and unblocks Wait.
func (s *Source) Close() error {
	close(s.quit)
	for _, gl := range s.lines {
		if gl != nil {
			_ = gl.Close()
		}
	}
	return s.chip.Close()
}

// Wait blocks until the earliest submitted condition is satisfied. Skip
// conditions are satisfied by elapsed wall-clock time at the sample rate,
// edge conditions by a matching received transition. Events are assumed to
// arrive before the wall clock passes their timestamp.
func (s *Source) Wait(conds []logic.Cond) (logic.Snapshot, error) {
	// targets holds each skip condition's own target sample, -1 for edge
	// conditions. A skip condition is only matched at its own target, not
	// at the earliest one.
	targets := make([]int64, len(conds))
	skipTarget := int64(math.MaxInt64)
	for i, c := range conds {
		targets[i] = -1
		if c.Edge != 0 {
			continue
		}
		skip := c.Skip
		if skip < 1 {
			skip = 1
		}
		targets[i] = s.samplenum + skip
		if targets[i] < skipTarget {
			skipTarget = targets[i]
		}
	}

	var timeout <-chan time.Time
	if skipTarget != math.MaxInt64 {
		d := time.Duration(skipTarget-s.samplenum) * time.Second / time.Duration(s.samplerate)
		timer := time.NewTimer(d)
		defer timer.Stop()
		timeout = timer.C
	}

	fired := false
	for {
		if snap, ok := s.take(conds, targets, skipTarget, fired); ok {
			return snap, nil
		}

		select {
		case ev := <-s.evC:
			s.push(ev)
		case <-timeout:
			fired = true
		case <-s.quit:
			return logic.Snapshot{}, io.EOF
		}
	}
}

// push converts a raw event to the sample clock and appends it to pending.
func (s *Source) push(ev rawEvent) {
	if s.ts0 < 0 {
		s.ts0 = ev.ts
	}
	sample := int64(math.Round(float64(ev.ts-s.ts0) / 1e9 * float64(s.samplerate)))
	if n := len(s.pending); n > 0 && sample < s.pending[n-1].sample {
		sample = s.pending[n-1].sample
	}
	s.pending = append(s.pending, event{line: ev.line, edge: ev.edge, sample: sample})
}

// take tries to resolve the wait against the pending events. It stops at the
// earliest pending event matching an edge condition, or at the skip target
// once its wall-clock time has passed (fired). Events before the stop sample
// only update the tracked line values.
func (s *Source) take(conds []logic.Cond, targets []int64, skipTarget int64, fired bool) (logic.Snapshot, bool) {
	stop := int64(-1)

	for _, ev := range s.pending {
		if ev.sample > skipTarget {
			break
		}
		if matchesEdge(conds, ev) {
			stop = ev.sample
			break
		}
	}

	if stop < 0 {
		if !fired {
			return logic.Snapshot{}, false
		}
		stop = skipTarget
	}

	// Consume everything up to and including the stop sample, tracking line
	// values and which lines had a matching edge exactly at the stop.
	var edged [logic.NumLines]logic.Edge
	i := 0
	for ; i < len(s.pending) && s.pending[i].sample <= stop; i++ {
		ev := s.pending[i]
		s.value[ev.line] = ev.edge == logic.Rising
		if ev.sample == stop {
			edged[ev.line] = ev.edge
		}
	}
	s.pending = s.pending[i:]
	s.samplenum = stop

	snap := logic.Snapshot{SampleNum: stop, Values: s.value, Matched: make([]bool, len(conds))}
	for i, c := range conds {
		if c.Edge != 0 {
			snap.Matched[i] = edged[c.Line] == c.Edge
		} else {
			snap.Matched[i] = stop == targets[i]
		}
	}

	return snap, true
}

func matchesEdge(conds []logic.Cond, ev event) bool {
	for _, c := range conds {
		if c.Edge != 0 && c.Line == ev.line && c.Edge == ev.edge {
			return true
		}
	}
	return false
}
