package app

import (
	"encoding/json"
	"time"

	"github.com/womat/debug"

	"uartad/pkg/logic"
	"uartad/pkg/mqtt"
	"uartad/pkg/uart"
)

// eventBacklog is the number of decode events kept for the /events handler.
const eventBacklog = 1024

// DataValue is the last completed data value of a line, as served by the
// /data handler and published to mqtt.
type DataValue struct {
	Line  string    `json:"line"`
	Value int       `json:"value"`
	Text  string    `json:"text"`
	SS    int64     `json:"ss"`
	ES    int64     `json:"es"`
	Time  time.Time `json:"time"`
}

// service runs the decode loop. It returns when the sample source is
// exhausted (finite capture file) or fails; a failed run shuts the
// application down.
func (app *App) service() {
	if err := app.decoder.Run(); err != nil {
		debug.ErrorLog.Printf("decode run failed: %v", err)
		close(app.shutdown)
		return
	}

	debug.InfoLog.Print("decode run finished")
}

// PutEvent receives a structured decode event from the decoder.
// Completed data values are kept for the web handlers and published to mqtt
// when the value changed or the configured publish interval has elapsed.
func (app *App) PutEvent(ev uart.Event) {
	app.data.Lock()
	defer app.data.Unlock()

	if len(app.data.events) == eventBacklog {
		app.data.events = app.data.events[1:]
	}
	app.data.events = append(app.data.events, ev)

	if ev.Type != uart.EvData {
		return
	}

	cfg := app.uartCfg
	v := &DataValue{
		Line:  ev.Line.String(),
		Value: ev.Value,
		Text:  uart.FormatValue(cfg.Format, cfg.DataBits, ev.Value),
		SS:    ev.SS,
		ES:    ev.ES,
		Time:  time.Now(),
	}
	app.data.last[ev.Line] = v

	if app.shouldPublish(ev.Line, v) {
		app.sendMQTT(app.config.MQTT.Topic, v)
	}
}

// shouldPublish applies the configured mqtt interval: a value is published
// when it differs from the last published one or the interval has elapsed.
// Caller holds the data lock.
func (app *App) shouldPublish(l logic.Line, v *DataValue) bool {
	last := app.data.published[l]
	if last == nil || v.Value != last.Value || v.Time.Sub(last.Time) >= app.config.MQTT.Interval {
		app.data.published[l] = v
		return true
	}
	return false
}

// PutAnn receives a display annotation from the decoder.
func (app *App) PutAnn(a uart.Ann) {
	debug.TraceLog.Printf("annotation class %d [%d, %d): %v", a.Class, a.SS, a.ES, a.Texts)
}

// PutBin receives a binary dump chunk and appends it to the configured
// dump file of its row.
func (app *App) PutBin(b uart.Bin) {
	f := app.dump[b.Row]
	if f == nil {
		return
	}

	if _, err := f.Write(b.Data); err != nil {
		debug.ErrorLog.Printf("writing dump row %d: %v", b.Row, err)
	}
}

// lastValues returns the last completed data value per line.
func (app *App) lastValues() []*DataValue {
	app.data.Lock()
	defer app.data.Unlock()

	values := make([]*DataValue, 0, logic.NumLines)
	for _, v := range app.data.last {
		if v != nil {
			values = append(values, v)
		}
	}
	return values
}

// recentEvents returns a copy of the kept decode events.
func (app *App) recentEvents() []uart.Event {
	app.data.Lock()
	defer app.data.Unlock()

	events := make([]uart.Event, len(app.data.events))
	copy(events, app.data.events)
	return events
}

// sendMQTT sends a message struct to the mqtt broker.
func (app *App) sendMQTT(topic string, message interface{}) {
	go func(t string, r interface{}) {
		debug.TraceLog.Printf("prepare mqtt message %v %v", t, r)

		b, err := json.Marshal(r)
		if err != nil {
			debug.ErrorLog.Printf("sendMQTT marshal: %v", err)
			return
		}

		app.mqtt.C <- mqtt.Message{
			Qos:      0,
			Retained: true,
			Topic:    t,
			Payload:  b,
		}
	}(topic, message)
}
