package app

import (
	"fmt"
	"io"
	"net/url"
	"os"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"

	"uartad/pkg/app/config"
	"uartad/pkg/capture"
	"uartad/pkg/logic"
	"uartad/pkg/mqtt"
	"uartad/pkg/uart"
)

// App is the main application struct.
// App is where the application is wired up.
type App struct {
	// web is the fiber web framework instance
	web *fiber.App

	// config is the application configuration
	config *config.Config

	// urlParsed contains the parsed Config.Webserver.URL parameter
	urlParsed *url.URL

	// mqtt is the handler to the mqtt broker
	mqtt *mqtt.Handler

	// source delivers the raw logic samples (capture file replay or live GPIO)
	source logic.Source

	// decoder is the uart frame decoder fed from source
	decoder *uart.Decoder
	// uartCfg is the immutable decode configuration of the run
	uartCfg uart.Config

	// data keeps decoded output for the web handlers
	data struct {
		sync.Mutex
		last   [logic.NumLines]*DataValue
		events []uart.Event
		// published is the value last sent to mqtt per line
		published [logic.NumLines]*DataValue
	}

	// dump holds the open binary dump files, indexed by dump row
	dump [3]*os.File

	// restart signals application restart
	restart chan struct{}
	// shutdown signals application shutdown
	shutdown chan struct{}
}

// New checks the web server URL and initializes the main app structure.
func New(config *config.Config) (*App, error) {
	u, err := url.Parse(config.Webserver.URL)
	if err != nil {
		debug.ErrorLog.Printf("Error parsing url %q: %s", config.Webserver.URL, err.Error())
		return &App{}, err
	}

	return &App{
		config:    config,
		urlParsed: u,

		web:  fiber.New(),
		mqtt: mqtt.New(),

		restart:  make(chan struct{}),
		shutdown: make(chan struct{}),
	}, nil
}

// Run starts the application.
func (app *App) Run() error {
	if err := app.init(); err != nil {
		return err
	}

	go app.mqtt.Service()
	go app.runWebServer()
	go app.service()

	return nil
}

// init wires the sample source, the decoder and the output sinks.
func (app *App) init() (err error) {
	if app.source, err = app.openSource(); err != nil {
		debug.ErrorLog.Printf("can't open sample source: %v", err)
		return err
	}

	if app.uartCfg, err = app.config.UART.Decode(); err != nil {
		return err
	}

	if app.decoder, err = uart.New(app.uartCfg, app.source, app); err != nil {
		debug.ErrorLog.Printf("can't create decoder: %v", err)
		return err
	}

	if err = app.openDumpFiles(); err != nil {
		debug.ErrorLog.Printf("can't open dump file: %v", err)
		return err
	}

	if err = app.mqtt.Connect(app.config.MQTT.Connection, MODULE); err != nil {
		debug.ErrorLog.Printf("can't open mqtt broker %v", err)
		return err
	}

	// initDefaultRoutes should always be called last because it may access
	// handlers initialized above
	app.initDefaultRoutes()

	return nil
}

// openSource builds the configured sample source.
func (app *App) openSource() (logic.Source, error) {
	src := app.config.Source

	switch src.Mode {
	case "file":
		return logic.ReadFile(src.File, src.Samplerate, src.RX, src.TX)
	case "gpio":
		return capture.Open(src.Chip,
			[logic.NumLines]int{logic.RX: src.RXGPIO, logic.TX: src.TXGPIO},
			[logic.NumLines]bool{logic.RX: src.RX, logic.TX: src.TX},
			src.Samplerate)
	}

	return nil, fmt.Errorf("invalid source mode %q", src.Mode)
}

// openDumpFiles opens the configured binary dump files.
func (app *App) openDumpFiles() error {
	for row, file := range map[int]string{
		uart.BinRX:   app.config.Dump.RX,
		uart.BinTX:   app.config.Dump.TX,
		uart.BinRXTX: app.config.Dump.Combined,
	} {
		if file == "" {
			continue
		}

		f, err := os.OpenFile(file, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o666)
		if err != nil {
			return err
		}
		app.dump[row] = f
	}

	return nil
}

// Restart returns the read only restart channel.
// Restart is used to be able to react on application restart. (see cmd/uartad.go)
func (app *App) Restart() <-chan struct{} {
	return app.restart
}

// Shutdown returns the read only shutdown channel.
// Shutdown is used to be able to react on application shutdown. (see cmd/uartad.go)
func (app *App) Shutdown() <-chan struct{} {
	return app.shutdown
}

func (app *App) Close() error {
	if app.mqtt != nil {
		_ = app.mqtt.Disconnect()
	}

	if c, ok := app.source.(io.Closer); ok {
		_ = c.Close()
	}

	for _, f := range app.dump {
		if f != nil {
			_ = f.Close()
		}
	}

	return nil
}
